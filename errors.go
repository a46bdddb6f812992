package flowauth

import (
	"fmt"

	"github.com/layer-3/flowauth/core"
)

var (
	// ErrInvalidNonce is returned when the nonce is unknown or already used
	ErrInvalidNonce = core.ErrInvalidNonce

	// ErrExpiredNonce is returned when the nonce was used after its expiry
	ErrExpiredNonce = core.ErrExpiredNonce

	// ErrInvalidAccountProof is returned when the signatures do not prove the address
	ErrInvalidAccountProof = core.ErrInvalidAccountProof

	// ErrCreatorNotMember is returned when a DAO is created without its creator as a member
	ErrCreatorNotMember = core.ErrCreatorNotMember

	// ErrUnauthorized is returned when the session token is missing, expired or revoked
	ErrUnauthorized = core.ErrInvalidToken
)

// APIError is an error envelope the client could not map to a known error
type APIError struct {
	StatusCode int
	Msg        string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("flowauth: %d %s", e.StatusCode, e.Msg)
}
