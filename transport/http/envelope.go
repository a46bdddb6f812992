package http

import (
	"errors"
	"net/http"

	"github.com/layer-3/flowauth/core"
)

// Envelope statuses
const (
	StatusSuccess = "success"
	StatusCreated = "created"
	StatusError   = "error"
)

// Envelope messages shared with clients
const (
	MsgInvalidNonce        = "Invalid Nonce"
	MsgExpiredNonce        = "Expired Nonce"
	MsgInvalidAccountProof = "Invalid Account Proof"
	MsgCreatorNotMember    = "The user creating the DAO must be listed as an initial member of the DAO."
	MsgInvalidRequest      = "Invalid Request"
	MsgUnauthorized        = "Unauthorized"
	MsgTooManyRequests     = "Too Many Requests"
	MsgInternalError       = "Internal Error"
)

// Envelope is the uniform response body of the callable endpoints
type Envelope struct {
	Status string `json:"status"`
	Token  string `json:"token,omitempty"`
	ID     string `json:"id,omitempty"`
	Msg    string `json:"msg,omitempty"`
}

func errorEnvelope(msg string) Envelope {
	return Envelope{Status: StatusError, Msg: msg}
}

// envelopeFor maps a service error to the HTTP status and body returned to the client.
// Authentication failures are regular results of a callable and use 200.
// Unexpected errors never leak their text.
func envelopeFor(err error) (int, Envelope) {
	switch {
	case errors.Is(err, core.ErrInvalidNonce):
		return http.StatusOK, errorEnvelope(MsgInvalidNonce)
	case errors.Is(err, core.ErrExpiredNonce):
		return http.StatusOK, errorEnvelope(MsgExpiredNonce)
	case errors.Is(err, core.ErrInvalidAccountProof):
		return http.StatusOK, errorEnvelope(MsgInvalidAccountProof)
	case errors.Is(err, core.ErrCreatorNotMember):
		return http.StatusOK, errorEnvelope(MsgCreatorNotMember)
	case errors.Is(err, core.ErrInvalidDAO):
		return http.StatusBadRequest, errorEnvelope(MsgInvalidRequest)
	case errors.Is(err, core.ErrTokenExpired),
		errors.Is(err, core.ErrTokenInvalidated),
		errors.Is(err, core.ErrInvalidToken):
		return http.StatusUnauthorized, errorEnvelope(MsgUnauthorized)
	default:
		return http.StatusInternalServerError, errorEnvelope(MsgInternalError)
	}
}

// isUnexpected reports whether err falls outside the known error taxonomy
func isUnexpected(err error) bool {
	status, _ := envelopeFor(err)
	return status == http.StatusInternalServerError
}
