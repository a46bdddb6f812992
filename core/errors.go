package core

import "errors"

var (
	ErrInvalidNonce        = errors.New("invalid nonce")
	ErrExpiredNonce        = errors.New("expired nonce")
	ErrInvalidAccountProof = errors.New("invalid account proof")
	ErrNonceExists         = errors.New("nonce already exists")

	ErrTokenExpired     = errors.New("token has expired")
	ErrTokenInvalidated = errors.New("token has been invalidated")
	ErrInvalidToken     = errors.New("invalid token")

	ErrInvalidDAO       = errors.New("invalid dao")
	ErrCreatorNotMember = errors.New("creator is not a dao member")
)
