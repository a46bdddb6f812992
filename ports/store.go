package ports

import (
	"context"
	"time"

	"github.com/layer-3/flowauth/core"
)

// NonceStore persists outstanding challenges
type NonceStore interface {
	// Insert stores a new challenge, returning core.ErrNonceExists if the nonce is taken
	Insert(ctx context.Context, challenge *core.NonceChallenge) error

	// Consume atomically removes the challenge and returns it.
	// Only one caller can consume a given nonce; everyone else gets core.ErrInvalidNonce.
	Consume(ctx context.Context, nonce string) (*core.NonceChallenge, error)

	// PurgeExpired deletes challenges that expired before the given time
	PurgeExpired(ctx context.Context, before time.Time) (int, error)
}

// TokenStore interface for token invalidation
type TokenStore interface {
	InvalidateToken(ctx context.Context, tokenID string, expiry time.Duration) error
	IsTokenInvalidated(ctx context.Context, tokenID string) (bool, error)
}

// DAOStore persists DAO documents
type DAOStore interface {
	CreateDAO(ctx context.Context, dao *core.DAO) error
}
