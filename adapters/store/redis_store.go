package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/layer-3/flowauth/core"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RedisStore is a Redis implementation of the nonce and token stores
type RedisStore struct {
	client      *redis.Client
	prefix      string
	noncePrefix string
	retention   time.Duration
}

type redisChallenge struct {
	Nonce     string    `json:"nonce"`
	AppID     string    `json:"appID"`
	IssuedAt  time.Time `json:"issuedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// NewRedisStore creates a new Redis store.
// Challenges are kept for retention after they expire so that late
// submissions can still be told apart from unknown nonces.
func NewRedisStore(client *redis.Client, retention time.Duration) *RedisStore {
	return &RedisStore{
		client:      client,
		prefix:      "flowauth:invalidated:",
		noncePrefix: "flowauth:nonce:",
		retention:   retention,
	}
}

// Insert stores the challenge with SETNX, so a nonce can only be issued once
func (s *RedisStore) Insert(ctx context.Context, challenge *core.NonceChallenge) error {
	payload, err := json.Marshal(redisChallenge{
		Nonce:     challenge.Nonce,
		AppID:     challenge.AppID,
		IssuedAt:  challenge.IssuedAt,
		ExpiresAt: challenge.ExpiresAt,
	})
	if err != nil {
		return errors.Wrap(err, "failed to marshal challenge")
	}

	ttl := challenge.ExpiresAt.Sub(challenge.IssuedAt) + s.retention
	ok, err := s.client.SetNX(ctx, s.noncePrefix+challenge.Nonce, payload, ttl).Result()
	if err != nil {
		return errors.Wrap(err, "failed to store challenge")
	}
	if !ok {
		return core.ErrNonceExists
	}

	return nil
}

// Consume reads and deletes the challenge in a single GETDEL
func (s *RedisStore) Consume(ctx context.Context, nonce string) (*core.NonceChallenge, error) {
	payload, err := s.client.GetDel(ctx, s.noncePrefix+nonce).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, core.ErrInvalidNonce
		}
		return nil, errors.Wrap(err, "failed to consume challenge")
	}

	var stored redisChallenge
	if err := json.Unmarshal(payload, &stored); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal challenge")
	}

	return &core.NonceChallenge{
		Nonce:     stored.Nonce,
		AppID:     stored.AppID,
		IssuedAt:  stored.IssuedAt,
		ExpiresAt: stored.ExpiresAt,
	}, nil
}

// PurgeExpired is a no-op for Redis; challenge keys carry their own TTL
func (s *RedisStore) PurgeExpired(ctx context.Context, before time.Time) (int, error) {
	return 0, nil
}

// InvalidateToken marks a token as invalidated in Redis
func (s *RedisStore) InvalidateToken(ctx context.Context, tokenID string, expiry time.Duration) error {
	key := s.prefix + tokenID

	// Set key with expiration
	if err := s.client.Set(ctx, key, "1", expiry).Err(); err != nil {
		return errors.Wrap(err, "failed to invalidate token")
	}

	return nil
}

// IsTokenInvalidated checks if a token is invalidated in Redis
func (s *RedisStore) IsTokenInvalidated(ctx context.Context, tokenID string) (bool, error) {
	key := s.prefix + tokenID

	// Check if key exists
	val, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, errors.Wrap(err, "failed to check token invalidation")
	}

	return val > 0, nil
}
