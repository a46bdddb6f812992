package store

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/layer-3/flowauth/core"
	"github.com/layer-3/flowauth/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newChallenge(nonce string, issuedAt time.Time) *core.NonceChallenge {
	return &core.NonceChallenge{
		Nonce:     nonce,
		AppID:     "DAO LLC Governance Portal (v0.1)",
		IssuedAt:  issuedAt,
		ExpiresAt: issuedAt.Add(time.Minute),
	}
}

// runNonceStoreTests exercises the behaviour every NonceStore must share
func runNonceStoreTests(t *testing.T, newStore func(t *testing.T) ports.NonceStore) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	t.Run("insert and consume once", func(t *testing.T) {
		s := newStore(t)
		challenge := newChallenge("aa01", now)
		require.NoError(t, s.Insert(ctx, challenge))

		got, err := s.Consume(ctx, "aa01")
		require.NoError(t, err)
		assert.Equal(t, challenge.Nonce, got.Nonce)
		assert.Equal(t, challenge.AppID, got.AppID)
		assert.True(t, challenge.ExpiresAt.Equal(got.ExpiresAt))
		assert.True(t, challenge.IssuedAt.Equal(got.IssuedAt))

		_, err = s.Consume(ctx, "aa01")
		assert.ErrorIs(t, err, core.ErrInvalidNonce)
	})

	t.Run("duplicate insert", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Insert(ctx, newChallenge("bb02", now)))

		err := s.Insert(ctx, newChallenge("bb02", now.Add(time.Second)))
		assert.ErrorIs(t, err, core.ErrNonceExists)
	})

	t.Run("unknown nonce", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Consume(ctx, "deadbeef")
		assert.ErrorIs(t, err, core.ErrInvalidNonce)
	})

	t.Run("concurrent consume has one winner", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Insert(ctx, newChallenge("ff06", now)))

		var (
			wg       sync.WaitGroup
			consumed atomic.Int32
		)
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.Consume(ctx, "ff06")
				if err == nil {
					consumed.Add(1)
					return
				}
				assert.ErrorIs(t, err, core.ErrInvalidNonce)
			}()
		}
		wg.Wait()

		assert.EqualValues(t, 1, consumed.Load())
	})

	t.Run("lookup is exact", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Insert(ctx, newChallenge("cc03", now)))

		_, err := s.Consume(ctx, "CC03")
		assert.ErrorIs(t, err, core.ErrInvalidNonce)
		_, err = s.Consume(ctx, "cc0")
		assert.ErrorIs(t, err, core.ErrInvalidNonce)
	})
}

// runPurgeTests checks PurgeExpired for stores that implement it with a query
func runPurgeTests(t *testing.T, s ports.NonceStore) {
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.Insert(ctx, newChallenge("dd04", now.Add(-time.Hour))))
	require.NoError(t, s.Insert(ctx, newChallenge("ee05", now)))

	purged, err := s.PurgeExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, purged)

	_, err = s.Consume(ctx, "dd04")
	assert.ErrorIs(t, err, core.ErrInvalidNonce)
	_, err = s.Consume(ctx, "ee05")
	assert.NoError(t, err)
}

// runTokenStoreTests exercises the revocation behaviour every TokenStore must share
func runTokenStoreTests(t *testing.T, s ports.TokenStore) {
	ctx := context.Background()

	invalidated, err := s.IsTokenInvalidated(ctx, "session-1")
	require.NoError(t, err)
	assert.False(t, invalidated)

	require.NoError(t, s.InvalidateToken(ctx, "session-1", time.Hour))
	invalidated, err = s.IsTokenInvalidated(ctx, "session-1")
	require.NoError(t, err)
	assert.True(t, invalidated)

	// revoking twice is harmless
	require.NoError(t, s.InvalidateToken(ctx, "session-1", time.Hour))
	invalidated, err = s.IsTokenInvalidated(ctx, "session-1")
	require.NoError(t, err)
	assert.True(t, invalidated)

	invalidated, err = s.IsTokenInvalidated(ctx, "session-2")
	require.NoError(t, err)
	assert.False(t, invalidated)
}

// runLapsedTokenTests checks that a revocation stops applying once it lapses
func runLapsedTokenTests(t *testing.T, s ports.TokenStore) {
	ctx := context.Background()

	require.NoError(t, s.InvalidateToken(ctx, "session-old", -time.Second))
	invalidated, err := s.IsTokenInvalidated(ctx, "session-old")
	require.NoError(t, err)
	assert.False(t, invalidated)
}
