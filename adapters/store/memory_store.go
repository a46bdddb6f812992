package store

import (
	"context"
	"sync"
	"time"

	"github.com/layer-3/flowauth/core"
)

// MemoryStore is an in-memory implementation of the nonce, token and DAO stores.
// It is meant for tests and single-instance development setups.
type MemoryStore struct {
	nonces            map[string]core.NonceChallenge
	invalidatedTokens map[string]time.Time
	daos              map[string]core.DAO
	mu                sync.RWMutex
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nonces:            make(map[string]core.NonceChallenge),
		invalidatedTokens: make(map[string]time.Time),
		daos:              make(map[string]core.DAO),
	}
}

// Insert stores a challenge unless the nonce is already present
func (s *MemoryStore) Insert(ctx context.Context, challenge *core.NonceChallenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.nonces[challenge.Nonce]; exists {
		return core.ErrNonceExists
	}
	s.nonces[challenge.Nonce] = *challenge

	return nil
}

// Consume removes the challenge under the write lock so that only one caller sees it
func (s *MemoryStore) Consume(ctx context.Context, nonce string) (*core.NonceChallenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	challenge, exists := s.nonces[nonce]
	if !exists {
		return nil, core.ErrInvalidNonce
	}
	delete(s.nonces, nonce)

	return &challenge, nil
}

// PurgeExpired removes challenges that expired before the given time
func (s *MemoryStore) PurgeExpired(ctx context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	purged := 0
	for nonce, challenge := range s.nonces {
		if challenge.ExpiresAt.Before(before) {
			delete(s.nonces, nonce)
			purged++
		}
	}

	return purged, nil
}

// InvalidateToken marks a token as invalidated
func (s *MemoryStore) InvalidateToken(ctx context.Context, tokenID string, expiry time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.invalidatedTokens[tokenID] = now.Add(expiry)

	// Drop records whose token would have expired anyway
	for id, until := range s.invalidatedTokens {
		if now.After(until) {
			delete(s.invalidatedTokens, id)
		}
	}

	return nil
}

// IsTokenInvalidated checks if a token is invalidated
func (s *MemoryStore) IsTokenInvalidated(ctx context.Context, tokenID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	expiryTime, exists := s.invalidatedTokens[tokenID]
	if !exists {
		return false, nil
	}

	// Check if the token invalidation has expired
	if time.Now().After(expiryTime) {
		return false, nil
	}

	return true, nil
}

// CreateDAO stores a DAO document
func (s *MemoryStore) CreateDAO(ctx context.Context, dao *core.DAO) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *dao
	stored.MemberIDs = append([]string(nil), dao.MemberIDs...)
	stored.Members = append([]core.Member(nil), dao.Members...)
	s.daos[dao.ID] = stored

	return nil
}

// DAO returns a stored DAO by id
func (s *MemoryStore) DAO(id string) (core.DAO, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dao, ok := s.daos[id]
	return dao, ok
}
