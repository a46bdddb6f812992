package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dropbox/godropbox/time2"
	"github.com/google/uuid"
	"github.com/layer-3/flowauth/core"
	"github.com/layer-3/flowauth/internal/logging"
	"github.com/layer-3/flowauth/internal/metrics"
	"github.com/layer-3/flowauth/ports"
)

const (
	// NonceSize is the number of random bytes in a nonce
	NonceSize = 32

	maxNonceAttempts = 3
)

// AuthConfig holds the authentication timings and relying-party identity
type AuthConfig struct {
	AppID          string
	NonceTTL       time.Duration
	NonceRetention time.Duration
	SessionTTL     time.Duration
}

// DefaultAuthConfig returns the timings used when nothing is configured
func DefaultAuthConfig() AuthConfig {
	return AuthConfig{
		AppID:          "DAO LLC Governance Portal (v0.1)",
		NonceTTL:       60 * time.Second,
		NonceRetention: 10 * time.Minute,
		SessionTTL:     time.Hour,
	}
}

// AuthService handles authentication business logic
type AuthService struct {
	nonces    ports.NonceStore
	tokens    ports.TokenStore
	verifier  ports.AccountProofVerifier
	tokenizer ports.Tokenizer
	eventPub  ports.EventPublisher

	metrics *metrics.Metrics
	clock   time2.Clock
	random  io.Reader

	cfg AuthConfig
}

// Option customises an AuthService
type Option func(*AuthService)

// WithClock replaces the wall clock
func WithClock(clock time2.Clock) Option {
	return func(s *AuthService) { s.clock = clock }
}

// WithMetrics records service metrics
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *AuthService) { s.metrics = m }
}

// WithRandom replaces the nonce entropy source
func WithRandom(r io.Reader) Option {
	return func(s *AuthService) { s.random = r }
}

// NewAuthService creates a new authentication service
func NewAuthService(
	cfg AuthConfig,
	nonces ports.NonceStore,
	tokens ports.TokenStore,
	verifier ports.AccountProofVerifier,
	tokenizer ports.Tokenizer,
	eventPub ports.EventPublisher,
	opts ...Option,
) *AuthService {
	defaults := DefaultAuthConfig()
	if cfg.AppID == "" {
		cfg.AppID = defaults.AppID
	}
	if cfg.NonceTTL <= 0 {
		cfg.NonceTTL = defaults.NonceTTL
	}
	if cfg.NonceRetention < 0 {
		cfg.NonceRetention = 0
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = defaults.SessionTTL
	}

	s := &AuthService{
		nonces:    nonces,
		tokens:    tokens,
		verifier:  verifier,
		tokenizer: tokenizer,
		eventPub:  eventPub,
		clock:     time2.DefaultClock,
		random:    rand.Reader,
		cfg:       cfg,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// AppID returns the relying-party identifier challenges are scoped to
func (s *AuthService) AppID() string {
	return s.cfg.AppID
}

// IssueNonce creates and stores a fresh challenge.
// The challenge is always scoped to the configured app ID.
func (s *AuthService) IssueNonce(ctx context.Context) (*core.NonceChallenge, error) {
	logger := logging.FromContext(ctx)

	for attempt := 1; attempt <= maxNonceAttempts; attempt++ {
		nonce, err := s.newNonce()
		if err != nil {
			return nil, err
		}

		now := s.clock.Now()
		challenge := &core.NonceChallenge{
			Nonce:     nonce,
			AppID:     s.cfg.AppID,
			IssuedAt:  now,
			ExpiresAt: now.Add(s.cfg.NonceTTL),
		}

		err = s.nonces.Insert(ctx, challenge)
		if errors.Is(err, core.ErrNonceExists) {
			logger.Warn().Int("attempt", attempt).Msg("nonce collision, regenerating")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to store nonce: %w", err)
		}

		s.metrics.NonceIssued()
		logger.Debug().Time("expires_at", challenge.ExpiresAt).Msg("nonce issued")

		return challenge, nil
	}

	return nil, fmt.Errorf("failed to store nonce after %d attempts: %w", maxNonceAttempts, core.ErrNonceExists)
}

func (s *AuthService) newNonce() (string, error) {
	b := make([]byte, NonceSize)
	if _, err := io.ReadFull(s.random, b); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Authenticate consumes the proof's nonce, verifies the account proof and
// returns a signed session credential for the proven address.
//
// The nonce is consumed before verification, so a failed attempt cannot be retried
// with the same nonce.
func (s *AuthService) Authenticate(ctx context.Context, proof *core.AccountProof) (string, error) {
	logger := logging.FromContext(ctx).With().Str("address", proof.Address).Logger()

	if proof.Nonce == "" {
		s.metrics.AuthAttempt(metrics.ResultInvalidNonce)
		return "", core.ErrInvalidNonce
	}

	challenge, err := s.nonces.Consume(ctx, proof.Nonce)
	if err != nil {
		if errors.Is(err, core.ErrInvalidNonce) {
			s.metrics.AuthAttempt(metrics.ResultInvalidNonce)
			logger.Info().Msg("unknown or already used nonce")
			return "", core.ErrInvalidNonce
		}
		s.metrics.AuthAttempt(metrics.ResultError)
		return "", fmt.Errorf("failed to consume nonce: %w", err)
	}

	if challenge.Expired(s.clock.Now()) {
		s.metrics.AuthAttempt(metrics.ResultExpiredNonce)
		logger.Info().Time("expired_at", challenge.ExpiresAt).Msg("expired nonce")
		return "", core.ErrExpiredNonce
	}

	start := time.Now()
	valid, err := s.verifier.VerifyAccountProof(ctx, challenge.AppID, proof)
	s.metrics.ObserveVerify(time.Since(start))
	if err != nil {
		s.metrics.AuthAttempt(metrics.ResultError)
		return "", fmt.Errorf("account proof verification failed: %w", err)
	}
	if !valid {
		s.metrics.AuthAttempt(metrics.ResultInvalidProof)
		logger.Info().Msg("account proof rejected")
		return "", core.ErrInvalidAccountProof
	}

	// One account has one principal however the client spelled its address
	address, err := core.NormalizeAddress(proof.Address)
	if err != nil {
		s.metrics.AuthAttempt(metrics.ResultInvalidProof)
		return "", core.ErrInvalidAccountProof
	}

	now := s.clock.Now()
	session := &core.Session{
		ID:        uuid.New().String(),
		Address:   address,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.cfg.SessionTTL),
	}

	token, err := s.tokenizer.SessionToToken(session)
	if err != nil {
		s.metrics.AuthAttempt(metrics.ResultError)
		return "", fmt.Errorf("failed to create session token: %w", err)
	}

	if err := s.eventPub.PublishLogin(ctx, session.Address, session.ID); err != nil {
		// The session is already minted
		logger.Warn().Err(err).Msg("failed to publish login event")
	}

	s.metrics.AuthAttempt(metrics.ResultSuccess)
	logger.Info().Str("session_id", session.ID).Msg("session created")

	return token, nil
}

// ValidateSession parses a session credential and checks it has not been revoked
func (s *AuthService) ValidateSession(ctx context.Context, token string) (*core.Session, error) {
	session, err := s.tokenizer.TokenToSession(token)
	if err != nil {
		return nil, err
	}

	if s.clock.Now().After(session.ExpiresAt) {
		return nil, core.ErrTokenExpired
	}

	invalidated, err := s.tokens.IsTokenInvalidated(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check token invalidation: %w", err)
	}
	if invalidated {
		return nil, core.ErrTokenInvalidated
	}

	return session, nil
}

// Logout revokes a session credential for the rest of its lifetime
func (s *AuthService) Logout(ctx context.Context, token string) error {
	session, err := s.tokenizer.TokenToSession(token)
	if err != nil {
		return err
	}

	remaining := session.ExpiresAt.Sub(s.clock.Now())
	if remaining <= 0 {
		return nil
	}

	if err := s.tokens.InvalidateToken(ctx, session.ID, remaining); err != nil {
		return fmt.Errorf("failed to invalidate token: %w", err)
	}

	if err := s.eventPub.PublishLogout(ctx, session.Address, session.ID); err != nil {
		logging.FromContext(ctx).Warn().Err(err).Str("session_id", session.ID).Msg("failed to publish logout event")
	}

	return nil
}

// PurgeExpiredNonces deletes challenges that expired more than the retention window ago.
// Retained challenges let late submissions be reported as expired instead of unknown.
func (s *AuthService) PurgeExpiredNonces(ctx context.Context) (int, error) {
	before := s.clock.Now().Add(-s.cfg.NonceRetention)

	purged, err := s.nonces.PurgeExpired(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("failed to purge nonces: %w", err)
	}
	s.metrics.NoncesPurged(purged)

	return purged, nil
}

// RunNonceJanitor purges expired challenges every interval until ctx is done
func (s *AuthService) RunNonceJanitor(ctx context.Context, interval time.Duration) {
	logger := logging.FromContext(ctx).With().Str("component", "nonce-janitor").Logger()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purged, err := s.PurgeExpiredNonces(ctx)
			if err != nil {
				logger.Error().Err(err).Msg("nonce purge failed")
				continue
			}
			if purged > 0 {
				logger.Debug().Int("purged", purged).Msg("expired nonces removed")
			}
		}
	}
}
