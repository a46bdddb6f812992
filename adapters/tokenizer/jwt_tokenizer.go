package tokenizer

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"fmt"
	"os"

	"github.com/dropbox/godropbox/time2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/layer-3/flowauth/core"
)

const DefaultAudience = "session:access"

// JWTTokenizer implements the Tokenizer interface using ES256 JWTs
type JWTTokenizer struct {
	signKey  *ecdsa.PrivateKey
	issuer   string
	audience string
	clock    time2.Clock
}

// NewJWTTokenizer creates a new JWT tokenizer
func NewJWTTokenizer(signKey *ecdsa.PrivateKey, issuer, audience string, clock time2.Clock) *JWTTokenizer {
	if audience == "" {
		audience = DefaultAudience
	}
	if clock == nil {
		clock = time2.DefaultClock
	}
	return &JWTTokenizer{
		signKey:  signKey,
		issuer:   issuer,
		audience: audience,
		clock:    clock,
	}
}

// LoadSigningKey reads a PEM encoded EC private key
func LoadSigningKey(path string) (*ecdsa.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read signing key: %w", err)
	}
	key, err := jwt.ParseECPrivateKeyFromPEM(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse signing key: %w", err)
	}
	return key, nil
}

// GenerateSigningKey creates an ephemeral P-256 key
func GenerateSigningKey() (*ecdsa.PrivateKey, error) {
	return ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
}

// SessionToToken mints a session credential for the session's address
func (j *JWTTokenizer) SessionToToken(session *core.Session) (string, error) {
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    j.issuer,
			Subject:   session.Address,
			ID:        session.ID,
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(session.IssuedAt),
			Audience:  jwt.ClaimStrings{j.audience},
		},
		UID: session.Address,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)

	signedToken, err := token.SignedString(j.signKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}

	return signedToken, nil
}

// TokenToSession parses a session credential and returns the session it describes
func (j *JWTTokenizer) TokenToSession(tokenStr string) (*core.Session, error) {
	opts := []jwt.ParserOption{
		jwt.WithAudience(j.audience),
		jwt.WithTimeFunc(j.clock.Now),
		jwt.WithExpirationRequired(),
	}
	if j.issuer != "" {
		opts = append(opts, jwt.WithIssuer(j.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenStr, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		// Validate the signing method
		if _, ok := token.Method.(*jwt.SigningMethodECDSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return &j.signKey.PublicKey, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, core.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, core.ErrInvalidToken
	}

	session := &core.Session{
		ID:        claims.ID,
		Address:   claims.Subject,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		session.IssuedAt = claims.IssuedAt.Time
	}

	return session, nil
}
