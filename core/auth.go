package core

import "time"

// NonceChallenge is an outstanding authentication challenge
type NonceChallenge struct {
	Nonce     string    // Random hex nonce the client must sign
	AppID     string    // Relying application the challenge is scoped to
	IssuedAt  time.Time // When the challenge was created
	ExpiresAt time.Time // When the challenge stops being accepted
}

// Expired reports whether the challenge is no longer valid at now
func (c *NonceChallenge) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// AccountProof is the client-submitted proof of address ownership
type AccountProof struct {
	Address    string   // Flow address of the account
	Nonce      string   // Nonce previously issued by the service
	Message    string   // Optional hex of the signed message
	KeyIDs     []int    // Account key indices, one per signature
	Signatures []string // Hex signatures produced by the account keys
}

// Session represents an authenticated user session
type Session struct {
	ID        string    // Unique session identifier, used for revocation
	Address   string    // Flow address the session is bound to
	IssuedAt  time.Time // When the session was created
	ExpiresAt time.Time // When the session credential expires
}
