package tokenizer

import "github.com/golang-jwt/jwt/v5"

// SessionClaims combines standard claims with the authenticated principal
type SessionClaims struct {
	jwt.RegisteredClaims
	UID string `json:"uid"` // Principal the credential was minted for
}
