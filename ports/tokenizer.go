package ports

import "github.com/layer-3/flowauth/core"

// Tokenizer mints and parses session credentials
type Tokenizer interface {
	SessionToToken(session *core.Session) (string, error)
	TokenToSession(token string) (*core.Session, error)
}
