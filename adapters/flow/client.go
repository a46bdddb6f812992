package flow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	sdk "github.com/onflow/flow-go-sdk"
	flowhttp "github.com/onflow/flow-go-sdk/access/http"
)

const defaultTimeout = 10 * time.Second

// ErrAccountNotFound is returned when the access node does not know the address
var ErrAccountNotFound = errors.New("flow account not found")

// AccessAPI is the part of the Flow access API the service uses.
// *flowhttp.Client satisfies it.
type AccessAPI interface {
	GetAccount(ctx context.Context, address sdk.Address) (*sdk.Account, error)
	GetLatestBlockHeader(ctx context.Context, isSealed bool) (*sdk.BlockHeader, error)
	SendTransaction(ctx context.Context, tx sdk.Transaction) error
}

// NewAccessClient connects to the REST API of the access node at host.
// The /v1 API prefix is added when host does not carry it.
func NewAccessClient(host string) (*flowhttp.Client, error) {
	host = strings.TrimRight(host, "/")
	if !strings.HasSuffix(host, "/v1") {
		host += "/v1"
	}
	client, err := flowhttp.NewClient(host)
	if err != nil {
		return nil, fmt.Errorf("failed to create access client for %s: %w", host, err)
	}
	return client, nil
}

// AccountKey is a public key registered on an account
type AccountKey struct {
	Index          int
	PublicKey      []byte // uncompressed X||Y
	SigAlgo        string
	HashAlgo       string
	SequenceNumber uint64
	Weight         int
	Revoked        bool
}

// Account is the subset of account data the verifier needs
type Account struct {
	Address string
	Keys    []AccountKey
}

// Key returns the key with the given index
func (a *Account) Key(index int) (AccountKey, bool) {
	for _, k := range a.Keys {
		if k.Index == index {
			return k, true
		}
	}
	return AccountKey{}, false
}

func accountFromSDK(account *sdk.Account) *Account {
	out := &Account{
		Address: "0x" + account.Address.Hex(),
		Keys:    make([]AccountKey, 0, len(account.Keys)),
	}
	for _, k := range account.Keys {
		if k == nil || k.PublicKey == nil {
			continue
		}
		out.Keys = append(out.Keys, AccountKey{
			Index:          int(k.Index),
			PublicKey:      k.PublicKey.Encode(),
			SigAlgo:        k.SigAlgo.String(),
			HashAlgo:       k.HashAlgo.String(),
			SequenceNumber: k.SequenceNumber,
			Weight:         k.Weight,
			Revoked:        k.Revoked,
		})
	}
	return out
}

// The REST client reports access-node failures as text only.
func isNotFound(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not found") || strings.Contains(msg, "404")
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

// Ledger reads account keys through an access node
type Ledger struct {
	access  AccessAPI
	timeout time.Duration
}

// NewLedger wraps access with a per-call timeout
func NewLedger(access AccessAPI, timeout time.Duration) *Ledger {
	return &Ledger{access: access, timeout: timeout}
}

// GetAccount fetches an account together with its keys
func (l *Ledger) GetAccount(ctx context.Context, address string) (*Account, error) {
	addr, err := ToAddress(address)
	if err != nil {
		return nil, err
	}

	ctx, cancel := withTimeout(ctx, l.timeout)
	defer cancel()

	account, err := l.access.GetAccount(ctx, addr)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("access node: %w", err)
	}
	if account == nil {
		return nil, ErrAccountNotFound
	}

	return accountFromSDK(account), nil
}
