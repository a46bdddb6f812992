package flow

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/layer-3/flowauth/core"
	sdk "github.com/onflow/flow-go-sdk"
)

const (
	// MinNonceLength is the minimum nonce size accepted in an account proof
	MinNonceLength = 32

	// SignatureThreshold is the key weight an account needs to sign on its own behalf
	SignatureThreshold = 1000
)

// EncodeAccountProof builds the domain-tagged message a wallet signs to prove
// ownership of address.
func EncodeAccountProof(appID, address, nonce string) ([]byte, error) {
	addr, err := ToAddress(address)
	if err != nil {
		return nil, err
	}
	nonceBytes, err := hex.DecodeString(nonce)
	if err != nil {
		return nil, fmt.Errorf("nonce is not hex: %w", err)
	}
	if len(nonceBytes) < MinNonceLength {
		return nil, fmt.Errorf("nonce must be at least %d bytes", MinNonceLength)
	}

	message, err := sdk.EncodeAccountProofMessage(addr, appID, nonce, true)
	if err != nil {
		return nil, fmt.Errorf("failed to encode account proof: %w", err)
	}
	return message, nil
}

// VerifyUserSignatures checks that signatures by the listed keys cover message and
// together carry at least SignatureThreshold weight.
// Every key must exist, be unrevoked and appear once; every signature must verify.
func VerifyUserSignatures(account *Account, message []byte, keyIDs []int, signatures [][]byte) bool {
	if len(keyIDs) == 0 || len(keyIDs) != len(signatures) {
		return false
	}

	seen := make(map[int]bool, len(keyIDs))
	weight := 0
	for i, keyID := range keyIDs {
		key, ok := account.Key(keyID)
		if !ok || key.Revoked || seen[keyID] {
			return false
		}
		seen[keyID] = true

		if !verifySignature(key, UserDomainTag, message, signatures[i]) {
			return false
		}
		weight += key.Weight
	}

	return weight >= SignatureThreshold
}

// AccountFetcher loads account keys from the ledger
type AccountFetcher interface {
	GetAccount(ctx context.Context, address string) (*Account, error)
}

// AccountProofVerifier verifies FCL account proofs against on-chain keys
type AccountProofVerifier struct {
	accounts AccountFetcher
}

// NewAccountProofVerifier creates a verifier backed by the given account source
func NewAccountProofVerifier(accounts AccountFetcher) *AccountProofVerifier {
	return &AccountProofVerifier{accounts: accounts}
}

// VerifyAccountProof re-derives the signed message from appID and the proof's nonce and
// address, then checks the signatures against the account's keys.
// A malformed proof is reported as false; only ledger access failures are errors.
func (v *AccountProofVerifier) VerifyAccountProof(ctx context.Context, appID string, proof *core.AccountProof) (bool, error) {
	message, err := EncodeAccountProof(appID, proof.Address, proof.Nonce)
	if err != nil {
		return false, nil
	}

	if proof.Message != "" && !strings.EqualFold(strings.TrimPrefix(proof.Message, "0x"), hex.EncodeToString(message)) {
		return false, nil
	}

	if len(proof.KeyIDs) == 0 || len(proof.KeyIDs) != len(proof.Signatures) {
		return false, nil
	}
	signatures := make([][]byte, len(proof.Signatures))
	for i, s := range proof.Signatures {
		sig, err := decodeHex(s)
		if err != nil {
			return false, nil
		}
		signatures[i] = sig
	}

	account, err := v.accounts.GetAccount(ctx, proof.Address)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to fetch account keys: %w", err)
	}

	return VerifyUserSignatures(account, message, proof.KeyIDs, signatures), nil
}
