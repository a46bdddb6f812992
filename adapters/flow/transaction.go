package flow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/layer-3/flowauth/ports"
	sdk "github.com/onflow/flow-go-sdk"
	"github.com/onflow/flow-go-sdk/crypto"
)

// NewSigner decodes a hex private key into an in-memory signer
func NewSigner(privateKeyHex, sigAlgo, hashAlgo string) (crypto.Signer, error) {
	sa := crypto.StringToSignatureAlgorithm(sigAlgo)
	switch sa {
	case crypto.ECDSA_P256, crypto.ECDSA_secp256k1:
	default:
		return nil, fmt.Errorf("unsupported signature algorithm %q", sigAlgo)
	}
	ha := crypto.StringToHashAlgorithm(hashAlgo)
	switch ha {
	case crypto.SHA2_256, crypto.SHA3_256:
	default:
		return nil, fmt.Errorf("unsupported hash algorithm %q", hashAlgo)
	}

	key, err := crypto.DecodePrivateKeyHex(sa, strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to decode private key: %w", err)
	}

	signer, err := crypto.NewInMemorySigner(key, ha)
	if err != nil {
		return nil, fmt.Errorf("failed to create signer: %w", err)
	}
	return &signer, nil
}

// ServiceAccount is the account the service signs transactions with
type ServiceAccount struct {
	Address  string
	KeyIndex int
	Signer   crypto.Signer
}

// TransactionSubmitter signs transactions with the service account acting as
// proposer, payer and sole authorizer, and sends them to the access node.
type TransactionSubmitter struct {
	access  AccessAPI
	account ServiceAccount
	timeout time.Duration
}

// NewTransactionSubmitter creates a new submitter
func NewTransactionSubmitter(access AccessAPI, account ServiceAccount, timeout time.Duration) *TransactionSubmitter {
	return &TransactionSubmitter{access: access, account: account, timeout: timeout}
}

// SubmitTransaction builds, signs and sends tx, returning the transaction id
func (s *TransactionSubmitter) SubmitTransaction(ctx context.Context, tx *ports.Transaction) (string, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	signed, err := s.build(ctx, tx)
	if err != nil {
		return "", err
	}

	if err := s.access.SendTransaction(ctx, *signed); err != nil {
		return "", fmt.Errorf("failed to send transaction: %w", err)
	}
	return signed.ID().String(), nil
}

func (s *TransactionSubmitter) build(ctx context.Context, tx *ports.Transaction) (*sdk.Transaction, error) {
	address, err := ToAddress(s.account.Address)
	if err != nil {
		return nil, err
	}

	account, err := s.access.GetAccount(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("failed to load service account: %w", err)
	}
	var key *sdk.AccountKey
	for _, k := range account.Keys {
		if k != nil && int(k.Index) == s.account.KeyIndex {
			key = k
			break
		}
	}
	if key == nil || key.Revoked {
		return nil, fmt.Errorf("service account key %d is missing or revoked", s.account.KeyIndex)
	}

	header, err := s.access.GetLatestBlockHeader(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch reference block: %w", err)
	}

	flowTx := sdk.NewTransaction().
		SetScript([]byte(tx.Script)).
		SetComputeLimit(tx.ComputeLimit).
		SetReferenceBlockID(header.ID).
		SetProposalKey(address, key.Index, key.SequenceNumber).
		SetPayer(address).
		AddAuthorizer(address)
	for _, arg := range tx.Arguments {
		flowTx.AddRawArgument(arg)
	}

	if err := flowTx.SignEnvelope(address, key.Index, s.account.Signer); err != nil {
		return nil, fmt.Errorf("failed to sign transaction envelope: %w", err)
	}
	return flowTx, nil
}
