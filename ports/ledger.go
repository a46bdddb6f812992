package ports

import (
	"context"

	"github.com/layer-3/flowauth/core"
)

// AccountProofVerifier checks that a set of signatures proves ownership of an account
type AccountProofVerifier interface {
	VerifyAccountProof(ctx context.Context, appID string, proof *core.AccountProof) (bool, error)
}

// Transaction is a script to be executed by the ledger on behalf of the service account
type Transaction struct {
	Script       string
	Arguments    [][]byte // JSON-Cadence encoded arguments
	ComputeLimit uint64
}

// TransactionSubmitter signs and submits transactions with the service account
type TransactionSubmitter interface {
	SubmitTransaction(ctx context.Context, tx *Transaction) (string, error)
}
