// Package contracts embeds the ExampleToken contract and the transaction that deploys it.
package contracts

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/layer-3/flowauth/adapters/flow"
	"github.com/layer-3/flowauth/ports"
)

// DeployComputeLimit is the compute limit used for the deploy transaction
const DeployComputeLimit = 999

var (
	//go:embed ExampleToken.cdc
	ExampleToken string

	//go:embed deploy_add_contract.cdc
	deployTransaction string
)

// DeployExampleToken submits the ExampleToken contract to the service account with
// initialSigner as the first multisig signer. It returns the transaction id.
func DeployExampleToken(ctx context.Context, submitter ports.TransactionSubmitter, initialSigner string, initialThreshold uint64) (string, error) {
	if initialThreshold == 0 {
		return "", fmt.Errorf("initial threshold must be positive")
	}
	signerArg, err := flow.AddressArg(initialSigner)
	if err != nil {
		return "", fmt.Errorf("invalid initial signer: %w", err)
	}
	thresholdArg, err := flow.UIntArg(initialThreshold)
	if err != nil {
		return "", err
	}
	contractArg, err := flow.StringArg(ExampleToken)
	if err != nil {
		return "", err
	}

	tx := &ports.Transaction{
		Script:       deployTransaction,
		Arguments:    [][]byte{signerArg, thresholdArg, contractArg},
		ComputeLimit: DeployComputeLimit,
	}

	txID, err := submitter.SubmitTransaction(ctx, tx)
	if err != nil {
		return "", fmt.Errorf("failed to submit deploy transaction: %w", err)
	}

	return txID, nil
}
