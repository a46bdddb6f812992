package main

import (
	"fmt"

	"github.com/layer-3/flowauth/adapters/flow"
	"github.com/layer-3/flowauth/contracts"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newDeployContractCmd() *cobra.Command {
	var (
		initialSigner    string
		initialThreshold uint64
	)

	cmd := &cobra.Command{
		Use:   "deploy-contract",
		Short: "Deploy the ExampleToken contract with the service account",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			sa := cfg.Flow.ServiceAccount
			if sa.Address == "" || sa.PrivateKey == "" {
				return fmt.Errorf("flow.service_account.address and flow.service_account.private_key are required")
			}
			if initialSigner == "" {
				initialSigner = sa.Address
			}

			signer, err := flow.NewSigner(sa.PrivateKey, sa.SignatureAlgorithm, sa.HashAlgorithm)
			if err != nil {
				return err
			}
			access, err := flow.NewAccessClient(cfg.Flow.AccessNode)
			if err != nil {
				return err
			}
			submitter := flow.NewTransactionSubmitter(
				access,
				flow.ServiceAccount{Address: sa.Address, KeyIndex: sa.KeyIndex, Signer: signer},
				cfg.Flow.Timeout,
			)

			txID, err := contracts.DeployExampleToken(cmd.Context(), submitter, initialSigner, initialThreshold)
			if err != nil {
				return err
			}

			log.Info().Str("tx_id", txID).Str("network", cfg.Flow.Network).Msg("deploy transaction submitted")
			fmt.Fprintln(cmd.OutOrStdout(), txID)
			return nil
		},
	}

	cmd.Flags().StringVar(&initialSigner, "initial-signer", "", "address of the first multisig signer (defaults to the service account)")
	cmd.Flags().Uint64Var(&initialThreshold, "initial-threshold", 1, "initial signature threshold")

	return cmd
}
