package main

import (
	"fmt"

	"github.com/layer-3/flowauth/service"
	"github.com/spf13/cobra"
)

func newPurgeNoncesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge-nonces",
		Short: "Delete expired nonce challenges past the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			b, err := openBackends(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer b.Close()

			// Only the store and timings matter for purging
			authService := service.NewAuthService(
				service.AuthConfig{
					AppID:          cfg.Auth.AppID,
					NonceTTL:       cfg.Auth.NonceTTL,
					NonceRetention: cfg.Auth.NonceRetention,
					SessionTTL:     cfg.Session.TTL,
				},
				b.nonces, b.tokens, nil, nil, b.eventPub,
			)

			purged, err := authService.PurgeExpiredNonces(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "purged %d expired nonces\n", purged)
			return nil
		},
	}
}
