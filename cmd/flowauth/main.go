package main

import (
	"os"

	"github.com/layer-3/flowauth/internal/config"
	"github.com/layer-3/flowauth/internal/logging"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:           "flowauth",
	Short:         "Flow account-proof authentication service",
	Long:          `Issues nonce challenges, verifies Flow account proofs and mints session tokens.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to a YAML config file")
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newDeployContractCmd())
	rootCmd.AddCommand(newPurgeNoncesCmd())
}

// loadConfig reads configuration and sets up the global logger
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(config.New(), configFile)
	if err != nil {
		return nil, err
	}
	if err := logging.Setup(cfg.Log.Level, cfg.Log.Pretty); err != nil {
		return nil, err
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}
