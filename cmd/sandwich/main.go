// Command sandwich watches Raydium AMM v4 swaps and executes sandwich bundles.
//
// Usage:
//
//	sandwich run [--dry-run=false] [--config sandwich.yaml]
//	sandwich decode <signature>
//	sandwich evaluate <signature>
//	sandwich migrate
package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"solana-sandwich-bot/internal/config"
	"solana-sandwich-bot/internal/observability"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "sandwich",
		Short:        "Raydium sandwich detection and execution",
		SilenceUsage: true,
	}
	root.PersistentFlags().String("config", "", "config file path (yaml, toml or json)")
	root.PersistentFlags().String("env-file", ".env", "dotenv file loaded before reading SANDWICH_* variables")
	config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Monitor swaps and execute profitable sandwiches",
			Args:  cobra.NoArgs,
			RunE:  runBot,
		},
		&cobra.Command{
			Use:   "decode <signature>",
			Short: "Fetch a transaction and print its decoded swaps",
			Args:  cobra.ExactArgs(1),
			RunE:  runDecode,
		},
		&cobra.Command{
			Use:   "evaluate <signature>",
			Short: "Decode a transaction and size a sandwich against current reserves",
			Args:  cobra.ExactArgs(1),
			RunE:  runEvaluate,
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply the embedded Postgres and ClickHouse migrations",
			Args:  cobra.NoArgs,
			RunE:  runMigrate,
		},
	)
	return root
}

// loadConfig reads and validates the configuration and builds the logger.
func loadConfig(cmd *cobra.Command) (*config.Config, *zap.Logger, error) {
	file, _ := cmd.Flags().GetString("config")
	envFile, _ := cmd.Flags().GetString("env-file")

	cfg, err := config.Load(config.LoadOptions{File: file, EnvFile: envFile, Flags: cmd.Flags()})
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	logger, _, err := observability.NewLogger(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
