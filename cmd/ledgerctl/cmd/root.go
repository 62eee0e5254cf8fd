// Package cmd provides the ledgerctl commands.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dvloznov/finance-bot/internal/app"
	"github.com/dvloznov/finance-bot/internal/config"
	"github.com/dvloznov/finance-bot/internal/logger"
)

var (
	envFile string
	debug   bool
	log     zerolog.Logger
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "ledgerctl",
	Short: "Inspect and maintain the finance bot ledger",
	Long: `ledgerctl works directly on the ledger store the bot uses.

It supports:
- Listing accounts and transactions
- Auditing stored balances against a ledger replay
- Running exports without the bot
- Preparing and querying the BigQuery export table

Stop the bot first when using the bolt store; it holds a file lock.

Example:
  ledgerctl accounts
  ledgerctl audit
  ledgerctl export --sink file`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := "warn"
		if debug {
			level = "debug"
		}
		log = logger.NewWithLevel(os.Stderr, level)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&envFile, "env", "", "env file (default is .env)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(accountsCmd)
	rootCmd.AddCommand(ledgerCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(exportsCmd)
	rootCmd.AddCommand(migrateCmd)
}

// withApp loads configuration, wires the services and closes them after fn.
func withApp(cmd *cobra.Command, required []string, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(required...); err != nil {
		return err
	}

	ctx := logger.WithContext(cmd.Context(), log)
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialise services: %w", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close services")
		}
	}()

	return fn(ctx, a)
}
