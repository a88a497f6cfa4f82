package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/docketry/docketry/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "docketry",
	Short: "Watched-directory PDF object ingestion pipeline",
	Long: `Explodes PDF filings into their constituent objects, hashes everything,
and maintains a deduplicated content-addressed archive plus a flat ledger
of every object ever seen. Running without a subcommand performs a
one-shot catch-up scan of the inbox.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	RunE: runScan,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
