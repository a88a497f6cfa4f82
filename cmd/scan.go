package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "One-shot catch-up scan of the inbox",
	Long: `Process every unprocessed PDF currently in the inbox, then exit.
Documents whose content hash is already on record are skipped.`,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	log := zap.L().With(zap.String("command", "scan"))

	env, err := initPipeline()
	if err != nil {
		return eris.Wrap(err, "scan: init")
	}

	log.Info("scanning inbox", zap.String("dir", cfg.InboxDir()))
	if err := env.Orch.Scan(ctx, cfg.InboxDir()); err != nil {
		return eris.Wrap(err, "scan")
	}

	fmt.Println("Scan complete")
	return nil
}
