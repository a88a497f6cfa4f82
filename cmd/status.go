package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report archive counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initPipeline()
		if err != nil {
			return eris.Wrap(err, "status: init")
		}

		processed, err := env.Tracker.ProcessedCount()
		if err != nil {
			return eris.Wrap(err, "status: processed count")
		}
		rows, err := env.Ledger.CountRows()
		if err != nil {
			return eris.Wrap(err, "status: ledger rows")
		}
		blobs, err := env.Store.Count()
		if err != nil {
			return eris.Wrap(err, "status: store blobs")
		}

		fmt.Printf("Documents processed: %d\n", processed)
		fmt.Printf("Ledger rows:         %d\n", rows)
		fmt.Printf("Unique objects:      %d\n", blobs)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
