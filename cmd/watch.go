package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/docketry/docketry/internal/notify"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Catch up, then watch the inbox for new PDFs",
	Long: `Run a catch-up scan, then keep processing documents as they appear.
Native file-system events are preferred; --poll sets the scan interval
used when native change notification is unavailable. Interrupt with
Ctrl+C: no new documents are scheduled, a document mid-flight is not
rolled back.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		log := zap.L().With(zap.String("command", "watch"))

		env, err := initPipeline()
		if err != nil {
			return eris.Wrap(err, "watch: init")
		}

		pollInterval := cfg.PollInterval()
		if secs, _ := cmd.Flags().GetInt("poll"); secs > 0 {
			pollInterval = time.Duration(secs) * time.Second
		}

		// Catch up on anything already waiting before going live.
		if err := env.Orch.Scan(ctx, cfg.InboxDir()); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return eris.Wrap(err, "watch: catch-up scan")
		}

		paths := make(chan string, 16)
		g, gctx := errgroup.WithContext(ctx)

		g.Go(func() error {
			return notify.Watch(gctx, cfg.InboxDir(), pollInterval, paths)
		})

		// Documents are processed one at a time; duplicate notifications
		// for the same file are absorbed by the idempotency gate.
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return gctx.Err()
				case p := <-paths:
					if _, perr := env.Orch.Process(gctx, p); perr != nil {
						log.Error("document run failed, will retry on next notification",
							zap.String("pdf", filepath.Base(p)), zap.Error(perr))
					}
				}
			}
		})

		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			return eris.Wrap(err, "watch")
		}
		fmt.Println("Watch stopped")
		return nil
	},
}

func init() {
	watchCmd.Flags().Int("poll", 0, "polling seconds when native change notification is unavailable")
	rootCmd.AddCommand(watchCmd)
}
