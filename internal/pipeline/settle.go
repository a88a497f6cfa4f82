package pipeline

import (
	"context"
	"os"
	"time"
)

// settle waits for the file's size to hold steady across consecutive
// checks, guarding against documents still being written or copied into
// the inbox. It gives up after the configured number of checks; the caller
// decides what a still-missing file means.
func (o *Orchestrator) settle(ctx context.Context, path string) {
	last := int64(-1)
	for i := 0; i < o.settleChecks; i++ {
		info, err := os.Stat(path)
		if err == nil {
			if info.Size() == last {
				return
			}
			last = info.Size()
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(o.settleDelay):
		}
	}
}
