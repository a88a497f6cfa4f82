// Package notify discovers new documents in the inbox directory, either
// through native file-system events or a polling scan.
package notify

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

var pdfNameRe = regexp.MustCompile(`(?i)\.pdf$`)

// IsPDF reports whether name looks like a PDF document.
func IsPDF(name string) bool {
	return pdfNameRe.MatchString(name)
}

// ListPDFs returns the sorted paths of PDF files directly under dir. A
// missing directory yields no paths rather than an error.
func ListPDFs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "notify: read dir %s", dir)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || !IsPDF(e.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// Watch emits document paths on out until ctx is done. It prefers native
// file-system events (create and rename-into-dir both surface as creates)
// and falls back to polling the directory every pollInterval when the
// native watcher cannot start. Duplicate and overlapping notifications are
// expected; the pipeline's idempotency gate absorbs them.
func Watch(ctx context.Context, dir string, pollInterval time.Duration, out chan<- string) error {
	log := zap.L().With(zap.String("component", "notify"), zap.String("dir", dir))

	w, err := fsnotify.NewWatcher()
	if err == nil {
		err = w.Add(dir)
	}
	if err != nil {
		if w != nil {
			_ = w.Close()
		}
		log.Warn("native watcher unavailable, polling instead",
			zap.Duration("interval", pollInterval), zap.Error(err))
		return poll(ctx, dir, pollInterval, out)
	}
	defer w.Close()

	log.Info("watching for new documents")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Create) || !IsPDF(ev.Name) {
				continue
			}
			select {
			case out <- ev.Name:
			case <-ctx.Done():
				return ctx.Err()
			}
		case werr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("watcher error", zap.Error(werr))
		}
	}
}

// poll re-scans the directory on a fixed interval, emitting every PDF it
// finds each round.
func poll(ctx context.Context, dir string, interval time.Duration, out chan<- string) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			paths, err := ListPDFs(dir)
			if err != nil {
				zap.L().Warn("poll scan failed",
					zap.String("component", "notify"), zap.Error(err))
				continue
			}
			for _, p := range paths {
				select {
				case out <- p:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
}
