package ledger

import (
	"bufio"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Blank-column padding applied to each legacy row: the live schema carries
// three document fields ahead of the old five columns and fourteen
// signature/metadata fields after them.
const (
	migratePrefix = "\t\t\t"
	migrateSuffix = "\t\t\t\t\t\t\t\t\t\t\t\t\t\t"
)

// migrate rewrites a legacy 5-column ledger into the live schema. The new
// file is written beside the original and renamed over it, so a crash
// mid-migration never leaves a half-migrated ledger behind. Row order is
// preserved.
func (l *Ledger) migrate() error {
	log := zap.L().With(zap.String("component", "ledger.migrate"))
	log.Info("legacy 5-column header detected, migrating", zap.String("path", l.path))

	in, err := os.Open(l.path)
	if err != nil {
		return eris.Wrapf(err, "ledger: open legacy %s", l.path)
	}
	defer in.Close()

	tmpPath := l.path + ".migrate-" + uuid.NewString()
	out, err := os.Create(tmpPath)
	if err != nil {
		return eris.Wrapf(err, "ledger: create migration temp %s", tmpPath)
	}

	w := bufio.NewWriter(out)
	if _, err := w.WriteString(Header() + "\n"); err != nil {
		_ = out.Close()
		_ = os.Remove(tmpPath)
		return eris.Wrap(err, "ledger: write migrated header")
	}

	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	first := true
	rows := 0
	for sc.Scan() {
		if first {
			first = false
			continue
		}
		line := strings.TrimRight(sc.Text(), "\n")
		if _, err := w.WriteString(migratePrefix + line + migrateSuffix + "\n"); err != nil {
			_ = out.Close()
			_ = os.Remove(tmpPath)
			return eris.Wrap(err, "ledger: write migrated row")
		}
		rows++
	}
	if err := sc.Err(); err != nil {
		_ = out.Close()
		_ = os.Remove(tmpPath)
		return eris.Wrap(err, "ledger: scan legacy rows")
	}

	if err := w.Flush(); err != nil {
		_ = out.Close()
		_ = os.Remove(tmpPath)
		return eris.Wrap(err, "ledger: flush migration")
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return eris.Wrap(err, "ledger: close migration temp")
	}

	if err := os.Rename(tmpPath, l.path); err != nil {
		_ = os.Remove(tmpPath)
		return eris.Wrapf(err, "ledger: replace %s", l.path)
	}

	log.Info("migration complete", zap.Int("rows", rows))
	return nil
}
