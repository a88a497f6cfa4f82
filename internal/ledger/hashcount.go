package ledger

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
)

// RebuildHashCounts re-derives the hash-count table from the full ledger:
// occurrences grouped by the object-hash column, written to outPath sorted
// by count descending then hash ascending. A full rebuild is always correct
// regardless of how the previous run ended.
func (l *Ledger) RebuildHashCounts(outPath string) error {
	counts, err := l.hashCounts()
	if err != nil {
		return err
	}

	type hc struct {
		hash  string
		count int
	}
	rows := make([]hc, 0, len(counts))
	for h, c := range counts {
		rows = append(rows, hc{hash: h, count: c})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].count != rows[j].count {
			return rows[i].count > rows[j].count
		}
		return rows[i].hash < rows[j].hash
	})

	tmpPath := outPath + ".tmp-" + uuid.NewString()
	out, err := os.Create(tmpPath)
	if err != nil {
		return eris.Wrapf(err, "ledger: create hash-count temp %s", tmpPath)
	}
	w := bufio.NewWriter(out)
	for _, r := range rows {
		if _, err := fmt.Fprintf(w, "%s\t%d\n", r.hash, r.count); err != nil {
			_ = out.Close()
			_ = os.Remove(tmpPath)
			return eris.Wrap(err, "ledger: write hash-count row")
		}
	}
	if err := w.Flush(); err != nil {
		_ = out.Close()
		_ = os.Remove(tmpPath)
		return eris.Wrap(err, "ledger: flush hash-count")
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return eris.Wrap(err, "ledger: close hash-count temp")
	}
	if err := os.Rename(tmpPath, outPath); err != nil {
		_ = os.Remove(tmpPath)
		return eris.Wrapf(err, "ledger: replace %s", outPath)
	}
	return nil
}

// hashCounts scans the ledger (header skipped) and groups row counts by the
// object-hash column.
func (l *Ledger) hashCounts() (map[string]int, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]int{}, nil
		}
		return nil, eris.Wrapf(err, "ledger: open %s", l.path)
	}
	defer f.Close()

	counts := make(map[string]int)
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	first := true
	for sc.Scan() {
		if first {
			first = false
			continue
		}
		parts := strings.Split(sc.Text(), "\t")
		if len(parts) > colHash && parts[colHash] != "" {
			counts[parts[colHash]]++
		}
	}
	if err := sc.Err(); err != nil {
		return nil, eris.Wrap(err, "ledger: scan for hash counts")
	}
	return counts, nil
}
