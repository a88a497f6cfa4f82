// Package track implements the three-layer idempotency guard: in-flight
// markers, the processed-record set, and per-document completion stamps.
package track

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// timeLayout is the ISO-8601 UTC form written to markers and records.
const timeLayout = "2006-01-02T15:04:05Z"

// ProcessedRecord is one row of the processed table: the authoritative
// "fully ingested" marker for a document hash.
type ProcessedRecord struct {
	Hash       string
	DocName    string
	Size       int64
	ModTime    int64 // unix epoch seconds
	IngestedAt time.Time
}

// Tracker guards against reprocessing a document hash.
type Tracker struct {
	inflightDir   string
	processedPath string
}

// New creates a Tracker, creating the in-flight marker directory if needed.
func New(inflightDir, processedPath string) (*Tracker, error) {
	if err := os.MkdirAll(inflightDir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "track: create inflight dir %s", inflightDir)
	}
	return &Tracker{inflightDir: inflightDir, processedPath: processedPath}, nil
}

func (t *Tracker) markerPath(hash string) string {
	return filepath.Join(t.inflightDir, hash+".lock")
}

// IsInFlight reports whether an in-flight marker exists for hash.
func (t *Tracker) IsInFlight(hash string) bool {
	_, err := os.Stat(t.markerPath(hash))
	return err == nil
}

// MarkInFlight atomically creates the in-flight marker for hash. It returns
// false without error when the marker already exists, so two overlapping
// runs cannot both acquire the same hash.
func (t *Tracker) MarkInFlight(hash string) (bool, error) {
	f, err := os.OpenFile(t.markerPath(hash), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return false, nil
		}
		return false, eris.Wrapf(err, "track: create inflight marker for %s", hash)
	}
	defer f.Close()

	if _, err := f.WriteString(time.Now().UTC().Format(timeLayout)); err != nil {
		return false, eris.Wrapf(err, "track: write inflight marker for %s", hash)
	}
	return true, nil
}

// ClearInFlight removes the in-flight marker. Missing markers are not an
// error so release is safe on every exit path.
func (t *Tracker) ClearInFlight(hash string) error {
	if err := os.Remove(t.markerPath(hash)); err != nil && !os.IsNotExist(err) {
		return eris.Wrapf(err, "track: clear inflight marker for %s", hash)
	}
	return nil
}

// IsProcessed reports whether hash appears in the processed table. The
// table is re-read on every call so records appended by other writers are
// respected.
func (t *Tracker) IsProcessed(hash string) (bool, error) {
	set, err := t.loadProcessed()
	if err != nil {
		return false, err
	}
	return set[hash], nil
}

// RecordProcessed appends one processed record. A zero IngestedAt is filled
// with the current UTC time.
func (t *Tracker) RecordProcessed(rec ProcessedRecord) error {
	at := rec.IngestedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}

	f, err := os.OpenFile(t.processedPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return eris.Wrapf(err, "track: open %s", t.processedPath)
	}
	defer f.Close()

	line := fmt.Sprintf("%s\t%s\t%d\t%d\t%s\n",
		rec.Hash, rec.DocName, rec.Size, rec.ModTime, at.UTC().Format(timeLayout))
	if _, err := f.WriteString(line); err != nil {
		return eris.Wrap(err, "track: append processed record")
	}
	return nil
}

// ProcessedCount returns the number of processed records on file.
func (t *Tracker) ProcessedCount() (int, error) {
	set, err := t.loadProcessed()
	if err != nil {
		return 0, err
	}
	return len(set), nil
}

func (t *Tracker) loadProcessed() (map[string]bool, error) {
	f, err := os.Open(t.processedPath)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]bool{}, nil
		}
		return nil, eris.Wrapf(err, "track: open %s", t.processedPath)
	}
	defer f.Close()

	set := make(map[string]bool)
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\n")
		if line == "" {
			continue
		}
		parts := strings.Split(line, "\t")
		if len(parts) > 0 && parts[0] != "" {
			set[parts[0]] = true
		}
	}
	if err := sc.Err(); err != nil {
		return nil, eris.Wrap(err, "track: scan processed records")
	}
	return set, nil
}
