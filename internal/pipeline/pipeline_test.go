package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docketry/docketry/internal/extract"
	"github.com/docketry/docketry/internal/hashing"
	"github.com/docketry/docketry/internal/ledger"
	"github.com/docketry/docketry/internal/store"
	"github.com/docketry/docketry/internal/track"
)

// fakeExtractor stands in for mutool: it writes a fixed object tree into
// the output directory.
type fakeExtractor struct {
	objects map[string]string // rel path -> content
	fail    bool
	calls   int
}

func (f *fakeExtractor) Extract(_ context.Context, _ string, outDir string) error {
	f.calls++
	if f.fail {
		return errors.New("mutool exploded")
	}
	for rel, content := range f.objects {
		p := filepath.Join(outDir, rel)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			return err
		}
	}
	return nil
}

type fakeMetadata struct {
	md  extract.Metadata
	err error
}

func (f *fakeMetadata) Metadata(context.Context, string) (extract.Metadata, error) {
	return f.md, f.err
}

type fakeFonts struct {
	name string
}

func (f *fakeFonts) FontName(context.Context, string) (string, error) {
	return f.name, nil
}

type testEnv struct {
	root      string
	inbox     string
	ledger    *ledger.Ledger
	tracker   *track.Tracker
	store     *store.DedupStore
	extractor *fakeExtractor
	orch      *Orchestrator
}

func newTestEnv(t *testing.T, ext *fakeExtractor) *testEnv {
	t.Helper()
	root := t.TempDir()

	inbox := filepath.Join(root, "pdf")
	require.NoError(t, os.MkdirAll(inbox, 0o755))
	objectsDir := filepath.Join(root, "pdf-objects")
	require.NoError(t, os.MkdirAll(objectsDir, 0o755))

	led := ledger.New(filepath.Join(root, "objects.tsv"))
	require.NoError(t, led.Initialize())

	st, err := store.New(filepath.Join(root, "hashed-objects"))
	require.NoError(t, err)

	tr, err := track.New(filepath.Join(root, ".locks", "inflight"), filepath.Join(root, "processed.tsv"))
	require.NoError(t, err)

	orch := New(Options{
		Ledger:        led,
		Store:         st,
		Tracker:       tr,
		Extractor:     ext,
		Metadata:      &fakeMetadata{},
		Fonts:         &fakeFonts{},
		ObjectsDir:    objectsDir,
		HashCountPath: filepath.Join(root, "hash-count.tsv"),
		SettleChecks:  2,
		SettleDelay:   5 * time.Millisecond,
	})

	return &testEnv{
		root:      root,
		inbox:     inbox,
		ledger:    led,
		tracker:   tr,
		store:     st,
		extractor: ext,
		orch:      orch,
	}
}

func (e *testEnv) writeDoc(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(e.inbox, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestProcess_CompletesAndRecords(t *testing.T) {
	env := newTestEnv(t, &fakeExtractor{objects: map[string]string{
		"image-0001.png": "png bytes",
		"font-0002.ttf":  "ttf bytes",
	}})
	doc := env.writeDoc(t, "MCRO_12345_Motion_2024-01-01.pdf", "document one")

	outcome, err := env.orch.Process(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, outcome)

	rows, err := env.ledger.CountForDocument("MCRO_12345_Motion_2024-01-01.pdf")
	require.NoError(t, err)
	assert.Equal(t, 2, rows)

	// Filing fields repeated on every row, rel paths under the sanitized
	// document directory.
	data, err := os.ReadFile(env.ledger.Path())
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 3)
	for _, line := range lines[1:] {
		parts := strings.Split(line, "\t")
		require.Len(t, parts, 22)
		assert.Equal(t, "12345", parts[0])
		assert.Equal(t, "Motion", parts[1])
		assert.Equal(t, "2024-01-01", parts[2])
		assert.True(t, strings.HasPrefix(parts[5], "MCRO_12345_Motion_2024-01-01/"), parts[5])
	}

	// Both objects landed in the dedup store.
	n, err := env.store.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Completion stamp and processed record exist.
	processed, err := env.tracker.ProcessedCount()
	require.NoError(t, err)
	assert.Equal(t, 1, processed)

	// Hash-count table matches the grouped ledger rows.
	hc, err := os.ReadFile(filepath.Join(env.root, "hash-count.tsv"))
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimRight(string(hc), "\n"), "\n"), 2)

	// In-flight marker released.
	entries, err := os.ReadDir(filepath.Join(env.root, ".locks", "inflight"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestProcess_IdempotentReingestion(t *testing.T) {
	env := newTestEnv(t, &fakeExtractor{objects: map[string]string{"obj.png": "bytes"}})
	doc := env.writeDoc(t, "filing.pdf", "same document bytes")

	outcome, err := env.orch.Process(context.Background(), doc)
	require.NoError(t, err)
	require.Equal(t, OutcomeCompleted, outcome)

	// Same path again: skipped via the processed set.
	outcome, err = env.orch.Process(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, outcome)

	// Same bytes under a different name: identity is the content hash.
	renamed := env.writeDoc(t, "renamed copy.pdf", "same document bytes")
	outcome, err = env.orch.Process(context.Background(), renamed)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, outcome)

	rows, err := env.ledger.CountRows()
	require.NoError(t, err)
	assert.Equal(t, 1, rows)

	processed, err := env.tracker.ProcessedCount()
	require.NoError(t, err)
	assert.Equal(t, 1, processed)
	assert.Equal(t, 1, env.extractor.calls)
}

func TestProcess_InFlightExclusion(t *testing.T) {
	env := newTestEnv(t, &fakeExtractor{objects: map[string]string{"obj.png": "bytes"}})
	doc := env.writeDoc(t, "filing.pdf", "in flight doc")

	// Another run holds the in-flight marker for this hash.
	docHash := hashOf(t, doc)
	acquired, err := env.tracker.MarkInFlight(docHash)
	require.NoError(t, err)
	require.True(t, acquired)

	outcome, err := env.orch.Process(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, outcome)

	rows, err := env.ledger.CountRows()
	require.NoError(t, err)
	assert.Equal(t, 0, rows)
	assert.Equal(t, 0, env.extractor.calls)

	// Once released, the document processes normally.
	require.NoError(t, env.tracker.ClearInFlight(docHash))
	outcome, err = env.orch.Process(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, outcome)
}

func TestProcess_StampBackfillsProcessedRecord(t *testing.T) {
	env := newTestEnv(t, &fakeExtractor{objects: map[string]string{"obj.png": "bytes"}})
	doc := env.writeDoc(t, "filing.pdf", "stamped doc")

	_, err := env.orch.Process(context.Background(), doc)
	require.NoError(t, err)

	// Simulate a manual reset of the processed table; the stamp remains.
	require.NoError(t, os.Remove(filepath.Join(env.root, "processed.tsv")))

	outcome, err := env.orch.Process(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, outcome)

	// Extraction did not rerun, but the record is back.
	assert.Equal(t, 1, env.extractor.calls)
	processed, err := env.tracker.ProcessedCount()
	require.NoError(t, err)
	assert.Equal(t, 1, processed)

	rows, err := env.ledger.CountRows()
	require.NoError(t, err)
	assert.Equal(t, 1, rows)
}

func TestProcess_ExtractorFailureReleasesLockAndRetries(t *testing.T) {
	ext := &fakeExtractor{objects: map[string]string{"obj.png": "bytes"}, fail: true}
	env := newTestEnv(t, ext)
	doc := env.writeDoc(t, "filing.pdf", "flaky doc")

	_, err := env.orch.Process(context.Background(), doc)
	require.Error(t, err)

	// Not marked processed, marker released, nothing on the ledger.
	rows, lerr := env.ledger.CountRows()
	require.NoError(t, lerr)
	assert.Equal(t, 0, rows)
	processed, perr := env.tracker.ProcessedCount()
	require.NoError(t, perr)
	assert.Equal(t, 0, processed)
	assert.False(t, env.tracker.IsInFlight(hashOf(t, doc)))

	// Next scan retries from scratch and succeeds.
	ext.fail = false
	outcome, err := env.orch.Process(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, outcome)
}

func TestProcess_VanishedDocument(t *testing.T) {
	env := newTestEnv(t, &fakeExtractor{})
	outcome, err := env.orch.Process(context.Background(), filepath.Join(env.inbox, "ghost.pdf"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeVanished, outcome)
}

func TestProcess_DedupAcrossDocuments(t *testing.T) {
	shared := "shared object bytes"
	extA := &fakeExtractor{objects: map[string]string{"pic.png": shared}}
	env := newTestEnv(t, extA)

	docA := env.writeDoc(t, "first.pdf", "document a")
	_, err := env.orch.Process(context.Background(), docA)
	require.NoError(t, err)

	// Second document carries the same bytes under a different extension.
	env.extractor.objects = map[string]string{"dup.jpg": shared}
	docB := env.writeDoc(t, "second.pdf", "document b")
	_, err = env.orch.Process(context.Background(), docB)
	require.NoError(t, err)

	// Two ledger rows, one stored blob, first extension wins.
	rows, err := env.ledger.CountRows()
	require.NoError(t, err)
	assert.Equal(t, 2, rows)

	n, err := env.store.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	matches, err := filepath.Glob(filepath.Join(env.store.Dir(), "*.png"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)

	// Hash-count reflects both rows for the shared hash.
	hc, err := os.ReadFile(filepath.Join(env.root, "hash-count.tsv"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(strings.TrimRight(string(hc), "\n"), "\t2"), string(hc))
}

func TestScan_ProcessesEverythingOnce(t *testing.T) {
	env := newTestEnv(t, &fakeExtractor{objects: map[string]string{"obj.png": "bytes"}})
	env.writeDoc(t, "a.pdf", "doc a")
	env.writeDoc(t, "b.pdf", "doc b")
	env.writeDoc(t, "notes.txt", "not a pdf")

	require.NoError(t, env.orch.Scan(context.Background(), env.inbox))

	processed, err := env.tracker.ProcessedCount()
	require.NoError(t, err)
	assert.Equal(t, 2, processed)

	// A second scan is a no-op.
	require.NoError(t, env.orch.Scan(context.Background(), env.inbox))
	assert.Equal(t, 2, env.extractor.calls)
}

func TestSettle_WaitsForStableSize(t *testing.T) {
	env := newTestEnv(t, &fakeExtractor{})
	env.orch.settleChecks = 30
	env.orch.settleDelay = 35 * time.Millisecond

	path := filepath.Join(env.inbox, "growing.pdf")
	require.NoError(t, os.WriteFile(path, []byte("start"), 0o644))

	// Append every 10ms for ~100ms: consecutive settle checks 35ms apart
	// can never observe an unchanged size while growth is active.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10; i++ {
			f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
			if err != nil {
				return
			}
			_, _ = f.WriteString("more bytes")
			_ = f.Close()
			time.Sleep(10 * time.Millisecond)
		}
	}()

	env.orch.settle(context.Background(), path)
	info, err := os.Stat(path)
	require.NoError(t, err)
	sizeAtSettle := info.Size()
	<-done

	// Settle only returned once the size held steady, i.e. after growth
	// stopped.
	final, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, final.Size(), sizeAtSettle)
}

func hashOf(t *testing.T, path string) string {
	t.Helper()
	h, err := hashing.File(path)
	require.NoError(t, err)
	return h
}
