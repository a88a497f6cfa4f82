// Package pipeline sequences per-document ingestion: settle, hash,
// idempotency gate, extraction, per-object hashing and ledger writes, and
// finalization.
package pipeline

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/docketry/docketry/internal/extract"
	"github.com/docketry/docketry/internal/hashing"
	"github.com/docketry/docketry/internal/ledger"
	"github.com/docketry/docketry/internal/notify"
	"github.com/docketry/docketry/internal/store"
	"github.com/docketry/docketry/internal/track"
)

// Outcome is the terminal state of one document run.
type Outcome int

const (
	// OutcomeCompleted means the document was fully ingested this run.
	OutcomeCompleted Outcome = iota
	// OutcomeSkipped means the idempotency gate matched; nothing was written.
	OutcomeSkipped
	// OutcomeVanished means the document disappeared before settling
	// completed. Not an error.
	OutcomeVanished
)

// Options wires an Orchestrator's collaborators and tuning.
type Options struct {
	Ledger        *ledger.Ledger
	Store         *store.DedupStore
	Tracker       *track.Tracker
	Extractor     extract.ObjectExtractor
	Metadata      extract.MetadataExtractor
	Fonts         extract.FontInspector
	ObjectsDir    string
	HashCountPath string
	SettleChecks  int
	SettleDelay   time.Duration
}

// Orchestrator runs the per-document ingestion state machine. Documents
// are processed one at a time; overlap only comes from multiple process
// invocations, which the idempotency tracker absorbs.
type Orchestrator struct {
	ledger        *ledger.Ledger
	store         *store.DedupStore
	tracker       *track.Tracker
	extractor     extract.ObjectExtractor
	meta          extract.MetadataExtractor
	fonts         extract.FontInspector
	objectsDir    string
	hashCountPath string
	settleChecks  int
	settleDelay   time.Duration
}

// New creates an Orchestrator from opts.
func New(opts Options) *Orchestrator {
	return &Orchestrator{
		ledger:        opts.Ledger,
		store:         opts.Store,
		tracker:       opts.Tracker,
		extractor:     opts.Extractor,
		meta:          opts.Metadata,
		fonts:         opts.Fonts,
		objectsDir:    opts.ObjectsDir,
		hashCountPath: opts.HashCountPath,
		settleChecks:  opts.SettleChecks,
		settleDelay:   opts.SettleDelay,
	}
}

// Process ingests one document end to end. Re-running it for the same
// content hash is a no-op regardless of file name, and the in-flight
// marker is released on every exit path.
func (o *Orchestrator) Process(ctx context.Context, pdfPath string) (Outcome, error) {
	docName := filepath.Base(pdfPath)
	log := zap.L().With(zap.String("component", "pipeline"), zap.String("pdf", docName))

	o.settle(ctx, pdfPath)
	info, err := os.Stat(pdfPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Debug("document vanished before settling, skipping")
			return OutcomeVanished, nil
		}
		return OutcomeSkipped, eris.Wrapf(err, "pipeline: stat %s", pdfPath)
	}

	docHash, err := hashing.File(pdfPath)
	if err != nil {
		return OutcomeSkipped, err
	}
	log = log.With(zap.String("hash", docHash))

	if o.tracker.IsInFlight(docHash) {
		log.Info("skipping (in-flight)")
		return OutcomeSkipped, nil
	}

	processed, err := o.tracker.IsProcessed(docHash)
	if err != nil {
		return OutcomeSkipped, err
	}
	if processed {
		log.Info("skipping (already processed)")
		return OutcomeSkipped, nil
	}

	outDir := filepath.Join(o.objectsDir, SanitizeName(docName))
	if track.IsStamped(outDir, docHash) {
		// The extraction tree is already complete under this hash, e.g.
		// after a manual edit of the processed table. Backfill the record
		// instead of redoing extraction.
		if err := o.tracker.RecordProcessed(track.ProcessedRecord{
			Hash:    docHash,
			DocName: docName,
			Size:    info.Size(),
			ModTime: info.ModTime().Unix(),
		}); err != nil {
			return OutcomeSkipped, err
		}
		log.Info("skipping (completion stamp matches), processed record backfilled")
		return OutcomeSkipped, nil
	}

	acquired, err := o.tracker.MarkInFlight(docHash)
	if err != nil {
		return OutcomeSkipped, err
	}
	if !acquired {
		log.Info("skipping (lost in-flight race)")
		return OutcomeSkipped, nil
	}
	defer func() {
		if cerr := o.tracker.ClearInFlight(docHash); cerr != nil {
			log.Error("failed to clear in-flight marker", zap.Error(cerr))
		}
	}()

	log.Info("extracting objects")
	if err := o.extractor.Extract(ctx, pdfPath, outDir); err != nil {
		// Hard failure for this run; the document stays unprocessed and is
		// retried on the next scan. The partial extraction tree is left in
		// place for operator inspection.
		return OutcomeSkipped, err
	}

	rows, err := o.ingestObjects(ctx, pdfPath, docName, outDir)
	if err != nil {
		return OutcomeSkipped, err
	}

	if err := track.WriteStamp(outDir, docHash); err != nil {
		return OutcomeSkipped, err
	}
	if err := o.tracker.RecordProcessed(track.ProcessedRecord{
		Hash:    docHash,
		DocName: docName,
		Size:    info.Size(),
		ModTime: info.ModTime().Unix(),
	}); err != nil {
		return OutcomeSkipped, err
	}
	if err := o.ledger.RebuildHashCounts(o.hashCountPath); err != nil {
		return OutcomeSkipped, err
	}

	onRecord, err := o.ledger.CountForDocument(docName)
	if err != nil {
		return OutcomeSkipped, err
	}
	log.Info("document processed",
		zap.Int("objects", rows),
		zap.Int("rows_on_record", onRecord),
	)
	return OutcomeCompleted, nil
}

// ingestObjects walks the extraction tree and, per object, appends one
// ledger row and stores the bytes in the dedup store. The completion stamp
// artifact is excluded from the walk.
func (o *Orchestrator) ingestObjects(ctx context.Context, pdfPath, docName, outDir string) (int, error) {
	caseNumber, filingType, filingDate := ParseFilingFields(docName)

	md, err := o.meta.Metadata(ctx, pdfPath)
	if err != nil {
		zap.L().Warn("metadata extraction failed, fields stay empty",
			zap.String("component", "pipeline"), zap.String("pdf", docName), zap.Error(err))
		md = extract.Metadata{}
	}

	rows := 0
	walkErr := filepath.WalkDir(outDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || d.Name() == track.StampFileName {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		objHash, err := hashing.File(path)
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(o.objectsDir, path)
		if err != nil {
			return eris.Wrapf(err, "pipeline: relativize %s", path)
		}

		ext := store.NormalizeExt(filepath.Ext(path))
		fontName := ""
		if extract.IsFontExt(ext) {
			fontName, err = o.fonts.FontName(ctx, path)
			if err != nil {
				zap.L().Warn("font inspection failed, font name stays empty",
					zap.String("component", "pipeline"), zap.String("object", rel), zap.Error(err))
				fontName = ""
			}
		}

		row := ledger.Row{
			CaseNumber: caseNumber,
			FilingType: filingType,
			FilingDate: filingDate,
			Hash:       objHash,
			DocName:    docName,
			RelPath:    filepath.ToSlash(rel),
			ObjectType: ext,
			FontName:   fontName,
			Author:     md.Author,
			Creator:    md.Creator,
		}
		for i, sig := range md.Sigs {
			row.SigCN[i] = sig.CommonName
			row.SigTime[i] = sig.SigningTime
			row.SigRange[i] = sig.ByteRanges
		}

		if err := o.ledger.Append(row); err != nil {
			return err
		}
		if _, err := o.store.Put(path, objHash); err != nil {
			return err
		}
		rows++
		return nil
	})
	if walkErr != nil {
		return rows, eris.Wrapf(walkErr, "pipeline: ingest objects for %s", docName)
	}
	return rows, nil
}

// Scan runs one catch-up pass over every document currently in inboxDir.
// Per-document failures are logged and never abort the pass.
func (o *Orchestrator) Scan(ctx context.Context, inboxDir string) error {
	log := zap.L().With(zap.String("component", "pipeline"), zap.String("inbox", inboxDir))

	paths, err := notify.ListPDFs(inboxDir)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		log.Info("no documents found")
		return nil
	}

	for _, p := range paths {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if _, err := o.Process(ctx, p); err != nil {
			log.Error("document run failed, will retry on next scan",
				zap.String("pdf", filepath.Base(p)), zap.Error(err))
		}
	}
	return nil
}
