package main

import (
	"os"

	"github.com/rotisserie/eris"

	"github.com/docketry/docketry/internal/config"
	"github.com/docketry/docketry/internal/extract"
	"github.com/docketry/docketry/internal/ledger"
	"github.com/docketry/docketry/internal/pipeline"
	"github.com/docketry/docketry/internal/store"
	"github.com/docketry/docketry/internal/track"
)

// pipelineEnv holds the initialized components shared by the scan, watch,
// and status commands.
type pipelineEnv struct {
	Ledger  *ledger.Ledger
	Store   *store.DedupStore
	Tracker *track.Tracker
	Orch    *pipeline.Orchestrator
}

// initPipeline ensures the on-disk layout, verifies external tools, runs
// any pending ledger migration, and builds the orchestrator.
func initPipeline() (*pipelineEnv, error) {
	if err := ensureLayout(cfg); err != nil {
		return nil, err
	}

	tools := extract.Tools{
		Mutool:   cfg.Tools.Mutool,
		Pdfsig:   cfg.Tools.Pdfsig,
		Exiftool: cfg.Tools.Exiftool,
		Otfinfo:  cfg.Tools.Otfinfo,
		FcScan:   cfg.Tools.FcScan,
	}
	if err := tools.Check(); err != nil {
		return nil, err
	}

	led := ledger.New(cfg.LedgerPath())
	if err := led.Initialize(); err != nil {
		return nil, err
	}

	st, err := store.New(cfg.StoreDir())
	if err != nil {
		return nil, err
	}

	tr, err := track.New(cfg.InflightDir(), cfg.ProcessedPath())
	if err != nil {
		return nil, err
	}

	orch := pipeline.New(pipeline.Options{
		Ledger:        led,
		Store:         st,
		Tracker:       tr,
		Extractor:     extract.NewMutool(cfg.Tools.Mutool),
		Metadata:      extract.NewToolMetadata(cfg.Tools.Pdfsig, cfg.Tools.Exiftool),
		Fonts:         extract.NewToolFontInspector(cfg.Tools.Otfinfo, cfg.Tools.FcScan),
		ObjectsDir:    cfg.ObjectsDir(),
		HashCountPath: cfg.HashCountPath(),
		SettleChecks:  cfg.Inbox.SettleChecks,
		SettleDelay:   cfg.SettleDelay(),
	})

	return &pipelineEnv{Ledger: led, Store: st, Tracker: tr, Orch: orch}, nil
}

// ensureLayout creates the working directories and touches the table files
// so every run starts from a complete layout.
func ensureLayout(c *config.Config) error {
	for _, dir := range []string{
		c.InboxDir(),
		c.ObjectsDir(),
		c.StoreDir(),
		c.InflightDir(),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrapf(err, "layout: create %s", dir)
		}
	}

	for _, path := range []string{c.HashCountPath(), c.ProcessedPath()} {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			if werr := os.WriteFile(path, nil, 0o644); werr != nil {
				return eris.Wrapf(werr, "layout: create %s", path)
			}
		}
	}
	return nil
}
