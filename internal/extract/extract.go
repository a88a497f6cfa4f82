// Package extract wraps the external tools that decompose and enrich
// documents: mutool (object extraction), pdfsig and exiftool (document
// metadata), otfinfo and fc-scan (font names).
package extract

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ObjectExtractor decomposes one document into object files under outDir.
type ObjectExtractor interface {
	Extract(ctx context.Context, pdfPath, outDir string) error
}

// Mutool extracts embedded PDF objects using the mutool CLI.
type Mutool struct {
	binPath string
}

// NewMutool creates a Mutool extractor. If binPath is empty, "mutool" is used.
func NewMutool(binPath string) *Mutool {
	if binPath == "" {
		binPath = "mutool"
	}
	return &Mutool{binPath: binPath}
}

// Extract runs mutool extract with the working directory set to outDir,
// since mutool writes object files into its cwd. The document path is made
// absolute so the cwd change cannot break it.
func (m *Mutool) Extract(ctx context.Context, pdfPath, outDir string) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return eris.Wrapf(err, "extract: create output dir %s", outDir)
	}

	abs, err := filepath.Abs(pdfPath)
	if err != nil {
		return eris.Wrapf(err, "extract: resolve %s", pdfPath)
	}

	cmd := exec.CommandContext(ctx, m.binPath, "extract", abs)
	cmd.Dir = outDir

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return eris.Wrapf(err, "extract: mutool extract failed for %s: %s", pdfPath, stderr.String())
	}
	return nil
}

// Tools names the external binaries the pipeline shells out to.
type Tools struct {
	Mutool   string
	Pdfsig   string
	Exiftool string
	Otfinfo  string
	FcScan   string
}

// Check verifies tool availability. A missing mutool is fatal; missing
// enrichment tools only produce a warning, the corresponding ledger fields
// stay empty.
func (t Tools) Check() error {
	log := zap.L().With(zap.String("component", "extract.tools"))

	if _, err := exec.LookPath(t.Mutool); err != nil {
		return eris.Wrapf(err, "extract: required tool %s not found", t.Mutool)
	}

	for _, opt := range []string{t.Pdfsig, t.Exiftool, t.Otfinfo, t.FcScan} {
		if opt == "" {
			continue
		}
		if _, err := exec.LookPath(opt); err != nil {
			log.Warn("optional tool not found, related fields will stay empty",
				zap.String("tool", opt))
		}
	}
	return nil
}
