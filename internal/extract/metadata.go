package extract

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"go.uber.org/zap"
)

// Signature is one parsed signature block from the metadata extractor.
type Signature struct {
	CommonName  string
	SigningTime string
	ByteRanges  string
}

// Metadata holds per-document enrichment fields. Up to four signature
// blocks are retained; extras are ignored.
type Metadata struct {
	Author  string
	Creator string
	Sigs    [4]Signature
}

// MetadataExtractor collects per-document signature and authorship metadata.
type MetadataExtractor interface {
	Metadata(ctx context.Context, pdfPath string) (Metadata, error)
}

// ToolMetadata implements MetadataExtractor with pdfsig and exiftool.
// Either tool failing degrades to blank fields, never an error.
type ToolMetadata struct {
	pdfsigBin   string
	exiftoolBin string
}

// NewToolMetadata creates a ToolMetadata extractor with default binary
// names filled in for empty paths.
func NewToolMetadata(pdfsigBin, exiftoolBin string) *ToolMetadata {
	if pdfsigBin == "" {
		pdfsigBin = "pdfsig"
	}
	if exiftoolBin == "" {
		exiftoolBin = "exiftool"
	}
	return &ToolMetadata{pdfsigBin: pdfsigBin, exiftoolBin: exiftoolBin}
}

// Metadata runs pdfsig and exiftool against the document.
func (t *ToolMetadata) Metadata(ctx context.Context, pdfPath string) (Metadata, error) {
	log := zap.L().With(zap.String("component", "extract.metadata"))
	var md Metadata

	out, err := runTool(ctx, t.pdfsigBin, pdfPath)
	if err != nil {
		log.Warn("pdfsig failed, signature fields stay empty",
			zap.String("pdf", pdfPath), zap.Error(err))
	} else {
		md.Sigs = ParseSignatures(out)
	}

	out, err = runTool(ctx, t.exiftoolBin, "-s", "-s", "-s", "-Author", "-Creator", pdfPath)
	if err != nil {
		log.Warn("exiftool failed, author/creator stay empty",
			zap.String("pdf", pdfPath), zap.Error(err))
		return md, nil
	}
	md.Author, md.Creator = parseExiftool(out)
	return md, nil
}

// parseExiftool reads bare values in the order the tags were requested:
// Author first, then Creator.
func parseExiftool(out string) (author, creator string) {
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if author == "" {
			author = line
		} else if creator == "" {
			creator = line
		}
	}
	return author, creator
}

func runTool(ctx context.Context, bin string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, bin, args...)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return "", err
	}
	return stdout.String(), nil
}
