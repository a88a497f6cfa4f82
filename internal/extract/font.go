package extract

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// fontExts are the object extensions worth handing to the font inspector.
var fontExts = map[string]bool{
	".ttf":   true,
	".otf":   true,
	".ttc":   true,
	".woff":  true,
	".woff2": true,
	".pfb":   true,
	".pfa":   true,
}

// IsFontExt reports whether ext (lowercased, with dot) names a font format.
func IsFontExt(ext string) bool {
	return fontExts[strings.ToLower(ext)]
}

// FontInspector resolves the human-readable name of a font object.
type FontInspector interface {
	FontName(ctx context.Context, objPath string) (string, error)
}

// ToolFontInspector resolves font names with otfinfo, falling back to
// fc-scan. Both failing yields an empty name, never an error.
type ToolFontInspector struct {
	otfinfoBin string
	fcScanBin  string
}

// NewToolFontInspector creates a ToolFontInspector with default binary
// names filled in for empty paths.
func NewToolFontInspector(otfinfoBin, fcScanBin string) *ToolFontInspector {
	if otfinfoBin == "" {
		otfinfoBin = "otfinfo"
	}
	if fcScanBin == "" {
		fcScanBin = "fc-scan"
	}
	return &ToolFontInspector{otfinfoBin: otfinfoBin, fcScanBin: fcScanBin}
}

// FontName returns the font's full name, or empty when neither tool can
// resolve it.
func (f *ToolFontInspector) FontName(ctx context.Context, objPath string) (string, error) {
	if out, err := runTool(ctx, f.otfinfoBin, "-i", objPath); err == nil {
		for _, line := range strings.Split(out, "\n") {
			if strings.HasPrefix(line, "Full name:") {
				return strings.TrimSpace(strings.TrimPrefix(line, "Full name:")), nil
			}
		}
	}

	out, err := runTool(ctx, f.fcScanBin, "--format", "%{family}\n", objPath)
	if err != nil {
		zap.L().Debug("font inspection failed",
			zap.String("component", "extract.font"),
			zap.String("object", objPath), zap.Error(err))
		return "", nil
	}
	if first := strings.TrimSpace(strings.SplitN(out, "\n", 2)[0]); first != "" {
		return first, nil
	}
	return "", nil
}
