package track

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// StampFileName is the completion-stamp file written into each document's
// extraction directory. The per-object walk must exclude it.
const StampFileName = ".processed.sha"

// IsStamped reports whether outDir's completion stamp matches hash. A
// missing or unreadable stamp is simply not a match.
func IsStamped(outDir, hash string) bool {
	data, err := os.ReadFile(filepath.Join(outDir, StampFileName))
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(data)) == hash
}

// WriteStamp records hash as outDir's completion stamp, creating outDir if
// needed.
func WriteStamp(outDir, hash string) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return eris.Wrapf(err, "track: create stamp dir %s", outDir)
	}
	path := filepath.Join(outDir, StampFileName)
	if err := os.WriteFile(path, []byte(hash+"\n"), 0o644); err != nil {
		return eris.Wrapf(err, "track: write stamp %s", path)
	}
	return nil
}
