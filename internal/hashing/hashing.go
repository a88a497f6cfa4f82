// Package hashing computes streaming SHA-256 content identities for
// documents and extracted objects.
package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"

	"github.com/rotisserie/eris"
)

// copyBufSize bounds memory use while hashing arbitrarily large files.
const copyBufSize = 1 << 20

// File returns the lowercase hex SHA-256 of the file's full contents,
// streamed in bounded chunks.
func File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", eris.Wrapf(err, "hashing: open %s", path)
	}
	defer f.Close()

	sum, err := Reader(f)
	if err != nil {
		return "", eris.Wrapf(err, "hashing: read %s", path)
	}
	return sum, nil
}

// Reader returns the lowercase hex SHA-256 of everything read from r.
func Reader(r io.Reader) (string, error) {
	h := sha256.New()
	buf := make([]byte, copyBufSize)
	if _, err := io.CopyBuffer(h, r, buf); err != nil {
		return "", eris.Wrap(err, "hashing: copy")
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
