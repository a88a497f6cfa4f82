// Package store implements the content-addressed dedup store: at most one
// blob per object hash, named <hash> or <hash>.<ext>.
package store

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
)

// maxExtLen caps stored extensions; anything longer normalizes to empty.
const maxExtLen = 11

// DedupStore writes each distinct object byte-stream exactly once.
// The extension of a stored blob is fixed by the first object that
// produced its hash; later objects with the same hash are never copied.
type DedupStore struct {
	dir string
}

// New creates a DedupStore rooted at dir, creating the directory if needed.
func New(dir string) (*DedupStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "store: create dir %s", dir)
	}
	return &DedupStore{dir: dir}, nil
}

// Dir returns the store's root directory.
func (s *DedupStore) Dir() string {
	return s.dir
}

// Put copies srcPath into the store under the given content hash unless a
// blob for that hash already exists under any extension. It reports whether
// a new blob was written. The copy goes to a temp file in the store
// directory and is renamed into place so partially-written blobs are never
// observable under their final name.
func (s *DedupStore) Put(srcPath, hash string) (bool, error) {
	present, err := s.Has(hash)
	if err != nil {
		return false, err
	}
	if present {
		return false, nil
	}

	dest := filepath.Join(s.dir, hash+NormalizeExt(filepath.Ext(srcPath)))
	tmp := dest + ".tmp-" + uuid.NewString()

	if err := copyFile(srcPath, tmp); err != nil {
		_ = os.Remove(tmp)
		return false, eris.Wrapf(err, "store: stage %s", hash)
	}
	if err := os.Rename(tmp, dest); err != nil {
		_ = os.Remove(tmp)
		return false, eris.Wrapf(err, "store: finalize %s", hash)
	}
	return true, nil
}

// Has reports whether a blob for hash exists under any extension.
func (s *DedupStore) Has(hash string) (bool, error) {
	if _, err := os.Stat(filepath.Join(s.dir, hash)); err == nil {
		return true, nil
	}
	matches, err := filepath.Glob(filepath.Join(s.dir, hash+".*"))
	if err != nil {
		return false, eris.Wrapf(err, "store: glob %s", hash)
	}
	return len(matches) > 0, nil
}

// Count returns the number of blobs currently in the store.
func (s *DedupStore) Count() (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, eris.Wrapf(err, "store: read dir %s", s.dir)
	}
	n := 0
	for _, e := range entries {
		if !e.IsDir() {
			n++
		}
	}
	return n, nil
}

// NormalizeExt lowercases an extension (including the leading dot) and
// normalizes unrecognizably long extensions to empty.
func NormalizeExt(ext string) string {
	ext = strings.ToLower(ext)
	if len(ext) > maxExtLen {
		return ""
	}
	return ext
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
