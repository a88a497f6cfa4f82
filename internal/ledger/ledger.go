// Package ledger maintains the append-only objects table: one tab-separated
// row per (document, extracted object) pair, plus the derived hash-count
// table rebuilt from it.
package ledger

import (
	"bufio"
	"os"
	"strings"

	"github.com/rotisserie/eris"
)

// Column indexes into the live 22-column schema.
const (
	colHash    = 3
	colDocName = 4
)

// Columns is the live schema, in exact file order.
var Columns = []string{
	"Case Number", "Filing Type", "Filing Date",
	"SHA256 Hash Value", "Pdf File Name", "Pdf Internal Object Path", "Object Type", "Font Name",
	"Sig #1 Common Name", "Sig #2 Common Name", "Author", "Creator", "Sig #3 Common Name", "Sig #4 Common Name",
	"Sig #1 Signing Time", "Sig #2 Signing Time", "Sig #3 Signing Time", "Sig #4 Signing Time",
	"Sig #1 Byte Ranges", "Sig #2 Byte Ranges", "Sig #3 Byte Ranges", "Sig #4 Byte Ranges",
}

// legacyHeader is the retired 5-column schema, detected by exact match.
const legacyHeader = "SHA256 Hash Value\tPdf File Name\tPdf Internal Object Path\tObject Type\tFont Name"

// Header returns the live header line.
func Header() string {
	return strings.Join(Columns, "\t")
}

// Row is one ledger record. Field order mirrors Columns.
type Row struct {
	CaseNumber string
	FilingType string
	FilingDate string
	Hash       string
	DocName    string
	RelPath    string
	ObjectType string
	FontName   string
	SigCN      [4]string
	Author     string
	Creator    string
	SigTime    [4]string
	SigRange   [4]string
}

// Fields returns the row's values in schema order.
func (r Row) Fields() []string {
	return []string{
		r.CaseNumber, r.FilingType, r.FilingDate,
		r.Hash, r.DocName, r.RelPath, r.ObjectType, r.FontName,
		r.SigCN[0], r.SigCN[1], r.Author, r.Creator, r.SigCN[2], r.SigCN[3],
		r.SigTime[0], r.SigTime[1], r.SigTime[2], r.SigTime[3],
		r.SigRange[0], r.SigRange[1], r.SigRange[2], r.SigRange[3],
	}
}

// Ledger is the objects table on disk.
type Ledger struct {
	path string
}

// New creates a Ledger for the given file path. Call Initialize before use.
func New(path string) *Ledger {
	return &Ledger{path: path}
}

// Path returns the ledger file path.
func (l *Ledger) Path() string {
	return l.path
}

// Initialize creates the ledger with the live header when absent or empty,
// and migrates a legacy 5-column file in place. A file with any other
// header is left untouched; new rows are appended beneath it as-is.
func (l *Ledger) Initialize() error {
	info, err := os.Stat(l.path)
	if os.IsNotExist(err) || (err == nil && info.Size() == 0) {
		if werr := os.WriteFile(l.path, []byte(Header()+"\n"), 0o644); werr != nil {
			return eris.Wrapf(werr, "ledger: create %s", l.path)
		}
		return nil
	}
	if err != nil {
		return eris.Wrapf(err, "ledger: stat %s", l.path)
	}

	first, err := firstLine(l.path)
	if err != nil {
		return err
	}
	if first == legacyHeader {
		return l.migrate()
	}
	return nil
}

// Append writes one row. No schema validation beyond column order, so rows
// still land beneath externally pre-existing custom headers.
func (l *Ledger) Append(row Row) error {
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return eris.Wrapf(err, "ledger: open %s", l.path)
	}
	defer f.Close()

	if _, err := f.WriteString(strings.Join(row.Fields(), "\t") + "\n"); err != nil {
		return eris.Wrap(err, "ledger: append row")
	}
	return nil
}

// CountForDocument scans the full ledger and counts rows whose document
// name column matches name.
func (l *Ledger) CountForDocument(name string) (int, error) {
	f, err := os.Open(l.path)
	if err != nil {
		return 0, eris.Wrapf(err, "ledger: open %s", l.path)
	}
	defer f.Close()

	n := 0
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	first := true
	for sc.Scan() {
		if first {
			first = false
			continue
		}
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		parts := strings.Split(line, "\t")
		if len(parts) > colDocName && parts[colDocName] == name {
			n++
		}
	}
	if err := sc.Err(); err != nil {
		return 0, eris.Wrap(err, "ledger: scan rows")
	}
	return n, nil
}

// CountRows returns the total number of data rows (header excluded).
func (l *Ledger) CountRows() (int, error) {
	f, err := os.Open(l.path)
	if err != nil {
		return 0, eris.Wrapf(err, "ledger: open %s", l.path)
	}
	defer f.Close()

	n := 0
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	first := true
	for sc.Scan() {
		if first {
			first = false
			continue
		}
		if strings.TrimSpace(sc.Text()) == "" {
			continue
		}
		n++
	}
	if err := sc.Err(); err != nil {
		return 0, eris.Wrap(err, "ledger: scan rows")
	}
	return n, nil
}

func firstLine(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", eris.Wrapf(err, "ledger: open %s", path)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	if sc.Scan() {
		return sc.Text(), nil
	}
	return "", sc.Err()
}
