package pipeline

import (
	"path/filepath"
	"regexp"
	"strings"
)

// filingPrefix marks court-register filenames carrying structured fields.
const filingPrefix = "MCRO_"

var pdfExtRe = regexp.MustCompile(`(?i)\.pdf$`)

// ParseFilingFields extracts (case number, filing type, filing date) from a
// register-convention document name: MCRO_<case>_<type>_<date>[_...].pdf.
// Names without the prefix, or with fewer than four underscore tokens,
// yield three empty fields. Token content is not validated further.
func ParseFilingFields(docName string) (caseNumber, filingType, filingDate string) {
	if !strings.HasPrefix(docName, filingPrefix) {
		return "", "", ""
	}
	noExt := pdfExtRe.ReplaceAllString(docName, "")
	parts := strings.Split(noExt, "_")
	if len(parts) >= 4 {
		return parts[1], parts[2], parts[3]
	}
	return "", "", ""
}

var nameSanitizer = strings.NewReplacer(" ", "_", "/", "_", "\\", "_")

// SanitizeName derives the per-document extraction directory name from a
// document file name: extension stripped, spaces and path separators
// replaced.
func SanitizeName(docName string) string {
	base := filepath.Base(pdfExtRe.ReplaceAllString(docName, ""))
	return nameSanitizer.Replace(base)
}
