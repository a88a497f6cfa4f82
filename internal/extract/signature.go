package extract

import (
	"regexp"
	"strings"
	"time"
)

var (
	sigBlockRe = regexp.MustCompile(`^Signature\s#([1-4]):`)
	sigCNRe    = regexp.MustCompile(`Signer\sCertificate\sCommon\sName:\s(.*)$`)
	sigTimeRe  = regexp.MustCompile(`Signing\sTime:\s(.*)$`)
	sigRangeRe = regexp.MustCompile(`Signed\sRanges:\s(.*)$`)
)

// ParseSignatures scans the metadata extractor's text output line by line.
// A "Signature #N:" header selects the current block (N in 1..4); common
// name, signing time, and signed ranges lines are captured into that
// block's slot. Blocks past the fourth are ignored.
func ParseSignatures(out string) [4]Signature {
	var sigs [4]Signature

	cur := 0
	for _, line := range strings.Split(out, "\n") {
		if m := sigBlockRe.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			cur = int(m[1][0] - '0')
			continue
		}
		if cur < 1 || cur > 4 {
			continue
		}
		if m := sigCNRe.FindStringSubmatch(line); m != nil {
			sigs[cur-1].CommonName = strings.TrimSpace(m[1])
			continue
		}
		if m := sigTimeRe.FindStringSubmatch(line); m != nil {
			sigs[cur-1].SigningTime = NormalizeSigningTime(m[1])
			continue
		}
		if m := sigRangeRe.FindStringSubmatch(line); m != nil {
			sigs[cur-1].ByteRanges = strings.TrimSpace(m[1])
		}
	}
	return sigs
}

// signingTimeLayouts are the textual date forms the metadata extractor is
// known to emit.
var signingTimeLayouts = []string{
	"Jan 2 2006 15:04:05",
	"Jan 2 2006 15:04",
	time.ANSIC,
}

// NormalizeSigningTime converts a raw extractor time like
// "Apr 11 2024 08:35:56" to "2024-04-11 08:35:56". Longer strings get one
// retry on their first five tokens. If nothing parses, the raw text is
// returned verbatim.
func NormalizeSigningTime(raw string) string {
	trimmed := strings.TrimSpace(raw)
	for _, layout := range signingTimeLayouts {
		if ts, err := time.Parse(layout, trimmed); err == nil {
			return ts.Format("2006-01-02 15:04:05")
		}
	}

	tokens := strings.Fields(trimmed)
	if len(tokens) >= 5 {
		if ts, err := time.Parse("Jan 2 2006 15:04:05", strings.Join(tokens[:5], " ")); err == nil {
			return ts.Format("2006-01-02 15:04:05")
		}
	}
	return trimmed
}
