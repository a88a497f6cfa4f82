package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseFilingFields(t *testing.T) {
	cases := []struct {
		name                     string
		caseNumber, fType, fDate string
	}{
		{"MCRO_12345_Motion_2024-01-01.pdf", "12345", "Motion", "2024-01-01"},
		{"MCRO_12345_Motion_2024-01-01_extra_tokens.pdf", "12345", "Motion", "2024-01-01"},
		{"MCRO_12345_Motion_2024-01-01.PDF", "12345", "Motion", "2024-01-01"},
		// No register prefix.
		{"report.pdf", "", "", ""},
		// Prefix but too few tokens.
		{"MCRO_12345_Motion.pdf", "", "", ""},
		{"MCRO_.pdf", "", "", ""},
		// Prefix must match exactly at the start.
		{"xMCRO_1_2_3.pdf", "", "", ""},
	}
	for _, tc := range cases {
		cn, ft, fd := ParseFilingFields(tc.name)
		assert.Equal(t, tc.caseNumber, cn, tc.name)
		assert.Equal(t, tc.fType, ft, tc.name)
		assert.Equal(t, tc.fDate, fd, tc.name)
	}
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "MCRO_12345_Motion_2024-01-01", SanitizeName("MCRO_12345_Motion_2024-01-01.pdf"))
	assert.Equal(t, "My_Filing", SanitizeName("My Filing.pdf"))
	assert.Equal(t, "report", SanitizeName("report.PDF"))
	// Only the final pdf extension is stripped.
	assert.Equal(t, "archive.tar", SanitizeName("archive.tar.pdf"))
}
