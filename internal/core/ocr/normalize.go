package ocr

import (
	"regexp"
	"strings"
)

var (
	reCRLF       = regexp.MustCompile(`\r\n?`)
	reTabs       = regexp.MustCompile(`[\t\v\f]+`)
	reMultiSpace = regexp.MustCompile(` {2,}`)
	reMultiBlank = regexp.MustCompile(`\n{3,}`)
	reControl    = regexp.MustCompile(`[\x00-\x08\x0e-\x1f\x7f\x{FFFD}]`)
	reArtifacts  = regexp.MustCompile(`[|¦~_=]{3,}|[¦¬§]`)
	reBoxNoise   = regexp.MustCompile(`(?m)^\s*[_\-|]{3,}\s*$`)
)

// Clean collapses noisy whitespace and strips common OCR artifact characters.
// Conservative: keeps line breaks; collapses >2 newlines into a single blank line.
func Clean(s string) string {
	if s == "" {
		return s
	}
	s = reCRLF.ReplaceAllString(s, "\n")
	s = reControl.ReplaceAllString(s, "")
	s = reBoxNoise.ReplaceAllString(s, "")
	s = reArtifacts.ReplaceAllString(s, " ")
	s = reTabs.ReplaceAllString(s, " ")
	s = reMultiSpace.ReplaceAllString(s, " ")
	// trim trailing spaces on lines
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}
	s = strings.Join(lines, "\n")
	s = reMultiBlank.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
