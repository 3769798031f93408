package llm

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// CharsPerToken is the rough characters-per-token ratio used for estimation.
const CharsPerToken = 4

// EstimateTokens approximates the token count of s.
func EstimateTokens(s string) int {
	n := utf8.RuneCountInString(s)
	return (n + CharsPerToken - 1) / CharsPerToken
}

// CountSchemaFields counts leaf properties in a JSON schema, descending into
// nested objects and array items.
func CountSchemaFields(schema map[string]any) int {
	props, ok := schema["properties"].(map[string]any)
	if !ok {
		if items, ok := schema["items"].(map[string]any); ok {
			return CountSchemaFields(items)
		}
		return 0
	}
	n := 0
	for _, p := range props {
		sub, ok := p.(map[string]any)
		if !ok {
			n++
			continue
		}
		if c := CountSchemaFields(sub); c > 0 {
			n += c
		} else {
			n++
		}
	}
	return n
}

var (
	rePageFooter = regexp.MustCompile(`(?im)^[ \t]*(?:page[ \t]+\d+(?:[ \t]*(?:of|/)[ \t]*\d+)?|\d+[ \t]*/[ \t]*\d+|-[ \t]*\d+[ \t]*-)[ \t]*$`)
	reMarkers    = regexp.MustCompile(`(?im)^[ \t]*(?:-{2,}[ \t]*(?:page break|header|footer)[ \t]*-{2,}|\[(?:header|footer)\]|(?:header|footer):?)[ \t]*$`)
	reHSpace     = regexp.MustCompile(`[ \t]+`)
	reBlankRuns  = regexp.MustCompile(`\n[ \t]*(?:\n[ \t]*)+`)
)

// TrimContent strips page-number footers, header/footer markers and repeated whitespace.
func TrimContent(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = rePageFooter.ReplaceAllString(s, "")
	s = reMarkers.ReplaceAllString(s, "")
	s = reHSpace.ReplaceAllString(s, " ")
	s = reBlankRuns.ReplaceAllString(s, "\n")
	return strings.TrimSpace(s)
}
