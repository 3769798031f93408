package llm

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"github.com/joseph-ayodele/freight-intake/internal/common"
)

const previewLen = 300

var reFence = regexp.MustCompile("(?s)```[a-zA-Z0-9_-]*[ \t]*\n?(.*?)\n?[ \t]*```")

var errNoObject = errors.New("no JSON object found")

// ParseJSON decodes a provider's text response into a JSON object, salvaging
// responses wrapped in Markdown code fences or surrounded by prose.
func ParseJSON(provider, content string) (map[string]any, error) {
	content = strings.TrimSpace(content)
	if obj, err := decodeObject(content); err == nil {
		return obj, nil
	}

	candidate := content
	if m := reFence.FindStringSubmatch(content); m != nil {
		candidate = strings.TrimSpace(m[1])
		if obj, err := decodeObject(candidate); err == nil {
			return obj, nil
		}
	}

	block, ok := firstBalancedObject(candidate)
	if !ok && candidate != content {
		block, ok = firstBalancedObject(content)
	}
	if !ok {
		return nil, &common.InvalidResponseError{Provider: provider, Preview: truncate(content, previewLen), Cause: errNoObject}
	}
	obj, err := decodeObject(block)
	if err != nil {
		return nil, &common.InvalidResponseError{Provider: provider, Preview: truncate(content, previewLen), Cause: err}
	}
	return obj, nil
}

func decodeObject(s string) (map[string]any, error) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, errNoObject
	}
	return obj, nil
}

// firstBalancedObject returns the first {...} block whose braces balance, ignoring
// braces inside JSON strings.
func firstBalancedObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	for start >= 0 {
		depth := 0
		inString, escaped := false, false
		for i := start; i < len(s); i++ {
			c := s[i]
			if inString {
				switch {
				case escaped:
					escaped = false
				case c == '\\':
					escaped = true
				case c == '"':
					inString = false
				}
				continue
			}
			switch c {
			case '"':
				inString = true
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					return s[start : i+1], true
				}
			}
		}
		next := strings.IndexByte(s[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}
