package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/freight-intake/internal/common"
)

func TestParseJSON(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    map[string]any
	}{
		{"plain", `{"a":"b"}`, map[string]any{"a": "b"}},
		{"fenced json", "```json\n{\"a\":\"b\"}\n```", map[string]any{"a": "b"}},
		{"bare fence", "```\n{\"a\":\"b\"}\n```", map[string]any{"a": "b"}},
		{"prose around", "Sure! {\"a\":\"b\"} Hope this helps.", map[string]any{"a": "b"}},
		{"braces in strings", `note: {"a":"x}y{"} trailing }`, map[string]any{"a": "x}y{"}},
		{"nested", `result {"a":{"b":"c"}}`, map[string]any{"a": map[string]any{"b": "c"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseJSON("openai", tt.content)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseJSON_Invalid(t *testing.T) {
	for _, content := range []string{"", "no json here", "[1,2,3]", `{"a":`} {
		_, err := ParseJSON("anthropic", content)
		require.Error(t, err, content)

		var inv *common.InvalidResponseError
		require.ErrorAs(t, err, &inv)
		assert.Equal(t, "anthropic", inv.Provider)
		assert.LessOrEqual(t, len(inv.Preview), previewLen+len("...(truncated)"))
	}
}
