package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("abc"))
	assert.Equal(t, 1, EstimateTokens("abcd"))
	assert.Equal(t, 2, EstimateTokens("abcde"))
}

func TestCountSchemaFields(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"vin": map[string]any{"type": "string"},
			"shipment": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"origin":      map[string]any{"type": "string"},
					"destination": map[string]any{"type": "string"},
				},
			},
			"items": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"sku": map[string]any{"type": "string"},
					},
				},
			},
		},
	}
	assert.Equal(t, 4, CountSchemaFields(schema))
	assert.Equal(t, 0, CountSchemaFields(nil))
}

func TestTrimContent(t *testing.T) {
	in := "Header\nVIN: 123\n\n\n\nPage 1 of 3\n--- Page Break ---\nFrom   Antwerp\t to Lagos\n- 2 -\n"
	out := TrimContent(in)
	assert.NotContains(t, out, "Page 1 of 3")
	assert.NotContains(t, out, "Page Break")
	assert.NotContains(t, out, "- 2 -")
	assert.Contains(t, out, "VIN: 123")
	assert.Contains(t, out, "From Antwerp to Lagos")
	assert.NotContains(t, out, "\n\n\n")
}
