package anthropic

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/freight-intake/internal/core/llm"
)

func TestComplete_FirstTextBlock(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("x-api-key"))
		assert.Equal(t, apiVersion, r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, `{
			"model": "claude-3-5-haiku-20241022",
			"content": [
				{"type": "tool_use", "id": "x"},
				{"type": "text", "text": "{\"a\":1}"},
				{"type": "text", "text": "ignored"}
			],
			"usage": {"input_tokens": 50, "output_tokens": 7}
		}`)
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "key", BaseURL: srv.URL}, nil)
	resp, err := c.Complete(context.Background(), llm.Request{Model: "claude-3-5-haiku-latest", System: "sys", User: "doc", MaxTokens: 200})
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, resp.Content)
	assert.Equal(t, llm.Usage{InputTokens: 50, OutputTokens: 7}, resp.Usage)
	assert.Equal(t, "sys", got["system"])
	assert.EqualValues(t, 200, got["max_tokens"])
}

func TestComplete_NoTextBlock(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"content":[]}`)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL}, nil)
	_, err := c.Complete(context.Background(), llm.Request{Model: "m"})
	require.Error(t, err)
	assert.False(t, c.SupportsJSONSchema())
}
