package gemini

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"cloud.google.com/go/vertexai/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/freight-intake/internal/core/llm"
)

type fakeGenerator struct {
	resp *genai.GenerateContentResponse
	err  error
	req  llm.Request
}

func (f *fakeGenerator) generate(_ context.Context, req llm.Request) (*genai.GenerateContentResponse, error) {
	f.req = req
	return f.resp, f.err
}

func newTestClient(gen generator) *Client {
	return &Client{
		cfg: Config{CheapModel: "gemini-2.0-flash", HeavyModel: "gemini-2.5-pro"},
		gen: gen,
		log: slog.Default(),
	}
}

func TestComplete(t *testing.T) {
	gen := &fakeGenerator{resp: &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text(` {"vin":"X"} `)}},
		}},
		UsageMetadata: &genai.UsageMetadata{PromptTokenCount: 40, CandidatesTokenCount: 9},
	}}
	c := newTestClient(gen)

	resp, err := c.Complete(context.Background(), llm.Request{Model: "gemini-2.0-flash", User: "doc"})
	require.NoError(t, err)
	assert.Equal(t, `{"vin":"X"}`, resp.Content)
	assert.Equal(t, "gemini-2.0-flash", resp.Model)
	assert.Equal(t, llm.Usage{InputTokens: 40, OutputTokens: 9}, resp.Usage)
	assert.Equal(t, "doc", gen.req.User)
}

func TestComplete_EmptyCandidates(t *testing.T) {
	c := newTestClient(&fakeGenerator{resp: &genai.GenerateContentResponse{}})
	_, err := c.Complete(context.Background(), llm.Request{Model: "m"})
	require.Error(t, err)
}

func TestComplete_GenerateError(t *testing.T) {
	c := newTestClient(&fakeGenerator{err: errors.New("quota")})
	_, err := c.Complete(context.Background(), llm.Request{Model: "m"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota")
	assert.NoError(t, c.Close())
}
