// Package gemini adapts Vertex AI Gemini models to llm.Provider.
package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"cloud.google.com/go/vertexai/genai"

	"github.com/joseph-ayodele/freight-intake/internal/core/llm"
)

var _ llm.Provider = (*Client)(nil)

type Config struct {
	ProjectID  string
	Region     string
	CheapModel string
	HeavyModel string
}

// generator is the slice of *genai.Client the adapter needs.
type generator interface {
	generate(ctx context.Context, req llm.Request) (*genai.GenerateContentResponse, error)
}

type vertexGenerator struct {
	client *genai.Client
}

func (g vertexGenerator) generate(ctx context.Context, req llm.Request) (*genai.GenerateContentResponse, error) {
	model := g.client.GenerativeModel(req.Model)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(req.System)},
	}
	model.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr(float32(req.Temperature)),
		MaxOutputTokens:  genai.Ptr(int32(req.MaxTokens)),
	}
	return model.GenerateContent(ctx, genai.Text(req.User))
}

type Client struct {
	cfg    Config
	gen    generator
	closer func() error
	log    *slog.Logger
}

// NewClient dials Vertex AI using application default credentials.
func NewClient(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.Region == "" {
		cfg.Region = "us-central1"
	}
	if cfg.CheapModel == "" {
		cfg.CheapModel = "gemini-2.0-flash"
	}
	if cfg.HeavyModel == "" {
		cfg.HeavyModel = "gemini-2.5-pro"
	}
	if logger == nil {
		logger = slog.Default()
	}
	base, err := genai.NewClient(ctx, cfg.ProjectID, cfg.Region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}
	return &Client{
		cfg:    cfg,
		gen:    vertexGenerator{client: base},
		closer: base.Close,
		log:    logger.With("provider", "gemini"),
	}, nil
}

func (c *Client) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer()
}

func (c *Client) Name() string { return "gemini" }

func (c *Client) Models() llm.ModelTiers {
	return llm.ModelTiers{Cheap: c.cfg.CheapModel, Heavy: c.cfg.HeavyModel}
}

// SupportsJSONSchema is false: Gemini's response schema dialect is narrower than
// JSON Schema, so the schema travels in the prompt and the MIME type pins JSON.
func (c *Client) SupportsJSONSchema() bool { return false }

func (c *Client) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	resp, err := c.gen.generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}
	text, ok := firstText(resp)
	if !ok {
		return nil, llm.NewEnvelopeError("no text part in gemini response")
	}
	out := &llm.Response{Content: strings.TrimSpace(text), Model: req.Model}
	if resp.UsageMetadata != nil {
		out.Usage = llm.Usage{
			InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		}
	}
	return out, nil
}

func firstText(resp *genai.GenerateContentResponse) (string, bool) {
	if resp == nil {
		return "", false
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if txt, ok := part.(genai.Text); ok {
				return string(txt), true
			}
		}
	}
	return "", false
}
