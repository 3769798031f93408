// Package anthropic adapts the Messages API to llm.Provider. The API has no
// strict response-format switch, so the router inlines the schema into the prompt.
package anthropic

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/joseph-ayodele/freight-intake/internal/core/llm"
)

const apiVersion = "2023-06-01"

var _ llm.Provider = (*Client)(nil)

type Config struct {
	APIKey     string
	BaseURL    string // default https://api.anthropic.com/v1
	CheapModel string
	HeavyModel string
	Timeout    time.Duration
}

type Client struct {
	cfg        Config
	httpClient *http.Client
	log        *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.anthropic.com/v1"
	}
	if cfg.CheapModel == "" {
		cfg.CheapModel = "claude-3-5-haiku-latest"
	}
	if cfg.HeavyModel == "" {
		cfg.HeavyModel = "claude-sonnet-4-0"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        logger.With("provider", "anthropic"),
	}
}

func (c *Client) Name() string { return "anthropic" }

func (c *Client) Models() llm.ModelTiers {
	return llm.ModelTiers{Cheap: c.cfg.CheapModel, Heavy: c.cfg.HeavyModel}
}

func (c *Client) SupportsJSONSchema() bool { return false }

func (c *Client) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	body := map[string]any{
		"model":       req.Model,
		"max_tokens":  req.MaxTokens,
		"temperature": req.Temperature,
		"system":      req.System,
		"messages": []map[string]any{
			{"role": "user", "content": req.User},
		},
	}
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/messages"
	raw, _, err := llm.SendJSON(ctx, c.httpClient, endpoint, body, map[string]string{
		"x-api-key":         c.cfg.APIKey,
		"anthropic-version": apiVersion,
	}, c.log)
	if err != nil {
		return nil, err
	}

	var msg struct {
		Model   string `json:"model"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		Usage struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.log.Error("llm.anthropic.decode_error", "error", err, "raw_bytes", len(raw))
		return nil, llm.NewEnvelopeError("decode anthropic response: %v", err)
	}

	// Only the first text block is used.
	for _, block := range msg.Content {
		if block.Type == "text" {
			return &llm.Response{
				Content: strings.TrimSpace(block.Text),
				Model:   msg.Model,
				Usage: llm.Usage{
					InputTokens:  msg.Usage.InputTokens,
					OutputTokens: msg.Usage.OutputTokens,
				},
			}, nil
		}
	}
	return nil, llm.NewEnvelopeError("no text block in anthropic response")
}
