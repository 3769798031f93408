package openai

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/joseph-ayodele/freight-intake/internal/core/llm"
)

var _ llm.Provider = (*Client)(nil)

// Client implements llm.Provider over chat/completions.
type Client struct {
	cfg        Config
	httpClient *http.Client
	log        *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        logger.With("provider", "openai"),
	}
}

func (c *Client) Name() string { return "openai" }

func (c *Client) Models() llm.ModelTiers {
	return llm.ModelTiers{Cheap: c.cfg.CheapModel, Heavy: c.cfg.HeavyModel}
}

func (c *Client) SupportsJSONSchema() bool { return true }

func (c *Client) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	responseFormat := map[string]any{"type": "json_object"}
	if len(req.Schema) > 0 {
		responseFormat = map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   req.SchemaName,
				"schema": req.Schema,
				"strict": true,
			},
		}
	}
	body := map[string]any{
		"model":           req.Model,
		"temperature":     req.Temperature,
		"max_tokens":      req.MaxTokens,
		"response_format": responseFormat,
		"messages": []map[string]any{
			{"role": "system", "content": req.System},
			{"role": "user", "content": req.User},
		},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	raw, _, err := llm.SendJSON(ctx, c.httpClient, endpoint, body, map[string]string{
		"Authorization": "Bearer " + c.cfg.APIKey,
	}, c.log)
	if err != nil {
		return nil, err
	}

	var cc struct {
		Model   string `json:"model"`
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.log.Error("llm.openai.decode_error", "error", err, "raw_bytes", len(raw))
		return nil, llm.NewEnvelopeError("decode openai response: %v", err)
	}
	if len(cc.Choices) == 0 {
		return nil, llm.NewEnvelopeError("no choices in openai response")
	}
	return &llm.Response{
		Content: strings.TrimSpace(cc.Choices[0].Message.Content),
		Model:   cc.Model,
		Usage: llm.Usage{
			InputTokens:  cc.Usage.PromptTokens,
			OutputTokens: cc.Usage.CompletionTokens,
		},
	}, nil
}
