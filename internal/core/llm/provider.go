// Package llm routes structured-extraction requests across interchangeable AI
// providers with content-addressed caching, salvage parsing and fallback.
package llm

import "context"

// Request is one provider call. Schema is nil when no structured-output constraint applies.
type Request struct {
	Model       string
	System      string
	User        string
	Temperature float64
	MaxTokens   int
	Schema      map[string]any
	SchemaName  string
}

type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Response is the provider envelope reduced to the first text block plus usage.
type Response struct {
	Content string
	Usage   Usage
	Model   string
}

// ModelTiers names a provider's cheap and heavy models.
type ModelTiers struct {
	Cheap string
	Heavy string
}

// Provider is one AI backend.
type Provider interface {
	Name() string
	Models() ModelTiers
	// SupportsJSONSchema reports whether Request.Schema is enforced natively;
	// otherwise the router inlines the schema into the prompt.
	SupportsJSONSchema() bool
	Complete(ctx context.Context, req Request) (*Response, error)
}
