package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/freight-intake/internal/common"
	"github.com/joseph-ayodele/freight-intake/internal/core/ratelimit"
	"github.com/joseph-ayodele/freight-intake/internal/kv"
)

const cacheKeyPrefix = "ai:extract:"

const baseSystemPrompt = "You are a data extraction engine. Return ONLY a single valid JSON object, with no prose and no Markdown."

// RouterConfig tunes model selection, budgets and caching.
type RouterConfig struct {
	CacheEnabled   bool
	CacheTTL       time.Duration
	TrimContent    bool
	CheapMaxTokens int // estimated input tokens above this force the heavy model

	BaseOutputTokens     int
	PerFieldOutputTokens int
	MaxOutputTokens      int

	Temperature float64
	RetryDelay  time.Duration // fixed delay before the single transport retry
	CallTimeout time.Duration // per provider call
}

// Options are caller intent flags. They participate in the cache key.
type Options struct {
	ForceHeavy   bool   `json:"force_heavy,omitempty"`
	Reasoning    bool   `json:"reasoning,omitempty"`
	SchemaName   string `json:"schema_name,omitempty"`
	Instructions string `json:"instructions,omitempty"`
	Validate     bool   `json:"validate,omitempty"`
}

// Result is a successful extraction.
type Result struct {
	Data     map[string]any
	Provider string
	Model    string
	Usage    Usage
	Cost     decimal.Decimal
	Cached   bool
}

type cachedResult struct {
	Data     map[string]any `json:"data"`
	Provider string         `json:"provider"`
	Model    string         `json:"model"`
}

// Router is the AI extraction entry point.
type Router struct {
	cfg      RouterConfig
	primary  Provider
	fallback Provider
	cache    kv.Store
	limiter  *ratelimit.Limiter
	prices   PriceTable
	logger   *slog.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewRouter wires a primary and optional fallback provider. cache and limiter may be nil.
func NewRouter(cfg RouterConfig, primary, fallback Provider, cache kv.Store, limiter *ratelimit.Limiter, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.CheapMaxTokens <= 0 {
		cfg.CheapMaxTokens = 8000
	}
	if cfg.BaseOutputTokens <= 0 {
		cfg.BaseOutputTokens = 256
	}
	if cfg.PerFieldOutputTokens <= 0 {
		cfg.PerFieldOutputTokens = 48
	}
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = 4096
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 24 * time.Hour
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 20 * time.Second
	}
	return &Router{
		cfg:      cfg,
		primary:  primary,
		fallback: fallback,
		cache:    cache,
		limiter:  limiter,
		prices:   DefaultPrices(),
		logger:   logger,
		sleep:    sleepCtx,
	}
}

// WithPrices replaces the price table.
func (r *Router) WithPrices(t PriceTable) *Router {
	r.prices = t
	return r
}

// CacheKey is the content address of an extraction request.
func CacheKey(text string, schema map[string]any, opts Options) string {
	b, _ := json.Marshal(struct {
		Text    string         `json:"text"`
		Schema  map[string]any `json:"schema"`
		Options Options        `json:"options"`
	}{text, schema, opts})
	sum := sha256.Sum256(b)
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}

// OutputBudget sizes max output tokens from the schema's field count.
func (r *Router) OutputBudget(schema map[string]any) int {
	budget := r.cfg.BaseOutputTokens + r.cfg.PerFieldOutputTokens*CountSchemaFields(schema)
	if budget > r.cfg.MaxOutputTokens {
		budget = r.cfg.MaxOutputTokens
	}
	return budget
}

// UseHeavy decides the model tier for an input of the given estimated size.
func (r *Router) UseHeavy(estimatedTokens int, opts Options) bool {
	return opts.ForceHeavy || opts.Reasoning || estimatedTokens > r.cfg.CheapMaxTokens
}

// Extract returns structured JSON for text. Identical (text, schema, opts) inputs are
// served from cache without a provider call.
func (r *Router) Extract(ctx context.Context, text string, schema map[string]any, opts Options) (*Result, error) {
	if r.primary == nil {
		return nil, common.NewAppError("LLM_NOT_CONFIGURED", "no AI provider configured", common.ErrExtraction)
	}
	rid := uuid.New().String()
	start := time.Now()
	key := CacheKey(text, schema, opts)

	if res, ok := r.cached(ctx, key); ok {
		r.logger.Info("llm.cache.hit", "req_id", rid, "provider", res.Provider, "model", res.Model)
		return res, nil
	}

	if err := r.limiter.Allow(); err != nil {
		r.logger.Warn("llm.rate_limited", "req_id", rid)
		return nil, err
	}

	prompt := text
	if r.cfg.TrimContent {
		prompt = TrimContent(text)
	}
	tokens := EstimateTokens(prompt)
	heavy := r.UseHeavy(tokens, opts)
	maxOut := r.OutputBudget(schema)

	r.logger.Info("llm.extract.start",
		"req_id", rid,
		"provider", r.primary.Name(),
		"heavy", heavy,
		"est_input_tokens", tokens,
		"max_output_tokens", maxOut,
		"schema_fields", CountSchemaFields(schema),
	)

	res, err := r.attempt(ctx, r.primary, prompt, schema, opts, heavy, maxOut)
	if err != nil {
		if r.fallback == nil || ctx.Err() != nil {
			r.logger.Error("llm.extract.failed", "req_id", rid, "provider", r.primary.Name(), "error", err)
			return nil, &common.ExtractionError{Primary: err}
		}
		r.logger.Warn("llm.extract.fallback",
			"req_id", rid,
			"from", r.primary.Name(),
			"to", r.fallback.Name(),
			"error", err,
		)
		var ferr error
		res, ferr = r.attempt(ctx, r.fallback, prompt, schema, opts, heavy, maxOut)
		if ferr != nil {
			r.logger.Error("llm.extract.failed", "req_id", rid, "provider", r.fallback.Name(), "error", ferr)
			return nil, &common.ExtractionError{Primary: err, Fallback: ferr}
		}
	}

	cost, priced := r.prices.Cost(res.Provider, res.Model, res.Usage)
	res.Cost = cost
	r.logger.Info("llm.extract.ok",
		"req_id", rid,
		"provider", res.Provider,
		"model", res.Model,
		"input_tokens", res.Usage.InputTokens,
		"output_tokens", res.Usage.OutputTokens,
		"cost_usd", cost.StringFixed(6),
		"priced", priced,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	r.store(ctx, key, res)
	return res, nil
}

// attempt runs one provider with a single transport retry, then parses the response.
func (r *Router) attempt(ctx context.Context, p Provider, prompt string, schema map[string]any, opts Options, heavy bool, maxOut int) (*Result, error) {
	req := r.buildRequest(p, prompt, schema, opts, heavy, maxOut)

	resp, err := r.complete(ctx, p, req)
	if err != nil && retryable(err) {
		r.logger.Warn("llm.provider.retry", "provider", p.Name(), "delay_ms", r.cfg.RetryDelay.Milliseconds(), "error", err)
		if serr := r.sleep(ctx, r.cfg.RetryDelay); serr != nil {
			return nil, serr
		}
		resp, err = r.complete(ctx, p, req)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.Name(), err)
	}

	data, err := ParseJSON(p.Name(), resp.Content)
	if err != nil {
		return nil, err
	}
	if opts.Validate && len(schema) > 0 {
		if verr := validatePayload(schema, data); verr != nil {
			return nil, &common.InvalidResponseError{Provider: p.Name(), Preview: truncate(resp.Content, previewLen), Cause: verr}
		}
	}

	model := resp.Model
	if model == "" {
		model = req.Model
	}
	return &Result{Data: data, Provider: p.Name(), Model: model, Usage: resp.Usage}, nil
}

func (r *Router) complete(ctx context.Context, p Provider, req Request) (*Response, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.cfg.CallTimeout)
	defer cancel()
	return p.Complete(callCtx, req)
}

func (r *Router) buildRequest(p Provider, prompt string, schema map[string]any, opts Options, heavy bool, maxOut int) Request {
	tiers := p.Models()
	model := tiers.Cheap
	if heavy && tiers.Heavy != "" {
		model = tiers.Heavy
	}
	system := baseSystemPrompt
	if len(schema) > 0 {
		system += " The object must match the provided JSON Schema."
	}
	if opts.Instructions != "" {
		system += "\n" + opts.Instructions
	}
	req := Request{
		Model:       model,
		System:      system,
		User:        prompt,
		Temperature: r.cfg.Temperature,
		MaxTokens:   maxOut,
		SchemaName:  opts.SchemaName,
	}
	if req.SchemaName == "" {
		req.SchemaName = "extraction"
	}
	if len(schema) > 0 {
		if p.SupportsJSONSchema() {
			req.Schema = schema
		} else {
			b, _ := json.MarshalIndent(schema, "", "  ")
			req.User = prompt + "\n\nJSON Schema:\n" + string(b)
		}
	}
	return req
}

func (r *Router) cached(ctx context.Context, key string) (*Result, bool) {
	if !r.cfg.CacheEnabled || r.cache == nil {
		return nil, false
	}
	b, ok, err := r.cache.Get(ctx, key)
	if err != nil {
		r.logger.Warn("llm.cache.get_failed", "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var c cachedResult
	if err := json.Unmarshal(b, &c); err != nil || c.Data == nil {
		r.logger.Warn("llm.cache.corrupt_entry", "error", err)
		return nil, false
	}
	return &Result{Data: c.Data, Provider: c.Provider, Model: c.Model, Cached: true}, true
}

func (r *Router) store(ctx context.Context, key string, res *Result) {
	if !r.cfg.CacheEnabled || r.cache == nil {
		return
	}
	b, err := json.Marshal(cachedResult{Data: res.Data, Provider: res.Provider, Model: res.Model})
	if err != nil {
		return
	}
	if err := r.cache.Put(ctx, key, b, r.cfg.CacheTTL); err != nil {
		r.logger.Warn("llm.cache.put_failed", "error", err)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// IsInvalidResponse reports whether err came from unparseable provider output.
func IsInvalidResponse(err error) bool {
	var inv *common.InvalidResponseError
	return errors.As(err, &inv)
}
