// Package extract turns document text into structured shipment data.
package extract

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/freight-intake/constants"
	"github.com/joseph-ayodele/freight-intake/internal/common"
	"github.com/joseph-ayodele/freight-intake/internal/entity"
)

// Kind tags the strategy that produced a result.
type Kind int

const (
	AIBased Kind = iota
	PatternBased
)

func (k Kind) String() string {
	switch k {
	case AIBased:
		return "ai"
	case PatternBased:
		return "pattern"
	default:
		return "unknown"
	}
}

// Input is the text and context handed to a strategy.
type Input struct {
	Text     string
	Filename string
	Format   string
}

// Outcome is one strategy's result.
type Outcome struct {
	Kind       Kind
	Data       entity.ExtractionData
	Confidence *float64
	Provider   string
	Model      string
	Cached     bool
}

// Strategy extracts shipment data from text.
type Strategy interface {
	Kind() Kind
	Extract(ctx context.Context, in Input) (*Outcome, error)
}

// Selector runs the AI strategy and falls back to pattern matching on any AI error
// other than cancellation. Either strategy may be nil.
type Selector struct {
	ai      Strategy
	pattern Strategy
	logger  *slog.Logger
}

func NewSelector(ai, pattern Strategy, logger *slog.Logger) *Selector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Selector{ai: ai, pattern: pattern, logger: logger}
}

// Extract returns the first successful outcome. Rate limiting on the AI path is
// returned as-is so the caller can retry the document later.
func (s *Selector) Extract(ctx context.Context, in Input) (*Outcome, error) {
	var aiErr error
	if s.ai != nil {
		out, err := s.ai.Extract(ctx, in)
		if err == nil {
			return out, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, common.ErrRateLimited) {
			return nil, err
		}
		aiErr = err
		s.logger.Warn("extract.ai.failed", "filename", in.Filename, "error", err)
	}
	if s.pattern == nil {
		if aiErr != nil {
			return nil, aiErr
		}
		return nil, common.NewAppError("NO_STRATEGY", "no extraction strategy configured", common.ErrExtraction)
	}
	out, err := s.pattern.Extract(ctx, in)
	if err != nil {
		return nil, errors.Join(aiErr, err)
	}
	if aiErr != nil {
		s.logger.Info("extract.pattern.fallback", "filename", in.Filename, "fields", countFields(out.Data))
	}
	return out, nil
}

// Method is the persisted extraction method name.
func (o *Outcome) Method() string {
	switch {
	case o.Cached:
		return constants.MethodCached
	case o.Kind == PatternBased:
		return constants.MethodPattern
	default:
		return constants.MethodAI
	}
}

// ToResult stamps an outcome into the persisted form.
func (o *Outcome) ToResult(now time.Time) *entity.ExtractionResult {
	return &entity.ExtractionResult{
		Data: o.Data,
		Metadata: entity.ExtractionMetadata{
			Method:     o.Method(),
			Confidence: o.Confidence,
			Timestamp:  now.UTC(),
			Provider:   o.Provider,
			Model:      o.Model,
		},
	}
}
