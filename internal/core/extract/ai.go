package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/joseph-ayodele/freight-intake/internal/core/llm"
	"github.com/joseph-ayodele/freight-intake/internal/entity"
)

// Extractor is the slice of llm.Router the AI strategy needs.
type Extractor interface {
	Extract(ctx context.Context, text string, schema map[string]any, opts llm.Options) (*llm.Result, error)
}

// AIStrategy extracts through the AI router with the shipment schema.
type AIStrategy struct {
	router   Extractor
	schema   map[string]any
	validate bool
}

func NewAIStrategy(router Extractor, validate bool) *AIStrategy {
	return &AIStrategy{router: router, schema: BuildShipmentJSONSchema(), validate: validate}
}

func (s *AIStrategy) Kind() Kind { return AIBased }

func (s *AIStrategy) Extract(ctx context.Context, in Input) (*Outcome, error) {
	res, err := s.router.Extract(ctx, buildUserPrompt(in), s.schema, llm.Options{
		SchemaName:   "shipment_request",
		Instructions: buildInstructions(),
		Validate:     s.validate,
	})
	if err != nil {
		return nil, err
	}
	data, conf, err := decodeShipment(res.Data)
	if err != nil {
		return nil, fmt.Errorf("decode %s output: %w", res.Provider, err)
	}
	return &Outcome{
		Kind:       AIBased,
		Data:       data,
		Confidence: conf,
		Provider:   res.Provider,
		Model:      res.Model,
		Cached:     res.Cached,
	}, nil
}

// decodeShipment maps the loose model output onto the typed payload. Numbers and
// booleans become strings and nulls are dropped, so "year": 2019 still lands.
func decodeShipment(raw map[string]any) (entity.ExtractionData, *float64, error) {
	var data entity.ExtractionData
	var conf *float64
	if c, ok := raw["confidence"].(float64); ok {
		c = min(max(c, 0), 1)
		conf = &c
	}
	clean, _ := stringify(raw).(map[string]any)
	delete(clean, "confidence")

	b, err := json.Marshal(clean)
	if err != nil {
		return data, nil, err
	}
	// A mistyped leaf is skipped and the rest of the payload kept.
	var typeErr *json.UnmarshalTypeError
	if err := json.Unmarshal(b, &data); err != nil && !errors.As(err, &typeErr) {
		return data, nil, err
	}
	return data, conf, nil
}

func stringify(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if val == nil {
				continue
			}
			out[k] = stringify(val)
		}
		return out
	case []any:
		// The payload has no arrays; keep the first scalar so a list answer is not lost.
		for _, item := range t {
			if s, ok := stringify(item).(string); ok && s != "" {
				return s
			}
		}
		return nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}
