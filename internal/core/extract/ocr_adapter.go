package extract

import (
	"context"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/freight-intake/internal/core/ocr"
	"github.com/joseph-ayodele/freight-intake/internal/entity"
)

// TextExtractor is the file -> text stage.
type TextExtractor interface {
	Extract(ctx context.Context, doc *entity.Document, path string) (TextExtractionResult, error)
}

type TextExtractionResult struct {
	Text       string
	Pages      int
	SourceType string
	Method     string // "pdf-text" | "pdf-ocr" | "image-ocr"
	Duration   time.Duration
	Warnings   []string
	Confidence float64 // 0..100
}

type OCRAdapter struct {
	extractor *ocr.Extractor
	logger    *slog.Logger
}

func NewOCRAdapter(e *ocr.Extractor, l *slog.Logger) *OCRAdapter {
	if l == nil {
		l = slog.Default()
	}
	return &OCRAdapter{
		extractor: e,
		logger:    l,
	}
}

// Extract runs OCR for doc and records the probed text-layer state on it.
func (a *OCRAdapter) Extract(ctx context.Context, doc *entity.Document, path string) (TextExtractionResult, error) {
	r, err := a.extractor.ExtractDocument(ctx, doc, path)
	if err != nil {
		return TextExtractionResult{}, err
	}
	a.logger.Debug("extract.text.done",
		"doc_id", doc.ID,
		"method", r.Method,
		"pages", r.Pages,
		"chars", len(r.Text),
		"confidence", r.Confidence,
	)
	return TextExtractionResult{
		Text:       r.Text,
		Pages:      r.Pages,
		SourceType: string(r.SourceType),
		Method:     r.Method,
		Duration:   r.Duration,
		Warnings:   r.Warnings,
		Confidence: r.Confidence,
	}, nil
}
