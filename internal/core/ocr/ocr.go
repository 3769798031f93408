package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/joseph-ayodele/freight-intake/constants"
	"github.com/joseph-ayodele/freight-intake/internal/common"
	"github.com/joseph-ayodele/freight-intake/internal/core/ratelimit"
	"github.com/joseph-ayodele/freight-intake/internal/core/runner"
	"github.com/joseph-ayodele/freight-intake/internal/entity"
)

// TextLayerPolicy decides what to do with a PDF whose text layer was never inspected.
type TextLayerPolicy string

const (
	// PolicyProbe extracts the native layer first and rasterizes when it is too short.
	PolicyProbe TextLayerPolicy = "probe"
	// PolicyAssumeText trusts the native layer and never rasterizes.
	PolicyAssumeText TextLayerPolicy = "assume_text"
	// PolicyAssumeScanned skips the native layer and always rasterizes.
	PolicyAssumeScanned TextLayerPolicy = "assume_scanned"
)

type Config struct {
	Pdftotext string // binary name or absolute path; if empty -> "pdftotext"
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	Language      string // default "eng"
	TessdataDir   string
	DPI           int // rasterization DPI for scanned PDFs, default 300
	MaxPages      int // safety cap on rasterized pages, default 10
	MinTextLength int // native text shorter than this is treated as a scan, default 50

	ToolTimeout      time.Duration
	UnknownTextLayer TextLayerPolicy
}

type ExtractionResult struct {
	Text       string
	Pages      int
	SourceType constants.Format
	Method     string // "pdf-text" | "pdf-ocr" | "image-ocr"
	Language   string
	Duration   time.Duration
	Warnings   []string
	Confidence float64 // 0..100
	TextLayer  *bool   // set when a PDF text layer was probed
}

type Extractor struct {
	cfg       Config
	tool      runner.Tool
	limiter   *ratelimit.Limiter
	logger    *slog.Logger
	pageCount func(path string) (int, error)
}

func NewExtractor(cfg Config, tool runner.Tool, limiter *ratelimit.Limiter, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.Language == "" {
		cfg.Language = "eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 10
	}
	if cfg.MinTextLength <= 0 {
		cfg.MinTextLength = 50
	}
	if cfg.ToolTimeout <= 0 {
		cfg.ToolTimeout = 2 * time.Minute
	}
	if cfg.UnknownTextLayer == "" {
		cfg.UnknownTextLayer = PolicyProbe
	}
	if tool == nil {
		tool = runner.NewExec(logger)
	}
	return &Extractor{
		cfg:       cfg,
		tool:      tool,
		limiter:   limiter,
		logger:    logger,
		pageCount: api.PageCountFile,
	}
}

// ExtractText returns cleaned text for a PDF or image. Subprocess failures yield ""
// with a nil error; only rate limiting and unsupported inputs are errors.
func (e *Extractor) ExtractText(ctx context.Context, path string) (string, error) {
	res, err := e.Extract(ctx, path)
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

// Extract picks a strategy based on the file type, probing PDFs text-first.
func (e *Extractor) Extract(ctx context.Context, path string) (*ExtractionResult, error) {
	return e.extract(ctx, path, pdfAuto)
}

// ExtractDocument extracts text for a stored document whose local copy lives at path,
// honouring its known text-layer state and the configured policy for unknown state.
func (e *Extractor) ExtractDocument(ctx context.Context, doc *entity.Document, path string) (*ExtractionResult, error) {
	mode := pdfAuto
	if doc.Format() == constants.FormatPDF {
		mode = e.pdfModeFor(doc)
	}
	res, err := e.extract(ctx, path, mode)
	if err != nil {
		return nil, err
	}
	if res.TextLayer != nil {
		doc.HasTextLayer = res.TextLayer
	}
	return res, nil
}

// NeedsOCR reports whether the document must go through rasterization/OCR.
func (e *Extractor) NeedsOCR(doc *entity.Document) bool {
	switch doc.Format() {
	case constants.FormatEmail:
		return false
	case constants.FormatImage:
		return true
	case constants.FormatPDF:
		if doc.HasTextLayer != nil {
			return !*doc.HasTextLayer
		}
		return e.cfg.UnknownTextLayer != PolicyAssumeText
	}
	return false
}

// DetectTextLayer probes a PDF's native text layer and records the result on doc.
// Emails always have text; images never do. A failed probe leaves the state unknown.
func (e *Extractor) DetectTextLayer(ctx context.Context, doc *entity.Document, path string) bool {
	var has bool
	switch doc.Format() {
	case constants.FormatEmail:
		has = true
	case constants.FormatPDF:
		text, _, _, err := e.pdfToText(ctx, path)
		if err != nil {
			e.logger.Warn("ocr.text_layer.probe_failed", "document_id", doc.ID, "error", err)
			return false
		}
		has = len([]rune(text)) >= e.cfg.MinTextLength
	default:
		has = false
	}
	doc.HasTextLayer = &has
	return has
}

type pdfMode int

const (
	pdfAuto pdfMode = iota
	pdfTextOnly
	pdfOCROnly
)

func (e *Extractor) pdfModeFor(doc *entity.Document) pdfMode {
	if doc.HasTextLayer != nil {
		if *doc.HasTextLayer {
			return pdfAuto
		}
		return pdfOCROnly
	}
	switch e.cfg.UnknownTextLayer {
	case PolicyAssumeText:
		return pdfTextOnly
	case PolicyAssumeScanned:
		return pdfOCROnly
	}
	return pdfAuto
}

func (e *Extractor) extract(ctx context.Context, path string, mode pdfMode) (*ExtractionResult, error) {
	start := time.Now()
	format := formatOf(path)
	e.logger.Debug("starting ocr extraction", "path", path, "format", format)

	var (
		res *ExtractionResult
		err error
	)
	switch format {
	case constants.FormatPDF:
		res, err = e.extractPDF(ctx, path, mode)
	case constants.FormatImage:
		res, err = e.extractImage(ctx, path)
	default:
		e.logger.Error("unsupported ocr input", "path", path, "format", format)
		return nil, common.NewAppError("OCR_UNSUPPORTED", fmt.Sprintf("unsupported input %q", filepath.Base(path)), common.ErrInvalidInput)
	}
	if err != nil {
		return nil, err
	}
	res.Duration = time.Since(start)
	res.Confidence = Confidence(res.Text)
	e.logger.Info("ocr.extract.ok",
		"path", path,
		"method", res.Method,
		"pages", res.Pages,
		"chars", len(res.Text),
		"confidence", res.Confidence,
		"elapsed_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

func formatOf(path string) constants.Format {
	if f := constants.MapExtToFormat(filepath.Ext(path)); f != constants.FormatUnknown {
		return f
	}
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return constants.FormatUnknown
	}
	return constants.MapMimeToFormat(mt.String())
}
