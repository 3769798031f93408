// Package app wires the pipeline from configuration for the command-line tools.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/joseph-ayodele/freight-intake/internal/common"
	"github.com/joseph-ayodele/freight-intake/internal/core"
	"github.com/joseph-ayodele/freight-intake/internal/core/aggregate"
	"github.com/joseph-ayodele/freight-intake/internal/core/dedup"
	"github.com/joseph-ayodele/freight-intake/internal/core/extract"
	"github.com/joseph-ayodele/freight-intake/internal/core/llm"
	"github.com/joseph-ayodele/freight-intake/internal/core/llm/anthropic"
	"github.com/joseph-ayodele/freight-intake/internal/core/llm/gemini"
	"github.com/joseph-ayodele/freight-intake/internal/core/llm/openai"
	"github.com/joseph-ayodele/freight-intake/internal/core/normalize"
	"github.com/joseph-ayodele/freight-intake/internal/core/ocr"
	"github.com/joseph-ayodele/freight-intake/internal/core/ratelimit"
	"github.com/joseph-ayodele/freight-intake/internal/core/runner"
	"github.com/joseph-ayodele/freight-intake/internal/core/upload"
	"github.com/joseph-ayodele/freight-intake/internal/export"
	"github.com/joseph-ayodele/freight-intake/internal/kv"
	"github.com/joseph-ayodele/freight-intake/internal/repository"
	"github.com/joseph-ayodele/freight-intake/internal/storage"
)

// LoadConfig reads an optional .env file, then the environment, and validates the result.
func LoadConfig() (*common.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// App holds the wired components. Close releases everything New opened.
type App struct {
	Config     *common.Config
	Logger     *slog.Logger
	DB         *repository.DB
	Documents  repository.DocumentRepository
	Intakes    repository.IntakeRepository
	Storage    *storage.Storage
	KV         kv.Store
	Normalizer *normalize.Normalizer
	OCR        *ocr.Extractor
	Router     *llm.Router // nil when no provider is configured
	Processor  *core.Processor
	Exporter   *export.Service
	Uploads    *upload.Manager // nil when CRM_UPLOAD_URL is unset

	closers []func() error
}

func New(ctx context.Context, cfg *common.Config, logger *slog.Logger) (_ *App, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	a.DB, err = repository.Open(ctx, repository.Config{
		Driver:           cfg.Database.Driver,
		DSN:              cfg.Database.DSN,
		MaxConns:         cfg.Database.MaxConns,
		MinConns:         cfg.Database.MinConns,
		MaxConnLifetime:  cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
		DialTimeout:      cfg.Database.DialTimeout,
		StatementTimeout: cfg.Database.StatementTimeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	a.closers = append(a.closers, func() error { a.DB.Close(logger); return nil })
	if err = a.DB.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	a.Documents = repository.NewDocumentRepository(a.DB, logger)
	a.Intakes = repository.NewIntakeRepository(a.DB, logger)

	if a.Storage, err = a.openStorage(ctx); err != nil {
		return nil, err
	}
	if a.KV, err = a.openKV(ctx); err != nil {
		return nil, err
	}

	tool := runner.NewExec(logger)
	a.Normalizer = normalize.NewNormalizer(normalize.Config{
		ImagesToPDF:      cfg.Normalize.ImagesToPDF,
		StripEXIF:        cfg.Normalize.StripEXIF,
		HeicConverter:    cfg.Normalize.HeicConverter,
		ArtifactCacheDir: cfg.Normalize.ArtifactCacheDir,
		ToolTimeout:      cfg.Normalize.ToolTimeout,
		WorkDir:          cfg.Pipeline.WorkDir,
	}, tool, logger)
	a.OCR = ocr.NewExtractor(ocr.Config{
		Pdftotext:        cfg.OCR.Pdftotext,
		Pdftoppm:         cfg.OCR.Pdftoppm,
		Tesseract:        cfg.OCR.Tesseract,
		Language:         cfg.OCR.Language,
		TessdataDir:      cfg.OCR.TessdataDir,
		DPI:              cfg.OCR.DPI,
		MaxPages:         cfg.OCR.MaxPages,
		MinTextLength:    cfg.OCR.MinTextLength,
		ToolTimeout:      cfg.OCR.ToolTimeout,
		UnknownTextLayer: ocr.TextLayerPolicy(cfg.OCR.UnknownTextLayer),
	}, tool, ratelimit.New("ocr", cfg.OCR.RateLimitPerMinute), logger)

	if a.Router, err = a.buildRouter(ctx); err != nil {
		return nil, err
	}
	var ai extract.Strategy
	if a.Router != nil {
		ai = extract.NewAIStrategy(a.Router, cfg.Extract.ValidateOutput)
	}
	selector := extract.NewSelector(ai, extract.NewPatternStrategy(cfg.Extract.PhoneRegion), logger)

	var opts []core.ProcessorOption
	if cfg.Upload.URL != "" {
		uploader := upload.NewHTTPUploader(cfg.Upload.URL, cfg.Upload.Token, cfg.Upload.Timeout, logger)
		a.Uploads = upload.NewManager(uploader, a.KV, cfg.Upload.MarkerTTL, logger)
		opts = append(opts, core.WithUploads(a.Uploads))
	}

	a.Processor = core.NewProcessor(
		logger,
		a.Normalizer,
		extract.NewOCRAdapter(a.OCR, logger),
		selector,
		dedup.NewDeduplicator(a.Documents, cfg.Dedup.GlobalHashGuard, logger),
		aggregate.NewAggregator(a.Documents, a.Intakes, logger),
		a.Storage,
		a.Documents,
		a.Intakes,
		core.ProcessorConfig{Parallelism: cfg.Pipeline.Parallelism, WorkDir: cfg.Pipeline.WorkDir},
		opts...,
	)
	a.Exporter = export.NewService(a.Intakes, a.Documents, logger)
	return a, nil
}

func (a *App) openStorage(ctx context.Context) (*storage.Storage, error) {
	sc := a.Config.Storage
	switch sc.Backend {
	case "gcs":
		g, closeFn, err := storage.NewGCS(ctx, sc.GCSBucket, a.Logger)
		if err != nil {
			return nil, fmt.Errorf("open gcs: %w", err)
		}
		a.closers = append(a.closers, closeFn)
		return storage.New(sc.Disk, map[string]storage.Backend{sc.Disk: g}), nil
	default:
		d, err := storage.NewDisk(sc.LocalRoot)
		if err != nil {
			return nil, fmt.Errorf("open local storage: %w", err)
		}
		return storage.New(sc.Disk, map[string]storage.Backend{sc.Disk: d}), nil
	}
}

func (a *App) openKV(ctx context.Context) (kv.Store, error) {
	rc := a.Config.Redis
	if rc.Addr == "" {
		a.Logger.Warn("REDIS_ADDR not set, using in-memory cache and upload markers")
		return kv.NewMemoryStore(), nil
	}
	client, err := kv.Connect(ctx, rc.Addr, rc.Password, rc.DB)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, client.Close)
	return kv.NewRedisStore(client), nil
}

func (a *App) buildRouter(ctx context.Context) (*llm.Router, error) {
	lc := a.Config.LLM
	primary, err := a.provider(ctx, lc.Primary)
	if err != nil {
		return nil, err
	}
	fallback, err := a.provider(ctx, lc.Fallback)
	if err != nil {
		return nil, err
	}
	if primary == nil {
		if fallback == nil {
			a.Logger.Warn("no AI provider configured, extraction uses pattern matching only")
			return nil, nil
		}
		primary, fallback = fallback, nil
	}
	return llm.NewRouter(llm.RouterConfig{
		CacheEnabled:   lc.CacheEnabled,
		CacheTTL:       lc.CacheTTL,
		TrimContent:    lc.TrimContent,
		CheapMaxTokens: lc.CheapMaxTokens,
		RetryDelay:     lc.RetryDelay,
		CallTimeout:    lc.Timeout,
	}, primary, fallback, a.KV, ratelimit.New("llm", lc.RateLimitPerMinute), a.Logger), nil
}

// provider returns nil without error when name is empty or its credentials are missing.
func (a *App) provider(ctx context.Context, name string) (llm.Provider, error) {
	lc := a.Config.LLM
	switch name {
	case "openai":
		if lc.OpenAI.APIKey == "" {
			a.Logger.Warn("OPENAI_API_KEY not set, skipping provider", "provider", name)
			return nil, nil
		}
		return openai.NewClient(openai.Config{
			APIKey:     lc.OpenAI.APIKey,
			BaseURL:    lc.OpenAI.BaseURL,
			CheapModel: lc.OpenAI.CheapModel,
			HeavyModel: lc.OpenAI.HeavyModel,
			Timeout:    lc.Timeout,
		}, a.Logger), nil
	case "anthropic":
		if lc.Anthropic.APIKey == "" {
			a.Logger.Warn("ANTHROPIC_API_KEY not set, skipping provider", "provider", name)
			return nil, nil
		}
		return anthropic.NewClient(anthropic.Config{
			APIKey:     lc.Anthropic.APIKey,
			BaseURL:    lc.Anthropic.BaseURL,
			CheapModel: lc.Anthropic.CheapModel,
			HeavyModel: lc.Anthropic.HeavyModel,
			Timeout:    lc.Timeout,
		}, a.Logger), nil
	case "gemini":
		if lc.Gemini.ProjectID == "" {
			a.Logger.Warn("GCP_PROJECT_ID not set, skipping provider", "provider", name)
			return nil, nil
		}
		c, err := gemini.NewClient(ctx, gemini.Config{
			ProjectID:  lc.Gemini.ProjectID,
			Region:     lc.Gemini.Region,
			CheapModel: lc.Gemini.CheapModel,
			HeavyModel: lc.Gemini.HeavyModel,
		}, a.Logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, c.Close)
		return c, nil
	}
	return nil, nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Logger.Warn("close failed", "error", err)
		}
	}
	a.closers = nil
}
