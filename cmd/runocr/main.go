package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joseph-ayodele/freight-intake/internal/app"
	"github.com/joseph-ayodele/freight-intake/internal/core/normalize"
	"github.com/joseph-ayodele/freight-intake/internal/core/ocr"
	"github.com/joseph-ayodele/freight-intake/internal/core/ratelimit"
	"github.com/joseph-ayodele/freight-intake/internal/core/runner"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if len(os.Args) != 2 {
		logger.Error("usage", "cmd", "runocr <file>")
		os.Exit(2)
	}
	path := os.Args[1]

	cfg, err := app.LoadConfig()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	workDir, err := os.MkdirTemp(cfg.Pipeline.WorkDir, "runocr-*")
	if err != nil {
		logger.Error("create work dir", "error", err)
		os.Exit(1)
	}
	defer os.RemoveAll(workDir)

	tool := runner.NewExec(logger)
	n := normalize.NewNormalizer(normalize.Config{
		ImagesToPDF:      cfg.Normalize.ImagesToPDF,
		StripEXIF:        cfg.Normalize.StripEXIF,
		HeicConverter:    cfg.Normalize.HeicConverter,
		ArtifactCacheDir: cfg.Normalize.ArtifactCacheDir,
		ToolTimeout:      cfg.Normalize.ToolTimeout,
		WorkDir:          workDir,
	}, tool, logger)
	x := ocr.NewExtractor(ocr.Config{
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

	start := time.Now()
	art, err := n.Normalize(ctx, normalize.Input{Path: path, Filename: filepath.Base(path)})
	if err != nil {
		logger.Error("normalize failed", "error", err)
		os.Exit(1)
	}
	res, err := x.Extract(ctx, art.Path)
	if err != nil {
		logger.Error("text extraction failed", "error", err, "duration_ms", time.Since(start).Milliseconds())
		os.Exit(1)
	}

	logger.Info("text extraction OK",
		"mime", art.MimeType,
		"converted", art.Converted,
		"method", res.Method,
		"pages", res.Pages,
		"confidence", res.Confidence,
		"bytes", len(res.Text),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	fmt.Println(res.Text)
}
