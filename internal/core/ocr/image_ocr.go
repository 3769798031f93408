package ocr

import (
	"context"
	"fmt"

	"github.com/joseph-ayodele/freight-intake/constants"
)

func (e *Extractor) extractImage(ctx context.Context, path string) (*ExtractionResult, error) {
	if err := e.limiter.Allow(); err != nil {
		e.logger.Warn("ocr.rate_limited", "path", path)
		return nil, err
	}
	res := &ExtractionResult{
		Pages:      1,
		SourceType: constants.FormatImage,
		Method:     "image-ocr",
		Language:   e.cfg.Language,
	}
	txt, warn, err := e.tesseractOCR(ctx, path)
	res.Warnings = warn
	if err != nil {
		e.logger.Error("ocr.image.failed", "path", path, "error", err)
		return res, nil
	}
	res.Text = Clean(txt)
	return res, nil
}

func (e *Extractor) tesseractOCR(ctx context.Context, path string) (string, []string, error) {
	args := []string{path, "stdout", "-l", e.cfg.Language}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}

	// tesseract <file> stdout -l <lang>
	out, err := e.tool.Run(ctx, e.cfg.ToolTimeout, e.cfg.Tesseract, args...)
	if err != nil {
		return "", []string{string(out.Stderr)}, fmt.Errorf("tesseract (exit %d): %w", out.ExitCode, err)
	}
	return string(out.Stdout), nil, nil
}
