package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/freight-intake/constants"
)

// PageBreak separates OCR'd pages in the joined text.
const PageBreak = "\n\n--- Page Break ---\n\n"

func (e *Extractor) extractPDF(ctx context.Context, path string, mode pdfMode) (*ExtractionResult, error) {
	res := &ExtractionResult{SourceType: constants.FormatPDF, Language: e.cfg.Language}

	var native string
	if mode != pdfOCROnly {
		text, pages, warns, err := e.pdfToText(ctx, path)
		res.Warnings = append(res.Warnings, warns...)
		if err != nil {
			e.logger.Warn("ocr.pdf.text_failed", "path", path, "error", err)
		} else {
			native = text
			res.Pages = pages
			has := len([]rune(native)) >= e.cfg.MinTextLength
			res.TextLayer = &has
			if has || mode == pdfTextOnly {
				res.Text = native
				res.Method = "pdf-text"
				return res, nil
			}
		}
		if mode == pdfTextOnly {
			res.Method = "pdf-text"
			return res, nil
		}
	}

	if err := e.limiter.Allow(); err != nil {
		e.logger.Warn("ocr.rate_limited", "path", path)
		return nil, err
	}

	text, pages, warns, err := e.pdfToOCR(ctx, path)
	res.Warnings = append(res.Warnings, warns...)
	if err != nil {
		e.logger.Error("ocr.pdf.rasterize_failed", "path", path, "error", err)
		text = ""
	}
	res.Method = "pdf-ocr"
	if pages > 0 {
		res.Pages = pages
	}
	res.Text = text
	if res.Text == "" && native != "" {
		// a short native layer still beats nothing
		res.Text = native
		res.Method = "pdf-text"
	}
	return res, nil
}

func (e *Extractor) pdfToText(ctx context.Context, path string) (text string, pages int, warnings []string, err error) {
	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	out, err := e.tool.Run(ctx, e.cfg.ToolTimeout, e.cfg.Pdftotext, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		return "", 0, []string{string(out.Stderr)}, err
	}
	raw := strings.TrimRight(string(out.Stdout), "\f")
	// A form-feed \f is used as page separator by default
	pages = 1 + strings.Count(raw, "\f")
	return Clean(strings.ReplaceAll(raw, "\f", "\n")), pages, nil, nil
}

func (e *Extractor) pdfToOCR(ctx context.Context, path string) (text string, pages int, warnings []string, err error) {
	tmpDir, err := os.MkdirTemp("", "intake-pp-*")
	if err != nil {
		return "", 0, nil, err
	}
	defer func(dir string) {
		if err := os.RemoveAll(dir); err != nil {
			e.logger.Warn("failed to remove temp dir", "dir", dir, "error", err)
		}
	}(tmpDir)

	last := e.cfg.MaxPages
	if n, perr := e.pageCount(path); perr == nil && n > 0 && n < last {
		last = n
	} else if perr == nil && n > e.cfg.MaxPages {
		e.logger.Warn("ocr.pdf.page_cap", "path", path, "pages", n, "max_pages", e.cfg.MaxPages)
		warnings = append(warnings, fmt.Sprintf("only first %d of %d pages rasterized", e.cfg.MaxPages, n))
	}

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r 300 -f 1 -l N -png <in.pdf> <tmp/page>
	out, err := e.tool.Run(ctx, e.cfg.ToolTimeout, e.cfg.Pdftoppm,
		"-r", strconv.Itoa(e.cfg.DPI), "-f", "1", "-l", strconv.Itoa(last), "-png", path, prefix)
	if err != nil {
		return "", 0, append(warnings, string(out.Stderr)), err
	}

	// collect generated pngs (page-1.png or zero-padded page-01.png, ...)
	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if len(matches) > e.cfg.MaxPages {
		matches = matches[:e.cfg.MaxPages]
	}
	if len(matches) == 0 {
		return "", 0, append(warnings, "pdftoppm produced no images"), fmt.Errorf("no pages rendered")
	}

	parts := make([]string, 0, len(matches))
	for _, img := range matches {
		txt, w, err := e.tesseractOCR(ctx, img)
		if err != nil {
			warnings = append(warnings, err.Error())
			continue
		}
		warnings = append(warnings, w...)
		if txt = Clean(txt); txt != "" {
			parts = append(parts, txt)
		}
	}
	return strings.Join(parts, PageBreak), len(matches), warnings, nil
}
