// Package normalize turns an inbound file into an artifact the OCR engine and the
// CRM can consume. Every conversion step is fail-open: a failed tool leaves the
// previous-stage artifact in place.
package normalize

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/freight-intake/constants"
	"github.com/joseph-ayodele/freight-intake/internal/core/runner"
)

// Config controls optional conversions.
type Config struct {
	ImagesToPDF      bool
	StripEXIF        bool
	HeicConverter    string // heif-convert | magick | sips
	ArtifactCacheDir string
	ToolTimeout      time.Duration
	WorkDir          string
}

// Input is a file to normalize. MimeType is detected when empty; OutDir defaults to Config.WorkDir.
type Input struct {
	Path     string
	Filename string
	MimeType string
	OutDir   string
}

// Artifact is the normalized file. Converted is true only for files this package
// created and that are safe to delete once consumed.
type Artifact struct {
	Path      string   `json:"path"`
	Filename  string   `json:"filename"`
	MimeType  string   `json:"mime_type"`
	Size      int64    `json:"size"`
	SourceTag string   `json:"source_tag"`
	Converted bool     `json:"converted"`
	Warnings  []string `json:"warnings,omitempty"`
}

type Normalizer struct {
	cfg    Config
	tool   runner.Tool
	logger *slog.Logger
}

func NewNormalizer(cfg Config, tool runner.Tool, logger *slog.Logger) *Normalizer {
	if cfg.HeicConverter == "" {
		cfg.HeicConverter = "magick"
	}
	if cfg.ToolTimeout <= 0 {
		cfg.ToolTimeout = 60 * time.Second
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = os.TempDir()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if tool == nil {
		tool = runner.NewExec(logger)
	}
	return &Normalizer{cfg: cfg, tool: tool, logger: logger}
}

// Normalize dispatches on the real type of the input. It only errors when the
// input itself cannot be read.
func (n *Normalizer) Normalize(ctx context.Context, in Input) (*Artifact, error) {
	st, err := os.Stat(in.Path)
	if err != nil {
		return nil, fmt.Errorf("stat input: %w", err)
	}
	if in.Filename == "" {
		in.Filename = filepath.Base(in.Path)
	}
	if in.MimeType == "" || in.MimeType == constants.MimeOctet {
		in.MimeType = DetectMime(in.Path, in.Filename)
	}
	if in.OutDir == "" {
		in.OutDir = n.cfg.WorkDir
	}

	original := &Artifact{
		Path:     in.Path,
		Filename: in.Filename,
		MimeType: in.MimeType,
		Size:     st.Size(),
	}
	logger := n.logger.With("filename", in.Filename, "mime", in.MimeType)

	switch {
	case in.MimeType == constants.MimeEmail:
		// Rendering large threads to PDF is left to consumers that need it.
		original.SourceTag = constants.SourceTagEmail
		return original, nil

	case in.MimeType == constants.MimePDF:
		original.SourceTag = constants.SourceTagPDF
		return original, nil

	case constants.IsHEICMime(in.MimeType) || constants.IsHEICExt(filepath.Ext(in.Filename)):
		return n.normalizeHEIC(ctx, in, original, logger), nil

	case strings.HasPrefix(in.MimeType, "image/"):
		return n.normalizeImage(in, original, logger), nil
	}

	logger.Warn("normalize.unknown_type", "path", in.Path)
	original.SourceTag = constants.SourceTagProcessed
	original.Warnings = append(original.Warnings, "unrecognized type "+in.MimeType)
	return original, nil
}

func (n *Normalizer) normalizeHEIC(ctx context.Context, in Input, original *Artifact, logger *slog.Logger) *Artifact {
	out := n.outPath(in, ".jpg")
	path, cached, err := n.convertHEICtoJPEG(ctx, in.Path, out)
	if err != nil {
		logger.Warn("normalize.heic.fallback", "converter", n.cfg.HeicConverter, "error", err)
		original.SourceTag = constants.SourceTagHEICPassthru
		original.Warnings = append(original.Warnings, err.Error())
		return original
	}
	logger.Info("normalize.heic.converted", "out", path, "cached", cached)
	return n.artifactFor(path, swapExt(in.Filename, ".jpg"), constants.MimeJPEG, constants.SourceTagHEICConverted, !cached, original)
}

func (n *Normalizer) normalizeImage(in Input, original *Artifact, logger *slog.Logger) *Artifact {
	current := original
	current.SourceTag = constants.SourceTagImagePassthru

	if n.cfg.StripEXIF {
		ext := filepath.Ext(in.Filename)
		out := n.outPath(in, strings.ToLower(ext))
		if err := stripEXIF(in.Path, out); err != nil {
			logger.Warn("normalize.exif.fallback", "error", err)
			current.Warnings = append(current.Warnings, err.Error())
		} else {
			current = n.artifactFor(out, in.Filename, mimeForImageExt(ext), constants.SourceTagEXIFStripped, true, current)
		}
	}

	if n.cfg.ImagesToPDF {
		out := n.outPath(in, ".pdf")
		if err := imageToA4PDF(current.Path, out); err != nil {
			logger.Warn("normalize.pdf.fallback", "error", err)
			current.Warnings = append(current.Warnings, err.Error())
			return current
		}
		previous := current
		current = n.artifactFor(out, swapExt(in.Filename, ".pdf"), constants.MimePDF, constants.SourceTagImagePDF, true, current)
		if previous.Converted && previous.Path != current.Path {
			_ = os.Remove(previous.Path)
		}
	}
	return current
}

// artifactFor builds an artifact for a produced file, falling back to prev if it cannot be stat'ed.
func (n *Normalizer) artifactFor(path, filename, mime, tag string, converted bool, prev *Artifact) *Artifact {
	st, err := os.Stat(path)
	if err != nil {
		return prev
	}
	return &Artifact{
		Path:      path,
		Filename:  filename,
		MimeType:  mime,
		Size:      st.Size(),
		SourceTag: tag,
		Converted: converted,
		Warnings:  prev.Warnings,
	}
}

func (n *Normalizer) outPath(in Input, ext string) string {
	base := strings.TrimSuffix(filepath.Base(in.Filename), filepath.Ext(in.Filename))
	return filepath.Join(in.OutDir, fmt.Sprintf("%s-%s%s", base, uuid.NewString()[:8], ext))
}

func swapExt(name, ext string) string {
	return strings.TrimSuffix(name, filepath.Ext(name)) + ext
}
