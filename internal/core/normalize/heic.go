package normalize

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// convertHEICtoJPEG converts a HEIC/HEIF file to JPEG at out.
// If cacheDir is set, the result is persisted (and reused) at {cacheDir}/{sha256}.jpg
// and cached is true; callers must not delete a cached artifact.
func (n *Normalizer) convertHEICtoJPEG(ctx context.Context, in, out string) (path string, cached bool, err error) {
	var cachePath string
	if n.cfg.ArtifactCacheDir != "" {
		sum, herr := hashFile(in)
		if herr == nil {
			cachePath = filepath.Join(n.cfg.ArtifactCacheDir, sum+".jpg")
			if st, serr := os.Stat(cachePath); serr == nil && !st.IsDir() {
				n.logger.Debug("using cached heic->jpeg", "cache", cachePath)
				return cachePath, true, nil
			}
			if merr := os.MkdirAll(n.cfg.ArtifactCacheDir, 0o755); merr != nil {
				cachePath = ""
			}
		}
	}

	var args []string
	switch n.cfg.HeicConverter {
	case "heif-convert":
		args = []string{"-q", "90", in, out}
	case "magick":
		args = []string{in, "-quality", "90", out}
	case "sips":
		args = []string{"-s", "format", "jpeg", in, "--out", out}
	default:
		return "", false, fmt.Errorf("HEIC not supported: converter must be one of: heif-convert | magick | sips")
	}

	res, err := n.tool.Run(ctx, n.cfg.ToolTimeout, n.cfg.HeicConverter, args...)
	if err != nil {
		_ = os.Remove(out)
		return "", false, fmt.Errorf("%s failed (exit %d): %w", n.cfg.HeicConverter, res.ExitCode, err)
	}
	if st, statErr := os.Stat(out); statErr != nil || st.Size() == 0 {
		_ = os.Remove(out)
		return "", false, fmt.Errorf("HEIC conversion produced no output")
	}

	if cachePath == "" {
		return out, false, nil
	}
	if err := copyFile(out, cachePath); err != nil {
		n.logger.Warn("failed to persist heic->jpeg in cache", "cache", cachePath, "error", err)
		return out, false, nil
	}
	_ = os.Remove(out)
	n.logger.Debug("cached heic->jpeg", "cache", cachePath)
	return cachePath, true, nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// copyFile writes src to dst through a sibling temp file so readers never see a partial dst.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".part-*")
	if err != nil {
		return err
	}
	if _, err := io.Copy(tmp, in); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return nil
}
