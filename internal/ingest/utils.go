package ingest

import (
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/freight-intake/constants"
)

// AllowedExt checks if a file extension is in the ingestable set.
func AllowedExt(ext string) bool {
	return constants.IsAllowedExt(ext)
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".")
}

// GroupKey names the intake a file under root belongs to: its first-level
// subdirectory, or the file itself when it sits directly in root.
func GroupKey(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) == 1 {
		return rel
	}
	return parts[0]
}
