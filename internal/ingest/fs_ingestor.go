package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/freight-intake/constants"
)

// FSIngestor reads intake files from the local filesystem.
type FSIngestor struct {
	submitter Submitter
	source    string
	logger    *slog.Logger
}

func NewFSIngestor(s Submitter, source string, logger *slog.Logger) *FSIngestor {
	if logger == nil {
		logger = slog.Default()
	}
	if source == "" {
		source = constants.SourceChannelBatch
	}
	return &FSIngestor{submitter: s, source: source, logger: logger}
}

// IngestPath submits one file to an existing intake.
func (i *FSIngestor) IngestPath(ctx context.Context, intakeID uuid.UUID, path string) (IngestionResult, error) {
	out := IngestionResult{SourcePath: path, IntakeID: intakeID}

	ext := constants.NormalizeExt(filepath.Ext(path))
	if ext == "" || !AllowedExt(ext) {
		return out, fmt.Errorf("unsupported or missing extension %q", ext)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return out, err
	}

	res, err := i.submitter.IngestFile(ctx, intakeID, filepath.Base(path), data)
	if err != nil {
		return out, err
	}
	out.DocumentID = res.DocumentID
	out.Deduplicated = res.Status == constants.IngestStatusDuplicate
	out.Message = res.Message
	return out, nil
}

// IngestDirectory walks root and submits every allowed file, opening one intake
// per first-level subdirectory and one per loose file in root. It returns the
// per-file results, the intakes that received at least one new document and stats.
func (i *FSIngestor) IngestDirectory(ctx context.Context, root string, skipHidden bool) ([]IngestionResult, []uuid.UUID, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, nil, DirStats{}, errors.New("root_path is required")
	}

	var (
		results []IngestionResult
		stats   DirStats
		order   []uuid.UUID
	)
	groups := map[string]uuid.UUID{}
	fresh := map[uuid.UUID]bool{}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			results = append(results, IngestionResult{SourcePath: path, Err: walkErr.Error()})
			stats.Failed++
			return nil
		}
		if path == root {
			return nil
		}
		stats.Scanned++
		if skipHidden && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !AllowedExt(filepath.Ext(path)) {
			return nil
		}
		stats.Matched++

		key := GroupKey(root, path)
		intakeID, ok := groups[key]
		if !ok {
			intake, err := i.submitter.CreateIntake(ctx, i.source)
			if err != nil {
				return fmt.Errorf("create intake for %s: %w", key, err)
			}
			intakeID = intake.ID
			groups[key] = intakeID
			order = append(order, intakeID)
			stats.Intakes++
			i.logger.Info("ingest.intake.opened", "group", key, "intake_id", intakeID)
		}

		r, err := i.IngestPath(ctx, intakeID, path)
		if err != nil {
			i.logger.Warn("ingest.file.failed", "path", path, "error", err)
			results = append(results, IngestionResult{SourcePath: path, IntakeID: intakeID, Err: err.Error()})
			stats.Failed++
			return nil
		}
		results = append(results, r)
		stats.Succeeded++
		if r.Deduplicated {
			stats.Deduplicated++
		} else {
			fresh[intakeID] = true
		}
		return nil
	})

	var touched []uuid.UUID
	for _, id := range order {
		if fresh[id] {
			touched = append(touched, id)
		}
	}
	if err != nil {
		return results, touched, stats, fmt.Errorf("walk: %w", err)
	}
	return results, touched, stats, nil
}
