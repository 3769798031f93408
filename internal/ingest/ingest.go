package ingest

import (
	"context"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/freight-intake/internal/core"
	"github.com/joseph-ayodele/freight-intake/internal/entity"
)

// IngestionResult is the per-file ingest outcome.
type IngestionResult struct {
	SourcePath   string
	IntakeID     uuid.UUID
	DocumentID   uuid.UUID
	Deduplicated bool
	Message      string
	Err          string
}

// DirStats summarizes a directory ingest.
type DirStats struct {
	Scanned      uint32
	Matched      uint32
	Succeeded    uint32
	Deduplicated uint32
	Failed       uint32
	Intakes      uint32
}

// Submitter is the slice of core.Processor the ingestor feeds.
type Submitter interface {
	CreateIntake(ctx context.Context, source string) (*entity.Intake, error)
	IngestFile(ctx context.Context, intakeID uuid.UUID, filename string, data []byte) (*core.IngestResult, error)
}
