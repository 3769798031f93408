// Package aggregate merges the per-document extraction results of one intake.
package aggregate

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/freight-intake/constants"
	"github.com/joseph-ayodele/freight-intake/internal/entity"
)

type DocumentLister interface {
	ListByIntake(ctx context.Context, intakeID uuid.UUID) ([]*entity.Document, error)
}

type IntakeStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Intake, error)
	Update(ctx context.Context, intake *entity.Intake) error
}

// Priority ranks a document format; higher sources win field conflicts.
func Priority(f constants.Format) int {
	switch f {
	case constants.FormatEmail:
		return 3
	case constants.FormatPDF:
		return 2
	case constants.FormatImage:
		return 1
	default:
		return 0
	}
}

// Merge folds documents into one record. Documents without extraction data are skipped.
// The result depends only on the input set, not its order.
func Merge(docs []*entity.Document) *entity.AggregatedRecord {
	type ranked struct {
		doc      *entity.Document
		format   constants.Format
		priority int
	}
	var sources []ranked
	for _, d := range docs {
		if d == nil || d.ExtractionData == nil {
			continue
		}
		f := d.Format()
		sources = append(sources, ranked{doc: d, format: f, priority: Priority(f)})
	}
	sort.SliceStable(sources, func(i, j int) bool {
		a, b := sources[i], sources[j]
		if a.priority != b.priority {
			return a.priority > b.priority
		}
		if !a.doc.CreatedAt.Equal(b.doc.CreatedAt) {
			return a.doc.CreatedAt.Before(b.doc.CreatedAt)
		}
		return bytes.Compare(a.doc.ID[:], b.doc.ID[:]) < 0
	})

	var (
		data   entity.ExtractionData
		sum    float64
		scored int
	)
	rec := &entity.AggregatedRecord{
		Metadata: entity.AggregateMetadata{Sources: make([]entity.SourceRef, 0, len(sources))},
	}
	for _, s := range sources {
		data.FillFrom(s.doc.ExtractionData.Data)
		rec.Metadata.Sources = append(rec.Metadata.Sources, entity.SourceRef{
			DocumentID: s.doc.ID,
			Filename:   s.doc.Filename,
			Type:       strings.ToLower(string(s.format)),
			Priority:   s.priority,
		})
		if c := s.doc.ExtractionData.Metadata.Confidence; c != nil {
			sum += *c
			scored++
		}
	}
	if scored > 0 {
		mean := sum / float64(scored)
		rec.Metadata.Confidence = &mean
	}
	rec.Metadata.DocumentCount = len(sources)
	rec.Contact = data.Contact
	rec.Shipment = data.Shipment
	rec.Vehicle = data.Vehicle
	rec.Cargo = data.Cargo
	rec.Route = data.Route
	return rec
}

type Aggregator struct {
	docs    DocumentLister
	intakes IntakeStore
	logger  *slog.Logger
}

func NewAggregator(docs DocumentLister, intakes IntakeStore, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{docs: docs, intakes: intakes, logger: logger}
}

// Aggregate recomputes the intake's record from its documents and persists it with
// refreshed counters and status. Re-running it without new documents is a no-op.
func (a *Aggregator) Aggregate(ctx context.Context, intakeID uuid.UUID) (*entity.AggregatedRecord, error) {
	intake, err := a.intakes.GetByID(ctx, intakeID)
	if err != nil {
		return nil, fmt.Errorf("load intake: %w", err)
	}
	docs, err := a.docs.ListByIntake(ctx, intakeID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	rec := Merge(docs)

	pending := 0
	for _, d := range docs {
		if d.ProcessingStatus == constants.DocumentStatusPending {
			pending++
		}
	}
	intake.AggregatedExtractionData = rec
	intake.TotalDocuments = len(docs)
	intake.ProcessedDocuments = len(docs) - pending
	intake.IsMultiDocument = len(docs) > 1
	switch {
	case pending > 0:
		intake.Status = constants.IntakeStatusProcessing
	case rec.Metadata.DocumentCount > 0:
		intake.Status = constants.IntakeStatusCompleted
	default:
		intake.Status = constants.IntakeStatusFailed
	}

	if err := a.intakes.Update(ctx, intake); err != nil {
		return nil, fmt.Errorf("save aggregate: %w", err)
	}
	a.logger.Info("aggregate.done",
		"intake_id", intakeID,
		"documents", len(docs),
		"contributing", rec.Metadata.DocumentCount,
		"pending", pending,
		"status", intake.Status,
	)
	return rec, nil
}
