package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/joseph-ayodele/freight-intake/constants"
)

// Intake is the aggregate representing one shipping request.
type Intake struct {
	ID                       uuid.UUID              `json:"id"`
	Status                   constants.IntakeStatus `json:"status"`
	Source                   string                 `json:"source"`
	IsMultiDocument          bool                   `json:"is_multi_document"`
	TotalDocuments           int                    `json:"total_documents"`
	ProcessedDocuments       int                    `json:"processed_documents"`
	AggregatedExtractionData *AggregatedRecord      `json:"aggregated_extraction_data,omitempty"`
	CreatedAt                time.Time              `json:"created_at"`
	UpdatedAt                time.Time              `json:"updated_at"`
}

// SourceRef is one entry of an aggregated record's source manifest.
type SourceRef struct {
	DocumentID uuid.UUID `json:"document_id"`
	Filename   string    `json:"filename"`
	Type       string    `json:"type"`
	Priority   int       `json:"priority"`
}

// AggregateMetadata describes how an AggregatedRecord was assembled.
type AggregateMetadata struct {
	Sources       []SourceRef `json:"sources"`
	Confidence    *float64    `json:"confidence"`
	DocumentCount int         `json:"document_count"`
}

// AggregatedRecord is the canonical merged view of an intake's documents.
// It carries no timestamps so that recomputation is byte-identical.
type AggregatedRecord struct {
	Contact  Contact           `json:"contact"`
	Shipment Shipment          `json:"shipment"`
	Vehicle  Vehicle           `json:"vehicle"`
	Cargo    Cargo             `json:"cargo"`
	Route    Route             `json:"route"`
	Metadata AggregateMetadata `json:"metadata"`
}

// Data returns the merged sections as ExtractionData.
func (r *AggregatedRecord) Data() ExtractionData {
	return ExtractionData{
		Contact:  r.Contact,
		Shipment: r.Shipment,
		Vehicle:  r.Vehicle,
		Cargo:    r.Cargo,
		Route:    r.Route,
	}
}
