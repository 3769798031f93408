package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/joseph-ayodele/freight-intake/constants"
)

// Document is one physical file belonging to an Intake.
type Document struct {
	ID               uuid.UUID                `json:"id"`
	IntakeID         uuid.UUID                `json:"intake_id"`
	Filename         string                   `json:"filename"`
	MimeType         string                   `json:"mime_type"`
	StorageDisk      string                   `json:"storage_disk"`
	StoragePath      string                   `json:"storage_path"`
	Size             int64                    `json:"size"`
	HasTextLayer     *bool                    `json:"has_text_layer,omitempty"`
	ExtractionData   *ExtractionResult        `json:"extraction_data,omitempty"`
	SourceMessageID  *string                  `json:"source_message_id,omitempty"`
	SourceContentSHA *string                  `json:"source_content_sha,omitempty"`
	ProcessingStatus constants.DocumentStatus `json:"processing_status"`
	ErrorMessage     *string                  `json:"error_message,omitempty"`
	CreatedAt        time.Time                `json:"created_at"`
	UpdatedAt        time.Time                `json:"updated_at"`
}

// Format returns the coarse document family derived from the mime type, falling
// back to the filename extension.
func (d *Document) Format() constants.Format {
	if f := constants.MapMimeToFormat(d.MimeType); f != constants.FormatUnknown {
		return f
	}
	return constants.MapExtToFormat(extOf(d.Filename))
}

func extOf(name string) string {
	for i := len(name) - 1; i >= 0 && name[i] != '/'; i-- {
		if name[i] == '.' {
			return name[i:]
		}
	}
	return ""
}

// Fingerprint identifies an inbound email. It is derived, never persisted on its own.
type Fingerprint struct {
	MessageID  *string `json:"message_id"`
	ContentSHA string  `json:"content_sha"`
}
