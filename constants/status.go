package constants

// DocumentStatus is the processing state of a document row.
type DocumentStatus string

// Stable values (store these exact strings in DB).
const (
	DocumentStatusPending   DocumentStatus = "pending"
	DocumentStatusCompleted DocumentStatus = "completed"
	DocumentStatusFailed    DocumentStatus = "failed"
)

// IntakeStatus is the lifecycle state of an intake.
type IntakeStatus string

const (
	IntakeStatusPending    IntakeStatus = "pending"
	IntakeStatusProcessing IntakeStatus = "processing"
	IntakeStatusCompleted  IntakeStatus = "completed" // terminal
	IntakeStatusFailed     IntakeStatus = "failed"    // terminal
)

// IngestStatus is the outcome of submitting a document to an intake.
type IngestStatus string

const (
	IngestStatusCreated   IngestStatus = "created"
	IngestStatusDuplicate IngestStatus = "duplicate"
)
