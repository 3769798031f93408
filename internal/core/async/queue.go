package async

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrClosed is returned by Enqueue after Shutdown.
var ErrClosed = errors.New("async: queue is shutting down")

// Job asks for one intake to be processed end to end.
type Job struct {
	IntakeID    uuid.UUID
	SubmittedAt time.Time
	TraceID     string
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}
