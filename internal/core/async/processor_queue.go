package async

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/freight-intake/internal/common"
	"github.com/joseph-ayodele/freight-intake/internal/entity"
)

// IntakeProcessor is the slice of core.Processor the workers drive.
type IntakeProcessor interface {
	ProcessIntake(ctx context.Context, intakeID uuid.UUID) (*entity.AggregatedRecord, error)
}

// ResultFunc observes each finished job. It runs on the worker goroutine.
type ResultFunc func(job Job, rec *entity.AggregatedRecord, err error)

// ProcessorQueue is a bounded worker pool over intakes. Documents of one intake
// are parallelised inside the processor; this pool spreads separate intakes.
type ProcessorQueue struct {
	proc     IntakeProcessor
	logger   *slog.Logger
	workers  int
	timeout  time.Duration
	onResult ResultFunc

	ch      chan Job
	done    chan struct{} // closed by Shutdown; wakes senders blocked on a full buffer
	wg      sync.WaitGroup
	senders sync.WaitGroup
	once    sync.Once

	mu     sync.Mutex
	closed bool
}

var _ Queue = (*ProcessorQueue)(nil)

type Option func(*ProcessorQueue)

func WithWorkers(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}
func WithQueueSize(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}
func WithProcessTimeout(d time.Duration) Option {
	return func(q *ProcessorQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}
func WithResultFunc(fn ResultFunc) Option {
	return func(q *ProcessorQueue) { q.onResult = fn }
}

func NewProcessorQueue(proc IntakeProcessor, logger *slog.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &ProcessorQueue{
		proc:    proc,
		logger:  logger,
		workers: 2,
		timeout: 10 * time.Minute,
		ch:      make(chan Job, 64),
		done:    make(chan struct{}),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *ProcessorQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Debug("worker started", "worker_id", workerID)

				for job := range q.ch {
					q.run(workerID, job)
				}

				q.logger.Debug("worker stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *ProcessorQueue) run(workerID int, job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()
	ctx = common.WithIntakeID(ctx, job.IntakeID.String())
	if job.TraceID != "" {
		ctx = common.WithRequestID(ctx, job.TraceID)
	}

	rec, err := q.proc.ProcessIntake(ctx, job.IntakeID)
	if err != nil {
		q.logger.Error("intake processing failed", "worker_id", workerID, "intake_id", job.IntakeID, "error", err)
	} else {
		q.logger.Info("processed intake",
			"worker_id", workerID,
			"intake_id", job.IntakeID,
			"documents", rec.Metadata.DocumentCount,
			"wait_ms", time.Since(job.SubmittedAt).Milliseconds(),
		)
	}
	if q.onResult != nil {
		q.onResult(job, rec, err)
	}
}

// Enqueue blocks while the buffer is full, unless ctx ends or the queue shuts down first.
func (q *ProcessorQueue) Enqueue(ctx context.Context, job Job) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		q.logger.Warn("cannot enqueue: queue is shutting down", "intake_id", job.IntakeID)
		return ErrClosed
	}
	q.senders.Add(1)
	q.mu.Unlock()
	defer q.senders.Done()

	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	select {
	case q.ch <- job:
		q.logger.Debug("queued intake for processing", "intake_id", job.IntakeID)
		return nil
	default:
	}
	q.logger.Warn("queue full, applying backpressure", "intake_id", job.IntakeID)
	select {
	case q.ch <- job:
		return nil
	case <-q.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops intake of new jobs and waits for queued ones to drain or ctx to end.
func (q *ProcessorQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.done)
	q.mu.Unlock()

	// no sender can be mid-send once this returns, so closing ch is safe
	q.senders.Wait()
	close(q.ch)

	drained := make(chan struct{})
	go func() { defer close(drained); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("shutdown interrupted by context")
	case <-drained:
		q.logger.Info("queue drained, shutdown complete")
	}
}
