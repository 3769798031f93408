package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/freight-intake/constants"
	"github.com/joseph-ayodele/freight-intake/internal/common"
	"github.com/joseph-ayodele/freight-intake/internal/core/aggregate"
	"github.com/joseph-ayodele/freight-intake/internal/core/dedup"
	"github.com/joseph-ayodele/freight-intake/internal/core/email"
	"github.com/joseph-ayodele/freight-intake/internal/core/extract"
	"github.com/joseph-ayodele/freight-intake/internal/core/normalize"
	"github.com/joseph-ayodele/freight-intake/internal/core/upload"
	"github.com/joseph-ayodele/freight-intake/internal/entity"
	"github.com/joseph-ayodele/freight-intake/internal/repository"
	"github.com/joseph-ayodele/freight-intake/internal/storage"
)

// ProcessorConfig bounds per-intake work.
type ProcessorConfig struct {
	Parallelism int    // documents processed concurrently within one intake
	WorkDir     string // parent of the per-document scratch directories
}

// IngestResult is the outcome of submitting a file to an intake.
type IngestResult struct {
	Status         constants.IngestStatus
	DocumentID     uuid.UUID
	Attachments    []uuid.UUID
	ExtractionData *entity.ExtractionResult
	Message        string
}

// Processor coordinates ingestion, per-document extraction and intake aggregation.
type Processor struct {
	logger     *slog.Logger
	normalizer *normalize.Normalizer
	text       extract.TextExtractor
	selector   *extract.Selector
	dedup      *dedup.Deduplicator
	aggregator *aggregate.Aggregator
	storage    *storage.Storage
	docs       repository.DocumentRepository
	intakes    repository.IntakeRepository
	uploads    *upload.Manager
	cfg        ProcessorConfig
	now        func() time.Time
}

type ProcessorOption func(*Processor)

// WithUploads enables UploadDocument.
func WithUploads(m *upload.Manager) ProcessorOption {
	return func(p *Processor) { p.uploads = m }
}

func WithClock(now func() time.Time) ProcessorOption {
	return func(p *Processor) {
		if now != nil {
			p.now = now
		}
	}
}

func NewProcessor(
	logger *slog.Logger,
	normalizer *normalize.Normalizer,
	text extract.TextExtractor,
	selector *extract.Selector,
	dd *dedup.Deduplicator,
	aggregator *aggregate.Aggregator,
	store *storage.Storage,
	docs repository.DocumentRepository,
	intakes repository.IntakeRepository,
	cfg ProcessorConfig,
	opts ...ProcessorOption,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 4
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = os.TempDir()
	}
	p := &Processor{
		logger:     logger,
		normalizer: normalizer,
		text:       text,
		selector:   selector,
		dedup:      dd,
		aggregator: aggregator,
		storage:    store,
		docs:       docs,
		intakes:    intakes,
		cfg:        cfg,
		now:        time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// CreateIntake opens a new, empty intake.
func (p *Processor) CreateIntake(ctx context.Context, source string) (*entity.Intake, error) {
	in := &entity.Intake{Source: source, Status: constants.IntakeStatusPending}
	if err := p.intakes.Create(ctx, in); err != nil {
		return nil, err
	}
	p.logger.Info("intake.created", "intake_id", in.ID, "source", source)
	return in, nil
}

// IngestFile stores data as a new document of the intake. Emails are routed
// through IngestEmail so that they are fingerprinted and their attachments split out.
func (p *Processor) IngestFile(ctx context.Context, intakeID uuid.UUID, filename string, data []byte) (*IngestResult, error) {
	mime := normalize.DetectBytes(data, filename)
	if mime == constants.MimeEmail {
		return p.IngestEmail(ctx, intakeID, filename, data)
	}
	intake, err := p.intakes.GetByID(ctx, intakeID)
	if err != nil {
		return nil, err
	}
	doc, err := p.storeDocument(ctx, intakeID, filename, mime, data, nil)
	if err != nil {
		return nil, err
	}
	if err := p.bumpCounters(ctx, intake, 1); err != nil {
		return nil, err
	}
	p.logger.Info("ingest.file.stored", "intake_id", intakeID, "doc_id", doc.ID, "filename", doc.Filename, "mime", mime)
	return &IngestResult{Status: constants.IngestStatusCreated, DocumentID: doc.ID}, nil
}

// IngestEmail fingerprints raw, rejects it when the duplicate guard matches, and
// otherwise stores the message and each attachment as documents of the intake.
func (p *Processor) IngestEmail(ctx context.Context, intakeID uuid.UUID, filename string, raw []byte) (*IngestResult, error) {
	intake, err := p.intakes.GetByID(ctx, intakeID)
	if err != nil {
		return nil, err
	}
	fp, msg, err := dedup.Fingerprint(raw)
	if err != nil {
		return nil, common.NewAppError("INVALID_EMAIL", "cannot parse email", errors.Join(common.ErrInvalidInput, err))
	}

	match, err := p.dedup.Guard(ctx, fp, intakeID)
	if err != nil {
		return nil, err
	}
	if match != nil {
		return &IngestResult{
			Status:         constants.IngestStatusDuplicate,
			DocumentID:     match.Document.ID,
			ExtractionData: match.Document.ExtractionData,
			Message:        match.Message,
		}, nil
	}

	if filename == "" {
		filename = "message.eml"
	}
	// All blobs are stored before any row exists; rows land in one transaction.
	doc, err := p.stage(ctx, intakeID, filename, constants.MimeEmail, raw, &fp)
	if err != nil {
		return nil, err
	}
	staged := []*entity.Document{doc}
	for i, att := range msg.Attachments {
		name := att.Filename
		if name == "" {
			name = fmt.Sprintf("attachment-%d", i+1)
		}
		mime := att.ContentType
		if mime == "" || mime == constants.MimeOctet {
			mime = normalize.DetectBytes(att.Data, name)
		}
		child, err := p.stage(ctx, intakeID, name, mime, att.Data, nil)
		if err != nil {
			p.discard(staged)
			return nil, fmt.Errorf("store attachment %q: %w", name, err)
		}
		staged = append(staged, child)
	}
	if err := p.docs.CreateMany(ctx, staged); err != nil {
		p.discard(staged)
		return nil, err
	}

	res := &IngestResult{Status: constants.IngestStatusCreated, DocumentID: doc.ID}
	for _, child := range staged[1:] {
		res.Attachments = append(res.Attachments, child.ID)
	}

	if err := p.bumpCounters(ctx, intake, 1+len(res.Attachments)); err != nil {
		return nil, err
	}
	p.logger.Info("ingest.email.stored",
		"intake_id", intakeID,
		"doc_id", doc.ID,
		"message_id", msg.MessageID,
		"attachments", len(res.Attachments),
	)
	return res, nil
}

func (p *Processor) storeDocument(ctx context.Context, intakeID uuid.UUID, filename, mime string, data []byte, fp *entity.Fingerprint) (*entity.Document, error) {
	doc, err := p.stage(ctx, intakeID, filename, mime, data, fp)
	if err != nil {
		return nil, err
	}
	if err := p.docs.Create(ctx, doc); err != nil {
		p.discard([]*entity.Document{doc})
		return nil, err
	}
	return doc, nil
}

// stage writes the blob of a new document without creating its row.
func (p *Processor) stage(ctx context.Context, intakeID uuid.UUID, filename, mime string, data []byte, fp *entity.Fingerprint) (*entity.Document, error) {
	doc := &entity.Document{
		ID:               uuid.New(),
		IntakeID:         intakeID,
		Filename:         filepath.Base(filename),
		MimeType:         mime,
		StorageDisk:      p.storage.DefaultDisk(),
		Size:             int64(len(data)),
		ProcessingStatus: constants.DocumentStatusPending,
		CreatedAt:        p.now().UTC(),
	}
	if fp != nil {
		doc.SourceMessageID = fp.MessageID
		sha := fp.ContentSHA
		doc.SourceContentSHA = &sha
	}
	path := fmt.Sprintf("intakes/%s/%s-%s", intakeID, doc.ID, doc.Filename)
	stored, err := p.storage.Put(ctx, doc.StorageDisk, path, data)
	if err != nil {
		return nil, fmt.Errorf("store %s: %w", doc.Filename, err)
	}
	doc.StoragePath = stored
	return doc, nil
}

// discard removes blobs of documents whose rows were never created.
func (p *Processor) discard(docs []*entity.Document) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, d := range docs {
		if err := p.storage.Delete(ctx, d.StorageDisk, d.StoragePath); err != nil {
			p.logger.Warn("ingest.discard_failed", "doc_id", d.ID, "path", d.StoragePath, "error", err)
		}
	}
}

func (p *Processor) bumpCounters(ctx context.Context, intake *entity.Intake, added int) error {
	intake.TotalDocuments += added
	intake.IsMultiDocument = intake.TotalDocuments > 1
	if intake.Status == constants.IntakeStatusCompleted || intake.Status == constants.IntakeStatusFailed {
		intake.Status = constants.IntakeStatusPending
	}
	return p.intakes.Update(ctx, intake)
}

// ProcessDocument extracts structured data for one stored document and persists
// the result. A document without usable data is marked failed; a rate-limited
// document stays pending and the error is returned so the caller can retry later.
func (p *Processor) ProcessDocument(ctx context.Context, docID uuid.UUID) (*entity.Document, error) {
	doc, err := p.docs.GetByID(ctx, docID)
	if err != nil {
		return nil, err
	}
	return doc, p.processDocument(ctx, doc)
}

func (p *Processor) processDocument(ctx context.Context, doc *entity.Document) error {
	logger := p.logger.With("doc_id", doc.ID, "intake_id", doc.IntakeID, "filename", doc.Filename)
	start := p.now()

	dir, err := os.MkdirTemp(p.cfg.WorkDir, "doc-"+doc.ID.String()[:8]+"-")
	if err != nil {
		return fmt.Errorf("work dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(dir) }()

	local, err := p.fetch(ctx, doc, dir)
	if err != nil {
		return p.fail(ctx, doc, logger, fmt.Errorf("fetch: %w", err))
	}
	if doc.MimeType == "" || doc.MimeType == constants.MimeOctet {
		doc.MimeType = normalize.DetectMime(local, doc.Filename)
	}

	art, err := p.normalizer.Normalize(ctx, normalize.Input{
		Path:     local,
		Filename: doc.Filename,
		MimeType: doc.MimeType,
		OutDir:   dir,
	})
	if err != nil {
		return p.fail(ctx, doc, logger, fmt.Errorf("normalize: %w", err))
	}

	text, err := p.textFor(ctx, doc, art)
	if err != nil {
		return p.fail(ctx, doc, logger, err)
	}
	if strings.TrimSpace(text) == "" {
		return p.fail(ctx, doc, logger, errors.New("no text extracted"))
	}

	out, err := p.selector.Extract(ctx, extract.Input{
		Text:     text,
		Filename: doc.Filename,
		Format:   string(doc.Format()),
	})
	if err != nil {
		if errors.Is(err, common.ErrRateLimited) || errors.Is(err, context.Canceled) {
			logger.Warn("processor.document.deferred", "error", err)
			return err
		}
		return p.fail(ctx, doc, logger, err)
	}
	if out.Data.IsEmpty() {
		return p.fail(ctx, doc, logger, errors.New("no shipment data found"))
	}

	doc.ExtractionData = out.ToResult(p.now())
	doc.ProcessingStatus = constants.DocumentStatusCompleted
	doc.ErrorMessage = nil
	if err := p.docs.UpdateResult(ctx, doc); err != nil {
		return err
	}
	logger.Info("processor.document.done",
		"method", doc.ExtractionData.Metadata.Method,
		"provider", out.Provider,
		"source_tag", art.SourceTag,
		"duration_ms", p.now().Sub(start).Milliseconds(),
	)
	return nil
}

func (p *Processor) fetch(ctx context.Context, doc *entity.Document, dir string) (string, error) {
	data, err := p.storage.Get(ctx, doc.StorageDisk, doc.StoragePath)
	if err != nil {
		return "", err
	}
	local := filepath.Join(dir, filepath.Base(doc.Filename))
	if err := os.WriteFile(local, data, 0o600); err != nil {
		return "", err
	}
	return local, nil
}

// textFor reads email bodies directly and sends everything else through OCR.
func (p *Processor) textFor(ctx context.Context, doc *entity.Document, art *normalize.Artifact) (string, error) {
	if art.MimeType == constants.MimeEmail {
		raw, err := os.ReadFile(art.Path)
		if err != nil {
			return "", err
		}
		msg, err := email.Parse(raw)
		if err != nil {
			return "", fmt.Errorf("parse email: %w", err)
		}
		has := true
		doc.HasTextLayer = &has
		return strings.TrimSpace(msg.Subject + "\n\n" + msg.Body()), nil
	}
	if p.text == nil {
		return "", errors.New("no text extractor configured")
	}
	res, err := p.text.Extract(ctx, doc, art.Path)
	if err != nil {
		return "", fmt.Errorf("ocr: %w", err)
	}
	for _, w := range res.Warnings {
		p.logger.Debug("processor.ocr.warning", "doc_id", doc.ID, "warning", w)
	}
	return res.Text, nil
}

// fail records err on the document and marks it failed. The returned error is
// nil once the failure is persisted; the document outcome is on doc.
func (p *Processor) fail(ctx context.Context, doc *entity.Document, logger *slog.Logger, cause error) error {
	msg := cause.Error()
	doc.ProcessingStatus = constants.DocumentStatusFailed
	doc.ErrorMessage = &msg
	doc.ExtractionData = nil
	logger.Warn("processor.document.failed", "error", cause)
	if err := p.docs.UpdateResult(ctx, doc); err != nil {
		return fmt.Errorf("record failure: %w", err)
	}
	return nil
}

// ProcessIntake processes the intake's pending documents concurrently and then
// merges every document into the intake record.
func (p *Processor) ProcessIntake(ctx context.Context, intakeID uuid.UUID) (*entity.AggregatedRecord, error) {
	intake, err := p.intakes.GetByID(ctx, intakeID)
	if err != nil {
		return nil, err
	}
	pending, err := p.docs.ListByStatus(ctx, intakeID, constants.DocumentStatusPending)
	if err != nil {
		return nil, err
	}
	if len(pending) > 0 {
		intake.Status = constants.IntakeStatusProcessing
		if err := p.intakes.Update(ctx, intake); err != nil {
			return nil, err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Parallelism)
	for _, doc := range pending {
		g.Go(func() error {
			err := p.processDocument(gctx, doc)
			if err == nil {
				return nil
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			// Left pending; the next run picks it up.
			p.logger.Error("processor.document.error", "doc_id", doc.ID, "error", err)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	rec, err := p.aggregator.Aggregate(ctx, intakeID)
	if err != nil {
		return nil, fmt.Errorf("aggregate: %w", err)
	}
	p.logger.Info("processor.intake.done", "intake_id", intakeID, "processed", len(pending), "contributing", rec.Metadata.DocumentCount)
	return rec, nil
}

// UploadDocument normalizes a stored document and hands it to the CRM exactly once per offer.
func (p *Processor) UploadDocument(ctx context.Context, docID uuid.UUID, offerID string) (*upload.Result, error) {
	if p.uploads == nil {
		return nil, common.NewAppError("UPLOAD_DISABLED", "no uploader configured", common.ErrInvalidInput)
	}
	doc, err := p.docs.GetByID(ctx, docID)
	if err != nil {
		return nil, err
	}
	dir, err := os.MkdirTemp(p.cfg.WorkDir, "upload-"+doc.ID.String()[:8]+"-")
	if err != nil {
		return nil, fmt.Errorf("work dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(dir) }()

	local, err := p.fetch(ctx, doc, dir)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	art, err := p.normalizer.Normalize(ctx, normalize.Input{Path: local, Filename: doc.Filename, MimeType: doc.MimeType, OutDir: dir})
	if err != nil {
		return nil, fmt.Errorf("normalize: %w", err)
	}
	return p.uploads.EnsureUploadedOnce(ctx, upload.Request{
		DocumentID:   doc.ID,
		OfferID:      offerID,
		ArtifactPath: art.Path,
		Filename:     art.Filename,
		MimeType:     art.MimeType,
		Converted:    art.Converted,
		SourcePath:   local,
	})
}
