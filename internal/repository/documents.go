package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/freight-intake/constants"
	"github.com/joseph-ayodele/freight-intake/internal/common"
	"github.com/joseph-ayodele/freight-intake/internal/entity"
)

type DocumentRepository interface {
	Create(ctx context.Context, doc *entity.Document) error
	// CreateMany inserts all docs in one transaction; either every row lands or none does.
	CreateMany(ctx context.Context, docs []*entity.Document) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Document, error)
	ListByIntake(ctx context.Context, intakeID uuid.UUID) ([]*entity.Document, error)
	ListByStatus(ctx context.Context, intakeID uuid.UUID, status constants.DocumentStatus) ([]*entity.Document, error)
	UpdateResult(ctx context.Context, doc *entity.Document) error
	FindByMessageID(ctx context.Context, messageID string, intakeID *uuid.UUID) (*entity.Document, error)
	FindByContentSHA(ctx context.Context, sha string, intakeID *uuid.UUID) (*entity.Document, error)
}

type documentRepo struct {
	db     *DB
	logger *slog.Logger
	now    func() time.Time
}

func NewDocumentRepository(db *DB, logger *slog.Logger) DocumentRepository {
	return &documentRepo{
		db:     db,
		logger: logger,
		now:    time.Now,
	}
}

const documentColumns = `id, intake_id, filename, mime_type, storage_disk, storage_path, size, has_text_layer,
	extraction_data, source_message_id, source_content_sha, processing_status, error_message, created_at, updated_at`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *documentRepo) Create(ctx context.Context, doc *entity.Document) error {
	return r.insert(ctx, r.db.SQL, doc)
}

func (r *documentRepo) CreateMany(ctx context.Context, docs []*entity.Document) error {
	tx, err := r.db.SQL.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", common.ErrDatabase, err)
	}
	for _, doc := range docs {
		if err := r.insert(ctx, tx, doc); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", common.ErrDatabase, err)
	}
	return nil
}

func (r *documentRepo) insert(ctx context.Context, ex execer, doc *entity.Document) error {
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	now := r.now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now
	if doc.ProcessingStatus == "" {
		doc.ProcessingStatus = constants.DocumentStatusPending
	}
	data, err := encodeJSON(doc.ExtractionData)
	if err != nil {
		return err
	}

	_, err = ex.ExecContext(ctx, r.db.rebind(`INSERT INTO documents (`+documentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		doc.ID, doc.IntakeID, doc.Filename, doc.MimeType, doc.StorageDisk, doc.StoragePath, doc.Size,
		nullBool(doc.HasTextLayer), data, doc.SourceMessageID, doc.SourceContentSHA,
		string(doc.ProcessingStatus), doc.ErrorMessage, doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		r.logger.Error("failed to create document", "intake_id", doc.IntakeID, "filename", doc.Filename, "error", err)
		return fmt.Errorf("%w: insert document: %v", common.ErrDatabase, err)
	}
	return nil
}

func (r *documentRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.Document, error) {
	row := r.db.SQL.QueryRowContext(ctx, r.db.rebind(`SELECT `+documentColumns+` FROM documents WHERE id = ?`), id)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %s: %w", id, common.ErrNotFound)
	}
	return doc, err
}

func (r *documentRepo) ListByIntake(ctx context.Context, intakeID uuid.UUID) ([]*entity.Document, error) {
	return r.query(ctx, `SELECT `+documentColumns+` FROM documents WHERE intake_id = ? ORDER BY created_at, id`, intakeID)
}

func (r *documentRepo) ListByStatus(ctx context.Context, intakeID uuid.UUID, status constants.DocumentStatus) ([]*entity.Document, error) {
	return r.query(ctx, `SELECT `+documentColumns+` FROM documents WHERE intake_id = ? AND processing_status = ? ORDER BY created_at, id`,
		intakeID, string(status))
}

// UpdateResult persists the pipeline-owned fields of doc.
func (r *documentRepo) UpdateResult(ctx context.Context, doc *entity.Document) error {
	data, err := encodeJSON(doc.ExtractionData)
	if err != nil {
		return err
	}
	doc.UpdatedAt = r.now().UTC()
	res, err := r.db.SQL.ExecContext(ctx, r.db.rebind(`UPDATE documents
		SET has_text_layer = ?, extraction_data = ?, processing_status = ?, error_message = ?, mime_type = ?, updated_at = ?
		WHERE id = ?`),
		nullBool(doc.HasTextLayer), data, string(doc.ProcessingStatus), doc.ErrorMessage, doc.MimeType, doc.UpdatedAt, doc.ID)
	if err != nil {
		r.logger.Error("failed to update document", "doc_id", doc.ID, "error", err)
		return fmt.Errorf("%w: update document: %v", common.ErrDatabase, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("document %s: %w", doc.ID, common.ErrNotFound)
	}
	return nil
}

func (r *documentRepo) FindByMessageID(ctx context.Context, messageID string, intakeID *uuid.UUID) (*entity.Document, error) {
	return r.findOne(ctx, "source_message_id", messageID, intakeID)
}

func (r *documentRepo) FindByContentSHA(ctx context.Context, sha string, intakeID *uuid.UUID) (*entity.Document, error) {
	return r.findOne(ctx, "source_content_sha", sha, intakeID)
}

// findOne returns the oldest document matching column = value, or nil.
func (r *documentRepo) findOne(ctx context.Context, column, value string, intakeID *uuid.UUID) (*entity.Document, error) {
	q := `SELECT ` + documentColumns + ` FROM documents WHERE ` + column + ` = ?`
	args := []any{value}
	if intakeID != nil {
		q += ` AND intake_id = ?`
		args = append(args, *intakeID)
	}
	q += ` ORDER BY created_at, id LIMIT 1`
	doc, err := scanDocument(r.db.SQL.QueryRowContext(ctx, r.db.rebind(q), args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return doc, err
}

func (r *documentRepo) query(ctx context.Context, q string, args ...any) ([]*entity.Document, error) {
	rows, err := r.db.SQL.QueryContext(ctx, r.db.rebind(q), args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query documents: %v", common.ErrDatabase, err)
	}
	defer func() { _ = rows.Close() }()

	var out []*entity.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(s scanner) (*entity.Document, error) {
	var (
		doc       entity.Document
		textLayer sql.NullBool
		data      sql.NullString
		msgID     sql.NullString
		sha       sql.NullString
		status    string
		errMsg    sql.NullString
	)
	err := s.Scan(&doc.ID, &doc.IntakeID, &doc.Filename, &doc.MimeType, &doc.StorageDisk, &doc.StoragePath, &doc.Size,
		&textLayer, &data, &msgID, &sha, &status, &errMsg, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if textLayer.Valid {
		v := textLayer.Bool
		doc.HasTextLayer = &v
	}
	if data.Valid && data.String != "" {
		var res entity.ExtractionResult
		if err := json.Unmarshal([]byte(data.String), &res); err != nil {
			return nil, fmt.Errorf("decode extraction_data for %s: %w", doc.ID, err)
		}
		doc.ExtractionData = &res
	}
	doc.SourceMessageID = nullString(msgID)
	doc.SourceContentSHA = nullString(sha)
	doc.ErrorMessage = nullString(errMsg)
	doc.ProcessingStatus = constants.DocumentStatus(status)
	return &doc, nil
}

func encodeJSON(v any) (sql.NullString, error) {
	switch t := v.(type) {
	case *entity.ExtractionResult:
		if t == nil {
			return sql.NullString{}, nil
		}
	case *entity.AggregatedRecord:
		if t == nil {
			return sql.NullString{}, nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encode json: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func nullBool(b *bool) sql.NullBool {
	if b == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *b, Valid: true}
}

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
