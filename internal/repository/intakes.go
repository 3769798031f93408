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

type IntakeRepository interface {
	Create(ctx context.Context, intake *entity.Intake) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Intake, error)
	List(ctx context.Context, limit int) ([]*entity.Intake, error)
	Update(ctx context.Context, intake *entity.Intake) error
}

type intakeRepo struct {
	db     *DB
	logger *slog.Logger
	now    func() time.Time
}

func NewIntakeRepository(db *DB, logger *slog.Logger) IntakeRepository {
	return &intakeRepo{
		db:     db,
		logger: logger,
		now:    time.Now,
	}
}

const intakeColumns = `id, status, source, is_multi_document, total_documents, processed_documents,
	aggregated_extraction_data, created_at, updated_at`

func (r *intakeRepo) Create(ctx context.Context, in *entity.Intake) error {
	if in.ID == uuid.Nil {
		in.ID = uuid.New()
	}
	now := r.now().UTC()
	if in.CreatedAt.IsZero() {
		in.CreatedAt = now
	}
	in.UpdatedAt = now
	if in.Status == "" {
		in.Status = constants.IntakeStatusPending
	}
	agg, err := encodeJSON(in.AggregatedExtractionData)
	if err != nil {
		return err
	}
	_, err = r.db.SQL.ExecContext(ctx, r.db.rebind(`INSERT INTO intakes (`+intakeColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		in.ID, string(in.Status), in.Source, in.IsMultiDocument, in.TotalDocuments, in.ProcessedDocuments,
		agg, in.CreatedAt, in.UpdatedAt)
	if err != nil {
		r.logger.Error("failed to create intake", "intake_id", in.ID, "error", err)
		return fmt.Errorf("%w: insert intake: %v", common.ErrDatabase, err)
	}
	return nil
}

func (r *intakeRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.Intake, error) {
	in, err := scanIntake(r.db.SQL.QueryRowContext(ctx, r.db.rebind(`SELECT `+intakeColumns+` FROM intakes WHERE id = ?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("intake %s: %w", id, common.ErrNotFound)
	}
	return in, err
}

func (r *intakeRepo) List(ctx context.Context, limit int) ([]*entity.Intake, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.SQL.QueryContext(ctx, r.db.rebind(`SELECT `+intakeColumns+` FROM intakes ORDER BY created_at DESC, id LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("%w: list intakes: %v", common.ErrDatabase, err)
	}
	defer func() { _ = rows.Close() }()

	var out []*entity.Intake
	for rows.Next() {
		in, err := scanIntake(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

func (r *intakeRepo) Update(ctx context.Context, in *entity.Intake) error {
	agg, err := encodeJSON(in.AggregatedExtractionData)
	if err != nil {
		return err
	}
	in.UpdatedAt = r.now().UTC()
	res, err := r.db.SQL.ExecContext(ctx, r.db.rebind(`UPDATE intakes
		SET status = ?, source = ?, is_multi_document = ?, total_documents = ?, processed_documents = ?,
		    aggregated_extraction_data = ?, updated_at = ?
		WHERE id = ?`),
		string(in.Status), in.Source, in.IsMultiDocument, in.TotalDocuments, in.ProcessedDocuments, agg, in.UpdatedAt, in.ID)
	if err != nil {
		r.logger.Error("failed to update intake", "intake_id", in.ID, "error", err)
		return fmt.Errorf("%w: update intake: %v", common.ErrDatabase, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("intake %s: %w", in.ID, common.ErrNotFound)
	}
	return nil
}

func scanIntake(s scanner) (*entity.Intake, error) {
	var (
		in     entity.Intake
		status string
		agg    sql.NullString
	)
	err := s.Scan(&in.ID, &status, &in.Source, &in.IsMultiDocument, &in.TotalDocuments, &in.ProcessedDocuments,
		&agg, &in.CreatedAt, &in.UpdatedAt)
	if err != nil {
		return nil, err
	}
	in.Status = constants.IntakeStatus(status)
	if agg.Valid && agg.String != "" {
		var rec entity.AggregatedRecord
		if err := json.Unmarshal([]byte(agg.String), &rec); err != nil {
			return nil, fmt.Errorf("decode aggregated_extraction_data for %s: %w", in.ID, err)
		}
		in.AggregatedExtractionData = &rec
	}
	return &in, nil
}
