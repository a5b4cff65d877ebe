package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/legalworks/docflow/internal/application/port"
	"github.com/legalworks/docflow/internal/domain/entity"
	"github.com/legalworks/docflow/internal/infrastructure/persistence/sqlite"
)

// AgreementRepository implements port.AgreementRepository
type AgreementRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewAgreementRepository creates a new agreement repository
func NewAgreementRepository(db *sqlite.DB, logger *zap.Logger) port.AgreementRepository {
	return &AgreementRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new agreement overview
func (r *AgreementRepository) Create(ctx context.Context, agr *entity.AgreementOverview) error {
	query := `
		INSERT INTO agreement_overviews (
			request_id, title, requester_id, requester_name, division,
			status, is_draft
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	var requestID interface{}
	if agr.RequestID != 0 {
		requestID = agr.RequestID
	}

	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		requestID,
		agr.Title,
		agr.RequesterID,
		agr.RequesterName,
		agr.Division,
		agr.Status,
		agr.IsDraft,
	)
	if err != nil {
		r.logger.Error("Failed to create agreement", zap.Error(err))
		return fmt.Errorf("failed to create agreement: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	agr.ID = id
	return nil
}

// GetByID retrieves an agreement by ID. Returns (nil, nil) when absent.
func (r *AgreementRepository) GetByID(ctx context.Context, id int64) (*entity.AgreementOverview, error) {
	query := selectAgreement + ` WHERE id = ?`

	agr, err := scanAgreement(r.db.Executor(ctx).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get agreement", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get agreement: %w", err)
	}
	return agr, nil
}

// GetByRequestID retrieves the agreement created from a document request
func (r *AgreementRepository) GetByRequestID(ctx context.Context, requestID int64) (*entity.AgreementOverview, error) {
	query := selectAgreement + ` WHERE request_id = ?`

	agr, err := scanAgreement(r.db.Executor(ctx).QueryRowContext(ctx, query, requestID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get agreement by request", zap.Int64("request_id", requestID), zap.Error(err))
		return nil, fmt.Errorf("failed to get agreement by request: %w", err)
	}
	return agr, nil
}

// UpdateStatus updates the status and draft flag of an agreement
func (r *AgreementRepository) UpdateStatus(ctx context.Context, id int64, status string, isDraft bool) error {
	query := `UPDATE agreement_overviews SET status = ?, is_draft = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`

	_, err := r.db.Executor(ctx).ExecContext(ctx, query, status, isDraft, id)
	if err != nil {
		r.logger.Error("Failed to update agreement status", zap.Int64("id", id), zap.String("status", status), zap.Error(err))
		return fmt.Errorf("failed to update agreement status: %w", err)
	}
	return nil
}

// SetSubmittedAt sets the submission time
func (r *AgreementRepository) SetSubmittedAt(ctx context.Context, id int64, t time.Time) error {
	query := `UPDATE agreement_overviews SET submitted_at = ? WHERE id = ?`

	_, err := r.db.Executor(ctx).ExecContext(ctx, query, t, id)
	if err != nil {
		r.logger.Error("Failed to set agreement submitted time", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to set agreement submitted time: %w", err)
	}
	return nil
}

// SetCompletedAt sets the completion time
func (r *AgreementRepository) SetCompletedAt(ctx context.Context, id int64, t time.Time) error {
	query := `UPDATE agreement_overviews SET completed_at = ? WHERE id = ?`

	_, err := r.db.Executor(ctx).ExecContext(ctx, query, t, id)
	if err != nil {
		r.logger.Error("Failed to set agreement completed time", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to set agreement completed time: %w", err)
	}
	return nil
}

// SetRejectReason records the rejection reason
func (r *AgreementRepository) SetRejectReason(ctx context.Context, id int64, reason string) error {
	query := `UPDATE agreement_overviews SET reject_reason = ? WHERE id = ?`

	_, err := r.db.Executor(ctx).ExecContext(ctx, query, reason, id)
	if err != nil {
		r.logger.Error("Failed to set agreement reject reason", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to set agreement reject reason: %w", err)
	}
	return nil
}

// List retrieves agreements with pagination, newest first
func (r *AgreementRepository) List(ctx context.Context, limit, offset int) ([]*entity.AgreementOverview, error) {
	query := selectAgreement + ` ORDER BY created_at DESC LIMIT ? OFFSET ?`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list agreements", zap.Error(err))
		return nil, fmt.Errorf("failed to list agreements: %w", err)
	}
	defer rows.Close()
	return collectAgreements(rows)
}

// ListByStatus retrieves all agreements in a given status, used by the
// register export.
func (r *AgreementRepository) ListByStatus(ctx context.Context, status string) ([]*entity.AgreementOverview, error) {
	query := selectAgreement + ` WHERE status = ? ORDER BY created_at`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, status)
	if err != nil {
		r.logger.Error("Failed to list agreements by status", zap.String("status", status), zap.Error(err))
		return nil, fmt.Errorf("failed to list agreements by status: %w", err)
	}
	defer rows.Close()
	return collectAgreements(rows)
}

const selectAgreement = `
	SELECT id, request_id, title, requester_id, requester_name, division,
		status, is_draft, reject_reason, submitted_at, completed_at,
		created_at, updated_at
	FROM agreement_overviews`

func scanAgreement(row rowScanner) (*entity.AgreementOverview, error) {
	var agr entity.AgreementOverview
	var requestID sql.NullInt64
	var rejectReason sql.NullString
	var submittedAt, completedAt sql.NullTime

	err := row.Scan(
		&agr.ID,
		&requestID,
		&agr.Title,
		&agr.RequesterID,
		&agr.RequesterName,
		&agr.Division,
		&agr.Status,
		&agr.IsDraft,
		&rejectReason,
		&submittedAt,
		&completedAt,
		&agr.CreatedAt,
		&agr.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	agr.RequestID = requestID.Int64
	agr.RejectReason = rejectReason.String
	if submittedAt.Valid {
		agr.SubmittedAt = &submittedAt.Time
	}
	if completedAt.Valid {
		agr.CompletedAt = &completedAt.Time
	}
	return &agr, nil
}

func collectAgreements(rows *sql.Rows) ([]*entity.AgreementOverview, error) {
	var agreements []*entity.AgreementOverview
	for rows.Next() {
		agr, err := scanAgreement(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan agreement: %w", err)
		}
		agreements = append(agreements, agr)
	}
	return agreements, rows.Err()
}

// Verify interface compliance
var _ port.AgreementRepository = (*AgreementRepository)(nil)
