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

// DocumentRequestRepository implements port.DocumentRequestRepository
type DocumentRequestRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewDocumentRequestRepository creates a new document request repository
func NewDocumentRequestRepository(db *sqlite.DB, logger *zap.Logger) port.DocumentRequestRepository {
	return &DocumentRequestRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new document request
func (r *DocumentRequestRepository) Create(ctx context.Context, req *entity.DocumentRequest) error {
	if req.DiscussionRound == 0 {
		req.DiscussionRound = 1
	}
	query := `
		INSERT INTO document_requests (
			title, description, requester_id, requester_name, division,
			status, is_draft, discussion_round
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		req.Title,
		req.Description,
		req.RequesterID,
		req.RequesterName,
		req.Division,
		req.Status,
		req.IsDraft,
		req.DiscussionRound,
	)
	if err != nil {
		r.logger.Error("Failed to create document request", zap.Error(err))
		return fmt.Errorf("failed to create document request: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	req.ID = id
	return nil
}

// GetByID retrieves a document request by ID. Returns (nil, nil) when absent.
func (r *DocumentRequestRepository) GetByID(ctx context.Context, id int64) (*entity.DocumentRequest, error) {
	query := `
		SELECT id, title, description, requester_id, requester_name, division,
			status, is_draft, discussion_round, reject_reason, submitted_at,
			completed_at, created_at, updated_at
		FROM document_requests
		WHERE id = ?
	`

	req, err := scanRequest(r.db.Executor(ctx).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get document request", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get document request: %w", err)
	}
	return req, nil
}

// UpdateStatus updates the status and draft flag of a document request
func (r *DocumentRequestRepository) UpdateStatus(ctx context.Context, id int64, status string, isDraft bool) error {
	query := `UPDATE document_requests SET status = ?, is_draft = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`

	_, err := r.db.Executor(ctx).ExecContext(ctx, query, status, isDraft, id)
	if err != nil {
		r.logger.Error("Failed to update request status", zap.Int64("id", id), zap.String("status", status), zap.Error(err))
		return fmt.Errorf("failed to update request status: %w", err)
	}
	return nil
}

// SetSubmittedAt sets the submission time
func (r *DocumentRequestRepository) SetSubmittedAt(ctx context.Context, id int64, t time.Time) error {
	query := `UPDATE document_requests SET submitted_at = ? WHERE id = ?`

	_, err := r.db.Executor(ctx).ExecContext(ctx, query, t, id)
	if err != nil {
		r.logger.Error("Failed to set submitted time", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to set submitted time: %w", err)
	}
	return nil
}

// SetCompletedAt sets the completion time
func (r *DocumentRequestRepository) SetCompletedAt(ctx context.Context, id int64, t time.Time) error {
	query := `UPDATE document_requests SET completed_at = ? WHERE id = ?`

	_, err := r.db.Executor(ctx).ExecContext(ctx, query, t, id)
	if err != nil {
		r.logger.Error("Failed to set completed time", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to set completed time: %w", err)
	}
	return nil
}

// SetRejectReason records the rejection reason
func (r *DocumentRequestRepository) SetRejectReason(ctx context.Context, id int64, reason string) error {
	query := `UPDATE document_requests SET reject_reason = ? WHERE id = ?`

	_, err := r.db.Executor(ctx).ExecContext(ctx, query, reason, id)
	if err != nil {
		r.logger.Error("Failed to set reject reason", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to set reject reason: %w", err)
	}
	return nil
}

// IncrementDiscussionRound opens the next forum round on the request
func (r *DocumentRequestRepository) IncrementDiscussionRound(ctx context.Context, id int64) error {
	query := `UPDATE document_requests SET discussion_round = discussion_round + 1, updated_at = CURRENT_TIMESTAMP WHERE id = ?`

	_, err := r.db.Executor(ctx).ExecContext(ctx, query, id)
	if err != nil {
		r.logger.Error("Failed to increment discussion round", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to increment discussion round: %w", err)
	}
	return nil
}

// List retrieves document requests with pagination, newest first
func (r *DocumentRequestRepository) List(ctx context.Context, limit, offset int) ([]*entity.DocumentRequest, error) {
	query := `
		SELECT id, title, description, requester_id, requester_name, division,
			status, is_draft, discussion_round, reject_reason, submitted_at,
			completed_at, created_at, updated_at
		FROM document_requests
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list document requests", zap.Error(err))
		return nil, fmt.Errorf("failed to list document requests: %w", err)
	}
	defer rows.Close()

	var requests []*entity.DocumentRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document request: %w", err)
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

// rowScanner covers both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRequest(row rowScanner) (*entity.DocumentRequest, error) {
	var req entity.DocumentRequest
	var rejectReason sql.NullString
	var submittedAt, completedAt sql.NullTime

	err := row.Scan(
		&req.ID,
		&req.Title,
		&req.Description,
		&req.RequesterID,
		&req.RequesterName,
		&req.Division,
		&req.Status,
		&req.IsDraft,
		&req.DiscussionRound,
		&rejectReason,
		&submittedAt,
		&completedAt,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	req.RejectReason = rejectReason.String
	if submittedAt.Valid {
		req.SubmittedAt = &submittedAt.Time
	}
	if completedAt.Valid {
		req.CompletedAt = &completedAt.Time
	}
	return &req, nil
}

// Verify interface compliance
var _ port.DocumentRequestRepository = (*DocumentRequestRepository)(nil)
