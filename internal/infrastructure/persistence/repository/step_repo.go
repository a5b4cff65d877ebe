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

// StepRepository implements port.StepRepository over one ledger table.
// Document requests and agreement overviews keep separate tables with the
// same shape; the table name is fixed at construction.
type StepRepository struct {
	db     *sqlite.DB
	table  string
	logger *zap.Logger
}

// NewRequestStepRepository creates the ledger repository for document requests
func NewRequestStepRepository(db *sqlite.DB, logger *zap.Logger) port.StepRepository {
	return &StepRepository{db: db, table: "document_request_steps", logger: logger}
}

// NewAgreementStepRepository creates the ledger repository for agreements
func NewAgreementStepRepository(db *sqlite.DB, logger *zap.Logger) port.StepRepository {
	return &StepRepository{db: db, table: "agreement_steps", logger: logger}
}

// Create inserts a new approval step
func (r *StepRepository) Create(ctx context.Context, step *entity.ApprovalStep) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (
			subject_id, approval_type, approver_id, approver_name,
			step_order, status, comments
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`, r.table)

	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		step.SubjectID,
		step.ApprovalType,
		step.ApproverID,
		step.ApproverName,
		step.StepOrder,
		step.Status,
		step.Comments,
	)
	if err != nil {
		r.logger.Error("Failed to create approval step",
			zap.String("table", r.table), zap.Int64("subject_id", step.SubjectID), zap.Error(err))
		return fmt.Errorf("failed to create approval step: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	step.ID = id
	return nil
}

// GetByID retrieves a step by ID. Returns (nil, nil) when absent.
func (r *StepRepository) GetByID(ctx context.Context, id int64) (*entity.ApprovalStep, error) {
	query := fmt.Sprintf(`%s WHERE id = ?`, r.selectSteps())

	step, err := scanStep(r.db.Executor(ctx).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get approval step", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get approval step: %w", err)
	}
	return step, nil
}

// GetBySubjectID retrieves a subject's full ledger ordered by step order
func (r *StepRepository) GetBySubjectID(ctx context.Context, subjectID int64) ([]*entity.ApprovalStep, error) {
	query := fmt.Sprintf(`%s WHERE subject_id = ? ORDER BY step_order`, r.selectSteps())

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, subjectID)
	if err != nil {
		r.logger.Error("Failed to list approval steps",
			zap.String("table", r.table), zap.Int64("subject_id", subjectID), zap.Error(err))
		return nil, fmt.Errorf("failed to list approval steps: %w", err)
	}
	defer rows.Close()

	var steps []*entity.ApprovalStep
	for rows.Next() {
		step, err := scanStep(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan approval step: %w", err)
		}
		steps = append(steps, step)
	}
	return steps, rows.Err()
}

// CurrentPending returns the subject's single pending step, or nil
func (r *StepRepository) CurrentPending(ctx context.Context, subjectID int64) (*entity.ApprovalStep, error) {
	query := fmt.Sprintf(`%s WHERE subject_id = ? AND status = ? ORDER BY step_order LIMIT 1`, r.selectSteps())

	step, err := scanStep(r.db.Executor(ctx).QueryRowContext(ctx, query, subjectID, entity.StepStatusPending))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get pending step",
			zap.String("table", r.table), zap.Int64("subject_id", subjectID), zap.Error(err))
		return nil, fmt.Errorf("failed to get pending step: %w", err)
	}
	return step, nil
}

// MaxOrder returns the highest step_order for a subject, 0 for an empty ledger
func (r *StepRepository) MaxOrder(ctx context.Context, subjectID int64) (int, error) {
	query := fmt.Sprintf(`SELECT COALESCE(MAX(step_order), 0) FROM %s WHERE subject_id = ?`, r.table)

	var max int
	err := r.db.Executor(ctx).QueryRowContext(ctx, query, subjectID).Scan(&max)
	if err != nil {
		r.logger.Error("Failed to get max step order",
			zap.String("table", r.table), zap.Int64("subject_id", subjectID), zap.Error(err))
		return 0, fmt.Errorf("failed to get max step order: %w", err)
	}
	return max, nil
}

// Resolve sets a terminal status on a step that is still pending. The status
// guard in the WHERE clause is what serializes concurrent resolution: the
// loser updates zero rows and gets false.
func (r *StepRepository) Resolve(ctx context.Context, stepID int64, status string, resolvedAt time.Time, comments string) (bool, error) {
	column := "approved_at"
	if status == entity.StepStatusRejected {
		column = "rejected_at"
	}
	query := fmt.Sprintf(`
		UPDATE %s SET status = ?, comments = ?, %s = ?
		WHERE id = ? AND status = ?
	`, r.table, column)

	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		status, comments, resolvedAt, stepID, entity.StepStatusPending)
	if err != nil {
		r.logger.Error("Failed to resolve approval step", zap.Int64("id", stepID), zap.Error(err))
		return false, fmt.Errorf("failed to resolve approval step: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected > 0, nil
}

// Activate flips a queued step to pending, with the same rows-affected guard
func (r *StepRepository) Activate(ctx context.Context, stepID int64) (bool, error) {
	query := fmt.Sprintf(`UPDATE %s SET status = ? WHERE id = ? AND status = ?`, r.table)

	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		entity.StepStatusPending, stepID, entity.StepStatusQueued)
	if err != nil {
		r.logger.Error("Failed to activate approval step", zap.Int64("id", stepID), zap.Error(err))
		return false, fmt.Errorf("failed to activate approval step: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected > 0, nil
}

// DeleteBySubjectID discards a subject's ledger
func (r *StepRepository) DeleteBySubjectID(ctx context.Context, subjectID int64) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE subject_id = ?`, r.table)

	_, err := r.db.Executor(ctx).ExecContext(ctx, query, subjectID)
	if err != nil {
		r.logger.Error("Failed to delete approval steps",
			zap.String("table", r.table), zap.Int64("subject_id", subjectID), zap.Error(err))
		return fmt.Errorf("failed to delete approval steps: %w", err)
	}
	return nil
}

func (r *StepRepository) selectSteps() string {
	return fmt.Sprintf(`
		SELECT id, subject_id, approval_type, approver_id, approver_name,
			step_order, status, comments, approved_at, rejected_at, created_at
		FROM %s`, r.table)
}

func scanStep(row rowScanner) (*entity.ApprovalStep, error) {
	var step entity.ApprovalStep
	var comments sql.NullString
	var approvedAt, rejectedAt sql.NullTime

	err := row.Scan(
		&step.ID,
		&step.SubjectID,
		&step.ApprovalType,
		&step.ApproverID,
		&step.ApproverName,
		&step.StepOrder,
		&step.Status,
		&comments,
		&approvedAt,
		&rejectedAt,
		&step.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	step.Comments = comments.String
	if approvedAt.Valid {
		step.ApprovedAt = &approvedAt.Time
	}
	if rejectedAt.Valid {
		step.RejectedAt = &rejectedAt.Time
	}
	return &step, nil
}

// Verify interface compliance
var _ port.StepRepository = (*StepRepository)(nil)
