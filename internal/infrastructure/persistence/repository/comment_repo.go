package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/legalworks/docflow/internal/application/port"
	"github.com/legalworks/docflow/internal/domain/entity"
	"github.com/legalworks/docflow/internal/infrastructure/persistence/sqlite"
)

// financeRoles matches the roles whose comments satisfy the discussion
// gate's finance-participation requirement.
var financeRoles = []string{entity.RoleStaffFinance, entity.RoleHeadFinance}

// CommentRepository implements port.CommentRepository
type CommentRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewCommentRepository creates a new discussion comment repository
func NewCommentRepository(db *sqlite.DB, logger *zap.Logger) port.CommentRepository {
	return &CommentRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new discussion comment
func (r *CommentRepository) Create(ctx context.Context, comment *entity.DiscussionComment) error {
	if comment.Round == 0 {
		comment.Round = 1
	}
	query := `
		INSERT INTO discussion_comments (
			request_id, round, author_id, author_name, author_role, body,
			attachment_ref, forum_closed, is_system
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		comment.RequestID,
		comment.Round,
		comment.AuthorID,
		comment.AuthorName,
		comment.AuthorRole,
		comment.Body,
		comment.AttachmentRef,
		comment.ForumClosed,
		comment.System,
	)
	if err != nil {
		r.logger.Error("Failed to create comment", zap.Int64("request_id", comment.RequestID), zap.Error(err))
		return fmt.Errorf("failed to create comment: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	comment.ID = id
	return nil
}

// GetByRequestID retrieves a request's comments in creation order
func (r *CommentRepository) GetByRequestID(ctx context.Context, requestID int64) ([]*entity.DiscussionComment, error) {
	query := `
		SELECT id, request_id, round, author_id, author_name, author_role,
			body, attachment_ref, forum_closed, is_system, created_at
		FROM discussion_comments
		WHERE request_id = ?
		ORDER BY created_at, id
	`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, requestID)
	if err != nil {
		r.logger.Error("Failed to list comments", zap.Int64("request_id", requestID), zap.Error(err))
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	var comments []*entity.DiscussionComment
	for rows.Next() {
		var c entity.DiscussionComment
		var attachmentRef sql.NullString

		err := rows.Scan(
			&c.ID,
			&c.RequestID,
			&c.Round,
			&c.AuthorID,
			&c.AuthorName,
			&c.AuthorRole,
			&c.Body,
			&attachmentRef,
			&c.ForumClosed,
			&c.System,
			&c.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}

		c.AttachmentRef = attachmentRef.String
		comments = append(comments, &c)
	}
	return comments, rows.Err()
}

// HasFinanceComment reports whether a non-closing comment by a finance role
// exists for the request's given discussion round
func (r *CommentRepository) HasFinanceComment(ctx context.Context, requestID int64, round int) (bool, error) {
	query := `
		SELECT COUNT(1) FROM discussion_comments
		WHERE request_id = ? AND round = ? AND forum_closed = 0 AND author_role IN (?, ?)
	`

	var count int
	err := r.db.Executor(ctx).QueryRowContext(ctx, query, requestID, round, financeRoles[0], financeRoles[1]).Scan(&count)
	if err != nil {
		r.logger.Error("Failed to check finance comment", zap.Int64("request_id", requestID), zap.Error(err))
		return false, fmt.Errorf("failed to check finance comment: %w", err)
	}
	return count > 0, nil
}

// HasClosingComment reports whether the given discussion round has been
// closed. Closing markers from earlier rounds do not count.
func (r *CommentRepository) HasClosingComment(ctx context.Context, requestID int64, round int) (bool, error) {
	query := `SELECT COUNT(1) FROM discussion_comments WHERE request_id = ? AND round = ? AND forum_closed = 1`

	var count int
	err := r.db.Executor(ctx).QueryRowContext(ctx, query, requestID, round).Scan(&count)
	if err != nil {
		r.logger.Error("Failed to check closing comment", zap.Int64("request_id", requestID), zap.Error(err))
		return false, fmt.Errorf("failed to check closing comment: %w", err)
	}
	return count > 0, nil
}

// Verify interface compliance
var _ port.CommentRepository = (*CommentRepository)(nil)
