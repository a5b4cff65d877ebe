package port

import (
	"context"
	"time"

	"github.com/legalworks/docflow/internal/domain/entity"
)

// DocumentRequestRepository defines persistence operations for DocumentRequest
type DocumentRequestRepository interface {
	Create(ctx context.Context, req *entity.DocumentRequest) error
	GetByID(ctx context.Context, id int64) (*entity.DocumentRequest, error)
	UpdateStatus(ctx context.Context, id int64, status string, isDraft bool) error
	SetSubmittedAt(ctx context.Context, id int64, t time.Time) error
	SetCompletedAt(ctx context.Context, id int64, t time.Time) error
	SetRejectReason(ctx context.Context, id int64, reason string) error

	// IncrementDiscussionRound opens the next forum round on the request.
	IncrementDiscussionRound(ctx context.Context, id int64) error

	List(ctx context.Context, limit, offset int) ([]*entity.DocumentRequest, error)
}

// AgreementRepository defines persistence operations for AgreementOverview
type AgreementRepository interface {
	Create(ctx context.Context, agr *entity.AgreementOverview) error
	GetByID(ctx context.Context, id int64) (*entity.AgreementOverview, error)
	GetByRequestID(ctx context.Context, requestID int64) (*entity.AgreementOverview, error)
	UpdateStatus(ctx context.Context, id int64, status string, isDraft bool) error
	SetSubmittedAt(ctx context.Context, id int64, t time.Time) error
	SetCompletedAt(ctx context.Context, id int64, t time.Time) error
	SetRejectReason(ctx context.Context, id int64, reason string) error
	List(ctx context.Context, limit, offset int) ([]*entity.AgreementOverview, error)
	ListByStatus(ctx context.Context, status string) ([]*entity.AgreementOverview, error)
}

// StepRepository defines persistence operations for one subject kind's
// approval-step ledger. Two instances exist at runtime, one per ledger table.
type StepRepository interface {
	Create(ctx context.Context, step *entity.ApprovalStep) error
	GetByID(ctx context.Context, id int64) (*entity.ApprovalStep, error)
	GetBySubjectID(ctx context.Context, subjectID int64) ([]*entity.ApprovalStep, error)

	// CurrentPending returns the single pending step, or nil when none exists.
	CurrentPending(ctx context.Context, subjectID int64) (*entity.ApprovalStep, error)

	// MaxOrder returns the highest step_order for a subject, 0 when the
	// ledger is empty.
	MaxOrder(ctx context.Context, subjectID int64) (int, error)

	// Resolve sets a terminal status on a step that is still pending.
	// Returns false when no row was updated, i.e. the step was already
	// resolved by a concurrent actor.
	Resolve(ctx context.Context, stepID int64, status string, resolvedAt time.Time, comments string) (bool, error)

	// Activate flips a queued step to pending. Returns false when the step
	// was not queued.
	Activate(ctx context.Context, stepID int64) (bool, error)

	// DeleteBySubjectID discards a subject's ledger. Only used by the
	// explicit workflow-reset path.
	DeleteBySubjectID(ctx context.Context, subjectID int64) error
}

// CommentRepository defines persistence operations for DiscussionComment
type CommentRepository interface {
	Create(ctx context.Context, comment *entity.DiscussionComment) error
	GetByRequestID(ctx context.Context, requestID int64) ([]*entity.DiscussionComment, error)

	// HasFinanceComment reports whether a non-closing comment authored by a
	// finance role exists for the request's given discussion round.
	HasFinanceComment(ctx context.Context, requestID int64, round int) (bool, error)

	// HasClosingComment reports whether the given discussion round has
	// already been closed. Earlier rounds' closing markers do not count.
	HasClosingComment(ctx context.Context, requestID int64, round int) (bool, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
