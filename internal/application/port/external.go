package port

import (
	"context"

	"github.com/legalworks/docflow/internal/domain/entity"
)

// Directory is the external HR-directory API used to resolve organizational
// hierarchy. Implementations must tolerate unknown identities by returning
// (nil, nil), never an error for normal absence.
type Directory interface {
	LookupByID(ctx context.Context, employeeID string) (*entity.Person, error)

	// FindByRole returns active people holding the exact role.
	FindByRole(ctx context.Context, role string) ([]*entity.Person, error)

	// FindByTitleKeyword returns active people whose free-text title
	// contains the keyword. Used by the approver-resolution fallback chain.
	FindByTitleKeyword(ctx context.Context, keyword string) ([]*entity.Person, error)
}

// NotificationSink delivers outbound notifications. Delivery is
// fire-and-forget: a failed delivery must never fail the transition that
// produced it.
type NotificationSink interface {
	Notify(ctx context.Context, recipient string, eventKind string, payload map[string]interface{}) error
}
