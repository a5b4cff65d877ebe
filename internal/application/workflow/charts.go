// Package workflow drives the two approval state machines: document
// requests (lazy step creation, branch on supervisor seniority) and
// agreement overviews (fixed five-step chain materialized up front). Both
// follow the same pattern: compute the next step, create or consume a
// ledger record, update the aggregate status — all inside one transaction.
package workflow

import (
	"context"

	"github.com/legalworks/docflow/internal/domain/entity"
	"github.com/legalworks/docflow/internal/domain/flow"
)

type seniorApproverKey struct{}

// WithSeniorApprover marks the context with the supervisor-seniority branch
// input. The chart guard reads it; the predicate itself is resolved before
// entering the transition.
func WithSeniorApprover(ctx context.Context, senior bool) context.Context {
	return context.WithValue(ctx, seniorApproverKey{}, senior)
}

func seniorApprover(ctx context.Context) bool {
	v, _ := ctx.Value(seniorApproverKey{}).(bool)
	return v
}

// BuildDocumentRequestMachine returns the document-request chart positioned
// at the given status. A senior-manager-level supervisor skips the
// general-manager tier; the regular path routes through it.
func BuildDocumentRequestMachine(status string) flow.StateMachine {
	b := flow.NewBuilder()

	b.Configure(flow.State(entity.RequestStatusDraft)).
		Permit(flow.TriggerSubmit, flow.State(entity.RequestStatusPendingSupervisor))

	b.Configure(flow.State(entity.RequestStatusPendingSupervisor)).
		PermitIf(flow.TriggerApprove, flow.State(entity.RequestStatusPendingLegalAdmin), seniorApprover).
		Permit(flow.TriggerApprove, flow.State(entity.RequestStatusPendingGM)).
		Permit(flow.TriggerReject, flow.State(entity.RequestStatusRejected))

	b.Configure(flow.State(entity.RequestStatusPendingGM)).
		Permit(flow.TriggerApprove, flow.State(entity.RequestStatusPendingLegalAdmin)).
		Permit(flow.TriggerReject, flow.State(entity.RequestStatusRejected))

	b.Configure(flow.State(entity.RequestStatusPendingLegalAdmin)).
		Permit(flow.TriggerApprove, flow.State(entity.RequestStatusInDiscussion)).
		Permit(flow.TriggerReject, flow.State(entity.RequestStatusRejected))

	b.Configure(flow.State(entity.RequestStatusInDiscussion)).
		Permit(flow.TriggerCloseDiscussion, flow.State(entity.RequestStatusAgreementCreation))

	b.Configure(flow.State(entity.RequestStatusAgreementCreation)).
		Permit(flow.TriggerComplete, flow.State(entity.RequestStatusCompleted)).
		Permit(flow.TriggerRediscuss, flow.State(entity.RequestStatusInDiscussion))

	// COMPLETED and REJECTED are terminal.

	return b.Build(flow.State(status))
}

// BuildAgreementMachine returns the agreement-overview chart positioned at
// the given status. Director-tier rejection redirects to REDISCUSS instead
// of terminating; REDISCUSS re-enters the chain on resubmission.
func BuildAgreementMachine(status string) flow.StateMachine {
	b := flow.NewBuilder()

	b.Configure(flow.State(entity.AgreementStatusDraft)).
		Permit(flow.TriggerSubmit, flow.State(entity.AgreementStatusPendingHead))

	b.Configure(flow.State(entity.AgreementStatusPendingHead)).
		Permit(flow.TriggerApprove, flow.State(entity.AgreementStatusPendingFinance)).
		Permit(flow.TriggerReject, flow.State(entity.AgreementStatusRejected))

	b.Configure(flow.State(entity.AgreementStatusPendingFinance)).
		Permit(flow.TriggerApprove, flow.State(entity.AgreementStatusPendingLegal)).
		Permit(flow.TriggerReject, flow.State(entity.AgreementStatusRejected))

	b.Configure(flow.State(entity.AgreementStatusPendingLegal)).
		Permit(flow.TriggerApprove, flow.State(entity.AgreementStatusPendingDirector1)).
		Permit(flow.TriggerReject, flow.State(entity.AgreementStatusRejected))

	b.Configure(flow.State(entity.AgreementStatusPendingDirector1)).
		Permit(flow.TriggerApprove, flow.State(entity.AgreementStatusPendingDirector2)).
		Permit(flow.TriggerReject, flow.State(entity.AgreementStatusRediscuss))

	b.Configure(flow.State(entity.AgreementStatusPendingDirector2)).
		Permit(flow.TriggerApprove, flow.State(entity.AgreementStatusApproved)).
		Permit(flow.TriggerReject, flow.State(entity.AgreementStatusRediscuss))

	b.Configure(flow.State(entity.AgreementStatusRediscuss)).
		Permit(flow.TriggerSubmit, flow.State(entity.AgreementStatusPendingHead))

	// APPROVED and REJECTED are terminal.

	return b.Build(flow.State(status))
}
