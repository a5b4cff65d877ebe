package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/legalworks/docflow/internal/application/ledger"
	"github.com/legalworks/docflow/internal/domain/apperr"
	"github.com/legalworks/docflow/internal/domain/entity"
	"github.com/legalworks/docflow/internal/domain/event"
)

// seedCreationReadyRequest plants a document request that already passed
// its discussion phase.
func seedCreationReadyRequest(t *testing.T, f *fixture, requesterID string) *entity.DocumentRequest {
	t.Helper()
	ctx := context.Background()
	requester, err := f.resolver.Lookup(ctx, requesterID)
	require.NoError(t, err)
	require.NotNil(t, requester)

	req := &entity.DocumentRequest{
		Title:         "Master Service Agreement",
		RequesterID:   requester.EmployeeID,
		RequesterName: requester.Name,
		Division:      requester.Division,
		Status:        entity.RequestStatusAgreementCreation,
	}
	require.NoError(t, f.requests.Create(ctx, req))
	return req
}

func createSubmittedAgreement(t *testing.T, f *fixture) *entity.AgreementOverview {
	t.Helper()
	ctx := context.Background()
	req := seedCreationReadyRequest(t, f, "EMP-001")
	agr, err := f.agreeWF.CreateFromRequest(ctx, req.ID, "")
	require.NoError(t, err)
	require.NoError(t, f.agreeWF.CreateApprovalWorkflow(ctx, agr.ID))
	agr, err = f.agreements.GetByID(ctx, agr.ID)
	require.NoError(t, err)
	return agr
}

func TestCreateFromRequest(t *testing.T) {
	f, err := newFixture(nil)
	require.NoError(t, err)
	ctx := context.Background()

	req := seedCreationReadyRequest(t, f, "EMP-001")
	agr, err := f.agreeWF.CreateFromRequest(ctx, req.ID, "")
	require.NoError(t, err)
	assert.Equal(t, entity.AgreementStatusDraft, agr.Status)
	assert.Equal(t, req.ID, agr.RequestID)
	assert.Equal(t, req.Title, agr.Title)
	assert.Equal(t, "EMP-001", agr.RequesterID)

	// One agreement per request.
	_, err = f.agreeWF.CreateFromRequest(ctx, req.ID, "duplicate")
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestCreateFromRequestRequiresCreationPhase(t *testing.T) {
	f, err := newFixture(nil)
	require.NoError(t, err)
	ctx := context.Background()

	req := draftAndSubmit(t, f, "EMP-001")
	_, err = f.agreeWF.CreateFromRequest(ctx, req.ID, "")
	assert.ErrorIs(t, err, apperr.ErrConflict)

	_, err = f.agreeWF.CreateFromRequest(ctx, 9999, "")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCreateApprovalWorkflowBuildsFullChain(t *testing.T) {
	f, err := newFixture(nil)
	require.NoError(t, err)
	ctx := context.Background()

	agr := createSubmittedAgreement(t, f)
	assert.Equal(t, entity.AgreementStatusPendingHead, agr.Status)
	assert.NotNil(t, agr.SubmittedAt)

	steps, err := f.agrSteps.GetBySubjectID(ctx, agr.ID)
	require.NoError(t, err)
	require.Len(t, steps, 5)

	wantTypes := []string{
		entity.ApprovalTypeSupervisor,
		entity.ApprovalTypeHeadFinance,
		entity.ApprovalTypeHeadLegal,
		entity.ApprovalTypeDirectorSupervisor,
		entity.ApprovalTypeSelectedDirector,
	}
	wantApprovers := []string{"SUP-001", "HF-001", "HL-001", "DIR-001", "DIR-002"}
	for i, step := range steps {
		assert.Equal(t, i+1, step.StepOrder)
		assert.Equal(t, wantTypes[i], step.ApprovalType)
		assert.Equal(t, wantApprovers[i], step.ApproverID)
		if i == 0 {
			assert.Equal(t, entity.StepStatusPending, step.Status)
		} else {
			assert.Equal(t, entity.StepStatusQueued, step.Status)
		}
	}
}

func TestFullApprovalChainFinalizesAgreementAndRequest(t *testing.T) {
	f, err := newFixture(nil)
	require.NoError(t, err)
	ctx := context.Background()

	agr := createSubmittedAgreement(t, f)
	chain := []struct {
		actor      string
		wantStatus string
	}{
		{"SUP-001", entity.AgreementStatusPendingFinance},
		{"HF-001", entity.AgreementStatusPendingLegal},
		{"HL-001", entity.AgreementStatusPendingDirector1},
		{"DIR-001", entity.AgreementStatusPendingDirector2},
		{"DIR-002", entity.AgreementStatusApproved},
	}
	for _, link := range chain {
		require.NoError(t, f.agreeWF.Approve(ctx, agr.ID, link.actor, "ok"))
		got, err := f.agreements.GetByID(ctx, agr.ID)
		require.NoError(t, err)
		assert.Equal(t, link.wantStatus, got.Status)
	}

	got, _ := f.agreements.GetByID(ctx, agr.ID)
	assert.NotNil(t, got.CompletedAt)

	// The source request completes with the agreement.
	req, err := f.requests.GetByID(ctx, agr.RequestID)
	require.NoError(t, err)
	assert.Equal(t, entity.RequestStatusCompleted, req.Status)
	assert.NotNil(t, req.CompletedAt)

	steps, _ := f.agrSteps.GetBySubjectID(ctx, agr.ID)
	for _, step := range steps {
		assert.Equal(t, entity.StepStatusApproved, step.Status)
	}
}

func TestFinalApprovalEmitsRequestCompleted(t *testing.T) {
	f, err := newFixture(nil)
	require.NoError(t, err)
	rec := &recordingDispatcher{}
	f.agreeWF = NewAgreementWorkflow(
		f.agreements, f.requests, f.comments, ledger.New(f.agrSteps), f.resolver, nil, passTx{}, rec, zap.NewNop())
	ctx := context.Background()

	agr := createSubmittedAgreement(t, f)
	for _, actor := range []string{"SUP-001", "HF-001", "HL-001", "DIR-001"} {
		require.NoError(t, f.agreeWF.Approve(ctx, agr.ID, actor, ""))
	}
	// Intermediate approvals complete nothing.
	assert.Empty(t, rec.ofType(event.TypeRequestCompleted))

	require.NoError(t, f.agreeWF.Approve(ctx, agr.ID, "DIR-002", "ok"))

	completed := rec.ofType(event.TypeRequestCompleted)
	require.Len(t, completed, 1)
	evt := completed[0]
	assert.Equal(t, entity.KindDocumentRequest, evt.SubjectKind)
	assert.Equal(t, agr.RequestID, evt.SubjectID)
	assert.Equal(t, "EMP-001", evt.Recipient)
	assert.Equal(t, agr.ID, evt.Payload["agreement_id"])
	assert.Equal(t, agr.RequestID, evt.Payload["request_id"])
}

func TestSameDirectorAutoApprovesSecondSignature(t *testing.T) {
	people := testOrg()
	delete(people, "DIR-002") // only one director in the org
	f, err := newFixture(people)
	require.NoError(t, err)
	ctx := context.Background()

	agr := createSubmittedAgreement(t, f)
	for _, actor := range []string{"SUP-001", "HF-001", "HL-001"} {
		require.NoError(t, f.agreeWF.Approve(ctx, agr.ID, actor, ""))
	}

	// First director signature also satisfies the second.
	require.NoError(t, f.agreeWF.Approve(ctx, agr.ID, "DIR-001", "approved"))

	got, _ := f.agreements.GetByID(ctx, agr.ID)
	assert.Equal(t, entity.AgreementStatusApproved, got.Status)

	steps, _ := f.agrSteps.GetBySubjectID(ctx, agr.ID)
	require.Len(t, steps, 5)
	last := steps[4]
	assert.Equal(t, entity.ApprovalTypeSelectedDirector, last.ApprovalType)
	assert.Equal(t, "DIR-001", last.ApproverID)
	assert.Equal(t, entity.StepStatusApproved, last.Status)
	assert.Contains(t, last.Comments, "auto-approved")
}

// When no one holds the director role, the director steps resolve through
// the title fallback to people whose role grants no blanket director
// authority. The identity that signed the first director step must still
// be allowed to act on the second.
func TestFirstDirectorSignatureAuthorizesSecondStep(t *testing.T) {
	people := testOrg()
	delete(people, "DIR-001")
	delete(people, "DIR-002")
	people["ZVP-001"] = &entity.Person{
		EmployeeID: "ZVP-001", Name: "Lukas Wibowo", Role: entity.RoleGeneralManager,
		Title: "Managing Director", Level: 8, Division: "Corporate", Active: true,
	}
	people["AVP-002"] = &entity.Person{
		EmployeeID: "AVP-002", Name: "Mira Santika", Role: entity.RoleGeneralManager,
		Title: "Deputy Director", Level: 8, Division: "Operations", Active: true,
	}
	f, err := newFixture(people)
	require.NoError(t, err)
	ctx := context.Background()

	agr := createSubmittedAgreement(t, f)

	// Division-scoped title fallback picks ZVP-001 for the first director
	// step; the distinct-second rule falls through to AVP-002.
	steps, err := f.agrSteps.GetBySubjectID(ctx, agr.ID)
	require.NoError(t, err)
	require.Len(t, steps, 5)
	assert.Equal(t, "ZVP-001", steps[3].ApproverID)
	assert.Equal(t, "AVP-002", steps[4].ApproverID)

	for _, actor := range []string{"SUP-001", "HF-001", "HL-001", "ZVP-001"} {
		require.NoError(t, f.agreeWF.Approve(ctx, agr.ID, actor, ""))
	}
	got, _ := f.agreements.GetByID(ctx, agr.ID)
	require.Equal(t, entity.AgreementStatusPendingDirector2, got.Status)

	// The first signature carries over to the second step even though
	// ZVP-001 is not its assigned approver and holds no director role.
	ok, err := f.agreeWF.CanApprove(ctx, agr.ID, "ZVP-001")
	require.NoError(t, err)
	assert.True(t, ok)

	// The assigned approver keeps their own authority.
	ok, err = f.agreeWF.CanApprove(ctx, agr.ID, "AVP-002")
	require.NoError(t, err)
	assert.True(t, ok)

	// Uninvolved non-directors stay shut out.
	ok, err = f.agreeWF.CanApprove(ctx, agr.ID, "SUP-001")
	require.NoError(t, err)
	assert.False(t, ok)

	// And the carried-over authority works for the action itself.
	require.NoError(t, f.agreeWF.Approve(ctx, agr.ID, "ZVP-001", "signing for both seats"))
	got, _ = f.agreements.GetByID(ctx, agr.ID)
	assert.Equal(t, entity.AgreementStatusApproved, got.Status)
}

func TestDirectorRejectionTriggersRediscussion(t *testing.T) {
	f, err := newFixture(nil)
	require.NoError(t, err)
	ctx := context.Background()

	agr := createSubmittedAgreement(t, f)
	for _, actor := range []string{"SUP-001", "HF-001", "HL-001"} {
		require.NoError(t, f.agreeWF.Approve(ctx, agr.ID, actor, ""))
	}

	require.NoError(t, f.agreeWF.Reject(ctx, agr.ID, "DIR-001", "liability clause too broad"))

	got, _ := f.agreements.GetByID(ctx, agr.ID)
	assert.Equal(t, entity.AgreementStatusRediscuss, got.Status)
	assert.Equal(t, "liability clause too broad", got.RejectReason)

	// The source request reopens its discussion with a system note.
	req, _ := f.requests.GetByID(ctx, agr.RequestID)
	assert.Equal(t, entity.RequestStatusInDiscussion, req.Status)

	comments, _ := f.comments.GetByRequestID(ctx, agr.RequestID)
	require.Len(t, comments, 1)
	assert.True(t, comments[0].System)
	assert.Contains(t, comments[0].Body, "liability clause too broad")
}

func TestNonDirectorRejectionTerminates(t *testing.T) {
	f, err := newFixture(nil)
	require.NoError(t, err)
	ctx := context.Background()

	agr := createSubmittedAgreement(t, f)
	require.NoError(t, f.agreeWF.Approve(ctx, agr.ID, "SUP-001", ""))
	require.NoError(t, f.agreeWF.Reject(ctx, agr.ID, "HF-001", "no budget line"))

	got, _ := f.agreements.GetByID(ctx, agr.ID)
	assert.Equal(t, entity.AgreementStatusRejected, got.Status)

	req, _ := f.requests.GetByID(ctx, agr.RequestID)
	assert.Equal(t, entity.RequestStatusAgreementCreation, req.Status)
}

func TestRecreateWorkflowProducesFreshChain(t *testing.T) {
	f, err := newFixture(nil)
	require.NoError(t, err)
	ctx := context.Background()

	agr := createSubmittedAgreement(t, f)
	for _, actor := range []string{"SUP-001", "HF-001", "HL-001"} {
		require.NoError(t, f.agreeWF.Approve(ctx, agr.ID, actor, ""))
	}
	require.NoError(t, f.agreeWF.Reject(ctx, agr.ID, "DIR-001", "rework needed"))

	// Recreating from REDISCUSS discards the old ledger entirely.
	require.NoError(t, f.agreeWF.CreateApprovalWorkflow(ctx, agr.ID))

	got, _ := f.agreements.GetByID(ctx, agr.ID)
	assert.Equal(t, entity.AgreementStatusPendingHead, got.Status)

	steps, err := f.agrSteps.GetBySubjectID(ctx, agr.ID)
	require.NoError(t, err)
	require.Len(t, steps, 5)
	assert.Equal(t, entity.StepStatusPending, steps[0].Status)
	for i, step := range steps {
		assert.Equal(t, i+1, step.StepOrder)
		if i > 0 {
			assert.Equal(t, entity.StepStatusQueued, step.Status)
		}
	}
}

func TestAgreementApprovalAuthority(t *testing.T) {
	f, err := newFixture(nil)
	require.NoError(t, err)
	ctx := context.Background()

	agr := createSubmittedAgreement(t, f)

	// Requester never approves their own agreement.
	err = f.agreeWF.Approve(ctx, agr.ID, "EMP-001", "")
	assert.ErrorIs(t, err, apperr.ErrPermission)

	// Finance cannot act on the supervisor step.
	err = f.agreeWF.Approve(ctx, agr.ID, "HF-001", "")
	assert.ErrorIs(t, err, apperr.ErrPermission)

	ok, err := f.agreeWF.CanApprove(ctx, agr.ID, "SUP-001")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.agreeWF.CanApprove(ctx, agr.ID, "HF-001")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAgreementRejectRequiresReason(t *testing.T) {
	f, err := newFixture(nil)
	require.NoError(t, err)
	ctx := context.Background()

	agr := createSubmittedAgreement(t, f)
	err = f.agreeWF.Reject(ctx, agr.ID, "SUP-001", "")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestProgressPercent(t *testing.T) {
	cases := []struct {
		status string
		want   int
	}{
		{entity.AgreementStatusDraft, 0},
		{entity.AgreementStatusPendingHead, 15},
		{entity.AgreementStatusPendingFinance, 30},
		{entity.AgreementStatusPendingLegal, 50},
		{entity.AgreementStatusPendingDirector1, 70},
		{entity.AgreementStatusPendingDirector2, 85},
		{entity.AgreementStatusRediscuss, 40},
		{entity.AgreementStatusApproved, 100},
		{entity.AgreementStatusRejected, 100},
		{"UNKNOWN", 0},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, ProgressPercent(c.status), "status %s", c.status)
	}
}
