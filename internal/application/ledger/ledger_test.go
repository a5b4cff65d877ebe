package ledger

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/legalworks/docflow/internal/domain/apperr"
	"github.com/legalworks/docflow/internal/domain/entity"
)

// memStepRepo is an in-memory StepRepository used across the application
// layer tests.
type memStepRepo struct {
	nextID int64
	steps  map[int64]*entity.ApprovalStep
}

func newMemStepRepo() *memStepRepo {
	return &memStepRepo{steps: make(map[int64]*entity.ApprovalStep)}
}

func (m *memStepRepo) Create(_ context.Context, step *entity.ApprovalStep) error {
	m.nextID++
	step.ID = m.nextID
	step.CreatedAt = time.Now()
	cp := *step
	m.steps[step.ID] = &cp
	return nil
}

func (m *memStepRepo) GetByID(_ context.Context, id int64) (*entity.ApprovalStep, error) {
	if s, ok := m.steps[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, nil
}

func (m *memStepRepo) GetBySubjectID(_ context.Context, subjectID int64) ([]*entity.ApprovalStep, error) {
	var out []*entity.ApprovalStep
	for _, s := range m.steps {
		if s.SubjectID == subjectID {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StepOrder < out[j].StepOrder })
	return out, nil
}

func (m *memStepRepo) CurrentPending(_ context.Context, subjectID int64) (*entity.ApprovalStep, error) {
	for _, s := range m.steps {
		if s.SubjectID == subjectID && s.Status == entity.StepStatusPending {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStepRepo) MaxOrder(_ context.Context, subjectID int64) (int, error) {
	max := 0
	for _, s := range m.steps {
		if s.SubjectID == subjectID && s.StepOrder > max {
			max = s.StepOrder
		}
	}
	return max, nil
}

func (m *memStepRepo) Resolve(_ context.Context, stepID int64, status string, resolvedAt time.Time, comments string) (bool, error) {
	s, ok := m.steps[stepID]
	if !ok || s.Status != entity.StepStatusPending {
		return false, nil
	}
	s.Status = status
	s.Comments = comments
	if status == entity.StepStatusApproved {
		s.ApprovedAt = &resolvedAt
	} else {
		s.RejectedAt = &resolvedAt
	}
	return true, nil
}

func (m *memStepRepo) Activate(_ context.Context, stepID int64) (bool, error) {
	s, ok := m.steps[stepID]
	if !ok || s.Status != entity.StepStatusQueued {
		return false, nil
	}
	s.Status = entity.StepStatusPending
	return true, nil
}

func (m *memStepRepo) DeleteBySubjectID(_ context.Context, subjectID int64) error {
	for id, s := range m.steps {
		if s.SubjectID == subjectID {
			delete(m.steps, id)
		}
	}
	return nil
}

func approver(id string) *entity.Person {
	return &entity.Person{EmployeeID: id, Name: "Approver " + id, Active: true}
}

func TestAppendStep_OrderSequence(t *testing.T) {
	l := New(newMemStepRepo())
	ctx := context.Background()

	s1, err := l.AppendStep(ctx, 1, entity.ApprovalTypeSupervisor, approver("A-1"))
	require.NoError(t, err)
	assert.Equal(t, 1, s1.StepOrder)
	assert.Equal(t, entity.StepStatusPending, s1.Status)

	require.NoError(t, l.ResolveStep(ctx, s1, OutcomeApprove, ""))

	s2, err := l.AppendStep(ctx, 1, entity.ApprovalTypeGeneralManager, approver("A-2"))
	require.NoError(t, err)
	assert.Equal(t, 2, s2.StepOrder)
}

func TestAppendStep_RejectsSecondPending(t *testing.T) {
	l := New(newMemStepRepo())
	ctx := context.Background()

	_, err := l.AppendStep(ctx, 1, entity.ApprovalTypeSupervisor, approver("A-1"))
	require.NoError(t, err)

	_, err = l.AppendStep(ctx, 1, entity.ApprovalTypeGeneralManager, approver("A-2"))
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestAppendStep_IndependentSubjects(t *testing.T) {
	l := New(newMemStepRepo())
	ctx := context.Background()

	_, err := l.AppendStep(ctx, 1, entity.ApprovalTypeSupervisor, approver("A-1"))
	require.NoError(t, err)

	// A pending step on one subject does not block another subject.
	_, err = l.AppendStep(ctx, 2, entity.ApprovalTypeSupervisor, approver("A-1"))
	assert.NoError(t, err)
}

func TestResolveStep_Idempotence(t *testing.T) {
	repo := newMemStepRepo()
	l := New(repo)
	ctx := context.Background()

	step, err := l.AppendStep(ctx, 1, entity.ApprovalTypeSupervisor, approver("A-1"))
	require.NoError(t, err)

	require.NoError(t, l.ResolveStep(ctx, step, OutcomeApprove, "looks good"))
	firstApprovedAt := *step.ApprovedAt

	err = l.ResolveStep(ctx, step, OutcomeApprove, "again")
	assert.ErrorIs(t, err, apperr.ErrConflict)

	// Terminal fields unchanged after the failed retry.
	stored, err := repo.GetByID(ctx, step.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StepStatusApproved, stored.Status)
	assert.Equal(t, "looks good", stored.Comments)
	assert.WithinDuration(t, firstApprovedAt, *stored.ApprovedAt, 0)
}

func TestResolveStep_ConcurrentLoserObservesConflict(t *testing.T) {
	repo := newMemStepRepo()
	l := New(repo)
	ctx := context.Background()

	step, err := l.AppendStep(ctx, 1, entity.ApprovalTypeSupervisor, approver("A-1"))
	require.NoError(t, err)

	// Both actors loaded the same pending snapshot.
	snapshotA := *step
	snapshotB := *step

	require.NoError(t, l.ResolveStep(ctx, &snapshotA, OutcomeApprove, ""))
	err = l.ResolveStep(ctx, &snapshotB, OutcomeReject, "too late")
	assert.ErrorIs(t, err, apperr.ErrConflict)

	stored, _ := repo.GetByID(ctx, step.ID)
	assert.Equal(t, entity.StepStatusApproved, stored.Status)
}

func TestResolveStep_RejectRequiresReason(t *testing.T) {
	l := New(newMemStepRepo())
	ctx := context.Background()

	step, err := l.AppendStep(ctx, 1, entity.ApprovalTypeSupervisor, approver("A-1"))
	require.NoError(t, err)

	err = l.ResolveStep(ctx, step, OutcomeReject, "")
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, entity.StepStatusPending, step.Status)
}

func TestActivateNext_WalksQueue(t *testing.T) {
	l := New(newMemStepRepo())
	ctx := context.Background()

	first, err := l.AppendStep(ctx, 7, entity.ApprovalTypeSupervisor, approver("A-1"))
	require.NoError(t, err)
	_, err = l.AppendQueued(ctx, 7, entity.ApprovalTypeHeadFinance, approver("A-2"))
	require.NoError(t, err)
	_, err = l.AppendQueued(ctx, 7, entity.ApprovalTypeHeadLegal, approver("A-3"))
	require.NoError(t, err)

	// Queue cannot be activated while a step is pending.
	_, err = l.ActivateNext(ctx, 7)
	assert.ErrorIs(t, err, apperr.ErrConflict)

	require.NoError(t, l.ResolveStep(ctx, first, OutcomeApprove, ""))

	next, err := l.ActivateNext(ctx, 7)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, entity.ApprovalTypeHeadFinance, next.ApprovalType)
	assert.Equal(t, entity.StepStatusPending, next.Status)

	require.NoError(t, l.ResolveStep(ctx, next, OutcomeApprove, ""))
	next, err = l.ActivateNext(ctx, 7)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, entity.ApprovalTypeHeadLegal, next.ApprovalType)

	require.NoError(t, l.ResolveStep(ctx, next, OutcomeApprove, ""))
	next, err = l.ActivateNext(ctx, 7)
	require.NoError(t, err)
	assert.Nil(t, next)
}

func TestReset_DiscardsLedger(t *testing.T) {
	l := New(newMemStepRepo())
	ctx := context.Background()

	_, err := l.AppendStep(ctx, 9, entity.ApprovalTypeSupervisor, approver("A-1"))
	require.NoError(t, err)
	require.NoError(t, l.Reset(ctx, 9))

	max, err := l.MaxOrder(ctx, 9)
	require.NoError(t, err)
	assert.Zero(t, max)

	// Ledger is fresh: order restarts at 1.
	s, err := l.AppendStep(ctx, 9, entity.ApprovalTypeSupervisor, approver("A-1"))
	require.NoError(t, err)
	assert.Equal(t, 1, s.StepOrder)
}
