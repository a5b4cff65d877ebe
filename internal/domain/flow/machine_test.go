package flow

import (
	"context"
	"errors"
	"testing"
)

const (
	stateDraft    State = "DRAFT"
	stateReview   State = "REVIEW"
	stateEscalate State = "ESCALATED"
	stateDone     State = "DONE"
	stateDeclined State = "DECLINED"
)

func buildTestChart() *Builder {
	b := NewBuilder()
	b.Configure(stateDraft).
		Permit(TriggerSubmit, stateReview)
	b.Configure(stateReview).
		Permit(TriggerApprove, stateDone).
		Permit(TriggerReject, stateDeclined)
	return b
}

func TestState_String(t *testing.T) {
	if got := stateDraft.String(); got != "DRAFT" {
		t.Errorf("State.String() = %v, want %v", got, "DRAFT")
	}
}

func TestTrigger_String(t *testing.T) {
	if got := TriggerSubmit.String(); got != "SUBMIT" {
		t.Errorf("Trigger.String() = %v, want %v", got, "SUBMIT")
	}
}

func TestMachine_FireValidTransition(t *testing.T) {
	m := buildTestChart().Build(stateDraft)

	if err := m.Fire(context.Background(), TriggerSubmit); err != nil {
		t.Fatalf("Fire() error = %v", err)
	}
	if m.State() != stateReview {
		t.Errorf("State() = %v, want %v", m.State(), stateReview)
	}
}

func TestMachine_FireInvalidTransition(t *testing.T) {
	m := buildTestChart().Build(stateDraft)

	err := m.Fire(context.Background(), TriggerApprove)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Fire() error = %v, want ErrInvalidTransition", err)
	}
	if m.State() != stateDraft {
		t.Errorf("state changed on failed transition: %v", m.State())
	}
}

func TestMachine_FireFromUnconfiguredState(t *testing.T) {
	m := buildTestChart().Build(stateDone)

	err := m.Fire(context.Background(), TriggerSubmit)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Fire() error = %v, want ErrInvalidTransition", err)
	}
}

func TestMachine_GuardedTransitions(t *testing.T) {
	type guardKey struct{}

	b := NewBuilder()
	b.Configure(stateReview).
		PermitIf(TriggerApprove, stateEscalate, func(ctx context.Context) bool {
			v, _ := ctx.Value(guardKey{}).(bool)
			return v
		}).
		Permit(TriggerApprove, stateDone)

	// Guard passes: first candidate wins.
	m := b.Build(stateReview)
	ctx := context.WithValue(context.Background(), guardKey{}, true)
	if err := m.Fire(ctx, TriggerApprove); err != nil {
		t.Fatalf("Fire() error = %v", err)
	}
	if m.State() != stateEscalate {
		t.Errorf("State() = %v, want %v", m.State(), stateEscalate)
	}

	// Guard fails: falls through to the unguarded candidate.
	m = b.Build(stateReview)
	if err := m.Fire(context.Background(), TriggerApprove); err != nil {
		t.Fatalf("Fire() error = %v", err)
	}
	if m.State() != stateDone {
		t.Errorf("State() = %v, want %v", m.State(), stateDone)
	}
}

func TestMachine_AllGuardsFail(t *testing.T) {
	b := NewBuilder()
	b.Configure(stateReview).
		PermitIf(TriggerApprove, stateDone, func(ctx context.Context) bool { return false })

	m := b.Build(stateReview)
	err := m.Fire(context.Background(), TriggerApprove)
	if !errors.Is(err, ErrGuardFailed) {
		t.Errorf("Fire() error = %v, want ErrGuardFailed", err)
	}
	if m.State() != stateReview {
		t.Errorf("state changed on guarded failure: %v", m.State())
	}
}

func TestMachine_CanFire(t *testing.T) {
	m := buildTestChart().Build(stateReview)

	if !m.CanFire(TriggerApprove) {
		t.Error("CanFire(APPROVE) = false, want true")
	}
	if m.CanFire(TriggerSubmit) {
		t.Error("CanFire(SUBMIT) = true, want false")
	}
}

func TestMachine_PermittedTriggers(t *testing.T) {
	m := buildTestChart().Build(stateReview)

	triggers := m.PermittedTriggers()
	if len(triggers) != 2 {
		t.Fatalf("PermittedTriggers() returned %d triggers, want 2", len(triggers))
	}
	seen := map[Trigger]bool{}
	for _, tr := range triggers {
		seen[tr] = true
	}
	if !seen[TriggerApprove] || !seen[TriggerReject] {
		t.Errorf("PermittedTriggers() = %v", triggers)
	}
}

func TestMachine_IsTerminal(t *testing.T) {
	b := buildTestChart()

	if b.Build(stateReview).IsTerminal() {
		t.Error("REVIEW reported terminal")
	}
	if !b.Build(stateDeclined).IsTerminal() {
		t.Error("DECLINED not reported terminal")
	}
}

func TestBuilder_BuildCopiesChart(t *testing.T) {
	b := buildTestChart()
	m := b.Build(stateDraft)

	// Mutating the builder after Build must not affect the live machine.
	b.Configure(stateDraft).Permit(TriggerReject, stateDeclined)

	if m.CanFire(TriggerReject) {
		t.Error("machine observed builder mutation after Build")
	}
}
