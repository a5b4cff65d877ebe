package flow

import (
	"context"
	"fmt"
)

// GuardFunc evaluates whether a transition should be allowed. Guards read
// their inputs from the context; they never perform I/O.
type GuardFunc func(ctx context.Context) bool

// Builder assembles a transition chart and builds machine instances from it.
// A chart is data: state -> trigger -> ordered candidate transitions, each
// with an optional guard. When a trigger fires, candidates are tried in
// registration order and the first whose guard passes wins.
type Builder struct {
	charts map[State]map[Trigger][]transition
}

type transition struct {
	toState State
	guard   GuardFunc
}

// StateConfig configures the outgoing transitions of one state.
type StateConfig struct {
	builder *Builder
	from    State
}

// NewBuilder creates an empty chart builder.
func NewBuilder() *Builder {
	return &Builder{charts: make(map[State]map[Trigger][]transition)}
}

// Configure returns the configuration handle for a state, creating its
// entry on first use.
func (b *Builder) Configure(state State) *StateConfig {
	if _, ok := b.charts[state]; !ok {
		b.charts[state] = make(map[Trigger][]transition)
	}
	return &StateConfig{builder: b, from: state}
}

// Permit allows a trigger to transition unconditionally to the target state.
func (c *StateConfig) Permit(trigger Trigger, toState State) *StateConfig {
	return c.PermitIf(trigger, toState, nil)
}

// PermitIf allows a trigger to transition to the target state when the guard
// passes. Registration order sets evaluation priority.
func (c *StateConfig) PermitIf(trigger Trigger, toState State, guard GuardFunc) *StateConfig {
	transitions := c.builder.charts[c.from]
	transitions[trigger] = append(transitions[trigger], transition{toState: toState, guard: guard})
	return c
}

// Build creates a machine instance positioned at the given state. The chart
// is copied so later builder mutations cannot affect live machines.
func (b *Builder) Build(initial State) StateMachine {
	charts := make(map[State]map[Trigger][]transition, len(b.charts))
	for state, triggers := range b.charts {
		copied := make(map[Trigger][]transition, len(triggers))
		for trigger, candidates := range triggers {
			copied[trigger] = append([]transition(nil), candidates...)
		}
		charts[state] = copied
	}
	return &machine{current: initial, charts: charts}
}

type machine struct {
	current State
	charts  map[State]map[Trigger][]transition
}

func (m *machine) State() State {
	return m.current
}

func (m *machine) CanFire(trigger Trigger) bool {
	return len(m.charts[m.current][trigger]) > 0
}

func (m *machine) Fire(ctx context.Context, trigger Trigger) error {
	candidates, ok := m.charts[m.current][trigger]
	if !ok || len(candidates) == 0 {
		return fmt.Errorf("%w: cannot fire %s from state %s", ErrInvalidTransition, trigger, m.current)
	}

	for _, t := range candidates {
		if t.guard == nil || t.guard(ctx) {
			m.current = t.toState
			return nil
		}
	}

	return fmt.Errorf("%w: trigger %s from state %s", ErrGuardFailed, trigger, m.current)
}

func (m *machine) PermittedTriggers() []Trigger {
	triggers := make([]Trigger, 0, len(m.charts[m.current]))
	for trigger := range m.charts[m.current] {
		triggers = append(triggers, trigger)
	}
	return triggers
}

func (m *machine) IsTerminal() bool {
	return len(m.charts[m.current]) == 0
}
