package statemachine

import (
	"context"
	"fmt"
	"sync"
)

// State represents a state in the state machine.
type State interface {
	Name() string
}

// Event represents an event that can trigger a state transition.
type Event interface {
	Name() string
}

// Action executes side effects during state transitions. Returning an error prevents the transition.
type Action func(ctx context.Context, from, to State, event Event, data any) error

// Guard evaluates whether a transition should be allowed based on runtime conditions.
type Guard func(ctx context.Context, from State, event Event, data any) bool

// Transition defines a state change triggered by an event, with optional guards and actions.
type Transition struct {
	From    State
	To      State
	Event   Event
	Guards  []Guard  // All must pass for transition to proceed
	Actions []Action // Executed in order before the target is returned
}

// StringState provides a simple string-based state implementation for basic use cases.
type StringState string

func (s StringState) Name() string {
	return string(s)
}

// StringEvent provides a simple string-based event implementation for basic use cases.
type StringEvent string

func (e StringEvent) Name() string {
	return string(e)
}

// Table maps (state, event) pairs to transitions: [fromState][event][]Transition.
type Table struct {
	transitions map[string]map[string][]Transition
	mu          sync.RWMutex
}

func newTable() *Table {
	return &Table{transitions: make(map[string]map[string][]Transition)}
}

func (t *Table) AddTransition(from, to State, event Event, guards []Guard, actions []Action) error {
	if from == nil || to == nil || event == nil {
		return ErrInvalidTransition
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.transitions[from.Name()]; !ok {
		t.transitions[from.Name()] = make(map[string][]Transition)
	}
	t.transitions[from.Name()][event.Name()] = append(t.transitions[from.Name()][event.Name()], Transition{
		From:    from,
		To:      to,
		Event:   event,
		Guards:  guards,
		Actions: actions,
	})
	return nil
}

// Fire resolves event from the given state and runs the winning transition's
// actions. It returns the target state; the caller is responsible for
// persisting it.
func (t *Table) Fire(ctx context.Context, from State, event Event, data any) (State, error) {
	if from == nil {
		return nil, ErrInvalidState
	}
	if event == nil {
		return nil, ErrInvalidEvent
	}

	tr, err := t.resolve(ctx, from, event, data)
	if err != nil {
		return nil, err
	}

	for _, action := range tr.Actions {
		if action == nil {
			continue
		}
		if err := action(ctx, from, tr.To, event, data); err != nil {
			return nil, fmt.Errorf("action failed: %w", err)
		}
	}

	return tr.To, nil
}

// CanFire reports whether event would be accepted from the given state.
func (t *Table) CanFire(ctx context.Context, from State, event Event, data any) bool {
	if from == nil || event == nil {
		return false
	}
	_, err := t.resolve(ctx, from, event, data)
	return err == nil
}

// Events lists the event names defined for a state.
func (t *Table) Events(from State) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	names := make([]string, 0, len(t.transitions[from.Name()]))
	for name := range t.transitions[from.Name()] {
		names = append(names, name)
	}
	return names
}

func (t *Table) resolve(ctx context.Context, from State, event Event, data any) (*Transition, error) {
	t.mu.RLock()
	candidates := t.transitions[from.Name()][event.Name()]
	t.mu.RUnlock()

	if len(candidates) == 0 {
		return nil, &TransitionError{From: from.Name(), Event: event.Name(), Reason: ErrNoTransition}
	}

	// First transition with passing guards wins
	for i := range candidates {
		if guardsPass(ctx, candidates[i], from, event, data) {
			return &candidates[i], nil
		}
	}

	return nil, &TransitionError{From: from.Name(), Event: event.Name(), Reason: ErrRejected}
}

func guardsPass(ctx context.Context, tr Transition, from State, event Event, data any) bool {
	for _, guard := range tr.Guards {
		if guard != nil && !guard(ctx, from, event, data) {
			return false
		}
	}
	return true
}
