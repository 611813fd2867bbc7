// Package statemachine implements finite-state transition tables for
// entities whose current state lives in storage rather than in memory.
//
// A Table does not hold a "current" state. Callers load an entity, ask the
// table to fire an event from the entity's persisted state and receive the
// target state back, which they persist in the same unit of work. The same
// Table is shared by all goroutines and is safe for concurrent use.
//
// # Usage
//
//	const (
//		Draft     = statemachine.StringState("draft")
//		Published = statemachine.StringState("published")
//		Publish   = statemachine.StringEvent("publish")
//	)
//
//	table := statemachine.MustNew(
//		statemachine.WithTransition(Draft, Published, Publish,
//			statemachine.WithGuard(func(ctx context.Context, from statemachine.State, e statemachine.Event, data any) bool {
//				return data != nil
//			}),
//		),
//	)
//
//	next, err := table.Fire(ctx, doc.State, Publish, doc)
//	if errors.Is(err, statemachine.ErrNoTransition) {
//		// event not allowed from doc.State
//	}
//
// Several transitions may share a from/event pair. The first one whose guards
// all pass wins, so guard-based branching is expressed by registration order.
//
// # Error Handling
//
// ErrNoTransitionAvailable reports an event that is not defined for the
// state; ErrTransitionRejected reports that every candidate was blocked by
// its guards. Action errors abort the transition and are returned wrapped.
package statemachine
