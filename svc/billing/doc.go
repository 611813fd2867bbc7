// Package billing holds the domain model shared by the ticket, subscription,
// reconciliation and bonus services: plans, subscriptions, ticket accounts,
// ledger rows, payment transactions, the error taxonomy and the storage
// contract every backend implements.
//
// # Error Handling
//
// Errors returned by the services are classified by kind and can be tested with
// errors.Is:
//
//   - ErrValidation           bad input, nothing mutated
//   - ErrNotFound             unknown plan, subscription or provider reference
//   - ErrConflict             duplicate active subscription, illegal status change
//   - ErrInsufficientBalance  authoritative adjustment would drive a balance negative
//   - ErrUpstreamProvider     payment provider call failed
//
// Specific errors such as ErrPlanNotFound unwrap to their kind.
//
// # Storage
//
// Store exposes read methods directly and groups writes into units executed
// by Atomic. A unit either commits as a whole or leaves no trace. Inside a
// unit, Tx.Lock serializes work on a key (a user or a subscription) across
// concurrent callers and processes.
package billing
