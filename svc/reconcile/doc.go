// Package reconcile turns payment provider notifications into local
// subscription and payment state.
//
// Provider events arrive as a closed set of Go types (see Event). Handle
// matches on the concrete type, applies the change in one billing.Store unit
// of work, and publishes the resulting domain events after commit. Events
// pointing at subscriptions or payments that do not exist locally are
// logged and reported as Skipped, never as errors, so a webhook transport
// acknowledges them instead of retrying forever.
//
// Delivery is at least once. Redeliveries are dropped by event id through an
// optional idempotency.Store, and invoice events are additionally matched on
// the provider invoice id so a payment row is never written twice.
//
// The provider is authoritative for statuses with one exception: a
// subscription is not activated while its user holds another ACTIVE or
// TRIAL one. The status is left as is and a warning is logged, while the
// payment itself is still recorded.
package reconcile
