// Package subscription manages a user's enrollment in a plan: creation with
// an optional trial, activation, cancellation, and the expiry sweeps, plus
// the provider calls for hosted checkout and payment confirmation.
//
// Caller-driven status changes go through the Lifecycle transition table.
// A user holds at most one ACTIVE or TRIAL subscription; Create checks this
// under the user lock and the store enforces it on every save.
package subscription
