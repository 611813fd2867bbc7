// Package httpserver runs an http.Handler until its context is cancelled and
// then drains in-flight requests within a shutdown timeout.
//
// Signal handling is left to the caller: cmd/billingd derives the context
// from signal.NotifyContext and runs the server next to the scheduler and
// the event consumers in one errgroup.
//
// Health exposes liveness and readiness probes over named dependency checks.
package httpserver
