// Package bonus grants tickets in response to business events published by
// other services: registrations, team creation, completed missions and
// unlocked achievements.
//
// Grants go through the ticket engine as admin adjustments, so each one is a
// single ledger row. Handling never fails a delivery: errors are logged and
// the event is acknowledged, which keeps a bad event from blocking its
// stream.
package bonus
