// Package identity maps external user identities (the principal name an
// upstream gateway passes along) onto the numeric user ids the billing
// tables are keyed by.
//
// HashResolver reproduces the legacy string-hash mapping. It is lossy: two
// distinct identities can collide on the same id, so it exists only to keep
// ids issued by the old service stable. New deployments use TableResolver,
// which assigns ids from a sequence and remembers them in a MappingStore.
package identity
