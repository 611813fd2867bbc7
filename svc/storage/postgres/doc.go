// Package postgres implements billing.Store on PostgreSQL through pgx.
//
// Each Atomic call is one database transaction. Tx.Lock takes a
// transaction-scoped advisory lock derived from the key, so callers that
// lock the same user or subscription serialize across processes. Uniqueness
// rules live in the schema (see migrations/) and surface as the matching
// billing conflict errors.
package postgres
