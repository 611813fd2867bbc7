// Package api exposes the billing services over HTTP.
//
// Internal routes trust the API gateway: the caller's external identity
// arrives in the X-User-Id header and is mapped to a numeric user id through
// an identity.Resolver. A route addressing /users/{userId} only serves the
// caller itself.
//
// Every response uses the same JSON envelope:
//
//	{"data": ..., "meta": {...}, "error": {"code": "...", "message": "..."}}
//
// Provider webhooks are served under /webhooks and are authenticated by their
// signature instead of gateway headers.
package api
