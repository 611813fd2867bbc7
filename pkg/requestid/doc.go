// Package requestid tags every HTTP request with an id carried in the
// X-Request-ID header and the request context. A caller-supplied id is kept
// when it is short and made of [A-Za-z0-9_-]; otherwise a UUID is issued.
// LoggerExtractor adds the id to every record logged with that context.
package requestid
