package httpserver

import (
	"fmt"
	"log/slog"
	"time"
)

// Option configures the HTTP server. Options given invalid values panic
// when constructed.
type Option func(*config)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	if addr == "" {
		panic("httpserver: empty listen address")
	}
	return func(c *config) { c.addr = addr }
}

// WithReadTimeout bounds reading a whole request.
func WithReadTimeout(d time.Duration) Option {
	return timeout("read", d, func(c *config) *time.Duration { return &c.readTimeout })
}

// WithReadHeaderTimeout bounds reading request headers separately from
// the body.
func WithReadHeaderTimeout(d time.Duration) Option {
	return timeout("read header", d, func(c *config) *time.Duration { return &c.readHeaderTimeout })
}

// WithWriteTimeout bounds writing a response.
func WithWriteTimeout(d time.Duration) Option {
	return timeout("write", d, func(c *config) *time.Duration { return &c.writeTimeout })
}

// WithIdleTimeout sets how long keep-alive connections wait for the next request.
func WithIdleTimeout(d time.Duration) Option {
	return timeout("idle", d, func(c *config) *time.Duration { return &c.idleTimeout })
}

// WithShutdownTimeout sets how long in-flight requests may drain.
func WithShutdownTimeout(d time.Duration) Option {
	return timeout("shutdown", d, func(c *config) *time.Duration { return &c.shutdownTimeout })
}

// WithMaxHeaderBytes caps the size of request headers.
func WithMaxHeaderBytes(n int) Option {
	if n <= 0 {
		panic("httpserver: max header bytes must be positive")
	}
	return func(c *config) { c.maxHeaderBytes = n }
}

// WithLogger sets the logger. Nil keeps slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

func timeout(name string, d time.Duration, field func(*config) *time.Duration) Option {
	if d <= 0 {
		panic(fmt.Sprintf("httpserver: %s timeout must be positive, got %s", name, d))
	}
	return func(c *config) { *field(c) = d }
}
