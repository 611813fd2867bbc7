package scheduler

import (
	"log/slog"
	"time"
)

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithCheckInterval sets how often Run looks for due jobs. Default 1s.
func WithCheckInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// JobOption configures a single job.
type JobOption func(*job)

// RunOnStart makes the job due as soon as the scheduler starts.
func RunOnStart() JobOption {
	return func(j *job) { j.onStart = true }
}

// WithTimeout bounds each run of the job.
func WithTimeout(d time.Duration) JobOption {
	return func(j *job) { j.timeout = d }
}
