package scheduler

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/missionlab/payment-service/pkg/logger"
)

// Job is one run of a periodic task. now is the scheduler's clock reading
// when the run started.
type Job func(ctx context.Context, now time.Time) error

type job struct {
	name     string
	schedule Schedule
	fn       Job
	onStart  bool
	timeout  time.Duration
	next     time.Time
}

// Scheduler runs registered jobs on their schedules.
type Scheduler struct {
	mu       sync.Mutex
	jobs     map[string]*job
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// New creates an empty scheduler.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		jobs:     make(map[string]*job),
		interval: time.Second,
		logger:   slog.Default(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(logger.Component("scheduler"))
	return s
}

// Add registers fn under name. The first run is planned from the current
// clock reading unless RunOnStart is given.
func (s *Scheduler) Add(name string, schedule Schedule, fn Job, opts ...JobOption) error {
	if name == "" || fn == nil || !validSchedule(schedule) {
		return ErrInvalidJob
	}

	j := &job{name: name, schedule: schedule, fn: fn}
	for _, opt := range opts {
		opt(j)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("%w: %s", ErrJobAlreadyRegistered, name)
	}

	now := s.now()
	if j.onStart {
		j.next = now
	} else {
		j.next = schedule.Next(now)
	}
	s.jobs[name] = j

	s.logger.Info("registered job",
		logger.Job(name),
		slog.String("schedule", schedule.String()),
		slog.Time("next_run", j.next))
	return nil
}

// Run checks for due jobs every check interval until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	n := len(s.jobs)
	s.mu.Unlock()
	if n == 0 {
		return ErrNoJobs
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.RunDue(ctx, s.now())
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.RunDue(ctx, s.now())
		}
	}
}

// RunDue runs, in planned order, every job whose next run is at or before
// now, and returns how many ran.
func (s *Scheduler) RunDue(ctx context.Context, now time.Time) int {
	s.mu.Lock()
	var due []*job
	for _, j := range s.jobs {
		if !j.next.After(now) {
			due = append(due, j)
		}
	}
	s.mu.Unlock()

	slices.SortFunc(due, func(a, b *job) int {
		if c := a.next.Compare(b.next); c != 0 {
			return c
		}
		return cmp.Compare(a.name, b.name)
	})

	ran := 0
	for _, j := range due {
		if ctx.Err() != nil {
			break
		}
		s.execute(ctx, j, now)
		ran++

		s.mu.Lock()
		next := j.schedule.Next(j.next)
		if !next.After(now) {
			// skip runs missed while the process was busy or asleep
			next = j.schedule.Next(now)
		}
		j.next = next
		s.mu.Unlock()
	}
	return ran
}

// Trigger runs the named job immediately, outside its schedule.
func (s *Scheduler) Trigger(ctx context.Context, name string) error {
	s.mu.Lock()
	j, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	return s.execute(ctx, j, s.now())
}

// Next reports when the named job runs next.
func (s *Scheduler) Next(name string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[name]
	if !ok {
		return time.Time{}, false
	}
	return j.next, true
}

func (s *Scheduler) execute(ctx context.Context, j *job, now time.Time) (err error) {
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrJobPanicked, r)
		}
		if err != nil {
			s.logger.ErrorContext(ctx, "job failed",
				logger.Job(j.name),
				logger.Duration(time.Since(start)),
				logger.Error(err))
			return
		}
		s.logger.DebugContext(ctx, "job finished",
			logger.Job(j.name),
			logger.Duration(time.Since(start)))
	}()

	return j.fn(ctx, now)
}
