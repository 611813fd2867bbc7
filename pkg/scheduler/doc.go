// Package scheduler runs periodic jobs inside the process.
//
// Jobs are registered with a Schedule and run one at a time, so a slow
// sweep delays the next due job instead of overlapping with it. A job that
// fails or panics is logged and rescheduled; it never stops the runner.
//
//	s := scheduler.New(scheduler.WithLogger(log))
//	_ = s.Add("ticket-refill", scheduler.EveryInterval(time.Hour), refill)
//	err := s.Run(ctx) // blocks until ctx is done
package scheduler
