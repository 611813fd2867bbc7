package scheduler

import "errors"

var (
	ErrNoJobs               = errors.New("scheduler has no jobs registered")
	ErrJobAlreadyRegistered = errors.New("job already registered")
	ErrJobNotFound          = errors.New("job not found")
	ErrInvalidJob           = errors.New("job needs a name, a schedule and a function")
	ErrJobPanicked          = errors.New("job panicked")
)
