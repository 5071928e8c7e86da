package scheduler

import "errors"

var (
	// ErrSchedulerNotRunning is returned when triggering a job on a stopped scheduler
	ErrSchedulerNotRunning = errors.New("scheduler is not running")

	// ErrJobAlreadyRunning is returned when a job of the same type is still executing
	ErrJobAlreadyRunning = errors.New("job of this type is already running")

	// ErrUnknownJobType is returned for job types the scheduler has no runner for
	ErrUnknownJobType = errors.New("unknown job type")

	// ErrInvalidConfig is returned when scheduler configuration is invalid
	ErrInvalidConfig = errors.New("invalid scheduler configuration")
)
