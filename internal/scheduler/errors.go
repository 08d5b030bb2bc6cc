package scheduler

import "errors"

var (
	// ErrUnknownTask is returned when a task name is not registered
	ErrUnknownTask = errors.New("unknown task")

	// ErrDuplicateTask is returned when a task name is registered twice
	ErrDuplicateTask = errors.New("duplicate task")

	// ErrInvalidSchedule is returned for a schedule that is neither a duration nor a cron expression
	ErrInvalidSchedule = errors.New("invalid schedule")

	// ErrTaskPanicked wraps a panic recovered from a task
	ErrTaskPanicked = errors.New("task panicked")
)
