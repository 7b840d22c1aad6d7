package scheduler

import "errors"

var (
	ErrSchedulerNotRunning = errors.New("scheduler: not running")
	ErrJobQueueFull        = errors.New("scheduler: job queue is full")
	ErrJobNotFound         = errors.New("scheduler: job not found")
	ErrInvalidConfig       = errors.New("scheduler: invalid configuration")
	// ErrInvalidJobKind covers an unknown kind and a pass kind without an entity type
	ErrInvalidJobKind = errors.New("scheduler: invalid sync job kind")
)
