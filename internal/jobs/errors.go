package jobs

import "errors"

var (
	// ErrJobNotFound is returned by JobStore implementations for unknown ids.
	ErrJobNotFound = errors.New("job not found")

	// ErrQueueClosed is returned when publishing to or starting a stopped queue.
	ErrQueueClosed = errors.New("queue is closed")
)
