package lifecycle

import "time"

// Timer is a cancellable scheduled task
type Timer interface {
	// Stop prevents the task from running. It returns false if the task
	// already ran or was stopped.
	Stop() bool
}

// Scheduler is the single execution context controllers are confined to.
// Tasks posted to it run one at a time, in order.
type Scheduler interface {
	// Post enqueues a task without blocking
	Post(task func())

	// AfterFunc runs task on the scheduler once d has elapsed
	AfterFunc(d time.Duration, task func()) Timer

	// Now returns the scheduler's current time
	Now() time.Time
}
