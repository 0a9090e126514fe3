package ports

import "time"

// Stop cancels a scheduled task. Calling it more than once is allowed.
type Stop func()

// Scheduler runs deferred and periodic callbacks.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) Stop
	Every(d time.Duration, fn func()) Stop
}
