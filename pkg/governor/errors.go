package governor

import "errors"

var (
	// ErrTimeout is returned when an operation does not finish within its budget. The operation's context is
	// cancelled at that moment, but an operation that ignores its context may keep running; its result is discarded.
	ErrTimeout = errors.New("governor: operation timed out")

	// ErrShuttingDown is returned for every admission attempted after Shutdown began, including admissions that
	// were already waiting in the queue.
	ErrShuttingDown = errors.New("governor: shutting down")

	// ErrQueueFull is returned when all slots are busy and the wait queue is at MaxQueue.
	ErrQueueFull = errors.New("governor: admission queue full")

	// ErrInvalidBudget is returned when the timeout budget is not positive. The operation is never started.
	ErrInvalidBudget = errors.New("governor: timeout budget must be positive")

	// ErrDrainTimeout is returned by Shutdown when active operations did not finish before its context ended.
	ErrDrainTimeout = errors.New("governor: drain deadline exceeded")
)

// IsUnavailable reports whether err means the governor refused or abandoned the work, which callers translate
// into an apology rather than an answer.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrShuttingDown) ||
		errors.Is(err, ErrQueueFull)
}
