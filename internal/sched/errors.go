package sched

import "errors"

// Status errors returned to the immediate caller. None of them stop the
// scheduler.
var (
	ErrInvalidTask       = errors.New("invalid task")
	ErrInvalidMessage    = errors.New("invalid message")
	ErrBufferUnavailable = errors.New("no buffer available")
	ErrNoTimerAvailable  = errors.New("no timer available")
	ErrTimerNotFound     = errors.New("timer not found")
	ErrInvalidEvent      = errors.New("invalid event mask")
	ErrInvalidSlot       = errors.New("invalid callback timer slot")
	ErrInvalidCallback   = errors.New("nil callback")
	ErrEmptyTaskTable    = errors.New("empty task table")
	ErrTooManyTasks      = errors.New("task table too large")
	ErrNotInitialized    = errors.New("scheduler not initialized")
)

// halt stops the kernel on a broken internal invariant.
func halt(msg string) {
	panic("sched: " + msg)
}
