// internal/sched/schedulerEvent.go

package sched

import (
	"time"
)

// StatusKind represents the type of scheduler event
type StatusKind int

const (
	StatusIdle StatusKind = iota
	StatusDispatch
	StatusSleep
	StatusExpire
)

// StatusEvent is emitted on dispatch, timer expiry, and idle transitions.
type StatusEvent struct {
	Time    time.Time
	Kind    StatusKind
	TaskID  TaskID
	Events  Events // snapshot handed to the task, or the expired timer bits
	Clock   uint32 // system clock in ms
	Timeout uint32 // sleep bound, StatusSleep only
}

func (sk StatusKind) String() string {
	switch sk {
	case StatusIdle:
		return "Idle"
	case StatusDispatch:
		return "Dispatch"
	case StatusSleep:
		return "Sleep"
	case StatusExpire:
		return "Expire"
	default:
		return "Unknown"
	}
}
