package sched

// TaskID identifies a task by its position in the task table.
type TaskID uint8

// NoTask marks a message that no queue owns and a callback bank that has not
// been bound yet.
const NoTask TaskID = 0xFF

// MaxTasks is the largest table New accepts, callback timer banks included.
const MaxTasks = int(NoTask)

// Events is a task's pending-work word.
type Events uint16

// EventMessage is set while at least one message is queued for the task.
// The other 15 bits belong to the task.
const EventMessage Events = 0x8000

// Task is one statically registered unit of cooperative work.
type Task interface {
	// Init runs once from Scheduler.Init, in table order.
	Init(s *Scheduler, id TaskID)
	// ProcessEvent handles a snapshot of pending events and returns the
	// events it did not handle; those are OR-ed back into the live word.
	ProcessEvent(id TaskID, events Events) Events
}

// TaskFunc adapts a pair of plain functions to Task. A nil InitFn is skipped.
type TaskFunc struct {
	InitFn    func(s *Scheduler, id TaskID)
	HandlerFn func(id TaskID, events Events) Events
}

func (f TaskFunc) Init(s *Scheduler, id TaskID) {
	if f.InitFn != nil {
		f.InitFn(s, id)
	}
}

func (f TaskFunc) ProcessEvent(id TaskID, events Events) Events {
	if f.HandlerFn == nil {
		return 0
	}
	return f.HandlerFn(id, events)
}
