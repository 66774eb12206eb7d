package job

import (
	"sync/atomic"

	"osal/internal/sched"
)

const (
	// EvtKeyPending tells the button task that presses are buffered.
	EvtKeyPending sched.Events = 0x0001

	// EventKeyChange is the event code of a key message.
	EventKeyChange uint8 = 0xC0
)

// Button buffers key presses from interrupt context and forwards them to a
// consumer task as messages.
type Button struct {
	Consumer  sched.TaskID
	Depth     int    // presses buffered before new ones are dropped, 4 if zero
	AutoKey   uint8  // key reported by the auto-press timer
	AutoPress uint32 // ms between simulated presses, 0 to disable

	s       *sched.Scheduler
	id      sched.TaskID
	pending *sched.Queue
	dropped atomic.Int64
}

func (b *Button) Init(s *sched.Scheduler, id sched.TaskID) {
	b.s, b.id = s, id
	b.pending = s.NewQueue()
	if b.Depth <= 0 {
		b.Depth = 4
	}
	if b.AutoPress > 0 {
		if _, err := s.StartCallbackTimer(func(data any) { b.Press(data.(uint8)) }, b.AutoKey, b.AutoPress, true); err != nil {
			panic(err)
		}
	}
}

// Press records a key press. It may be called from any goroutine.
func (b *Button) Press(key uint8) {
	m, err := b.s.AllocMessage(2)
	if err != nil {
		b.dropped.Add(1)
		return
	}
	buf := m.Bytes()
	buf[0], buf[1] = EventKeyChange, key
	if !b.pending.EnqueueMax(m, b.Depth) {
		_ = b.s.FreeMessage(m)
		b.dropped.Add(1)
		return
	}
	_ = b.s.PostEvent(b.id, EvtKeyPending)
}

// Dropped returns how many presses were lost to a full buffer or heap.
func (b *Button) Dropped() int64 { return b.dropped.Load() }

func (b *Button) ProcessEvent(id sched.TaskID, events sched.Events) sched.Events {
	if events&EvtKeyPending != 0 {
		for m, ok := b.pending.Dequeue(); ok; m, ok = b.pending.Dequeue() {
			if err := b.s.SendMessage(b.Consumer, m); err != nil {
				b.dropped.Add(1)
			}
		}
		return events ^ EvtKeyPending
	}
	return 0
}
