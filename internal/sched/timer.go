// internal/sched/timer.go

package sched

import (
	"fmt"

	"github.com/emirpasic/gods/maps/linkedhashmap"
)

// timerKey identifies a timer: one task, one event mask.
type timerKey struct {
	task TaskID
	bits Events
}

type timerEntry struct {
	remaining uint32 // ticks left, never above duration
	duration  uint32
	reload    bool
}

// Timers is the countdown list driven by the tick source. Entries expire in
// the order they were first started.
type Timers struct {
	cs        *Section
	entries   *linkedhashmap.Map // timerKey -> *timerEntry
	taskCount int
	tickMS    uint32
	clockMS   uint32 // wraps at 2^32

	fire     func(id TaskID, bits Events) // called with the section held
	onExpire func(id TaskID, bits Events) // called after the section is released
}

func newTimers(cs *Section, taskCount int, tickMS uint32, fire func(TaskID, Events)) *Timers {
	return &Timers{
		cs:        cs,
		entries:   linkedhashmap.New(),
		taskCount: taskCount,
		tickMS:    tickMS,
		fire:      fire,
	}
}

// Start arms a one-shot timer, or retimes the existing one for the same key.
func (t *Timers) Start(id TaskID, bits Events, ticks uint32) error {
	return t.start(id, bits, ticks, false)
}

// StartReload arms a timer that re-arms itself with ticks after every expiry.
func (t *Timers) StartReload(id TaskID, bits Events, ticks uint32) error {
	return t.start(id, bits, ticks, true)
}

func (t *Timers) start(id TaskID, bits Events, ticks uint32, reload bool) error {
	if int(id) >= t.taskCount {
		return fmt.Errorf("start timer for task %d: %w", id, ErrInvalidTask)
	}
	if bits == 0 {
		return ErrInvalidEvent
	}

	g := t.cs.Enter()
	defer g.Exit()

	key := timerKey{task: id, bits: bits}
	if v, found := t.entries.Get(key); found {
		e := v.(*timerEntry)
		e.remaining, e.duration, e.reload = ticks, ticks, reload
		return nil
	}
	t.entries.Put(key, &timerEntry{remaining: ticks, duration: ticks, reload: reload})
	return nil
}

// Stop cancels a timer. A missing timer is reported but harmless.
func (t *Timers) Stop(id TaskID, bits Events) error {
	g := t.cs.Enter()
	defer g.Exit()

	key := timerKey{task: id, bits: bits}
	if _, found := t.entries.Get(key); !found {
		return ErrTimerNotFound
	}
	t.entries.Remove(key)
	return nil
}

// Remaining returns the ticks left on a timer.
func (t *Timers) Remaining(id TaskID, bits Events) (uint32, bool) {
	g := t.cs.Enter()
	defer g.Exit()

	v, found := t.entries.Get(timerKey{task: id, bits: bits})
	if !found {
		return 0, false
	}
	return v.(*timerEntry).remaining, true
}

// Advance moves every timer forward by elapsed ticks. Each timer that
// reaches zero flags its task; one-shots are dropped and reload timers start
// again from their full duration, whatever the overshoot.
func (t *Timers) Advance(elapsed uint32) int {
	if elapsed == 0 {
		return 0
	}

	g := t.cs.Enter()
	t.clockMS += elapsed * t.tickMS

	var expired []timerKey
	var done []timerKey
	it := t.entries.Iterator()
	for it.Next() {
		e := it.Value().(*timerEntry)
		if e.remaining > elapsed {
			e.remaining -= elapsed
			continue
		}
		key := it.Key().(timerKey)
		t.fire(key.task, key.bits)
		expired = append(expired, key)
		if e.reload {
			e.remaining = e.duration
		} else {
			e.remaining = 0
			done = append(done, key)
		}
	}
	for _, key := range done {
		t.entries.Remove(key)
	}
	g.Exit()

	if t.onExpire != nil {
		for _, key := range expired {
			t.onExpire(key.task, key.bits)
		}
	}
	return len(expired)
}

// NextTimeout returns the smallest remaining tick count across all timers.
func (t *Timers) NextTimeout() (uint32, bool) {
	g := t.cs.Enter()
	defer g.Exit()
	return t.nextTimeoutLocked()
}

func (t *Timers) nextTimeoutLocked() (uint32, bool) {
	var min uint32
	found := false
	it := t.entries.Iterator()
	for it.Next() {
		r := it.Value().(*timerEntry).remaining
		if !found || r < min {
			min, found = r, true
		}
	}
	return min, found
}

// SystemClock returns milliseconds since boot. It wraps at 2^32, so compare
// readings by subtraction.
func (t *Timers) SystemClock() uint32 {
	g := t.cs.Enter()
	defer g.Exit()
	return t.clockMS
}

// Len returns the number of active timers.
func (t *Timers) Len() int {
	g := t.cs.Enter()
	defer g.Exit()
	return t.entries.Size()
}

// msToTicks rounds up so a timer never fires early.
func (t *Timers) msToTicks(ms uint32) uint32 {
	if t.tickMS <= 1 {
		return ms
	}
	return ms/t.tickMS + boolToUint32(ms%t.tickMS != 0)
}

func boolToUint32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
