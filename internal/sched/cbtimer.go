// internal/sched/cbtimer.go

package sched

import (
	"fmt"
	"sync"

	"golang.org/x/exp/slices"
)

// SlotsPerBank is the number of callback timers one bank task carries: one
// per task-private event bit.
const SlotsPerBank = 15

// CallbackFunc is invoked from the owning bank task when its timer expires.
type CallbackFunc func(data any)

// SlotID addresses a callback timer.
type SlotID int

type cbSlot struct {
	fn   CallbackFunc
	data any
}

// CallbackTimers multiplexes plain callbacks onto the timer list. Slot i is
// backed by the timer (base + i/15, 1<<(i%15)).
type CallbackTimers struct {
	s *Scheduler

	mu    sync.Mutex // slot table; taken before the critical section, never inside it
	base  TaskID
	slots []cbSlot
}

func newCallbackTimers(s *Scheduler, n int) *CallbackTimers {
	return &CallbackTimers{s: s, base: NoTask, slots: make([]cbSlot, n)}
}

// banks returns how many bank tasks n slots need.
func banks(n int) int {
	return (n + SlotsPerBank - 1) / SlotsPerBank
}

// bind records the first bank's task id. Later calls are ignored.
func (c *CallbackTimers) bind(id TaskID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.base == NoTask {
		c.base = id
	}
}

func (c *CallbackTimers) timerFor(slot int) (TaskID, Events) {
	return c.base + TaskID(slot/SlotsPerBank), Events(1) << (slot % SlotsPerBank)
}

// Start claims the first free slot and arms its timer.
func (c *CallbackTimers) Start(fn CallbackFunc, data any, ms uint32, reload bool) (SlotID, error) {
	if fn == nil {
		return -1, ErrInvalidCallback
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	idx := slices.IndexFunc(c.slots, func(sl cbSlot) bool { return sl.fn == nil })
	if idx < 0 {
		return -1, ErrNoTimerAvailable
	}
	if c.base == NoTask {
		return -1, fmt.Errorf("callback timers not bound: %w", ErrInvalidTask)
	}

	id, bits := c.timerFor(idx)
	ticks := c.s.timers.msToTicks(ms)
	var err error
	if reload {
		err = c.s.timers.StartReload(id, bits, ticks)
	} else {
		err = c.s.timers.Start(id, bits, ticks)
	}
	if err != nil {
		return -1, err
	}
	c.slots[idx] = cbSlot{fn: fn, data: data}
	return SlotID(idx), nil
}

// Update retimes an occupied slot, keeping its reload mode.
func (c *CallbackTimers) Update(slot SlotID, ms uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.occupied(slot); err != nil {
		return err
	}
	id, bits := c.timerFor(int(slot))

	g := c.s.cs.Enter()
	defer g.Exit()
	v, found := c.s.timers.entries.Get(timerKey{task: id, bits: bits})
	if !found {
		return ErrTimerNotFound
	}
	e := v.(*timerEntry)
	ticks := c.s.timers.msToTicks(ms)
	e.remaining, e.duration = ticks, ticks
	return nil
}

// Stop cancels a slot and frees it. An expiry that is pending but not yet
// serviced is discarded with it, so the callback never runs after Stop.
func (c *CallbackTimers) Stop(slot SlotID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.occupied(slot); err != nil {
		return err
	}
	id, bits := c.timerFor(int(slot))

	g := c.s.cs.Enter()
	c.s.timers.entries.Remove(timerKey{task: id, bits: bits})
	c.s.events[id] &^= bits
	g.Exit()

	c.slots[slot] = cbSlot{}
	return nil
}

// InUse returns the number of occupied slots.
func (c *CallbackTimers) InUse() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, sl := range c.slots {
		if sl.fn != nil {
			n++
		}
	}
	return n
}

func (c *CallbackTimers) occupied(slot SlotID) error {
	if slot < 0 || int(slot) >= len(c.slots) {
		return ErrInvalidSlot
	}
	if c.slots[slot].fn == nil {
		return ErrTimerNotFound
	}
	return nil
}

// processEvent runs for a bank task. Stray messages are dropped, then one
// expired slot is serviced per call; the rest wait for the next pass.
func (c *CallbackTimers) processEvent(id TaskID, events Events) Events {
	if events&EventMessage != 0 {
		for m, ok := c.s.ReceiveMessage(id); ok; m, ok = c.s.ReceiveMessage(id) {
			_ = c.s.FreeMessage(m)
		}
		return events ^ EventMessage
	}

	c.mu.Lock()
	base := c.base
	c.mu.Unlock()
	if base == NoTask || id < base {
		return 0
	}

	for bit := 0; bit < SlotsPerBank; bit++ {
		mask := Events(1) << bit
		if events&mask == 0 {
			continue
		}
		slot := int(id-base)*SlotsPerBank + bit
		if slot >= len(c.slots) {
			return events ^ mask
		}

		c.mu.Lock()
		sl := c.slots[slot]
		c.mu.Unlock()
		if sl.fn != nil {
			sl.fn(sl.data)
		}

		c.mu.Lock()
		if _, alive := c.s.timers.Remaining(id, mask); !alive {
			c.slots[slot] = cbSlot{}
		}
		c.mu.Unlock()
		return events ^ mask
	}
	return 0
}

// callbackBank is the task table entry for one bank of callback timers.
type callbackBank struct {
	c *CallbackTimers
}

func (b callbackBank) Init(_ *Scheduler, id TaskID) { b.c.bind(id) }

func (b callbackBank) ProcessEvent(id TaskID, events Events) Events {
	return b.c.processEvent(id, events)
}
