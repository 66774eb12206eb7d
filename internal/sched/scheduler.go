// internal/sched/scheduler.go

package sched

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"time"

	"golang.org/x/exp/slices"

	"osal/internal/heap"
)

// Scheduler is a cooperative, priority-ordered event dispatcher. A task's
// priority is its position in the table: the lowest id with pending events
// always runs next, so a busy early task starves later ones.
type Scheduler struct {
	cs     Section  // guards events, timers, and the shared message queue
	cfg    Config   // configuration the scheduler was built with
	tasks  []Task   // static task table, callback banks last
	events []Events // pending-event word per task

	heap   *heap.Pool
	queue  *Queue
	timers *Timers
	cb     *CallbackTimers
	power  *PowerManager

	poller   Poller
	wake     <-chan struct{} // idle Run passes block here until the next tick
	observer func(StatusEvent)

	initialized bool
	idle        bool // last pass found nothing to run
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithPoller makes RunOnce drain p for elapsed ticks on every pass.
func WithPoller(p Poller) Option {
	return func(s *Scheduler) { s.poller = p }
}

// WithWaker makes idle Run passes block on ch instead of spinning. ch
// should fire at least once per tick, as TickClock.Wake does; events posted
// from other goroutines are picked up on the next wake.
func WithWaker(ch <-chan struct{}) Option {
	return func(s *Scheduler) { s.wake = ch }
}

// WithSleepHook installs the platform low-power entry.
func WithSleepHook(h SleepHook) Option {
	return func(s *Scheduler) { s.power.hook = h }
}

// WithObserver streams status events to fn. fn may run on the tick
// goroutine and must not call back into the scheduler.
func WithObserver(fn func(StatusEvent)) Option {
	return func(s *Scheduler) { s.observer = fn }
}

// WithHeap replaces the message heap built from Config.HeapBytes.
func WithHeap(p *heap.Pool) Option {
	return func(s *Scheduler) { s.heap = p }
}

// New creates a scheduler for the given task table. Callback timer banks
// are appended after the application tasks.
func New(cfg Config, tasks []Task, opts ...Option) (*Scheduler, error) {
	cfg = cfg.clamp()
	if len(tasks) == 0 {
		return nil, ErrEmptyTaskTable
	}
	total := len(tasks) + banks(cfg.CallbackTimers)
	if total > MaxTasks {
		return nil, fmt.Errorf("%d tasks: %w", total, ErrTooManyTasks)
	}

	s := &Scheduler{
		cfg:  cfg,
		heap: heap.New(cfg.HeapBytes),
	}
	s.queue = newQueue(&s.cs)
	s.timers = newTimers(&s.cs, total, uint32(cfg.TickMS), s.signalLocked)
	s.timers.onExpire = s.expired
	s.cb = newCallbackTimers(s, cfg.CallbackTimers)
	s.power = newPowerManager(&s.cs, s.timers, total, nil)

	s.tasks = slices.Clone(tasks)
	for i := 0; i < banks(cfg.CallbackTimers); i++ {
		s.tasks = append(s.tasks, callbackBank{c: s.cb})
	}
	s.events = make([]Events, total)

	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Init clears every event word, resets the power manager, and runs each
// task's Init in table order.
func (s *Scheduler) Init() {
	g := s.cs.Enter()
	clear(s.events)
	g.Exit()

	s.power.init()
	if s.cfg.DeviceClass() == DeviceBattery {
		s.power.SetDeviceClass(DeviceBattery)
	}
	s.heap.Kick()

	for i, t := range s.tasks {
		if t == nil {
			halt(fmt.Sprintf("nil task at index %d", i))
		}
		t.Init(s, TaskID(i))
	}
	s.initialized = true
}

// RunOnce is one scheduler pass: service the tick source, then run the
// highest-priority ready task once. When nothing is ready it gives the
// power manager a chance to idle. It reports whether a task ran.
func (s *Scheduler) RunOnce() bool {
	if s.poller != nil {
		if n := s.poller.Elapsed(); n > 0 {
			s.timers.Advance(n)
		}
	}

	g := s.cs.Enter()
	idx := slices.IndexFunc(s.events, func(ev Events) bool { return ev != 0 })
	if idx < 0 {
		g.Exit()
		s.idlePass()
		return false
	}
	pending := s.events[idx]
	s.events[idx] = 0
	g.Exit()

	s.idle = false
	id := TaskID(idx)
	s.emit(StatusEvent{Kind: StatusDispatch, TaskID: id, Events: pending})

	if rest := s.tasks[idx].ProcessEvent(id, pending); rest != 0 {
		g = s.cs.Enter()
		s.events[idx] |= rest
		g.Exit()
	}
	return true
}

func (s *Scheduler) idlePass() {
	if !s.idle {
		s.idle = true
		s.emit(StatusEvent{Kind: StatusIdle})
	}
	if !s.cfg.PowerSaving {
		return
	}
	if timeout, slept := s.power.MaybeIdle(); slept {
		s.emit(StatusEvent{Kind: StatusSleep, Timeout: timeout})
	}
}

// RunForever never returns.
func (s *Scheduler) RunForever() {
	for {
		s.RunOnce()
	}
}

// Run loops RunOnce until ctx is cancelled. Idle passes wait for the waker
// when one is configured and otherwise yield the processor.
func (s *Scheduler) Run(ctx context.Context) error {
	if !s.initialized {
		return ErrNotInitialized
	}
	for {
		// 1) check shutdown
		if ctx.Err() != nil {
			return nil
		}
		// 2) one pass; nothing ran means nothing to do until the next tick
		if s.RunOnce() {
			continue
		}
		if s.wake == nil {
			runtime.Gosched()
			continue
		}
		select {
		case <-s.wake:
		case <-ctx.Done():
			return nil
		}
	}
}

// PostEvent sets bits on task id. Safe from any goroutine.
func (s *Scheduler) PostEvent(id TaskID, bits Events) error {
	if !s.validTask(id) {
		return fmt.Errorf("post event to task %d: %w", id, ErrInvalidTask)
	}
	g := s.cs.Enter()
	s.events[id] |= bits
	g.Exit()
	return nil
}

// ClearEvent clears bits on task id. Safe from any goroutine.
func (s *Scheduler) ClearEvent(id TaskID, bits Events) error {
	if !s.validTask(id) {
		return fmt.Errorf("clear event on task %d: %w", id, ErrInvalidTask)
	}
	g := s.cs.Enter()
	s.events[id] &^= bits
	g.Exit()
	return nil
}

// Events returns the pending word of task id.
func (s *Scheduler) Events(id TaskID) Events {
	if !s.validTask(id) {
		return 0
	}
	g := s.cs.Enter()
	defer g.Exit()
	return s.events[id]
}

// TaskCount returns the table size, callback banks included.
func (s *Scheduler) TaskCount() int { return len(s.tasks) }

// Critical returns the kernel's critical section.
func (s *Scheduler) Critical() *Section { return &s.cs }

// Timers exposes the timer list, e.g. for a tick interrupt to Advance.
func (s *Scheduler) Timers() *Timers { return s.timers }

// Power exposes the power manager.
func (s *Scheduler) Power() *PowerManager { return s.power }

// Heap exposes the message heap.
func (s *Scheduler) Heap() *heap.Pool { return s.heap }

// Advance feeds elapsed ticks into the timer list.
func (s *Scheduler) Advance(elapsed uint32) { s.timers.Advance(elapsed) }

// StartTimer arms a one-shot timer that sets bits on id after ms.
func (s *Scheduler) StartTimer(id TaskID, bits Events, ms uint32) error {
	return s.timers.Start(id, bits, s.timers.msToTicks(ms))
}

// StartReloadTimer arms a timer that sets bits on id every ms.
func (s *Scheduler) StartReloadTimer(id TaskID, bits Events, ms uint32) error {
	return s.timers.StartReload(id, bits, s.timers.msToTicks(ms))
}

// StopTimer cancels the timer for (id, bits).
func (s *Scheduler) StopTimer(id TaskID, bits Events) error {
	return s.timers.Stop(id, bits)
}

// Remaining returns the ms left on the timer for (id, bits), saturating at
// math.MaxUint32.
func (s *Scheduler) Remaining(id TaskID, bits Events) (uint32, bool) {
	ticks, ok := s.timers.Remaining(id, bits)
	ms := uint64(ticks) * uint64(s.timers.tickMS)
	if ms > math.MaxUint32 {
		return math.MaxUint32, ok
	}
	return uint32(ms), ok
}

// SystemClock returns milliseconds since boot, wrapping at 2^32.
func (s *Scheduler) SystemClock() uint32 { return s.timers.SystemClock() }

// StartCallbackTimer runs fn(data) from a callback bank after ms, and again
// every ms if reload is set.
func (s *Scheduler) StartCallbackTimer(fn CallbackFunc, data any, ms uint32, reload bool) (SlotID, error) {
	return s.cb.Start(fn, data, ms, reload)
}

// UpdateCallbackTimer retimes an active callback timer.
func (s *Scheduler) UpdateCallbackTimer(slot SlotID, ms uint32) error {
	return s.cb.Update(slot, ms)
}

// StopCallbackTimer cancels a callback timer and frees its slot.
func (s *Scheduler) StopCallbackTimer(slot SlotID) error {
	return s.cb.Stop(slot)
}

// CallbackTimers exposes the callback timer table.
func (s *Scheduler) CallbackTimers() *CallbackTimers { return s.cb }

func (s *Scheduler) validTask(id TaskID) bool {
	return int(id) < len(s.events)
}

// signalLocked is the timer list's way of flagging a task.
func (s *Scheduler) signalLocked(id TaskID, bits Events) {
	s.events[id] |= bits
}

func (s *Scheduler) expired(id TaskID, bits Events) {
	s.emit(StatusEvent{Kind: StatusExpire, TaskID: id, Events: bits})
}

func (s *Scheduler) emit(ev StatusEvent) {
	if s.observer == nil {
		return
	}
	ev.Time = time.Now()
	ev.Clock = s.timers.SystemClock()
	s.observer(ev)
}
