// internal/sched/tickclock.go

package sched

import (
	"sync"
	"sync/atomic"
	"time"
)

// Poller is a tick source that RunOnce drains when no tick goroutine drives
// the timers directly.
type Poller interface {
	// Elapsed returns the ticks accumulated since the previous call.
	Elapsed() uint32
}

// TickClock emits ticks and counts them atomically. With an onTick callback
// it plays the tick interrupt; without one it only accumulates ticks for
// Elapsed.
type TickClock struct {
	count   atomic.Int64
	pending atomic.Uint32
	wake    chan struct{}
	stop    chan struct{}
	once    sync.Once
}

// NewTickClock creates a clock but does not start it.
func NewTickClock() *TickClock {
	return &TickClock{
		wake: make(chan struct{}, 1),
		stop: make(chan struct{}),
	}
}

// Start begins emitting ticks at the given interval.
func (c *TickClock) Start(interval time.Duration, onTick func(elapsed uint32)) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.count.Add(1)
				if onTick != nil {
					onTick(1)
				} else {
					c.pending.Add(1)
				}
				select {
				case c.wake <- struct{}{}:
				default:
				}
			case <-c.stop:
				return
			}
		}
	}()
}

// Stop signals the clock to stop emitting ticks.
func (c *TickClock) Stop() {
	c.once.Do(func() { close(c.stop) })
}

// Count returns the current tick count atomically.
func (c *TickClock) Count() int64 {
	return c.count.Load()
}

// Wake fires after each tick, at most one pending at a time. It is shared
// with SleepHook, so a tick consumed there does not show up here.
func (c *TickClock) Wake() <-chan struct{} {
	return c.wake
}

// Elapsed implements Poller.
func (c *TickClock) Elapsed() uint32 {
	return c.pending.Swap(0)
}

// SleepHook waits for the next tick or the timeout, whichever comes first.
// It is the host stand-in for wait-for-interrupt.
func (c *TickClock) SleepHook() SleepHook {
	return func(timeoutMS uint32) {
		if timeoutMS == 0 {
			return
		}
		var timeout <-chan time.Time
		if timeoutMS != SleepForever {
			t := time.NewTimer(time.Duration(timeoutMS) * time.Millisecond)
			defer t.Stop()
			timeout = t.C
		}
		select {
		case <-c.wake:
		case <-timeout:
		case <-c.stop:
		}
	}
}
