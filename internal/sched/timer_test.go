package sched

import (
	"errors"
	"math"
	"testing"
)

const evtX Events = 0x0004

func TestOneShotFiresOnceAndIsRemoved(t *testing.T) {
	s := newTestScheduler(t, testConfig(), &recorder{}, &recorder{})

	if err := s.StartTimer(1, evtX, 100); err != nil {
		t.Fatalf("StartTimer() err = %v", err)
	}
	fired := 0
	for i := 1; i <= 300; i++ {
		s.Advance(1)
		if s.Events(1)&evtX != 0 {
			if i != 100 {
				t.Fatalf("timer fired at tick %d, want 100", i)
			}
			fired++
			_ = s.ClearEvent(1, evtX)
		}
	}
	if fired != 1 {
		t.Fatalf("timer fired %d times, want 1", fired)
	}
	if _, ok := s.Remaining(1, evtX); ok {
		t.Fatalf("one-shot timer still active after expiry")
	}
	if got := s.Timers().Len(); got != 0 {
		t.Fatalf("Len() = %d, want 0", got)
	}
}

func TestReloadFiresEveryPeriod(t *testing.T) {
	s := newTestScheduler(t, testConfig(), &recorder{}, &recorder{})

	if err := s.StartReloadTimer(1, evtX, 100); err != nil {
		t.Fatalf("StartReloadTimer() err = %v", err)
	}
	fired := 0
	for i := 1; i <= 1000; i++ {
		s.Advance(1)
		if s.Events(1)&evtX != 0 {
			if i%100 != 0 {
				t.Fatalf("reload timer fired at tick %d", i)
			}
			if rem, ok := s.Remaining(1, evtX); !ok || rem != 100 {
				t.Fatalf("Remaining() after expiry = %d, %v; want 100, true", rem, ok)
			}
			fired++
			_ = s.ClearEvent(1, evtX)
		}
	}
	if fired != 10 {
		t.Fatalf("reload timer fired %d times, want 10", fired)
	}
}

func TestReloadOvershootResetsToDuration(t *testing.T) {
	s := newTestScheduler(t, testConfig(), &recorder{})
	_ = s.StartReloadTimer(0, evtX, 100)

	if n := s.Timers().Advance(250); n != 1 {
		t.Fatalf("Advance(250) expired %d timers, want 1", n)
	}
	if rem, _ := s.Remaining(0, evtX); rem != 100 {
		t.Fatalf("Remaining() = %d, want 100", rem)
	}
}

func TestStartIsIdempotentOnKey(t *testing.T) {
	s := newTestScheduler(t, testConfig(), &recorder{})
	_ = s.StartTimer(0, evtX, 100)
	s.Advance(40)
	_ = s.StartTimer(0, evtX, 30)

	if got := s.Timers().Len(); got != 1 {
		t.Fatalf("Len() = %d, want 1", got)
	}
	if rem, _ := s.Remaining(0, evtX); rem != 30 {
		t.Fatalf("Remaining() = %d, want 30", rem)
	}
}

func TestStartValidation(t *testing.T) {
	s := newTestScheduler(t, testConfig(), &recorder{})

	if err := s.StartTimer(3, evtX, 10); !errors.Is(err, ErrInvalidTask) {
		t.Fatalf("StartTimer(3) err = %v, want ErrInvalidTask", err)
	}
	if err := s.StartTimer(0, 0, 10); !errors.Is(err, ErrInvalidEvent) {
		t.Fatalf("StartTimer(bits=0) err = %v, want ErrInvalidEvent", err)
	}
	if err := s.StopTimer(0, evtX); !errors.Is(err, ErrTimerNotFound) {
		t.Fatalf("StopTimer(missing) err = %v, want ErrTimerNotFound", err)
	}
}

func TestStopCancelsTimer(t *testing.T) {
	s := newTestScheduler(t, testConfig(), &recorder{})
	_ = s.StartTimer(0, evtX, 10)

	if err := s.StopTimer(0, evtX); err != nil {
		t.Fatalf("StopTimer() err = %v", err)
	}
	s.Advance(20)
	if s.Events(0) != 0 {
		t.Fatalf("stopped timer fired")
	}
}

func TestNextTimeoutTracksMinimum(t *testing.T) {
	s := newTestScheduler(t, testConfig(), &recorder{})
	timers := s.Timers()

	if _, ok := timers.NextTimeout(); ok {
		t.Fatalf("NextTimeout() ok = true with no timers")
	}
	_ = s.StartTimer(0, 0x1, 50)
	_ = s.StartTimer(0, 0x2, 30)
	if next, _ := timers.NextTimeout(); next != 30 {
		t.Fatalf("NextTimeout() = %d, want 30", next)
	}
	_ = s.StartTimer(0, 0x4, 10)
	if next, _ := timers.NextTimeout(); next != 10 {
		t.Fatalf("NextTimeout() = %d, want 10", next)
	}
	s.Advance(10)
	if next, _ := timers.NextTimeout(); next != 20 {
		t.Fatalf("NextTimeout() after expiry = %d, want 20", next)
	}
}

func TestExpiryOrderFollowsInsertion(t *testing.T) {
	var order []Events
	s, err := New(testConfig(), []Task{&recorder{}}, WithObserver(func(ev StatusEvent) {
		if ev.Kind == StatusExpire {
			order = append(order, ev.Events)
		}
	}))
	if err != nil {
		t.Fatalf("New() err = %v", err)
	}
	s.Init()

	_ = s.StartTimer(0, 0x8, 5)
	_ = s.StartTimer(0, 0x1, 5)
	_ = s.StartTimer(0, 0x2, 3)
	s.Advance(5)

	want := []Events{0x8, 0x1, 0x2}
	if len(order) != len(want) {
		t.Fatalf("expiry order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expiry order = %v, want %v", order, want)
		}
	}
}

func TestSystemClockWraps(t *testing.T) {
	cfg := testConfig()
	cfg.TickMS = 10
	s := newTestScheduler(t, cfg, &recorder{})

	s.timers.clockMS = 0xFFFFFFF0
	before := s.SystemClock()
	s.Advance(3)
	after := s.SystemClock()
	if after >= before {
		t.Fatalf("SystemClock() did not wrap: before %d after %d", before, after)
	}
	if diff := after - before; diff != 30 {
		t.Fatalf("modular difference = %d, want 30", diff)
	}
}

func TestMillisecondsRoundUpToTicks(t *testing.T) {
	cfg := testConfig()
	cfg.TickMS = 10
	s := newTestScheduler(t, cfg, &recorder{})

	_ = s.StartTimer(0, evtX, 25)
	if ticks, _ := s.Timers().Remaining(0, evtX); ticks != 3 {
		t.Fatalf("ticks = %d, want 3", ticks)
	}
	if ms, _ := s.Remaining(0, evtX); ms != 30 {
		t.Fatalf("Remaining() = %d ms, want 30", ms)
	}
}

func TestRemainingSaturatesOnLongTicks(t *testing.T) {
	cfg := testConfig()
	cfg.TickMS = 1 << 20
	s := newTestScheduler(t, cfg, &recorder{})

	if err := s.StartTimer(0, evtX, math.MaxUint32); err != nil {
		t.Fatalf("StartTimer() err = %v", err)
	}
	if ticks, _ := s.Timers().Remaining(0, evtX); ticks != 4096 {
		t.Fatalf("ticks = %d, want 4096", ticks)
	}
	if ms, ok := s.Remaining(0, evtX); !ok || ms != math.MaxUint32 {
		t.Fatalf("Remaining() = %d, %v; want %d, true", ms, ok, uint32(math.MaxUint32))
	}
}
