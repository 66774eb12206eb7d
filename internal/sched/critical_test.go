package sched

import (
	"sync"
	"testing"
	"time"
)

func TestGuardNesting(t *testing.T) {
	var s Section

	outer := s.Enter()
	inner := outer.Nest()
	if got := outer.Depth(); got != 2 {
		t.Fatalf("Depth() = %d, want 2", got)
	}
	inner.Exit()
	inner.Exit() // second exit on the same guard is ignored
	if got := outer.Depth(); got != 1 {
		t.Fatalf("Depth() after inner exit = %d, want 1", got)
	}

	released := make(chan struct{})
	go func() {
		g := s.Enter()
		g.Exit()
		close(released)
	}()

	select {
	case <-released:
		t.Fatalf("section released while outer guard still held")
	case <-time.After(20 * time.Millisecond):
	}

	outer.Exit()
	select {
	case <-released:
	case <-time.After(time.Second):
		t.Fatalf("section not released after outermost Exit")
	}
}

func TestSectionSerializesWriters(t *testing.T) {
	var s Section
	var wg sync.WaitGroup
	counter := 0

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				g := s.Enter()
				counter++
				g.Exit()
			}
		}()
	}
	wg.Wait()

	if counter != 8000 {
		t.Fatalf("counter = %d, want 8000", counter)
	}
}

func TestKernelSectionBlocksPostEvent(t *testing.T) {
	s := newTestScheduler(t, testConfig(), &recorder{})

	g := s.Critical().Enter()
	posted := make(chan struct{})
	go func() {
		_ = s.PostEvent(0, 0x1)
		close(posted)
	}()

	select {
	case <-posted:
		t.Fatalf("PostEvent completed inside a held critical section")
	case <-time.After(20 * time.Millisecond):
	}

	g.Exit()
	select {
	case <-posted:
	case <-time.After(time.Second):
		t.Fatalf("PostEvent still blocked after Exit")
	}
	if got := s.Events(0); got != 0x1 {
		t.Fatalf("Events(0) = %#x, want 0x1", got)
	}
}
