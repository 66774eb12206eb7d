// internal/sched/critical.go

package sched

import "sync"

// Section is the kernel's interrupt lock. Every structure shared between task
// context and tick/peripheral goroutines (event words, timer list, message
// queue) is only touched while a Guard is held.
type Section struct {
	mu sync.Mutex
}

// Guard is a held critical section. Exit restores the state that was in
// effect when the guard was taken.
type Guard struct {
	depth *int
	s     *Section
	done  bool
}

// Enter disables interrupts for the caller and returns the outermost guard.
func (s *Section) Enter() *Guard {
	s.mu.Lock()
	depth := 1
	return &Guard{s: s, depth: &depth}
}

// Nest re-enters a section the caller already holds.
func (g *Guard) Nest() *Guard {
	if g.done {
		halt("nest on released guard")
	}
	*g.depth++
	return &Guard{s: g.s, depth: g.depth}
}

// Exit leaves the section. Only the outermost exit releases it; calling Exit
// twice on the same guard is a no-op.
func (g *Guard) Exit() {
	if g.done {
		return
	}
	g.done = true
	*g.depth--
	if *g.depth == 0 {
		g.s.mu.Unlock()
	}
}

// Depth reports the current nesting level.
func (g *Guard) Depth() int { return *g.depth }
