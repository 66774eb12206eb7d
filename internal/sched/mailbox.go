package sched

import (
	"errors"
	"fmt"

	"osal/internal/heap"
)

// AllocMessage takes an n-byte message from the kernel heap. The message is
// unowned until it is sent.
func (s *Scheduler) AllocMessage(n int) (*Message, error) {
	if n <= 0 {
		return nil, ErrBufferUnavailable
	}
	b, err := s.heap.Alloc(n)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBufferUnavailable, err)
	}
	return &Message{dest: NoTask, block: b}, nil
}

// FreeMessage releases m. A message that is still queued or addressed is
// never freed.
func (s *Scheduler) FreeMessage(m *Message) error {
	if m == nil {
		return ErrInvalidMessage
	}

	g := s.cs.Enter()
	owned := m.linked()
	g.Exit()
	if owned {
		return ErrInvalidMessage
	}

	if err := s.heap.Free(m.block); err != nil {
		if errors.Is(err, heap.ErrBadFree) {
			return ErrInvalidMessage
		}
		return err
	}
	m.block = heap.Block{}
	return nil
}

// SendMessage appends m to the shared queue for dest and flags EventMessage
// on it. When dest is out of range the message is freed, since the caller
// just handed over its only reference.
func (s *Scheduler) SendMessage(dest TaskID, m *Message) error {
	return s.post(dest, m, false)
}

// PushFrontMessage is SendMessage that jumps the queue.
func (s *Scheduler) PushFrontMessage(dest TaskID, m *Message) error {
	return s.post(dest, m, true)
}

func (s *Scheduler) post(dest TaskID, m *Message, front bool) error {
	if !s.validTask(dest) {
		if m != nil {
			_ = s.FreeMessage(m)
		}
		return fmt.Errorf("send to task %d: %w", dest, ErrInvalidTask)
	}
	if m == nil {
		return ErrInvalidMessage
	}

	g := s.cs.Enter()
	defer g.Exit()

	if m.linked() {
		return ErrInvalidMessage
	}
	m.dest = dest
	var err error
	if front {
		err = s.queue.prependLocked(m)
	} else {
		err = s.queue.appendLocked(m)
	}
	if err != nil {
		m.dest = NoTask
		return err
	}
	s.events[dest] |= EventMessage
	return nil
}

// ReceiveMessage removes the oldest message for id. EventMessage on id stays
// set exactly when another message for it remains.
func (s *Scheduler) ReceiveMessage(id TaskID) (*Message, bool) {
	if !s.validTask(id) {
		return nil, false
	}

	g := s.cs.Enter()
	defer g.Exit()

	m, more := s.queue.takeLocked(id)
	if more {
		s.events[id] |= EventMessage
	} else {
		s.events[id] &^= EventMessage
	}
	return m, m != nil
}

// FindMessage returns the first queued message for id whose event code is
// event, without removing it.
func (s *Scheduler) FindMessage(id TaskID, event uint8) (*Message, bool) {
	g := s.cs.Enter()
	defer g.Exit()

	var found *Message
	s.queue.scanLocked(func(m *Message) bool {
		if m.dest == id && m.Event() == event {
			found = m
			return false
		}
		return true
	})
	return found, found != nil
}

// CountMessages counts queued messages with the given event code for id, or
// for every task when id is NoTask.
func (s *Scheduler) CountMessages(id TaskID, event uint8) int {
	g := s.cs.Enter()
	defer g.Exit()

	n := 0
	s.queue.scanLocked(func(m *Message) bool {
		if (id == NoTask || m.dest == id) && m.Event() == event {
			n++
		}
		return true
	})
	return n
}

// NewQueue returns an empty private queue guarded by the kernel's critical
// section.
func (s *Scheduler) NewQueue() *Queue {
	return newQueue(&s.cs)
}
