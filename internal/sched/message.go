// internal/sched/message.go

package sched

import (
	"github.com/emirpasic/gods/lists/singlylinkedlist"

	"osal/internal/heap"
)

// Message is a heap-backed, destination-tagged buffer. The header fields are
// kept beside the payload instead of in front of it.
type Message struct {
	dest  TaskID // NoTask while no queue owns the message
	queue *Queue // queue the message is linked into, nil if none
	block heap.Block
}

// Bytes returns the payload.
func (m *Message) Bytes() []byte { return m.block.Bytes() }

// Len returns the payload length.
func (m *Message) Len() int { return m.block.Len() }

// Event returns the event code carried in the first payload byte.
func (m *Message) Event() uint8 { return m.block.Bytes()[0] }

// Dest returns the destination task, or NoTask when unowned.
func (m *Message) Dest() TaskID { return m.dest }

func (m *Message) linked() bool { return m.queue != nil || m.dest != NoTask }

// Queue is a singly linked FIFO of messages. The scheduler owns one shared
// queue for task delivery; producers may keep private ones from NewQueue.
type Queue struct {
	cs   *Section
	list *singlylinkedlist.List
}

func newQueue(cs *Section) *Queue {
	return &Queue{cs: cs, list: singlylinkedlist.New()}
}

// Enqueue appends m.
func (q *Queue) Enqueue(m *Message) error {
	g := q.cs.Enter()
	defer g.Exit()
	return q.appendLocked(m)
}

// PushFront prepends m.
func (q *Queue) PushFront(m *Message) error {
	g := q.cs.Enter()
	defer g.Exit()
	return q.prependLocked(m)
}

// EnqueueMax appends m unless the queue already holds max entries. On failure
// the caller still owns m.
func (q *Queue) EnqueueMax(m *Message, max int) bool {
	g := q.cs.Enter()
	defer g.Exit()

	if q.list.Size() >= max {
		return false
	}
	return q.appendLocked(m) == nil
}

// Dequeue removes the head of the queue.
func (q *Queue) Dequeue() (*Message, bool) {
	g := q.cs.Enter()
	defer g.Exit()

	if q.list.Empty() {
		return nil, false
	}
	v, _ := q.list.Get(0)
	m := v.(*Message)
	q.removeLocked(0, m)
	return m, true
}

// Extract unlinks m from wherever it sits in the queue.
func (q *Queue) Extract(m *Message) bool {
	g := q.cs.Enter()
	defer g.Exit()

	if m == nil || m.queue != q {
		return false
	}
	idx := q.list.IndexOf(m)
	if idx < 0 {
		halt("message linked to queue but not found in it")
	}
	q.removeLocked(idx, m)
	return true
}

// Len returns the number of queued messages.
func (q *Queue) Len() int {
	g := q.cs.Enter()
	defer g.Exit()
	return q.list.Size()
}

func (q *Queue) appendLocked(m *Message) error {
	if m == nil || m.queue != nil {
		return ErrInvalidMessage
	}
	m.queue = q
	q.list.Add(m)
	return nil
}

func (q *Queue) prependLocked(m *Message) error {
	if m == nil || m.queue != nil {
		return ErrInvalidMessage
	}
	m.queue = q
	q.list.Prepend(m)
	return nil
}

func (q *Queue) removeLocked(idx int, m *Message) {
	q.list.Remove(idx)
	m.queue = nil
	m.dest = NoTask
}

// takeLocked removes the first message for dest and reports whether another
// one for the same task is still queued.
func (q *Queue) takeLocked(dest TaskID) (m *Message, more bool) {
	idx := -1
	it := q.list.Iterator()
	for it.Next() {
		msg := it.Value().(*Message)
		if msg.dest != dest {
			continue
		}
		if idx < 0 {
			idx, m = it.Index(), msg
			continue
		}
		more = true
		break
	}
	if m != nil {
		q.removeLocked(idx, m)
	}
	return m, more
}

// scanLocked visits messages in queue order until fn returns false.
func (q *Queue) scanLocked(fn func(m *Message) bool) {
	it := q.list.Iterator()
	for it.Next() {
		if !fn(it.Value().(*Message)) {
			return
		}
	}
}
