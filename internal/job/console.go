package job

import (
	"fmt"
	"io"

	"osal/internal/sched"
)

// Console prints key messages. While it is holding a backlog it vetoes power
// saving so the backlog drains before the CPU idles.
type Console struct {
	Out io.Writer

	s     *sched.Scheduler
	id    sched.TaskID
	Lines int
}

func (c *Console) Init(s *sched.Scheduler, id sched.TaskID) {
	c.s, c.id = s, id
	_ = s.Power().SetTaskVeto(id, true)
}

func (c *Console) ProcessEvent(id sched.TaskID, events sched.Events) sched.Events {
	if events&sched.EventMessage == 0 {
		return 0
	}

	m, ok := c.s.ReceiveMessage(id)
	if !ok {
		return events ^ sched.EventMessage
	}
	backlog := c.s.CountMessages(id, EventKeyChange)
	_ = c.s.Power().SetTaskVeto(id, backlog == 0)

	if m.Event() == EventKeyChange && m.Len() >= 2 {
		c.Lines++
		if c.Out != nil {
			fmt.Fprintf(c.Out, "[%08d ms] key %d (backlog %d)\n", c.s.SystemClock(), m.Bytes()[1], backlog)
		}
	}
	_ = c.s.FreeMessage(m)

	// ReceiveMessage already re-flagged the task if more are queued.
	return events ^ sched.EventMessage
}
