package job

import "osal/internal/sched"

// EvtToggle is the blinker's timer event.
const EvtToggle sched.Events = 0x0001

// LED is the board LED the blinker drives.
type LED interface {
	Set(on bool)
}

// Blinker toggles an LED from a reload timer and keeps track of how far each
// toggle drifted from the nominal period.
type Blinker struct {
	PeriodMS uint32
	LED      LED

	s        *sched.Scheduler
	id       sched.TaskID
	on       bool
	last     uint32
	Toggles  int
	MaxDrift uint32
}

func (b *Blinker) Init(s *sched.Scheduler, id sched.TaskID) {
	b.s, b.id = s, id
	if b.PeriodMS == 0 {
		b.PeriodMS = 500
	}
	b.last = s.SystemClock()
	if err := s.StartReloadTimer(id, EvtToggle, b.PeriodMS); err != nil {
		panic(err)
	}
}

func (b *Blinker) ProcessEvent(id sched.TaskID, events sched.Events) sched.Events {
	if events&sched.EventMessage != 0 {
		for m, ok := b.s.ReceiveMessage(id); ok; m, ok = b.s.ReceiveMessage(id) {
			_ = b.s.FreeMessage(m)
		}
		return events ^ sched.EventMessage
	}

	if events&EvtToggle != 0 {
		b.on = !b.on
		if b.LED != nil {
			b.LED.Set(b.on)
		}
		b.Toggles++

		// modular difference; the clock wraps
		now := b.s.SystemClock()
		elapsed := now - b.last
		b.last = now
		if elapsed > b.PeriodMS && elapsed-b.PeriodMS > b.MaxDrift {
			b.MaxDrift = elapsed - b.PeriodMS
		}
		return events ^ EvtToggle
	}

	return 0
}

// On reports the LED state.
func (b *Blinker) On() bool { return b.on }
