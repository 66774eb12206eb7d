package sched

import "testing"

// recorder is a task that logs what the scheduler hands it.
type recorder struct {
	inits    []TaskID
	seen     []Events
	handle   func(id TaskID, events Events) Events
	sched    *Scheduler
	initLog  *[]TaskID
	dispatch *[]TaskID
}

func (r *recorder) Init(s *Scheduler, id TaskID) {
	r.sched = s
	r.inits = append(r.inits, id)
	if r.initLog != nil {
		*r.initLog = append(*r.initLog, id)
	}
}

func (r *recorder) ProcessEvent(id TaskID, events Events) Events {
	r.seen = append(r.seen, events)
	if r.dispatch != nil {
		*r.dispatch = append(*r.dispatch, id)
	}
	if r.handle != nil {
		return r.handle(id, events)
	}
	return 0
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.CallbackTimers = 0
	cfg.HeapBytes = 256
	return cfg
}

func newTestScheduler(t *testing.T, cfg Config, tasks ...Task) *Scheduler {
	t.Helper()
	s, err := New(cfg, tasks)
	if err != nil {
		t.Fatalf("New() err = %v", err)
	}
	s.Init()
	return s
}

type fakePoller struct{ n uint32 }

func (p *fakePoller) Elapsed() uint32 {
	n := p.n
	p.n = 0
	return n
}
