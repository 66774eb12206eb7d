// internal/sched/power.go

package sched

import (
	"fmt"
	"math"

	"github.com/emirpasic/gods/sets/hashset"
)

// DeviceClass is the power class of the whole device.
type DeviceClass int

const (
	DeviceAlwaysOn DeviceClass = iota
	DeviceBattery
)

func (d DeviceClass) String() string {
	switch d {
	case DeviceAlwaysOn:
		return "always_on"
	case DeviceBattery:
		return "battery"
	default:
		return "unknown"
	}
}

// SleepForever is passed to the sleep hook when no timer is pending.
const SleepForever uint32 = math.MaxUint32

// SleepHook puts the platform into low-power mode for at most timeoutMS.
type SleepHook func(timeoutMS uint32)

// PowerManager decides whether the CPU may idle between scheduler passes.
type PowerManager struct {
	cs     *Section
	timers *Timers
	hook   SleepHook
	tasks  int

	class  DeviceClass
	vetoes *hashset.Set // TaskIDs currently forbidding sleep
}

func newPowerManager(cs *Section, timers *Timers, tasks int, hook SleepHook) *PowerManager {
	return &PowerManager{cs: cs, timers: timers, tasks: tasks, hook: hook, vetoes: hashset.New()}
}

// init restores the conservative default: always on, nobody vetoing.
func (p *PowerManager) init() {
	g := p.cs.Enter()
	defer g.Exit()
	p.class = DeviceAlwaysOn
	p.vetoes.Clear()
}

// SetDeviceClass marks the device as always-on or battery powered.
func (p *PowerManager) SetDeviceClass(c DeviceClass) {
	g := p.cs.Enter()
	defer g.Exit()
	p.class = c
}

// DeviceClass returns the current device class.
func (p *PowerManager) DeviceClass() DeviceClass {
	g := p.cs.Enter()
	defer g.Exit()
	return p.class
}

// SetTaskVeto records whether id lets the device conserve power. conserve
// false means the task forbids sleep.
func (p *PowerManager) SetTaskVeto(id TaskID, conserve bool) error {
	if int(id) >= p.tasks {
		return fmt.Errorf("power veto for task %d: %w", id, ErrInvalidTask)
	}

	g := p.cs.Enter()
	defer g.Exit()
	if conserve {
		p.vetoes.Remove(id)
	} else {
		p.vetoes.Add(id)
	}
	return nil
}

// Vetoed reports whether any task currently forbids sleep.
func (p *PowerManager) Vetoed() bool {
	g := p.cs.Enter()
	defer g.Exit()
	return !p.vetoes.Empty()
}

// MaybeIdle sleeps through the sleep hook when the device is battery powered
// and no task vetoes it. The sleep is bounded by the nearest timer deadline.
// It returns the bound passed to the hook, and whether the hook was called.
func (p *PowerManager) MaybeIdle() (uint32, bool) {
	g := p.cs.Enter()
	if p.class != DeviceBattery || !p.vetoes.Empty() || p.hook == nil {
		g.Exit()
		return 0, false
	}
	next, ok := p.timers.nextTimeoutLocked()
	tickMS := p.timers.tickMS
	g.Exit()

	timeout := SleepForever
	if ok {
		if ms := uint64(next) * uint64(tickMS); ms < uint64(SleepForever) {
			timeout = uint32(ms)
		}
	}
	p.hook(timeout)
	return timeout, true
}
