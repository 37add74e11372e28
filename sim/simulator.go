// sim/simulator.go
package sim

import (
	"container/heap"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
)

// Simulator owns the virtual clock and the event queue. It is not safe for
// concurrent use; all processes run on the caller's goroutine.
type Simulator struct {
	// Clock is the current virtual time in ticks. It never decreases.
	Clock int64
	// EventQueue holds every scheduled continuation, cancelled ones included
	// until they reach the top of the heap.
	EventQueue EventQueue
	// StepCount is the number of events executed so far.
	StepCount int64

	nextSeq uint64
	live    int // scheduled and not cancelled

	nextPID   uint64
	processes map[uint64]*Process
}

// NewSimulator creates a simulator with the clock at zero.
func NewSimulator() *Simulator {
	return &Simulator{
		EventQueue: make(EventQueue, 0),
		processes:  make(map[uint64]*Process),
	}
}

// Now returns the current virtual time.
func (sim *Simulator) Now() int64 {
	return sim.Clock
}

// Schedule pushes an action to run delay ticks from now. A zero delay still
// costs one scheduler step: the action runs after every event already queued
// for the current tick. Panics on a negative delay.
func (sim *Simulator) Schedule(delay int64, label string, action func()) *Event {
	if delay < 0 {
		panic(fmt.Sprintf("Schedule: negative delay %d for %q at tick %d", delay, label, sim.Clock))
	}
	if action == nil {
		panic("Schedule: action must not be nil")
	}
	sim.nextSeq++
	ev := &Event{
		time:   sim.Clock + delay,
		seq:    sim.nextSeq,
		label:  label,
		action: action,
	}
	heap.Push(&sim.EventQueue, ev)
	sim.live++
	return ev
}

// Cancel removes a scheduled event from the timeline. Cancelling an event that
// already ran or was already cancelled is a no-op.
func (sim *Simulator) Cancel(ev *Event) {
	if ev == nil || ev.cancelled || ev.action == nil {
		return
	}
	ev.cancelled = true
	sim.live--
}

// Pending returns the number of events still waiting to run.
func (sim *Simulator) Pending() int {
	return sim.live
}

// NextEventTime reports the timestamp of the earliest live event.
func (sim *Simulator) NextEventTime() (int64, bool) {
	sim.dropCancelled()
	if len(sim.EventQueue) == 0 {
		return 0, false
	}
	return sim.EventQueue[0].time, true
}

func (sim *Simulator) dropCancelled() {
	for len(sim.EventQueue) > 0 && sim.EventQueue[0].cancelled {
		heap.Pop(&sim.EventQueue)
	}
}

// Step executes the next live event, advancing the clock to its timestamp.
// Returns false when the queue is empty.
func (sim *Simulator) Step() bool {
	sim.dropCancelled()
	if len(sim.EventQueue) == 0 {
		return false
	}
	ev := heap.Pop(&sim.EventQueue).(*Event)
	if ev.time < sim.Clock {
		panic(fmt.Sprintf("Clock went backwards: %d < %d", ev.time, sim.Clock))
	}
	sim.Clock = ev.time
	sim.live--
	sim.StepCount++
	action := ev.action
	ev.action = nil
	if logrus.IsLevelEnabled(logrus.TraceLevel) {
		logrus.Tracef("[tick %07d] Executing event for %s", sim.Clock, ev.label)
	}
	action()
	return true
}

// Advance runs every event whose timestamp lies in [now, now+duration], in
// nondecreasing time order, then moves the clock to now+duration. Events
// scheduled while advancing are included when they fall inside the window.
// Returns the number of events executed. Panics on a negative duration.
func (sim *Simulator) Advance(duration int64) int {
	if duration < 0 {
		panic(fmt.Sprintf("Advance: negative duration %d at tick %d", duration, sim.Clock))
	}
	target := sim.Clock + duration
	executed := 0
	for {
		next, ok := sim.NextEventTime()
		if !ok || next > target {
			break
		}
		sim.Step()
		executed++
	}
	sim.Clock = target
	return executed
}

// RunUntil advances the clock to the absolute time t.
func (sim *Simulator) RunUntil(t int64) int {
	if t < sim.Clock {
		panic(fmt.Sprintf("RunUntil: target %d is before clock %d", t, sim.Clock))
	}
	return sim.Advance(t - sim.Clock)
}

// Run executes events until the queue is empty. Only safe when every process
// eventually terminates; periodic processes keep the queue non-empty forever.
func (sim *Simulator) Run() {
	for sim.Step() {
	}
	logrus.Debugf("[tick %07d] Simulation ended", sim.Clock)
}

// Processes returns the number of live (not yet terminated) processes.
func (sim *Simulator) Processes() int {
	return len(sim.processes)
}

// Suspended describes every live process that is blocked on something other
// than a timeout, in creation order. Used to tell a true deadlock apart from
// work that is merely waiting on a later event.
func (sim *Simulator) Suspended() []string {
	ids := make([]uint64, 0, len(sim.processes))
	for id, p := range sim.processes {
		if p.state == ProcessSuspended && p.waitingOn != waitTimeout && p.waitingOn != waitWake {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]string, len(ids))
	for i, id := range ids {
		p := sim.processes[id]
		out[i] = fmt.Sprintf("%s: %s", p.Name, p.waitingOn)
	}
	return out
}
