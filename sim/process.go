package sim

import "fmt"

// ProcessState is the lifecycle state of a Process.
type ProcessState string

const (
	ProcessReady      ProcessState = "ready"
	ProcessRunning    ProcessState = "running"
	ProcessSuspended  ProcessState = "suspended"
	ProcessTerminated ProcessState = "terminated"
)

const (
	waitTimeout = "timeout"
	waitWake    = "wake-up"
)

// Process is a unit of cooperative control flow. Its body runs until it calls
// one of the suspension points (Timeout, HandoffQueue.Get, Resource.Request,
// RaceAcquire) and returns; the continuation passed to that call resumes it.
// A continuation that returns without suspending again terminates the process.
type Process struct {
	ID   uint64
	Name string

	sim       *Simulator
	state     ProcessState
	waitingOn string
}

// Spawn creates a process whose body starts at the current tick, after every
// event already queued for it.
func (sim *Simulator) Spawn(name string, body func(p *Process)) *Process {
	sim.nextPID++
	p := &Process{
		ID:    sim.nextPID,
		Name:  name,
		sim:   sim,
		state: ProcessReady,
	}
	sim.processes[p.ID] = p
	sim.Schedule(0, name, func() { p.run(func() { body(p) }) })
	return p
}

// Sim returns the simulator the process belongs to.
func (p *Process) Sim() *Simulator {
	return p.sim
}

// State returns the current lifecycle state.
func (p *Process) State() ProcessState {
	return p.state
}

// WaitingOn describes what a suspended process is blocked on.
func (p *Process) WaitingOn() string {
	return p.waitingOn
}

func (p *Process) String() string {
	return fmt.Sprintf("Process(%d %s %s)", p.ID, p.Name, p.state)
}

// Timeout suspends the process and resumes it exactly duration ticks later.
// A zero duration is legal and yields one scheduler step. Panics on a
// negative duration.
func (p *Process) Timeout(duration int64, resume func()) {
	if duration < 0 {
		panic(fmt.Sprintf("Timeout: process %s requested negative duration %d", p.Name, duration))
	}
	p.suspend(waitTimeout)
	p.sim.Schedule(duration, p.Name, func() { p.run(resume) })
}

// suspend marks the process as blocked. Only a running process may suspend.
func (p *Process) suspend(on string) {
	if p.state != ProcessRunning {
		panic(fmt.Sprintf("process %s cannot suspend on %q from state %s", p.Name, on, p.state))
	}
	p.state = ProcessSuspended
	p.waitingOn = on
}

// wake schedules the continuation for the next scheduler step.
func (p *Process) wake(resume func()) {
	p.waitingOn = waitWake
	p.sim.Schedule(0, p.Name, func() { p.run(resume) })
}

func (p *Process) run(fn func()) {
	if p.state == ProcessTerminated {
		panic(fmt.Sprintf("process %s resumed after termination", p.Name))
	}
	p.state = ProcessRunning
	p.waitingOn = ""
	fn()
	if p.state == ProcessRunning {
		p.state = ProcessTerminated
		delete(p.sim.processes, p.ID)
	}
}
