package plant

import (
	"github.com/sirupsen/logrus"

	"github.com/printfarm-sim/printfarm-sim/sim"
)

// PrinterState is the phase of a printer's build cycle.
type PrinterState string

const (
	PrinterIdle        PrinterState = "idle"
	PrinterAwaitPallet PrinterState = "await_pallet"
	PrinterSetup       PrinterState = "setup"
	PrinterBuild       PrinterState = "build"
	PrinterClosing     PrinterState = "closing"
)

// Printer is one 3D printer. Its process cycles Idle → AwaitPallet → Setup →
// Build → Closing → Idle, taking one job at a time from the Build queue.
type Printer struct {
	ID   int
	Name string

	pl    *Pipeline
	state PrinterState
	job   *Job
	built int64
}

// State returns the current phase.
func (pr *Printer) State() PrinterState { return pr.state }

// Job returns the job on the build plate, or nil when idle.
func (pr *Printer) Job() *Job { return pr.job }

// Built returns the number of jobs the printer finished.
func (pr *Printer) Built() int64 { return pr.built }

// Busy reports whether the printer is in a timed phase.
func (pr *Printer) Busy() bool {
	return pr.state == PrinterSetup || pr.state == PrinterBuild || pr.state == PrinterClosing
}

func (pr *Printer) loop(p *sim.Process) {
	pr.state = PrinterIdle
	pr.job = nil
	pr.pl.buildQueue.Get(p, func(j *Job) {
		pr.job = j
		j.Stage = StageBuild
		if pr.pl.pallets == nil {
			pr.setup(p, j)
			return
		}
		pr.state = PrinterAwaitPallet
		pr.pl.pallets.Request(p, func(req *sim.Request) {
			j.pallet = req
			pr.setup(p, j)
		})
	})
}

func (pr *Printer) setup(p *sim.Process, j *Job) {
	s := pr.pl.sim
	pr.state = PrinterSetup
	j.Timestamps.SetupStart = s.Clock
	pr.pl.emit(pr.pl.jobEvent(StageEntry, j, StageBuild, pr.Name))
	logrus.Debugf("[tick %07d] %s: job %d setup (%d ticks)", s.Clock, pr.Name, j.ID, pr.pl.cfg.Build.Setup)
	p.Timeout(pr.pl.cfg.Build.Setup, func() {
		j.Timestamps.SetupEnd = s.Clock
		pr.build(p, j)
	})
}

func (pr *Printer) build(p *sim.Process, j *Job) {
	s := pr.pl.sim
	pr.state = PrinterBuild
	j.Timestamps.BuildStart = s.Clock
	p.Timeout(j.BuildTime, func() {
		j.Timestamps.BuildEnd = s.Clock
		pr.closing(p, j)
	})
}

func (pr *Printer) closing(p *sim.Process, j *Job) {
	s := pr.pl.sim
	pr.state = PrinterClosing
	j.Timestamps.ClosingStart = s.Clock
	p.Timeout(pr.pl.cfg.Build.Closing, func() {
		j.Timestamps.ClosingEnd = s.Clock
		pr.built++
		ev := pr.pl.jobEvent(StageExit, j, StageBuild, pr.Name)
		ev.Duration = j.BuildTime
		pr.pl.emit(ev)
		pr.pl.record(j.Key(), pr.Name, StageBuild, j.readyAt, j.Timestamps.SetupStart, s.Clock, false)
		logrus.Debugf("[tick %07d] %s: job %d printed", s.Clock, pr.Name, j.ID)
		pr.pl.toWash(j)
		pr.loop(p)
	})
}
