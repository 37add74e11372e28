package plant

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/printfarm-sim/printfarm-sim/sim"
)

// DrainState is the run phase of a pipeline.
type DrainState string

const (
	Running  DrainState = "running"
	Draining DrainState = "draining"
	Drained  DrainState = "drained"
	Stalled  DrainState = "stalled"
)

// StallReason tells why a drain could not finish.
type StallReason string

const (
	// ReasonAwaitingPartner: the only remaining work is under-full batches or
	// a partial rework buffer waiting for partners that will never arrive.
	ReasonAwaitingPartner StallReason = "awaiting_partner"
	// ReasonDeadlock: nothing is running and nothing is waiting for a
	// partner, yet work remains.
	ReasonDeadlock StallReason = "deadlock"
	// ReasonStepLimit: work was still progressing when the drain step budget
	// ran out.
	ReasonStepLimit StallReason = "step_limit"
)

// DrainStalledError ends a run whose drain did not reach Drained.
type DrainStalledError struct {
	Reason   StallReason
	At       int64
	Steps    int
	Snapshot Snapshot
	// Blocked lists the suspended processes and what they wait on.
	Blocked []string
}

func (e *DrainStalledError) Error() string {
	return fmt.Sprintf("drain stalled at tick %d after %d steps: %s (%s)", e.At, e.Steps, e.Reason, e.Snapshot)
}

// Snapshot counts the work held by every stage at one instant.
type Snapshot struct {
	Clock int64

	BuildQueue       int
	PrintersBusy     int
	PrintersAwaiting int
	PalletsInUse     int
	PalletsWaiting   int

	WashBusy        int
	WashWaiting     int
	WashAccumulated int

	DryBusy        int
	DryWaiting     int
	DryAccumulated int

	InspectBusy    int
	InspectWaiting int
	PackageBusy    int
	PackageWaiting int

	ReworkBuffered int
	InFlight       int
}

// Drained is the drain predicate: every hand-off queue and waiting list is
// empty, nothing is busy or accumulating, and no rework is pending.
func (s Snapshot) Drained() bool {
	return s.BuildQueue == 0 && s.PrintersBusy == 0 && s.PrintersAwaiting == 0 &&
		s.PalletsInUse == 0 && s.PalletsWaiting == 0 &&
		s.WashBusy == 0 && s.WashWaiting == 0 && s.WashAccumulated == 0 &&
		s.DryBusy == 0 && s.DryWaiting == 0 && s.DryAccumulated == 0 &&
		s.InspectBusy == 0 && s.InspectWaiting == 0 &&
		s.PackageBusy == 0 && s.PackageWaiting == 0 &&
		s.ReworkBuffered == 0
}

// Active reports whether some stage is in a timed activity, i.e. the clock
// can still produce progress on its own.
func (s Snapshot) Active() bool {
	return s.PrintersBusy > 0 || s.WashBusy > 0 || s.DryBusy > 0 || s.InspectBusy > 0 || s.PackageBusy > 0
}

// Residual reports whether work is parked waiting for batch or rework
// partners.
func (s Snapshot) Residual() bool {
	return s.WashAccumulated > 0 || s.DryAccumulated > 0 || s.ReworkBuffered > 0
}

func (s Snapshot) stallReason() StallReason {
	switch {
	case s.Active():
		return ReasonStepLimit
	case s.Residual():
		return ReasonAwaitingPartner
	default:
		return ReasonDeadlock
	}
}

func (s Snapshot) String() string {
	return fmt.Sprintf("build q=%d busy=%d pallet-wait=%d | wash busy=%d acc=%d wait=%d | dry busy=%d acc=%d wait=%d | inspect busy=%d wait=%d | package busy=%d wait=%d | rework=%d in-flight=%d",
		s.BuildQueue, s.PrintersBusy, s.PrintersAwaiting,
		s.WashBusy, s.WashAccumulated, s.WashWaiting,
		s.DryBusy, s.DryAccumulated, s.DryWaiting,
		s.InspectBusy, s.InspectWaiting,
		s.PackageBusy, s.PackageWaiting,
		s.ReworkBuffered, s.InFlight)
}

// Snapshot captures the current occupancy of every stage.
func (pl *Pipeline) Snapshot() Snapshot {
	s := Snapshot{
		Clock:           pl.sim.Clock,
		BuildQueue:      pl.buildQueue.Len(),
		WashBusy:        pl.wash.Busy(),
		WashWaiting:     pl.wash.Waiting(),
		WashAccumulated: pl.wash.Accumulated(),
		InspectBusy:     pl.inspect.Busy(),
		InspectWaiting:  pl.inspect.Waiting(),
		PackageBusy:     pl.pack.Busy(),
		PackageWaiting:  pl.pack.Waiting(),
		ReworkBuffered:  len(pl.rework),
		InFlight:        len(pl.inFlight),
	}
	for _, pr := range pl.printers {
		switch {
		case pr.Busy():
			s.PrintersBusy++
		case pr.state == PrinterAwaitPallet:
			s.PrintersAwaiting++
		}
	}
	if pl.pallets != nil {
		s.PalletsInUse = pl.pallets.InUse()
		s.PalletsWaiting = pl.pallets.QueueLen()
	}
	if pl.dry != nil {
		s.DryBusy = pl.dry.Busy()
		s.DryWaiting = pl.dry.Waiting()
		s.DryAccumulated = pl.dry.Accumulated()
	} else {
		s.DryBusy = pl.dryRunning
		s.DryWaiting = pl.dryRacing
	}
	return s
}

// State returns the current run phase.
func (pl *Pipeline) State() DrainState { return pl.state }

func (pl *Pipeline) setState(st DrainState) {
	logrus.Infof("[tick %07d] plant: %s -> %s", pl.sim.Clock, pl.state, st)
	pl.state = st
}

// startReporter spawns the process that emits DayEnd at every day boundary
// until the run ends.
func (pl *Pipeline) startReporter() {
	var tick func(p *sim.Process)
	tick = func(p *sim.Process) {
		p.Timeout(pl.cfg.DayLength, func() {
			pl.day++
			pl.emit(Event{Kind: DayEnd, Time: pl.sim.Clock, Day: pl.day})
			if pl.state == Drained || pl.state == Stalled {
				return
			}
			tick(p)
		})
	}
	pl.sim.Spawn("day-reporter", tick)
}

// Day returns the number of completed days.
func (pl *Pipeline) Day() int { return pl.day }

// Run advances the simulation day by day up to the horizon, then drains it.
// It returns nil once the pipeline is Drained, a *DrainStalledError when the
// drain cannot finish, a *sim.CapacityInvariantViolation when the scheduling
// logic broke an invariant, or the first defect-rule evaluation error.
func (pl *Pipeline) Run() (err error) {
	defer sim.RecoverViolation(&err)
	if pl.ran {
		return errors.New("plant: Run called twice")
	}
	pl.ran = true

	horizon := pl.cfg.Horizon()
	logrus.Infof("[tick %07d] plant: running until tick %d (%d days)", pl.sim.Clock, horizon, pl.cfg.Days)
	for pl.sim.Clock < horizon {
		pl.sim.Advance(min(pl.cfg.DayLength, horizon-pl.sim.Clock))
		if pl.err != nil {
			return pl.err
		}
	}
	return pl.drain()
}

func (pl *Pipeline) drain() error {
	pl.setState(Draining)
	force := pl.cfg.Drain.ResidualPolicy == ResidualForce
	for steps := 0; ; steps++ {
		snap := pl.Snapshot()
		if snap.Drained() {
			pl.checkConservation(snap)
			pl.setState(Drained)
			return nil
		}
		progressed := force && pl.flush()
		if steps >= pl.cfg.Drain.MaxSteps || (!progressed && !snap.Active()) {
			return pl.stall(snap, steps)
		}
		pl.sim.Advance(pl.cfg.Drain.Step)
		if pl.err != nil {
			return pl.err
		}
	}
}

// flush applies the force residual policy. Reports whether anything was
// dispatched.
func (pl *Pipeline) flush() bool {
	n := pl.wash.Flush()
	if pl.dry != nil {
		n += pl.dry.Flush()
	}
	if pl.flushRework() {
		n++
	}
	return n > 0
}

func (pl *Pipeline) stall(snap Snapshot, steps int) error {
	err := &DrainStalledError{
		Reason:   snap.stallReason(),
		At:       pl.sim.Clock,
		Steps:    steps,
		Snapshot: snap,
		Blocked:  pl.blocked(),
	}
	pl.setState(Stalled)
	logrus.Warnf("[tick %07d] plant: %v", pl.sim.Clock, err)
	for _, b := range err.Blocked {
		logrus.Warnf("[tick %07d]   blocked: %s", pl.sim.Clock, b)
	}
	return err
}

// blocked lists suspended processes, leaving out printers that are simply
// idle on an empty Build queue.
func (pl *Pipeline) blocked() []string {
	idle := "get " + pl.buildQueue.Name
	var out []string
	for _, s := range pl.sim.Suspended() {
		if strings.HasSuffix(s, idle) && pl.buildQueue.Len() == 0 {
			continue
		}
		out = append(out, s)
	}
	return out
}

// checkConservation verifies that nothing was lost once the plant is empty.
func (pl *Pipeline) checkConservation(snap Snapshot) {
	if snap.InFlight != 0 {
		sim.Violate("pipeline", snap.InFlight, 0, "%d jobs unaccounted for after drain", snap.InFlight)
	}
	if !pl.totals.Balanced() {
		t := pl.totals
		sim.Violate("pipeline", t.ItemsPacked+t.ItemsScrapped, t.ItemsSubmitted,
			"items submitted %d, packed %d, scrapped %d", t.ItemsSubmitted, t.ItemsPacked, t.ItemsScrapped)
	}
}
