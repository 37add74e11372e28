package pool

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/printfarm-sim/printfarm-sim/sim"
)

// BatchConfig holds the stage-specific behaviour of a BatchPool.
type BatchConfig[T any] struct {
	// Duration is the processing time of a whole batch.
	Duration func(batch []T) int64
	// Started is called when a batch is dispatched. Optional.
	Started func(machine int, batch []T, start int64, forced bool)
	// Done is called once per finished batch, before its members are
	// forwarded. Optional.
	Done func(machine int, batch []T, start, end int64, forced bool)
	// Forward hands one member downstream. Required.
	Forward func(v T)
	// Order reorders the waiting list before a machine is refilled. Optional.
	Order func([]T)
}

// Machine is one member of a BatchPool.
type Machine[T any] struct {
	ID       int
	Capacity int

	batch   []T // accumulating
	running []T // dispatched, disjoint from batch
	busy    bool

	batches int64
	forced  int64
}

// Busy reports whether the machine is processing a batch.
func (m *Machine[T]) Busy() bool { return m.busy }

// Accumulated returns the number of units in the accumulating batch.
func (m *Machine[T]) Accumulated() int { return len(m.batch) }

// Running returns the number of units in the dispatched batch.
func (m *Machine[T]) Running() int { return len(m.running) }

// Batches returns how many batches the machine started, and how many of those
// were force-dispatched under capacity.
func (m *Machine[T]) Batches() (total, forced int64) { return m.batches, m.forced }

// BatchPool is a set of batch machines sharing one waiting list. A machine
// fires only when its accumulating batch reaches exactly its capacity, except
// when Flush force-dispatches residual batches during drain.
type BatchPool[T any] struct {
	Name string

	sim      *sim.Simulator
	machines []*Machine[T]
	waiting  []T
	cfg      BatchConfig[T]
}

// NewBatchPool creates one machine per entry of capacities, with IDs 0..n-1.
func NewBatchPool[T any](s *sim.Simulator, name string, capacities []int, cfg BatchConfig[T]) (*BatchPool[T], error) {
	if len(capacities) == 0 {
		return nil, sim.NewConfigurationError(name, "empty machine set")
	}
	if cfg.Duration == nil || cfg.Forward == nil {
		return nil, sim.NewConfigurationError(name, "Duration and Forward callbacks are required")
	}
	bp := &BatchPool[T]{Name: name, sim: s, cfg: cfg}
	for i, c := range capacities {
		if c <= 0 {
			return nil, sim.NewConfigurationError(fmt.Sprintf("%s.machines[%d]", name, i), "batch capacity must be > 0, got %d", c)
		}
		bp.machines = append(bp.machines, &Machine[T]{ID: i, Capacity: c})
	}
	return bp, nil
}

// Submit places v in the first idle machine with a free slot, dispatching the
// batch when it becomes full. With no such machine, v joins the waiting list.
func (bp *BatchPool[T]) Submit(v T) {
	for _, m := range bp.machines {
		if m.busy || len(m.batch) >= m.Capacity {
			continue
		}
		m.batch = append(m.batch, v)
		if len(m.batch) == m.Capacity {
			bp.fire(m, false)
		}
		return
	}
	bp.waiting = append(bp.waiting, v)
	logrus.Debugf("[tick %07d] %s: no machine can accept, %d waiting", bp.sim.Clock, bp.Name, len(bp.waiting))
}

func (bp *BatchPool[T]) machineName(m *Machine[T]) string {
	return fmt.Sprintf("%s-%d", bp.Name, m.ID)
}

// fire moves the accumulating batch out of the machine and starts processing.
func (bp *BatchPool[T]) fire(m *Machine[T], forced bool) {
	if m.busy {
		sim.Violate(bp.machineName(m), len(m.running)+len(m.batch), m.Capacity, "dispatch on a busy machine")
	}
	n := len(m.batch)
	switch {
	case n > m.Capacity:
		sim.Violate(bp.machineName(m), n, m.Capacity, "batch larger than capacity")
	case n == 0:
		sim.Violate(bp.machineName(m), n, m.Capacity, "dispatch of an empty batch")
	case n < m.Capacity && !forced:
		sim.Violate(bp.machineName(m), n, m.Capacity, "under-full batch dispatched without force")
	}
	batch := m.batch
	m.batch = nil
	m.running = batch
	m.busy = true
	m.batches++
	if forced {
		m.forced++
	}
	start := bp.sim.Clock
	if bp.cfg.Started != nil {
		bp.cfg.Started(m.ID, batch, start, forced)
	}
	d := bp.cfg.Duration(batch)
	logrus.Debugf("[tick %07d] %s: batch of %d/%d started for %d ticks (forced=%v)",
		start, bp.machineName(m), n, m.Capacity, d, forced)
	bp.sim.Spawn(bp.machineName(m), func(p *sim.Process) {
		p.Timeout(d, func() { bp.complete(m, batch, start, forced) })
	})
}

func (bp *BatchPool[T]) complete(m *Machine[T], batch []T, start int64, forced bool) {
	m.busy = false
	m.running = nil
	if bp.cfg.Done != nil {
		bp.cfg.Done(m.ID, batch, start, bp.sim.Clock, forced)
	}
	for _, v := range batch {
		bp.cfg.Forward(v)
	}
	bp.refill(m)
}

// refill tops up an idle machine from the waiting list, oldest first after
// ordering, and dispatches it if it reaches capacity.
func (bp *BatchPool[T]) refill(m *Machine[T]) {
	if m.busy || len(bp.waiting) == 0 {
		return
	}
	if bp.cfg.Order != nil {
		bp.cfg.Order(bp.waiting)
	}
	take := min(m.Capacity-len(m.batch), len(bp.waiting))
	m.batch = append(m.batch, bp.waiting[:take]...)
	clear(bp.waiting[:take])
	bp.waiting = bp.waiting[take:]
	if len(m.batch) == m.Capacity {
		bp.fire(m, false)
	}
}

// Flush force-dispatches every idle machine holding a non-empty accumulating
// batch, after topping it up from the waiting list. It implements the drain
// residual-batch policy. Returns the number of batches started under capacity.
func (bp *BatchPool[T]) Flush() int {
	forced := 0
	for _, m := range bp.machines {
		bp.refill(m)
		if m.busy || len(m.batch) == 0 {
			continue
		}
		logrus.Infof("[tick %07d] %s: force-dispatching residual batch of %d/%d",
			bp.sim.Clock, bp.machineName(m), len(m.batch), m.Capacity)
		bp.fire(m, true)
		forced++
	}
	return forced
}

// Machines returns the pool members in ID order.
func (bp *BatchPool[T]) Machines() []*Machine[T] { return bp.machines }

// Busy returns the number of machines processing a batch.
func (bp *BatchPool[T]) Busy() int {
	n := 0
	for _, m := range bp.machines {
		if m.busy {
			n++
		}
	}
	return n
}

// Waiting returns the length of the shared waiting list.
func (bp *BatchPool[T]) Waiting() int { return len(bp.waiting) }

// Accumulated returns the number of units sitting in accumulating batches.
func (bp *BatchPool[T]) Accumulated() int {
	n := 0
	for _, m := range bp.machines {
		n += len(m.batch)
	}
	return n
}

// InProcess returns the number of units in dispatched batches.
func (bp *BatchPool[T]) InProcess() int {
	n := 0
	for _, m := range bp.machines {
		n += len(m.running)
	}
	return n
}

// Idle reports whether nothing is running, accumulating or waiting.
func (bp *BatchPool[T]) Idle() bool {
	return bp.Busy() == 0 && bp.Accumulated() == 0 && len(bp.waiting) == 0
}

// Residual reports whether the only outstanding work is units waiting for
// batch partners: no machine is busy and at least one unit is accumulating.
func (bp *BatchPool[T]) Residual() bool {
	return bp.Busy() == 0 && len(bp.waiting) == 0 && bp.Accumulated() > 0
}
