package pool

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/printfarm-sim/printfarm-sim/sim"
)

// WorkerConfig holds the stage-specific behaviour of a WorkerPool.
type WorkerConfig[T any] struct {
	// Duration is the processing time for one unit. Must not be negative.
	Duration func(T) int64
	// Started is called when a worker picks up a unit. Optional.
	Started func(worker int, v T, start int64)
	// Done is called after the worker is marked idle; it hands the unit
	// downstream. Required.
	Done func(worker int, v T, start, end int64)
	// Order reorders the waiting list before its head is assigned. Optional.
	Order func([]T)
}

// Worker is a single member of a WorkerPool.
type Worker struct {
	ID     int
	busy   bool
	served int64
}

// Busy reports whether the worker is processing a unit.
func (w *Worker) Busy() bool { return w.busy }

// Served returns the number of units the worker finished.
func (w *Worker) Served() int64 { return w.served }

// WorkerPool is a set of single-unit workers with an FCFS waiting list.
type WorkerPool[T any] struct {
	Name string

	sim     *sim.Simulator
	workers []*Worker
	waiting []T
	cfg     WorkerConfig[T]
}

// NewWorkerPool creates a pool of size workers with IDs 0..size-1.
func NewWorkerPool[T any](s *sim.Simulator, name string, size int, cfg WorkerConfig[T]) (*WorkerPool[T], error) {
	if size <= 0 {
		return nil, sim.NewConfigurationError(name, "worker count must be > 0, got %d", size)
	}
	if cfg.Duration == nil || cfg.Done == nil {
		return nil, sim.NewConfigurationError(name, "Duration and Done callbacks are required")
	}
	wp := &WorkerPool[T]{
		Name:    name,
		sim:     s,
		workers: make([]*Worker, size),
		cfg:     cfg,
	}
	for i := range wp.workers {
		wp.workers[i] = &Worker{ID: i}
	}
	return wp, nil
}

// Assign hands v to the first idle worker, or appends it to the waiting list
// when every worker is busy. Reports whether v started immediately.
func (wp *WorkerPool[T]) Assign(v T) bool {
	for _, w := range wp.workers {
		if !w.busy {
			wp.start(w, v)
			return true
		}
	}
	wp.waiting = append(wp.waiting, v)
	logrus.Debugf("[tick %07d] %s: all %d workers busy, %d waiting", wp.sim.Clock, wp.Name, len(wp.workers), len(wp.waiting))
	return false
}

func (wp *WorkerPool[T]) start(w *Worker, v T) {
	if w.busy {
		sim.Violate(fmt.Sprintf("%s-%d", wp.Name, w.ID), 2, 1, "worker assigned while busy")
	}
	w.busy = true
	if n := wp.Busy(); n > len(wp.workers) {
		sim.Violate(wp.Name, n, len(wp.workers), "busy workers exceed pool size")
	}
	start := wp.sim.Clock
	if wp.cfg.Started != nil {
		wp.cfg.Started(w.ID, v, start)
	}
	d := wp.cfg.Duration(v)
	wp.sim.Spawn(fmt.Sprintf("%s-%d", wp.Name, w.ID), func(p *sim.Process) {
		p.Timeout(d, func() { wp.finish(w, v, start) })
	})
}

func (wp *WorkerPool[T]) finish(w *Worker, v T, start int64) {
	w.busy = false
	w.served++
	wp.cfg.Done(w.ID, v, start, wp.sim.Clock)
	if w.busy || len(wp.waiting) == 0 {
		return
	}
	if wp.cfg.Order != nil {
		wp.cfg.Order(wp.waiting)
	}
	next := wp.waiting[0]
	var zero T
	wp.waiting[0] = zero
	wp.waiting = wp.waiting[1:]
	wp.start(w, next)
}

// Capacity returns the number of workers.
func (wp *WorkerPool[T]) Capacity() int { return len(wp.workers) }

// Busy returns the number of workers currently processing a unit.
func (wp *WorkerPool[T]) Busy() int {
	n := 0
	for _, w := range wp.workers {
		if w.busy {
			n++
		}
	}
	return n
}

// Waiting returns the length of the waiting list.
func (wp *WorkerPool[T]) Waiting() int { return len(wp.waiting) }

// Idle reports whether no worker is busy and nothing is waiting.
func (wp *WorkerPool[T]) Idle() bool { return wp.Busy() == 0 && len(wp.waiting) == 0 }

// Workers returns the pool members in ID order.
func (wp *WorkerPool[T]) Workers() []*Worker { return wp.workers }
