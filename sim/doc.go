// Package sim provides the discrete-event kernel for the print farm simulator.
//
// # Reading Guide
//
// Start with these files to understand the kernel:
//   - event.go: Event and the deterministic (time, sequence) event heap
//   - simulator.go: the virtual clock, Advance/RunUntil and the event loop
//   - process.go: cooperative processes and their suspension points
//   - queue.go: the hand-off queue connecting two stages
//   - resource.go and race.go: capacity-bounded resources and race-acquire
//
// # Execution model
//
// Everything runs on a single goroutine. A Process runs until it suspends on a
// timeout, a hand-off queue Get, or a resource acquisition; the continuation
// passed to that call is scheduled as an ordinary event and resumes the
// process later. Events at the same timestamp run in the order they were
// scheduled, so a run is reproducible for a fixed seed and configuration.
//
// # Sub-packages
//
//   - sim/dispatch/: dispatching rules (FIFO, LIFO, SPT, LPT, EDD)
//   - sim/pool/: worker pools and batch machine pools
//   - sim/plant/: pipeline stages, the drain controller and the job/item model
//   - sim/workload/: job and item generation
//   - sim/ledger/: cost and satisfaction bookkeeping
//   - sim/trace/: per-stage reporting records, CSV export and summaries
//   - sim/metrics/: prometheus collectors for a single run
package sim
