// Package pool implements the two stage resource models built on the sim
// kernel: WorkerPool, where each member serves one unit at a time, and
// BatchPool, where each machine accumulates a fixed number of units and then
// processes them together.
//
// Both pools find a free member by scanning members in ID order. Pool sizes
// are small, so assignment is O(pool size) by choice.
package pool
