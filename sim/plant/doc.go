// Package plant composes the kernel primitives into the five-stage print
// facility: Build (printers), Wash and Dry (batch machines, or a race over
// dryers), Inspect/PostProcess (per-item workers) and Package (per-job
// workers), plus the drain controller that runs the facility past its
// horizon until every stage is empty.
//
// The pipeline never computes costs or writes reports. It emits Events to
// Observers and StageRecords to a Recorder; the ledger, metrics and trace
// packages consume them.
package plant
