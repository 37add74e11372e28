package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/printfarm-sim/printfarm-sim/sim"
	"github.com/printfarm-sim/printfarm-sim/sim/ledger"
	"github.com/printfarm-sim/printfarm-sim/sim/metrics"
	"github.com/printfarm-sim/printfarm-sim/sim/plant"
	"github.com/printfarm-sim/printfarm-sim/sim/trace"
	"github.com/printfarm-sim/printfarm-sim/sim/workload"
)

// Report is everything a finished run produced.
type Report struct {
	RunID    string
	Seed     int64
	State    plant.DrainState
	Clock    int64
	Days     int
	Totals   plant.Totals
	Customer workload.Stats
	Trace    *trace.Trace
	Summary  *trace.TraceSummary
	Ledger   *ledger.Ledger
	Metrics  *metrics.Collector
}

// Simulate builds the facility and the customer from cfg, runs them to the
// end of the drain and returns the report. A stalled drain or an invariant
// violation is returned as the error next to a report of the partial run;
// a configuration problem returns a nil report.
func Simulate(cfg Config, level trace.TraceLevel) (*Report, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	runID := uuid.New().String()
	s := sim.NewSimulator()
	tr := trace.NewTrace(trace.TraceConfig{Level: level})
	lg := ledger.New(cfg.Rates, tr)

	var pl *plant.Pipeline
	col := metrics.NewCollector(runID, func() plant.Snapshot { return pl.Snapshot() })
	pl, err := plant.New(s, cfg.Plant, tr, lg, col)
	if err != nil {
		return nil, err
	}
	rng := sim.NewPartitionedRNG(sim.NewSimulationKey(cfg.Workload.Seed))
	pl.UseRNG(rng)
	customer, err := workload.NewCustomer(cfg.Workload, rng, pl, cfg.Plant.BuildTimePolicy, cfg.Plant.Horizon())
	if err != nil {
		return nil, err
	}
	customer.Start(s)

	logrus.Infof("run %s: seed %d, %d days of %d ticks, rule %s", runID, cfg.Workload.Seed, cfg.Plant.Days, cfg.Plant.DayLength, pl.Rule())
	runErr := pl.Run()
	lg.Finish(s.Now())
	col.Sample()

	return &Report{
		RunID:    runID,
		Seed:     cfg.Workload.Seed,
		State:    pl.State(),
		Clock:    s.Now(),
		Days:     pl.Day(),
		Totals:   pl.Totals(),
		Customer: customer.Stats(),
		Trace:    tr,
		Summary:  trace.Summarize(tr),
		Ledger:   lg,
		Metrics:  col,
	}, runErr
}

// Print writes the human-readable run report.
func (r *Report) Print(w io.Writer) {
	fmt.Fprintf(w, "=== Run %s (seed %d) ===\n", r.RunID, r.Seed)
	fmt.Fprintf(w, "Final state          : %s at tick %d (%d days)\n", r.State, r.Clock, r.Days)
	r.Ledger.Print(w)

	t := r.Totals
	fmt.Fprintln(w, "=== Throughput ===")
	fmt.Fprintf(w, "Arrivals             : %d\n", r.Customer.Arrivals)
	fmt.Fprintf(w, "Jobs released        : %d (%d dropped)\n", r.Customer.Jobs, r.Customer.Dropped)
	fmt.Fprintf(w, "Jobs completed       : %d (+%d emptied)\n", t.JobsCompleted, t.JobsEmptied)
	fmt.Fprintf(w, "Rework jobs          : %d\n", t.ReworkJobs)
	fmt.Fprintf(w, "Items submitted      : %d\n", t.ItemsSubmitted)
	fmt.Fprintf(w, "Items packed         : %d\n", t.ItemsPacked)
	fmt.Fprintf(w, "Items shortage       : %d\n", t.ItemsShortage)
	fmt.Fprintf(w, "Items defective      : %d\n", t.ItemsDefective)
	fmt.Fprintf(w, "Items scrapped       : %d\n", t.ItemsScrapped)

	if r.Summary.TotalRecords == 0 {
		return
	}
	fmt.Fprintf(w, "=== Stages (makespan %d ticks) ===\n", r.Summary.Makespan)
	fmt.Fprintf(w, "%-8s %7s %10s %10s %10s %10s %7s\n", "stage", "visits", "mean", "std", "mean wait", "max wait", "forced")
	for _, s := range r.Summary.Stages {
		fmt.Fprintf(w, "%-8s %7d %10.2f %10.2f %10.2f %10d %7d\n",
			s.Process, s.Visits, s.MeanDuration, s.StdDuration, s.MeanWait, s.MaxWait, s.ForcedVisits)
	}
}

// writeOutputs saves the stage CSV and the metrics dump when paths are set.
func writeOutputs(r *Report, tracePath, metricsPath string) error {
	if tracePath != "" {
		if err := writeFile(tracePath, r.Trace.WriteCSV); err != nil {
			return fmt.Errorf("writing trace: %w", err)
		}
		logrus.Infof("wrote %d stage records to %s", len(r.Trace.Stages), tracePath)
	}
	if metricsPath != "" {
		if err := writeFile(metricsPath, r.Metrics.Write); err != nil {
			return fmt.Errorf("writing metrics: %w", err)
		}
		logrus.Infof("wrote metrics to %s", metricsPath)
	}
	return nil
}

func writeFile(path string, write func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
	}()
	return write(f)
}

// exitCode maps a run error to the process exit status: 2 for a stalled
// drain, 3 for a broken invariant, 1 otherwise.
func exitCode(err error) int {
	var stalled *plant.DrainStalledError
	var violation *sim.CapacityInvariantViolation
	switch {
	case errors.As(err, &stalled):
		return 2
	case errors.As(err, &violation):
		return 3
	default:
		return 1
	}
}
