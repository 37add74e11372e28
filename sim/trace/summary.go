package trace

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// StageSummary aggregates the records of one process.
type StageSummary struct {
	Process        string
	Visits         int
	MeanDuration   float64
	StdDuration    float64
	MaxDuration    int64
	MeanWait       float64
	StdWait        float64
	MaxWait        int64
	ForcedVisits   int            // records from force-dispatched batches
	ResourceVisits map[string]int // resource ID → count of visits
}

// TraceSummary aggregates statistics from a Trace.
type TraceSummary struct {
	TotalRecords int
	Makespan     int64 // last End minus first Start
	Stages       []StageSummary
}

// Summarize computes per-process statistics from a Trace, with processes in
// order of first appearance. Safe for nil or empty traces.
func Summarize(t *Trace) *TraceSummary {
	summary := &TraceSummary{}
	if t == nil || len(t.Stages) == 0 {
		return summary
	}
	summary.TotalRecords = len(t.Stages)

	var order []string
	byProcess := make(map[string][]StageRecord)
	first, last := t.Stages[0].Start, t.Stages[0].End
	for _, r := range t.Stages {
		if _, ok := byProcess[r.Process]; !ok {
			order = append(order, r.Process)
		}
		byProcess[r.Process] = append(byProcess[r.Process], r)
		first = min(first, r.Start)
		last = max(last, r.End)
	}
	summary.Makespan = last - first

	for _, p := range order {
		summary.Stages = append(summary.Stages, summarizeStage(p, byProcess[p]))
	}
	return summary
}

func summarizeStage(process string, recs []StageRecord) StageSummary {
	s := StageSummary{
		Process:        process,
		Visits:         len(recs),
		ResourceVisits: make(map[string]int),
	}
	durations := make([]float64, len(recs))
	waits := make([]float64, len(recs))
	for i, r := range recs {
		durations[i] = float64(r.Duration())
		waits[i] = float64(r.Wait())
		s.MaxDuration = max(s.MaxDuration, r.Duration())
		s.MaxWait = max(s.MaxWait, r.Wait())
		s.ResourceVisits[r.ResourceID]++
		if r.Forced {
			s.ForcedVisits++
		}
	}
	s.MeanDuration, s.StdDuration = meanStd(durations)
	s.MeanWait, s.StdWait = meanStd(waits)
	return s
}

// meanStd returns the mean and the unbiased standard deviation; a single
// sample has zero spread.
func meanStd(xs []float64) (float64, float64) {
	if len(xs) == 1 {
		return xs[0], 0
	}
	return stat.MeanStdDev(xs, nil)
}

// Resources returns the resource IDs of a stage summary in sorted order.
func (s StageSummary) Resources() []string {
	ids := make([]string, 0, len(s.ResourceVisits))
	for id := range s.ResourceVisits {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
