package plant

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/printfarm-sim/printfarm-sim/sim"
	"github.com/printfarm-sim/printfarm-sim/sim/trace"
)

// testConfig is a one-day facility with no defects and single-slot wash
// and dry machines, so every job flows through without waiting for partners.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Days = 1
	cfg.Wash.Machines = []int{1}
	cfg.Dry.Machines = []int{1}
	cfg.Inspect.DefectRule = ""
	return cfg
}

type harness struct {
	sim    *sim.Simulator
	pl     *Pipeline
	trace  *trace.Trace
	events []Event
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	h := &harness{sim: sim.NewSimulator(), trace: trace.NewTrace(trace.TraceConfig{Level: trace.TraceLevelStages})}
	pl, err := New(h.sim, cfg, h.trace, ObserverFunc(func(ev Event) { h.events = append(h.events, ev) }))
	require.NoError(t, err)
	h.pl = pl
	return h
}

// job builds a job of n 10x10x10 items, each with the given build time and
// unit post/pack times.
func (h *harness) job(n int, itemBuild, wash, dry int64) *Job {
	seq := h.pl.IDs()
	items := make([]*Item, n)
	for i := range items {
		items[i] = &Item{
			ID:        seq.NextItem(),
			Height:    10,
			Width:     10,
			Depth:     10,
			BuildTime: itemBuild,
			PostTime:  5,
			PackTime:  3,
			CreatedAt: h.sim.Clock,
		}
	}
	j := NewJob(seq.NextJob(), h.sim.Clock, items, h.pl.Config().BuildTimePolicy)
	j.WashTime = wash
	j.DryTime = dry
	return j
}

func (h *harness) records(process string) []trace.StageRecord {
	var out []trace.StageRecord
	for _, r := range h.trace.Stages {
		if r.Process == process {
			out = append(out, r)
		}
	}
	return out
}

func (h *harness) record(entity, process string) (trace.StageRecord, bool) {
	for _, r := range h.trace.Stages {
		if r.EntityID == entity && r.Process == process {
			return r, true
		}
	}
	return trace.StageRecord{}, false
}

func (h *harness) count(kind EventKind) int {
	n := 0
	for _, ev := range h.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}
