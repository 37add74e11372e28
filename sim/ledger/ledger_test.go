package ledger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/printfarm-sim/printfarm-sim/sim"
	"github.com/printfarm-sim/printfarm-sim/sim/plant"
	"github.com/printfarm-sim/printfarm-sim/sim/trace"
)

func exit(stage plant.Stage, duration int64, volume int) plant.Event {
	return plant.Event{Kind: plant.StageExit, Stage: stage, Duration: duration, Volume: volume}
}

func TestCost_Charge_PricesEachStage(t *testing.T) {
	// GIVEN distinct rates per cost type
	rates := Rates{
		Printing: 1, Washing: 2, Drying: 3, PostProcessing: 4,
		Packaging: 5, Delivery: 6, Shortage: 7, LargeVolume: 100,
	}
	c := NewCost(rates)

	// WHEN one event of each kind is charged
	c.Charge(exit(plant.StageBuild, 10, 0))
	c.Charge(exit(plant.StageWash, 10, 0))
	c.Charge(exit(plant.StageDry, 10, 0))
	c.Charge(exit(plant.StageInspect, 10, 0))
	c.Charge(exit(plant.StagePackage, 10, 99))
	c.Charge(exit(plant.StagePackage, 10, 100))
	c.Charge(plant.Event{Kind: plant.Completed})
	c.Charge(plant.Event{Kind: plant.Shortage})
	c.Charge(plant.Event{Kind: plant.StageEntry, Stage: plant.StageBuild, Duration: 99})

	// THEN durations are multiplied by the rate and large jobs pay double packaging
	daily := c.Daily()
	assert.Equal(t, 10.0, daily[CostPrinting])
	assert.Equal(t, 20.0, daily[CostWashing])
	assert.Equal(t, 30.0, daily[CostDrying])
	assert.Equal(t, 40.0, daily[CostPostProcessing])
	assert.Equal(t, 15.0, daily[CostPackaging])
	assert.Equal(t, 6.0, daily[CostDelivery])
	assert.Equal(t, 7.0, daily[CostShortage])
	assert.Equal(t, 128.0, c.DailyTotal())
}

func TestCost_CloseDay_LogsAndResets(t *testing.T) {
	c := NewCost(DefaultRates())
	c.Add(CostPrinting, 5)
	c.Add(CostShortage, 1)

	assert.Equal(t, 6.0, c.CloseDay())
	assert.Zero(t, c.DailyTotal())

	c.Add(CostWashing, 2)
	assert.Equal(t, 2.0, c.CloseDay())

	assert.Equal(t, []float64{6, 2}, c.Log())
	assert.Equal(t, 8.0, c.Total())
	assert.Equal(t, 5.0, c.Totals()[CostPrinting])
}

func TestSatisfaction_Score(t *testing.T) {
	s := NewSatisfaction(SatisfactionRates{Positive: 1, Negative: -0.1})

	assert.InDelta(t, 0.25, s.Score(10, 14), 1e-12)
	assert.Equal(t, -0.1, s.Score(10, 10))
}

func TestSatisfaction_Rate_OnlyOutcomes(t *testing.T) {
	s := NewSatisfaction(SatisfactionRates{Positive: 1, Negative: -0.1})

	s.Rate(plant.Event{Kind: plant.Completed, CreatedAt: 0, Time: 4})
	s.Rate(plant.Event{Kind: plant.Shortage, CreatedAt: 7, Time: 7})
	s.Rate(plant.Event{Kind: plant.StageExit, CreatedAt: 0, Time: 1})

	assert.Equal(t, 2, s.Scored())
	assert.InDelta(t, 0.15, s.Total(), 1e-12)
	s.CloseDay()
	assert.Len(t, s.Log(), 1)
}

func TestLedger_DayEnd_ClosesDayAndRecords(t *testing.T) {
	// GIVEN a ledger feeding a trace
	tr := trace.NewTrace(trace.TraceConfig{Level: trace.TraceLevelNone})
	l := New(DefaultRates(), tr)

	// WHEN a day with one completion, one shortage and one defect ends
	l.Observe(exit(plant.StageBuild, 30, 0))
	l.Observe(plant.Event{Kind: plant.Completed, CreatedAt: 0, Time: 50})
	l.Observe(plant.Event{Kind: plant.Shortage, CreatedAt: 20, Time: 20})
	l.Observe(plant.Event{Kind: plant.Defect})
	l.Observe(plant.Event{Kind: plant.DayEnd, Day: 1, Time: 1440})

	// THEN the day record carries the counts and the closed cost
	require.Len(t, tr.Days, 1)
	day := tr.Days[0]
	assert.Equal(t, 1, day.Day)
	assert.Equal(t, int64(1440), day.Clock)
	assert.Equal(t, 1, day.Completed)
	assert.Equal(t, 1, day.Shortages)
	assert.Equal(t, 1, day.Defects)
	assert.Equal(t, 32.0, day.Cost)
	assert.InDelta(t, 1.0/50-0.1, day.Satisfaction, 1e-12)
	assert.Zero(t, l.Cost.DailyTotal())
	assert.Equal(t, tr.Days, l.Days())
}

func TestLedger_Finish_ClosesOnlyDirtyTrailingDay(t *testing.T) {
	l := New(DefaultRates(), nil)
	l.Observe(plant.Event{Kind: plant.DayEnd, Day: 1, Time: 1440})

	// GIVEN nothing happened after the last DayEnd
	l.Finish(1500)
	assert.Len(t, l.Days(), 1)

	// WHEN work completes after it
	l.Observe(plant.Event{Kind: plant.Completed, CreatedAt: 1000, Time: 1600})
	l.Finish(1600)

	// THEN a partial day 2 is closed at the finish tick
	days := l.Days()
	require.Len(t, days, 2)
	assert.Equal(t, 2, days[1].Day)
	assert.Equal(t, int64(1600), days[1].Clock)
	assert.Equal(t, 1, days[1].Completed)
}

func TestLedger_Flow_Percentiles(t *testing.T) {
	l := New(DefaultRates(), nil)
	for _, flow := range []int64{40, 10, 30, 20, 50} {
		l.Observe(plant.Event{Kind: plant.Completed, CreatedAt: 100, Time: 100 + flow})
	}

	got := l.Flow()

	assert.Equal(t, 5, got.Count)
	assert.Equal(t, 30.0, got.Mean)
	assert.Equal(t, 30.0, got.P50)
	assert.InDelta(t, 48.0, got.P95, 1e-9)
	assert.Equal(t, int64(50), got.Max)
	assert.Equal(t, FlowStats{}, New(DefaultRates(), nil).Flow())
}

func TestRates_Validate(t *testing.T) {
	assert.NoError(t, DefaultRates().Validate())

	r := DefaultRates()
	r.Drying = -1
	var cfgErr *sim.ConfigurationError
	require.ErrorAs(t, r.Validate(), &cfgErr)
	assert.Equal(t, "rates.drying", cfgErr.Field)

	r = DefaultRates()
	r.Satisfaction.Negative = 0.5
	require.ErrorAs(t, r.Validate(), &cfgErr)
	assert.Equal(t, "rates.satisfaction.negative", cfgErr.Field)
}

func TestLedger_ObservesPipeline(t *testing.T) {
	// GIVEN a one-day plant with a ledger attached and one job submitted
	cfg := plant.DefaultConfig()
	cfg.Days = 1
	cfg.Wash.Machines = []int{1}
	cfg.Dry.Machines = []int{1}
	cfg.Inspect.DefectRule = ""
	s := sim.NewSimulator()
	l := New(DefaultRates(), nil)
	pl, err := plant.New(s, cfg, nil, l)
	require.NoError(t, err)
	item := &plant.Item{ID: pl.IDs().NextItem(), Height: 10, Width: 10, Depth: 10, BuildTime: 40, PostTime: 5, PackTime: 3}
	j := plant.NewJob(pl.IDs().NextJob(), 0, []*plant.Item{item}, cfg.BuildTimePolicy)
	j.WashTime, j.DryTime = 10, 10
	pl.Submit(j)

	// WHEN the plant runs
	require.NoError(t, pl.Run())
	l.Finish(s.Now())

	// THEN the build, wash, dry, inspection and packaging ticks are all
	// charged along with one delivery
	totals := l.Cost.Totals()
	assert.Equal(t, 40.0, totals[CostPrinting])
	assert.Equal(t, 10.0, totals[CostWashing])
	assert.Equal(t, 10.0, totals[CostDrying])
	assert.Equal(t, 5.0, totals[CostPostProcessing])
	assert.Equal(t, 1.0, totals[CostPackaging])
	assert.Equal(t, 1.0, totals[CostDelivery])
	assert.Equal(t, 1, l.Flow().Count)

	var buf bytes.Buffer
	l.Print(&buf)
	assert.Contains(t, buf.String(), "=== Cost Totals ===")
}
