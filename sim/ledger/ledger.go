package ledger

import (
	"fmt"
	"io"
	"math"
	"slices"

	"github.com/sirupsen/logrus"

	"github.com/printfarm-sim/printfarm-sim/sim/plant"
	"github.com/printfarm-sim/printfarm-sim/sim/trace"
)

// DayRecorder receives one record per closed day. *trace.Trace implements it.
type DayRecorder interface {
	RecordDay(rec trace.DayRecord)
}

// Ledger is the plant observer that prices the run. It closes a day on
// every DayEnd event.
type Ledger struct {
	Cost         *Cost
	Satisfaction *Satisfaction

	recorder DayRecorder
	days     []trace.DayRecord
	lastDay  int
	lastTime int64

	// counts since the last closed day
	completed, shortages, defects int
	dirty                         bool

	flowTimes []int64
}

// New returns a ledger pricing with rates. recorder may be nil.
func New(rates Rates, recorder DayRecorder) *Ledger {
	return &Ledger{
		Cost:         NewCost(rates),
		Satisfaction: NewSatisfaction(rates.Satisfaction),
		recorder:     recorder,
	}
}

// Observe implements plant.Observer.
func (l *Ledger) Observe(ev plant.Event) {
	if ev.Kind == plant.DayEnd {
		l.closeDay(ev.Day, ev.Time)
		return
	}
	l.Cost.Charge(ev)
	l.Satisfaction.Rate(ev)
	switch ev.Kind {
	case plant.Completed:
		l.completed++
		l.flowTimes = append(l.flowTimes, ev.Time-ev.CreatedAt)
	case plant.Shortage:
		l.shortages++
	case plant.Defect:
		l.defects++
	}
	l.dirty = true
}

// Finish closes the trailing partial day if anything happened since the
// last DayEnd. The run loop calls it once the plant stops.
func (l *Ledger) Finish(now int64) {
	if !l.dirty || now <= l.lastTime {
		return
	}
	l.closeDay(l.lastDay+1, now)
}

func (l *Ledger) closeDay(day int, now int64) {
	rec := trace.DayRecord{
		Day:          day,
		Clock:        now,
		Completed:    l.completed,
		Shortages:    l.shortages,
		Defects:      l.defects,
		Cost:         l.Cost.CloseDay(),
		Satisfaction: l.Satisfaction.CloseDay(),
	}
	l.completed, l.shortages, l.defects = 0, 0, 0
	l.dirty = false
	l.lastDay, l.lastTime = day, now
	l.days = append(l.days, rec)
	if l.recorder != nil {
		l.recorder.RecordDay(rec)
	}
	logrus.Infof("[tick %07d] day %d closed: %d completed, %d shortages, %d defects, cost %.2f, satisfaction %.4f",
		now, day, rec.Completed, rec.Shortages, rec.Defects, rec.Cost, rec.Satisfaction)
}

// Days returns the closed days, oldest first.
func (l *Ledger) Days() []trace.DayRecord { return slices.Clone(l.days) }

// FlowStats summarizes completion minus creation over completed jobs.
type FlowStats struct {
	Count int
	Mean  float64
	P50   float64
	P95   float64
	Max   int64
}

// Flow returns the flow time statistics of every completed job.
func (l *Ledger) Flow() FlowStats {
	if len(l.flowTimes) == 0 {
		return FlowStats{}
	}
	sorted := slices.Clone(l.flowTimes)
	slices.Sort(sorted)
	total := 0.0
	for _, v := range sorted {
		total += float64(v)
	}
	return FlowStats{
		Count: len(sorted),
		Mean:  total / float64(len(sorted)),
		P50:   percentile(sorted, 50),
		P95:   percentile(sorted, 95),
		Max:   sorted[len(sorted)-1],
	}
}

// percentile linearly interpolates the p-th percentile of sorted data.
func percentile(data []int64, p float64) float64 {
	n := len(data)
	rank := p / 100.0 * float64(n-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return float64(data[lower])
	}
	return float64(data[lower]) + float64(data[upper]-data[lower])*(rank-float64(lower))
}

// Print writes the daily report and run totals.
func (l *Ledger) Print(w io.Writer) {
	for _, d := range l.days {
		fmt.Fprintf(w, "===== Day %d (tick %d) =====\n", d.Day, d.Clock)
		fmt.Fprintf(w, "Completed jobs       : %d\n", d.Completed)
		fmt.Fprintf(w, "Shortages            : %d\n", d.Shortages)
		fmt.Fprintf(w, "Defects              : %d\n", d.Defects)
		fmt.Fprintf(w, "Daily cost           : %.2f\n", d.Cost)
		fmt.Fprintf(w, "Total satisfaction   : %.4f\n", d.Satisfaction)
	}
	fmt.Fprintln(w, "=== Cost Totals ===")
	totals := l.Cost.Totals()
	for _, t := range CostTypes {
		fmt.Fprintf(w, "%-21s: %.2f\n", t, totals[t])
	}
	fmt.Fprintf(w, "%-21s: %.2f\n", "total", l.Cost.Total())
	flow := l.Flow()
	fmt.Fprintln(w, "=== Flow Time ===")
	fmt.Fprintf(w, "Completed jobs       : %d\n", flow.Count)
	if flow.Count > 0 {
		fmt.Fprintf(w, "Mean                 : %.2f ticks\n", flow.Mean)
		fmt.Fprintf(w, "P50                  : %.2f ticks\n", flow.P50)
		fmt.Fprintf(w, "P95                  : %.2f ticks\n", flow.P95)
		fmt.Fprintf(w, "Max                  : %d ticks\n", flow.Max)
	}
}
