// Package metrics exposes a run as Prometheus metrics. Each run owns its
// own registry, so concurrent runs in one process never share series.
package metrics

import (
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"

	"github.com/printfarm-sim/printfarm-sim/sim/plant"
)

const namespace = "printfarm"

// SnapshotFunc reports the current pipeline occupancy.
type SnapshotFunc func() plant.Snapshot

// Collector is a plant.Observer that turns events into Prometheus series.
type Collector struct {
	registry *prometheus.Registry
	snapshot SnapshotFunc

	StageEntries  *prometheus.CounterVec
	StageExits    *prometheus.CounterVec
	StageDuration *prometheus.HistogramVec
	Occupancy     *prometheus.GaugeVec
	Outcomes      *prometheus.CounterVec
	FlowTime      prometheus.Histogram
	Queues        *prometheus.GaugeVec
	Clock         prometheus.Gauge
	Day           prometheus.Gauge
}

// NewCollector registers the run metrics on a fresh registry. snapshot may
// be nil; when set, queue gauges are refreshed at every day boundary.
func NewCollector(runID string, snapshot SnapshotFunc) *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(prometheus.WrapRegistererWith(prometheus.Labels{"run": runID}, reg))
	ticks := prometheus.ExponentialBuckets(1, 2, 12)
	return &Collector{
		registry: reg,
		snapshot: snapshot,
		StageEntries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_entries_total",
			Help:      "Jobs or items that started occupying a stage resource",
		}, []string{"stage"}),
		StageExits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_exits_total",
			Help:      "Jobs or items that released a stage resource",
		}, []string{"stage"}),
		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_ticks",
			Help:      "Processing time spent in each stage",
			Buckets:   ticks,
		}, []string{"stage"}),
		Occupancy: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stage_occupancy",
			Help:      "Jobs or items currently occupying each stage",
		}, []string{"stage"}),
		Outcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outcomes_total",
			Help:      "Shortages, defects, rework jobs, scrapped items and completed jobs",
		}, []string{"kind"}),
		FlowTime: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "flow_time_ticks",
			Help:      "Completion minus creation time of completed jobs",
			Buckets:   ticks,
		}),
		Queues: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_length",
			Help:      "Units waiting at each hand-off point, sampled at day boundaries",
		}, []string{"queue"}),
		Clock: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "clock_ticks",
			Help:      "Simulation clock at the last observed event",
		}),
		Day: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "days_completed",
			Help:      "Day boundaries passed",
		}),
	}
}

// Registry returns the run registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Observe implements plant.Observer.
func (c *Collector) Observe(ev plant.Event) {
	c.Clock.Set(float64(ev.Time))
	stage := string(ev.Stage)
	switch ev.Kind {
	case plant.StageEntry:
		c.StageEntries.WithLabelValues(stage).Inc()
		c.Occupancy.WithLabelValues(stage).Inc()
	case plant.StageExit:
		c.StageExits.WithLabelValues(stage).Inc()
		c.Occupancy.WithLabelValues(stage).Dec()
		c.StageDuration.WithLabelValues(stage).Observe(float64(ev.Duration))
	case plant.Completed:
		c.Outcomes.WithLabelValues(string(ev.Kind)).Inc()
		c.FlowTime.Observe(float64(ev.Time - ev.CreatedAt))
	case plant.Shortage, plant.Defect, plant.Rework, plant.Scrap:
		c.Outcomes.WithLabelValues(string(ev.Kind)).Inc()
	case plant.DayEnd:
		c.Day.Set(float64(ev.Day))
		c.Sample()
	}
}

// Sample refreshes the queue gauges from the snapshot function.
func (c *Collector) Sample() {
	if c.snapshot == nil {
		return
	}
	s := c.snapshot()
	for queue, n := range map[string]int{
		"build":            s.BuildQueue,
		"pallets":          s.PalletsWaiting,
		"wash":             s.WashWaiting,
		"wash_accumulated": s.WashAccumulated,
		"dry":              s.DryWaiting,
		"dry_accumulated":  s.DryAccumulated,
		"inspect":          s.InspectWaiting,
		"package":          s.PackageWaiting,
		"rework":           s.ReworkBuffered,
	} {
		c.Queues.WithLabelValues(queue).Set(float64(n))
	}
}

// Write dumps every metric in the Prometheus text exposition format.
func (c *Collector) Write(w io.Writer) error {
	families, err := c.registry.Gather()
	if err != nil {
		return fmt.Errorf("gathering metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("writing metric %s: %w", mf.GetName(), err)
		}
	}
	return nil
}
