package ledger

import (
	"maps"
	"slices"

	"github.com/printfarm-sim/printfarm-sim/sim/plant"
)

// CostType names a cost accumulator.
type CostType string

const (
	CostPrinting       CostType = "printing"
	CostWashing        CostType = "washing"
	CostDrying         CostType = "drying"
	CostPostProcessing CostType = "post_processing"
	CostPackaging      CostType = "packaging"
	CostDelivery       CostType = "delivery"
	CostShortage       CostType = "shortage"
)

// CostTypes lists every cost type in report order.
var CostTypes = []CostType{
	CostPrinting, CostWashing, CostDrying, CostPostProcessing,
	CostPackaging, CostDelivery, CostShortage,
}

// Cost keeps one accumulator per cost type for the current day, plus the
// run totals and a log of closed daily totals.
type Cost struct {
	rates Rates
	daily map[CostType]float64
	total map[CostType]float64
	log   []float64
}

// NewCost returns an empty cost ledger.
func NewCost(rates Rates) *Cost {
	return &Cost{
		rates: rates,
		daily: make(map[CostType]float64, len(CostTypes)),
		total: make(map[CostType]float64, len(CostTypes)),
	}
}

// Add charges amount to t.
func (c *Cost) Add(t CostType, amount float64) {
	c.daily[t] += amount
	c.total[t] += amount
}

// Charge prices ev. Events that carry no cost are ignored.
func (c *Cost) Charge(ev plant.Event) {
	switch ev.Kind {
	case plant.Shortage:
		c.Add(CostShortage, c.rates.Shortage)
	case plant.Completed:
		c.Add(CostDelivery, c.rates.Delivery)
	case plant.StageExit:
		d := float64(ev.Duration)
		switch ev.Stage {
		case plant.StageBuild:
			c.Add(CostPrinting, d*c.rates.Printing)
		case plant.StageWash:
			c.Add(CostWashing, d*c.rates.Washing)
		case plant.StageDry:
			c.Add(CostDrying, d*c.rates.Drying)
		case plant.StageInspect:
			c.Add(CostPostProcessing, d*c.rates.PostProcessing)
		case plant.StagePackage:
			c.Add(CostPackaging, c.PackagingCost(ev.Volume))
		}
	}
}

// PackagingCost is the packaging rate, doubled for large jobs.
func (c *Cost) PackagingCost(volume int) float64 {
	if volume >= c.rates.LargeVolume {
		return 2 * c.rates.Packaging
	}
	return c.rates.Packaging
}

// Daily returns a copy of the current day's accumulators.
func (c *Cost) Daily() map[CostType]float64 {
	return maps.Clone(c.daily)
}

// DailyTotal sums the current day's accumulators.
func (c *Cost) DailyTotal() float64 {
	return sum(c.daily)
}

// Totals returns a copy of the run-wide accumulators.
func (c *Cost) Totals() map[CostType]float64 {
	return maps.Clone(c.total)
}

// Total sums the run-wide accumulators.
func (c *Cost) Total() float64 {
	return sum(c.total)
}

// CloseDay logs the current day's total, clears the daily accumulators and
// returns the logged total.
func (c *Cost) CloseDay() float64 {
	total := c.DailyTotal()
	c.log = append(c.log, total)
	clear(c.daily)
	return total
}

// Log returns the closed daily totals, oldest first.
func (c *Cost) Log() []float64 {
	return slices.Clone(c.log)
}

// sum adds in CostTypes order so totals are reproducible bit for bit.
func sum(m map[CostType]float64) float64 {
	total := 0.0
	for _, t := range CostTypes {
		total += m[t]
	}
	return total
}
