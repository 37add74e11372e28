// Package ledger turns pipeline events into money and customer
// satisfaction. It holds no scheduling logic: every figure is derived from
// plant.Event values delivered through the Observer interface.
package ledger

import "github.com/printfarm-sim/printfarm-sim/sim"

// Rates prices each cost type.
type Rates struct {
	Printing       float64 `yaml:"printing"`        // per build tick
	Washing        float64 `yaml:"washing"`         // per wash tick
	Drying         float64 `yaml:"drying"`          // per dry tick
	PostProcessing float64 `yaml:"post_processing"` // per inspection tick
	Packaging      float64 `yaml:"packaging"`       // per packed job
	Delivery       float64 `yaml:"delivery"`        // per completed job
	Shortage       float64 `yaml:"shortage"`        // per diverted item

	// LargeVolume is the job volume from which packaging is charged double.
	LargeVolume int `yaml:"large_volume"`

	Satisfaction SatisfactionRates `yaml:"satisfaction"`
}

// SatisfactionRates scores customer outcomes.
type SatisfactionRates struct {
	// Positive is divided by the flow time of a completed job.
	Positive float64 `yaml:"positive"`
	// Negative is charged for a job that got no service at all.
	Negative float64 `yaml:"negative"`
}

// DefaultRates charges one unit per tick or per job, doubles packaging for
// jobs of 100000 volume units and more, and scores 1/flow time.
func DefaultRates() Rates {
	return Rates{
		Printing:       1,
		Washing:        1,
		Drying:         1,
		PostProcessing: 1,
		Packaging:      1,
		Delivery:       1,
		Shortage:       1,
		LargeVolume:    100000,
		Satisfaction:   SatisfactionRates{Positive: 1, Negative: -0.1},
	}
}

// Validate reports the first invalid rate as a *sim.ConfigurationError.
func (r Rates) Validate() error {
	costs := []struct {
		field string
		rate  float64
	}{
		{"rates.printing", r.Printing},
		{"rates.washing", r.Washing},
		{"rates.drying", r.Drying},
		{"rates.post_processing", r.PostProcessing},
		{"rates.packaging", r.Packaging},
		{"rates.delivery", r.Delivery},
		{"rates.shortage", r.Shortage},
	}
	for _, c := range costs {
		if c.rate < 0 {
			return sim.NewConfigurationError(c.field, "must be >= 0, got %g", c.rate)
		}
	}
	if r.LargeVolume < 0 {
		return sim.NewConfigurationError("rates.large_volume", "must be >= 0, got %d", r.LargeVolume)
	}
	if r.Satisfaction.Negative > 0 {
		return sim.NewConfigurationError("rates.satisfaction.negative", "must be <= 0, got %g", r.Satisfaction.Negative)
	}
	return nil
}
