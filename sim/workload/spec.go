package workload

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/printfarm-sim/printfarm-sim/sim"
)

// Spec is the customer workload configuration.
// Loaded from YAML via LoadSpec(path) or embedded in the run config.
type Spec struct {
	Seed int64 `yaml:"seed"`

	// Interval is the mean number of ticks between job arrivals.
	Interval float64     `yaml:"interval"`
	Arrival  ArrivalSpec `yaml:"arrival"`

	// JobsPerRelease jobs accumulate before the customer hands them to the
	// Build queue as one group.
	JobsPerRelease int `yaml:"jobs_per_release"`

	ItemsPerJob DistSpec `yaml:"items_per_job"`
	Dimensions  DistSpec `yaml:"dimensions"`
	Envelope    Envelope `yaml:"envelope"`

	// BuildSpeed is the printed volume per tick.
	BuildSpeed float64 `yaml:"build_speed"`
	// PostCoefficient scales post-processing time by the item's largest
	// dimension relative to the envelope's largest dimension.
	PostCoefficient float64 `yaml:"post_coefficient"`

	PackSmall DistSpec `yaml:"pack_small"`
	PackLarge DistSpec `yaml:"pack_large"`
	Wash      DistSpec `yaml:"wash"`
	Dry       DistSpec `yaml:"dry"`
}

// ArrivalSpec selects the inter-arrival process.
type ArrivalSpec struct {
	Process string   `yaml:"process"`
	CV      *float64 `yaml:"cv,omitempty"`
}

// DistSpec describes an integer-valued distribution.
type DistSpec struct {
	Type   string  `yaml:"type"`
	Min    int     `yaml:"min"`
	Max    int     `yaml:"max"`
	Mean   float64 `yaml:"mean,omitempty"`
	StdDev float64 `yaml:"std_dev,omitempty"`
}

// Envelope is the largest item a printer accepts.
type Envelope struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
	Depth  int `yaml:"depth"`
}

// Fits reports whether an item of the given dimensions can be printed.
func (e Envelope) Fits(width, height, depth int) bool {
	return width <= e.Width && height <= e.Height && depth <= e.Depth
}

func (e Envelope) largest() int {
	return max(e.Width, e.Height, e.Depth)
}

var validArrivalProcesses = map[string]bool{
	"constant": true,
	"poisson":  true,
	"gamma":    true,
	"weibull":  true,
}

var validDistTypes = map[string]bool{
	"uniform":  true,
	"gaussian": true,
}

// DefaultSpec returns the stock workload: a job every 300 ticks on average,
// released in pairs.
func DefaultSpec() Spec {
	return Spec{
		Seed:            42,
		Interval:        300,
		Arrival:         ArrivalSpec{Process: "constant"},
		JobsPerRelease:  2,
		ItemsPerJob:     DistSpec{Type: "uniform", Min: 2, Max: 4},
		Dimensions:      DistSpec{Type: "uniform", Min: 10, Max: 60},
		Envelope:        Envelope{Width: 154, Height: 79, Depth: 55},
		BuildSpeed:      1000,
		PostCoefficient: 30,
		PackSmall:       DistSpec{Type: "uniform", Min: 10, Max: 20},
		PackLarge:       DistSpec{Type: "uniform", Min: 20, Max: 30},
		Wash:            DistSpec{Type: "uniform", Min: 10, Max: 15},
		Dry:             DistSpec{Type: "uniform", Min: 10, Max: 15},
	}
}

// LoadSpec reads a workload spec from a YAML file with strict field checking.
func LoadSpec(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading workload spec: %w", err)
	}
	spec := DefaultSpec()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&spec); err != nil {
		return nil, fmt.Errorf("parsing workload spec: %w", err)
	}
	return &spec, nil
}

// Validate reports the first invalid setting as a *sim.ConfigurationError.
func (s *Spec) Validate() error {
	if s.Interval <= 0 {
		return sim.NewConfigurationError("workload.interval", "must be > 0, got %g", s.Interval)
	}
	if !validArrivalProcesses[s.Arrival.Process] {
		return sim.NewConfigurationError("workload.arrival.process",
			"unknown process %q; valid: constant, poisson, gamma, weibull", s.Arrival.Process)
	}
	if s.Arrival.CV != nil && *s.Arrival.CV <= 0 {
		return sim.NewConfigurationError("workload.arrival.cv", "must be > 0, got %g", *s.Arrival.CV)
	}
	if s.JobsPerRelease <= 0 {
		return sim.NewConfigurationError("workload.jobs_per_release", "must be > 0, got %d", s.JobsPerRelease)
	}
	if s.Envelope.Width <= 0 || s.Envelope.Height <= 0 || s.Envelope.Depth <= 0 {
		return sim.NewConfigurationError("workload.envelope", "dimensions must be > 0, got %+v", s.Envelope)
	}
	if s.BuildSpeed <= 0 {
		return sim.NewConfigurationError("workload.build_speed", "must be > 0, got %g", s.BuildSpeed)
	}
	if s.PostCoefficient < 0 {
		return sim.NewConfigurationError("workload.post_coefficient", "must be >= 0, got %g", s.PostCoefficient)
	}
	dists := []struct {
		field string
		dist  DistSpec
		floor int
	}{
		{"workload.items_per_job", s.ItemsPerJob, 1},
		{"workload.dimensions", s.Dimensions, 1},
		{"workload.pack_small", s.PackSmall, 0},
		{"workload.pack_large", s.PackLarge, 0},
		{"workload.wash", s.Wash, 0},
		{"workload.dry", s.Dry, 0},
	}
	for _, d := range dists {
		if err := validateDist(d.field, d.dist, d.floor); err != nil {
			return err
		}
	}
	return nil
}

func validateDist(field string, d DistSpec, floor int) error {
	if !validDistTypes[d.Type] {
		return sim.NewConfigurationError(field+".type", "unknown distribution %q; valid: uniform, gaussian", d.Type)
	}
	if d.Min < floor {
		return sim.NewConfigurationError(field+".min", "must be >= %d, got %d", floor, d.Min)
	}
	if d.Max < d.Min {
		return sim.NewConfigurationError(field+".max", "must be >= min (%d), got %d", d.Min, d.Max)
	}
	if d.Type == "gaussian" && d.StdDev < 0 {
		return sim.NewConfigurationError(field+".std_dev", "must be >= 0, got %g", d.StdDev)
	}
	return nil
}
