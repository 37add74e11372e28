package workload

import (
	"fmt"
	"math"
	"math/rand"
)

// IntSampler draws bounded integer attributes: dimensions, item counts and
// stage durations.
type IntSampler interface {
	// Sample returns a value in [min, max] of the underlying spec.
	Sample(rng *rand.Rand) int
}

// UniformSampler draws uniformly from the closed range [min, max].
type UniformSampler struct {
	min, max int
}

func (s *UniformSampler) Sample(rng *rand.Rand) int {
	if s.min == s.max {
		return s.min
	}
	return s.min + rng.Intn(s.max-s.min+1)
}

// GaussianSampler produces clamped Gaussian values.
type GaussianSampler struct {
	mean, stdDev float64
	min, max     int
}

func (s *GaussianSampler) Sample(rng *rand.Rand) int {
	if s.min == s.max {
		return s.min
	}
	val := rng.NormFloat64()*s.stdDev + s.mean
	clamped := math.Min(float64(s.max), math.Max(float64(s.min), val))
	return int(math.Round(clamped))
}

// NewIntSampler creates an IntSampler from a validated DistSpec. A gaussian
// with no mean is centred on the range.
func NewIntSampler(spec DistSpec) (IntSampler, error) {
	if spec.Max < spec.Min {
		return nil, fmt.Errorf("distribution range [%d, %d] is empty", spec.Min, spec.Max)
	}
	switch spec.Type {
	case "uniform":
		return &UniformSampler{min: spec.Min, max: spec.Max}, nil
	case "gaussian":
		mean := spec.Mean
		if mean == 0 {
			mean = float64(spec.Min+spec.Max) / 2
		}
		return &GaussianSampler{mean: mean, stdDev: spec.StdDev, min: spec.Min, max: spec.Max}, nil
	default:
		return nil, fmt.Errorf("unknown distribution type %q", spec.Type)
	}
}
