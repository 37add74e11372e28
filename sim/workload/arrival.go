package workload

import (
	"math"
	"math/rand"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat/distuv"
)

// ArrivalSampler draws the gap between two customer orders.
type ArrivalSampler interface {
	// SampleIAT returns the next gap in ticks, never less than 1.
	SampleIAT(rng *rand.Rand) int64
}

// ConstantSampler orders exactly every interval ticks and never touches the
// RNG, so switching to it leaves the item draws of a seed unchanged.
type ConstantSampler struct {
	interval int64
}

func (s *ConstantSampler) SampleIAT(_ *rand.Rand) int64 {
	return s.interval
}

// PoissonSampler draws exponential gaps (CV 1).
type PoissonSampler struct {
	mean float64
}

func (s *PoissonSampler) SampleIAT(rng *rand.Rand) int64 {
	return toTicks(distuv.Exponential{Rate: 1 / s.mean, Src: rng}.Rand())
}

// GammaSampler draws gamma gaps with shape 1/CV² and the configured mean.
// A CV above 1 clusters orders into bursts.
type GammaSampler struct {
	shape float64
	rate  float64
}

func (s *GammaSampler) SampleIAT(rng *rand.Rand) int64 {
	return toTicks(distuv.Gamma{Alpha: s.shape, Beta: s.rate, Src: rng}.Rand())
}

// WeibullSampler draws Weibull gaps whose shape is solved from the CV.
type WeibullSampler struct {
	shape float64
	scale float64
}

func (s *WeibullSampler) SampleIAT(rng *rand.Rand) int64 {
	return toTicks(distuv.Weibull{K: s.shape, Lambda: s.scale, Src: rng}.Rand())
}

func toTicks(sample float64) int64 {
	return max(int64(sample), 1)
}

// minGammaShape is the smallest gamma shape used; below it nearly every
// sample truncates to one tick and the configured mean is lost.
const minGammaShape = 0.01

// NewArrivalSampler picks the sampler for spec. mean is the average gap in
// ticks and is raised to 1 if smaller; a missing CV means 1.
func NewArrivalSampler(spec ArrivalSpec, mean float64) ArrivalSampler {
	mean = max(mean, 1)
	cv := 1.0
	if spec.CV != nil && *spec.CV > 0 {
		cv = *spec.CV
	}
	switch spec.Process {
	case "constant":
		return &ConstantSampler{interval: int64(math.Round(mean))}
	case "gamma":
		shape := 1 / (cv * cv)
		if shape < minGammaShape {
			logrus.Warnf("workload: gamma arrivals with cv %.1f are too bursty to sample, using poisson", cv)
			return &PoissonSampler{mean: mean}
		}
		return &GammaSampler{shape: shape, rate: shape / mean}
	case "weibull":
		k := weibullShape(cv)
		unit := distuv.Weibull{K: k, Lambda: 1}
		return &WeibullSampler{shape: k, scale: mean / unit.Mean()}
	default:
		return &PoissonSampler{mean: mean}
	}
}

// weibullShape bisects for the shape k in [0.1, 100] whose CV matches cv to
// within 0.001. The CV of a Weibull falls as k grows.
func weibullShape(cv float64) float64 {
	lo, hi := 0.1, 100.0
	for range 100 {
		k := (lo + hi) / 2
		w := distuv.Weibull{K: k, Lambda: 1}
		got := w.StdDev() / w.Mean()
		switch {
		case math.Abs(got-cv) < 0.001:
			return k
		case got > cv:
			lo = k
		default:
			hi = k
		}
	}
	logrus.Warnf("workload: no weibull shape matches cv %.3f, using k=%.3f", cv, (lo+hi)/2)
	return (lo + hi) / 2
}
