package workload

import (
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/printfarm-sim/printfarm-sim/sim/internal/testutil"
)

func TestPoissonSampler_MeanIAT_MatchesInterval(t *testing.T) {
	// GIVEN a Poisson sampler with a mean gap of 1000 ticks
	rng := rand.New(rand.NewSource(42))
	sampler := NewArrivalSampler(ArrivalSpec{Process: "poisson"}, 1000)

	// WHEN 10000 IATs are sampled
	n := 10000
	sum := int64(0)
	for i := 0; i < n; i++ {
		sum += sampler.SampleIAT(rng)
	}
	meanIAT := float64(sum) / float64(n)

	// THEN mean IAT ≈ 1000 ticks (within 5%)
	expected := 1000.0
	if math.Abs(meanIAT-expected)/expected > 0.05 {
		t.Errorf("mean IAT = %.0f ticks, want ≈ %.0f (within 5%%)", meanIAT, expected)
	}
}

func TestGammaSampler_HighCV_ProducesBurstierArrivals(t *testing.T) {
	// GIVEN a Gamma sampler with CV=3.5 and a Poisson sampler at the same mean
	rng1 := rand.New(rand.NewSource(42))
	rng2 := rand.New(rand.NewSource(42))
	cv := 3.5
	gamma := NewArrivalSampler(ArrivalSpec{Process: "gamma", CV: &cv}, 1000)
	poisson := NewArrivalSampler(ArrivalSpec{Process: "poisson"}, 1000)

	// WHEN 10000 IATs sampled from each
	n := 10000
	gammaIATs := make([]float64, n)
	poissonIATs := make([]float64, n)
	for i := 0; i < n; i++ {
		gammaIATs[i] = float64(gamma.SampleIAT(rng1))
		poissonIATs[i] = float64(poisson.SampleIAT(rng2))
	}

	// THEN Gamma CV > 2.0 and Poisson CV ≈ 1.0
	gammaCV := coefficientOfVariation(gammaIATs)
	poissonCV := coefficientOfVariation(poissonIATs)
	if gammaCV < 2.0 {
		t.Errorf("gamma CV = %.2f, want > 2.0", gammaCV)
	}
	if poissonCV < 0.8 || poissonCV > 1.2 {
		t.Errorf("poisson CV = %.2f, want ≈ 1.0", poissonCV)
	}
}

func TestGammaSampler_MeanAndVariance_MatchTheoretical(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	cv := 2.0
	sampler := NewArrivalSampler(ArrivalSpec{Process: "gamma", CV: &cv}, 1000)

	n := 50000
	vals := make([]float64, n)
	for i := 0; i < n; i++ {
		vals[i] = float64(sampler.SampleIAT(rng))
	}
	// Theoretical: mean = 1000 ticks, variance = mean² * CV²
	mean, variance := testutil.MeanAndVariance(vals)
	expectedMean := 1000.0
	testutil.AssertFloat64Equal(t, "gamma mean", expectedMean, mean, 0.05)
	testutil.AssertFloat64Equal(t, "gamma variance", expectedMean*expectedMean*cv*cv, variance, 0.15)
}

func TestWeibullSampler_MeanIAT_MatchesInterval(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	cv := 1.5
	sampler := NewArrivalSampler(ArrivalSpec{Process: "weibull", CV: &cv}, 1000)

	n := 10000
	sum := int64(0)
	for i := 0; i < n; i++ {
		sum += sampler.SampleIAT(rng)
	}
	meanIAT := float64(sum) / float64(n)
	expected := 1000.0
	// Weibull mean should match target within 10%
	if math.Abs(meanIAT-expected)/expected > 0.10 {
		t.Errorf("weibull mean IAT = %.0f ticks, want ≈ %.0f (within 10%%)", meanIAT, expected)
	}
}

func TestPoissonSampler_AllPositive(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	sampler := NewArrivalSampler(ArrivalSpec{Process: "poisson"}, 5)
	for i := 0; i < 10000; i++ {
		if iat := sampler.SampleIAT(rng); iat <= 0 {
			t.Fatalf("IAT must be positive, got %d at iteration %d", iat, i)
		}
	}
}

// coefficientOfVariation computes std_dev / mean.
func coefficientOfVariation(vals []float64) float64 {
	mean, variance := testutil.MeanAndVariance(vals)
	return math.Sqrt(variance) / mean
}

func TestWeibullShape_MatchesRequestedCV(t *testing.T) {
	// GIVEN target CVs on both sides of the exponential case
	for _, cv := range []float64{0.5, 1.0, 2.0} {
		// WHEN the shape is solved
		k := weibullShape(cv)

		// THEN the resulting distribution has that CV
		w := distuv.Weibull{K: k, Lambda: 1}
		testutil.AssertFloat64Equal(t, "weibull cv", cv, w.StdDev()/w.Mean(), 0.01)
	}
	// CV 1 is the exponential distribution
	testutil.AssertFloat64Equal(t, "weibull shape at cv 1", 1.0, weibullShape(1.0), 0.01)
}

func TestGammaSampler_ExtremeCV_FallsBackToPoisson(t *testing.T) {
	cv := 20.0
	sampler := NewArrivalSampler(ArrivalSpec{Process: "gamma", CV: &cv}, 100)
	if _, ok := sampler.(*PoissonSampler); !ok {
		t.Errorf("sampler = %T, want *PoissonSampler", sampler)
	}
}

func TestConstantSampler_ExactIntervals(t *testing.T) {
	// GIVEN a constant sampler with a 300 tick interval
	sampler := NewArrivalSampler(ArrivalSpec{Process: "constant"}, 300)

	// WHEN sampled with RNGs in different states
	rng1 := rand.New(rand.NewSource(1))
	rng2 := rand.New(rand.NewSource(999))

	// THEN every gap is exactly 300 regardless of seed
	for i := 0; i < 50; i++ {
		iat1 := sampler.SampleIAT(rng1)
		iat2 := sampler.SampleIAT(rng2)
		if iat1 != 300 || iat2 != 300 {
			t.Fatalf("iteration %d: SampleIAT = %d/%d, want 300", i, iat1, iat2)
		}
	}
}

func TestNewArrivalSampler_SubTickMean_FloorsAtOne(t *testing.T) {
	sampler := NewArrivalSampler(ArrivalSpec{Process: "constant"}, 0.2)

	rng := rand.New(rand.NewSource(42))
	if iat := sampler.SampleIAT(rng); iat != 1 {
		t.Errorf("SampleIAT = %d, want 1", iat)
	}
}
