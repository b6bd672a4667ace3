package bayes

import (
	"math"
	"math/rand"
	"testing"
)

func noiseChains(nChains, n int, seed int64, shift func(chain int) float64) [][]float64 {
	rng := rand.New(rand.NewSource(seed))
	chains := make([][]float64, nChains)
	for c := range chains {
		chains[c] = make([]float64, n)
		for i := range chains[c] {
			chains[c][i] = shift(c) + rng.NormFloat64()
		}
	}
	return chains
}

func TestSplitRHatMixedChains(t *testing.T) {
	chains := noiseChains(4, 500, 7, func(int) float64 { return 0 })
	rhat, err := SplitRHat(chains)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rhat > 1.05 {
		t.Errorf("well-mixed chains: R-hat = %.4f, want near 1", rhat)
	}
}

func TestSplitRHatDivergedChains(t *testing.T) {
	chains := noiseChains(4, 500, 7, func(c int) float64 { return float64(c) * 5 })
	rhat, err := SplitRHat(chains)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rhat < 1.5 {
		t.Errorf("chains centered 5 apart: R-hat = %.4f, want well above threshold", rhat)
	}
}

func TestSplitRHatTrendingChain(t *testing.T) {
	// A single chain drifting from 0 to 10 is non-stationary; splitting
	// it must expose the drift even though both chains cover the range.
	chains := make([][]float64, 2)
	rng := rand.New(rand.NewSource(3))
	for c := range chains {
		chains[c] = make([]float64, 400)
		for i := range chains[c] {
			chains[c][i] = 10*float64(i)/400 + 0.1*rng.NormFloat64()
		}
	}
	rhat, err := SplitRHat(chains)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rhat < RHatThreshold {
		t.Errorf("trending chains: R-hat = %.4f, want above %.2f", rhat, RHatThreshold)
	}
}

func TestSplitRHatDegenerate(t *testing.T) {
	stuck := [][]float64{{2, 2, 2, 2, 2, 2}, {2, 2, 2, 2, 2, 2}}
	rhat, err := SplitRHat(stuck)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rhat != 1 {
		t.Errorf("chains stuck at the same value: R-hat = %v, want 1", rhat)
	}

	apart := [][]float64{{2, 2, 2, 2, 2, 2}, {5, 5, 5, 5, 5, 5}}
	rhat, err = SplitRHat(apart)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !math.IsInf(rhat, 1) {
		t.Errorf("chains stuck at different values: R-hat = %v, want +Inf", rhat)
	}
}

func TestSplitRHatShortChain(t *testing.T) {
	if _, err := SplitRHat([][]float64{{1, 2}, {1, 2}}); err == nil {
		t.Fatal("expected error for chains too short to split")
	}
}

func TestEffectiveSampleSizeWhiteNoise(t *testing.T) {
	chains := noiseChains(4, 500, 11, func(int) float64 { return 0 })
	ess := EffectiveSampleSize(chains)
	if ess < 1000 || ess > 2000 {
		t.Errorf("independent draws: ESS = %.0f, want most of the 2000 total", ess)
	}
}

func TestEffectiveSampleSizeAutocorrelated(t *testing.T) {
	// AR(1) with coefficient 0.9 has far fewer effective draws.
	rng := rand.New(rand.NewSource(13))
	chains := make([][]float64, 4)
	for c := range chains {
		chains[c] = make([]float64, 500)
		x := 0.0
		for i := range chains[c] {
			x = 0.9*x + rng.NormFloat64()
			chains[c][i] = x
		}
	}
	ess := EffectiveSampleSize(chains)
	if ess > 500 {
		t.Errorf("AR(1) rho=0.9: ESS = %.0f, want far below the 2000 total", ess)
	}
	if ess <= 0 {
		t.Errorf("ESS = %.0f, want positive", ess)
	}
}
