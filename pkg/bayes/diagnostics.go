package bayes

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/vprate/vprate-go/pkg/models"
)

// SplitRHat computes the split potential-scale-reduction statistic for
// one parameter. Each chain is halved, and between-sequence variance is
// compared against within-sequence variance; values near 1 indicate the
// chains explore the same distribution.
func SplitRHat(chains [][]float64) (float64, error) {
	var seqs [][]float64
	for _, chain := range chains {
		if len(chain) < 4 {
			return 0, fmt.Errorf("chain too short for split R-hat: %d draws", len(chain))
		}
		half := len(chain) / 2
		seqs = append(seqs, chain[:half], chain[half:half*2])
	}

	m := float64(len(seqs))
	n := float64(len(seqs[0]))

	means := make([]float64, len(seqs))
	within := 0.0
	for i, seq := range seqs {
		mean, sd := stat.MeanStdDev(seq, nil)
		means[i] = mean
		within += sd * sd
	}
	within /= m

	grand := stat.Mean(means, nil)
	between := 0.0
	for _, mu := range means {
		between += (mu - grand) * (mu - grand)
	}
	between *= n / (m - 1)

	if within == 0 {
		// Degenerate chains stuck at one value; call it converged only
		// if every sequence is stuck at the same value.
		if between == 0 {
			return 1, nil
		}
		return math.Inf(1), nil
	}

	varPlus := (n-1)/n*within + between/n
	return math.Sqrt(varPlus / within), nil
}

// EffectiveSampleSize estimates the number of independent draws the
// autocorrelated chains are worth for one parameter, using the initial
// positive autocorrelation sequence.
func EffectiveSampleSize(chains [][]float64) float64 {
	total := 0
	for _, chain := range chains {
		total += len(chain)
	}
	if total == 0 {
		return 0
	}

	// Average autocorrelation at each lag across chains, truncated at
	// the first lag where the paired sum turns negative.
	maxLag := len(chains[0]) / 2
	sumRho := 0.0
	for lag := 1; lag < maxLag; lag += 2 {
		pair := avgAutocorr(chains, lag) + avgAutocorr(chains, lag+1)
		if pair < 0 {
			break
		}
		sumRho += pair
	}

	ess := float64(total) / (1 + 2*sumRho)
	if ess > float64(total) {
		ess = float64(total)
	}
	return ess
}

func avgAutocorr(chains [][]float64, lag int) float64 {
	sum, count := 0.0, 0
	for _, chain := range chains {
		if lag >= len(chain) {
			continue
		}
		mean, sd := stat.MeanStdDev(chain, nil)
		if sd == 0 {
			continue
		}
		acc := 0.0
		for i := 0; i+lag < len(chain); i++ {
			acc += (chain[i] - mean) * (chain[i+lag] - mean)
		}
		acc /= float64(len(chain)-lag) * sd * sd
		sum += acc
		count++
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// computeDiagnostics fills the per-parameter convergence report for a
// freshly sampled model and applies the acceptance threshold.
func computeDiagnostics(m *models.FittedModel) (*models.Diagnostics, error) {
	diag := &models.Diagnostics{
		RHat:      make(map[string]float64, len(m.ParamNames)),
		ESS:       make(map[string]float64, len(m.ParamNames)),
		Converged: true,
	}
	for _, name := range m.ParamNames {
		chains, err := m.ChainDraws(name)
		if err != nil {
			return nil, err
		}
		rhat, err := SplitRHat(chains)
		if err != nil {
			return nil, fmt.Errorf("parameter %s: %w", name, err)
		}
		diag.RHat[name] = rhat
		diag.ESS[name] = EffectiveSampleSize(chains)
		if rhat > diag.MaxRHat {
			diag.MaxRHat = rhat
		}
		if rhat > RHatThreshold || math.IsNaN(rhat) {
			diag.Converged = false
		}
	}
	return diag, nil
}
