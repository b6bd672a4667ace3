package bayes

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Candidate pairs one fitted model with its LOO score for ranking.
type Candidate struct {
	LOO *LOOResult
}

// RankedModel is one row of the model-comparison table.
type RankedModel struct {
	Name              string  `json:"name"`
	ELPD              float64 `json:"elpd"`
	SE                float64 `json:"se"`
	DeltaELPD         float64 `json:"delta_elpd"`    // against the top model; 0 for the top model
	DeltaSE           float64 `json:"delta_se"`      // standard error of the pointwise difference
	Indistinguishable bool    `json:"indistinguishable"` // |delta| within one delta-SE of the top model
	HighParetoK       int     `json:"high_pareto_k"`
}

// Ranking is the ordered model comparison. The top model is the one
// recommended for inference; models whose ELPD difference lies within
// its own standard error are reported as statistically
// indistinguishable from it rather than ranked apart on noise.
type Ranking struct {
	Models []RankedModel `json:"models"`
	Best   string        `json:"best"`
}

// Rank orders candidate models by expected log pointwise predictive
// density. The result is invariant to the order candidates are supplied
// in: ties on ELPD break deterministically by model name.
func Rank(candidates []Candidate) (*Ranking, error) {
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no candidate models to rank")
	}
	n := candidates[0].LOO.N
	for _, c := range candidates {
		if c.LOO.N != n {
			return nil, fmt.Errorf("model %s scored on %d observations, expected %d; candidates must share the dataset",
				c.LOO.ModelName, c.LOO.N, n)
		}
	}

	sorted := append([]Candidate(nil), candidates...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].LOO.ELPD != sorted[j].LOO.ELPD {
			return sorted[i].LOO.ELPD > sorted[j].LOO.ELPD
		}
		return sorted[i].LOO.ModelName < sorted[j].LOO.ModelName
	})

	best := sorted[0].LOO
	ranking := &Ranking{Best: best.ModelName}
	for _, c := range sorted {
		row := RankedModel{
			Name:        c.LOO.ModelName,
			ELPD:        c.LOO.ELPD,
			SE:          c.LOO.SE,
			HighParetoK: len(c.LOO.HighK),
		}
		if c.LOO.ModelName != best.ModelName {
			row.DeltaELPD = c.LOO.ELPD - best.ELPD
			row.DeltaSE = pairedDiffSE(best.Pointwise, c.LOO.Pointwise)
			row.Indistinguishable = math.Abs(row.DeltaELPD) <= row.DeltaSE
		}
		ranking.Models = append(ranking.Models, row)
	}
	return ranking, nil
}

// pairedDiffSE is the standard error of the summed pointwise ELPD
// difference between two models scored on the same observations.
func pairedDiffSE(a, b []float64) float64 {
	diff := make([]float64, len(a))
	for i := range a {
		diff[i] = a[i] - b[i]
	}
	_, sd := stat.MeanStdDev(diff, nil)
	return sd * math.Sqrt(float64(len(diff)))
}
