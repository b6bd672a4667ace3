package bayes

import (
	"fmt"
	"math"

	exprand "golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/vprate/vprate-go/pkg/dataset"
	"github.com/vprate/vprate-go/pkg/models"
)

// PPCStat compares one test statistic of the observed sample against
// its distribution over posterior predictive replicates. Quantile is
// the fraction of replicates below the observed value; values near 0 or
// 1 indicate the model fails to reproduce that aspect of the data.
type PPCStat struct {
	Name     string  `json:"name"`
	Observed float64 `json:"observed"`
	RepMean  float64 `json:"rep_mean"`
	Quantile float64 `json:"quantile"`
}

// PPCResult is the posterior predictive check for one fitted model.
type PPCResult struct {
	ModelName  string    `json:"model_name"`
	Replicates int       `json:"replicates"`
	MeanRate   PPCStat   `json:"mean_rate"`
	MaxRate    PPCStat   `json:"max_rate"`
}

// PosteriorPredictiveCheck replicates the full sample once per retained
// draw and checks whether the observed mean and maximum verb-phrase
// rates are typical of the replicates.
func PosteriorPredictiveCheck(m *models.FittedModel, frame *dataset.Frame) (*PPCResult, error) {
	if m.Status != models.FitStatusConverged {
		return nil, fmt.Errorf("model %s has status %s; predictive check requires a converged fit", m.Name, m.Status)
	}
	d, err := BuildDesign(frame, &m.Formula)
	if err != nil {
		return nil, err
	}
	draws := m.FlatDraws()
	if len(draws) == 0 {
		return nil, fmt.Errorf("model %s has no posterior draws", m.Name)
	}
	if len(m.ParamNames) != d.NumParams() {
		return nil, fmt.Errorf("model %s: draw layout (%d params) does not match design (%d)", m.Name, len(m.ParamNames), d.NumParams())
	}

	n, p := len(d.Y), len(d.CoefNames)
	exposure := make([]float64, n)
	obsMean, obsMax := 0.0, 0.0
	for i, rec := range frame.Records {
		exposure[i] = rec.HundredWords()
		rate := d.Y[i] / exposure[i]
		obsMean += rate
		if rate > obsMax {
			obsMax = rate
		}
	}
	obsMean /= float64(n)

	rng := exprand.NewSource(uint64(m.Settings.Seed))
	repMeans := make([]float64, len(draws))
	repMaxes := make([]float64, len(draws))
	for s, draw := range draws {
		repMean, repMax := 0.0, 0.0
		for i := 0; i < n; i++ {
			eta := d.Offset[i]
			for j := 0; j < p; j++ {
				eta += d.X.At(i, j) * draw[j]
			}
			if d.Group != nil {
				eta += draw[p+d.Group[i]]
			}
			y := distuv.Poisson{Lambda: math.Exp(eta), Src: rng}.Rand()
			rate := y / exposure[i]
			repMean += rate
			if rate > repMax {
				repMax = rate
			}
		}
		repMeans[s] = repMean / float64(n)
		repMaxes[s] = repMax
	}

	return &PPCResult{
		ModelName:  m.Name,
		Replicates: len(draws),
		MeanRate:   ppcStat("mean_rate", obsMean, repMeans),
		MaxRate:    ppcStat("max_rate", obsMax, repMaxes),
	}, nil
}

func ppcStat(name string, observed float64, reps []float64) PPCStat {
	below, sum := 0, 0.0
	for _, r := range reps {
		if r < observed {
			below++
		}
		sum += r
	}
	return PPCStat{
		Name:     name,
		Observed: observed,
		RepMean:  sum / float64(len(reps)),
		Quantile: float64(below) / float64(len(reps)),
	}
}
