package bayes

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
	exprand "golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/vprate/vprate-go/pkg/dataset"
	"github.com/vprate/vprate-go/pkg/models"
)

// Summary condenses a vector of posterior draws into the reported
// point estimate and interval.
type Summary struct {
	Mean float64 `json:"mean"`
	SE   float64 `json:"se"`
	Q025 float64 `json:"q025"`
	Q50  float64 `json:"q50"`
	Q975 float64 `json:"q975"`
}

// Prediction is the posterior predictive output for one new text: the
// verb-phrase rate per hundred words and the replicated counts at the
// text's own length.
type Prediction struct {
	TextID string  `json:"text_id"`
	Rate   Summary `json:"rate"`
	Counts Summary `json:"counts"`
}

// Predict pushes a new text through the frozen transform and the
// posterior: each retained draw yields one expected rate, and one
// Poisson replicate at the text's exposure. A categorical level absent
// from the fitted sample fails with ErrUnknownLevel; predictions are
// refused rather than silently extrapolated.
func Predict(m *models.FittedModel, t *dataset.Transform, rec models.TextRecord) (*Prediction, error) {
	if m.Status != models.FitStatusConverged {
		return nil, fmt.Errorf("model %s has status %s; prediction requires a converged fit", m.Name, m.Status)
	}
	rates, err := rateDraws(m, t, rec)
	if err != nil {
		return nil, err
	}

	exposure := rec.HundredWords()
	if exposure <= 0 {
		return nil, fmt.Errorf("text %s: non-positive exposure %g", rec.ID, exposure)
	}

	rng := exprand.NewSource(uint64(m.Settings.Seed))
	counts := make([]float64, len(rates))
	for s, rate := range rates {
		counts[s] = distuv.Poisson{Lambda: rate * exposure, Src: rng}.Rand()
	}

	pred := &Prediction{TextID: rec.ID}
	if pred.Rate, err = summarize(rates); err != nil {
		return nil, fmt.Errorf("text %s: %w", rec.ID, err)
	}
	if pred.Counts, err = summarize(counts); err != nil {
		return nil, fmt.Errorf("text %s: %w", rec.ID, err)
	}
	return pred, nil
}

// PredictRate returns only the posterior draws of the expected rate per
// hundred words for one new text.
func PredictRate(m *models.FittedModel, t *dataset.Transform, rec models.TextRecord) ([]float64, error) {
	if m.Status != models.FitStatusConverged {
		return nil, fmt.Errorf("model %s has status %s; prediction requires a converged fit", m.Name, m.Status)
	}
	return rateDraws(m, t, rec)
}

// rateDraws evaluates exp(x'beta + group offset) per retained draw. The
// exposure offset cancels out of the per-hundred-words rate.
func rateDraws(m *models.FittedModel, t *dataset.Transform, rec models.TextRecord) ([]float64, error) {
	row, err := t.Apply(rec)
	if err != nil {
		return nil, fmt.Errorf("text %s: %w", rec.ID, err)
	}
	terms, err := expandTerms(t, &m.Formula)
	if err != nil {
		return nil, err
	}

	x := make([]float64, len(terms))
	coefIdx := make([]int, len(terms))
	for j, term := range terms {
		v := 1.0
		for _, factor := range term.Factors {
			cell, ok := row[factor]
			if !ok {
				return nil, fmt.Errorf("text %s: no design column %q", rec.ID, factor)
			}
			v *= cell
		}
		x[j] = v
		if coefIdx[j], err = m.ParamIndex(term.Name); err != nil {
			return nil, err
		}
	}

	groupIdx := -1
	if m.Formula.Group != "" {
		level, err := recordLevel(rec, m.Formula.Group)
		if err != nil {
			return nil, err
		}
		name := fmt.Sprintf("%s_offset[%s]", m.Formula.Group, level)
		if groupIdx, err = m.ParamIndex(name); err != nil {
			return nil, fmt.Errorf("%w: %s=%q not in fitted sample", dataset.ErrUnknownLevel, m.Formula.Group, level)
		}
	}

	draws := m.FlatDraws()
	rates := make([]float64, len(draws))
	for s, draw := range draws {
		eta := 0.0
		for j := range terms {
			eta += x[j] * draw[coefIdx[j]]
		}
		if groupIdx >= 0 {
			eta += draw[groupIdx]
		}
		rates[s] = math.Exp(eta)
	}
	return rates, nil
}

func recordLevel(rec models.TextRecord, varName string) (string, error) {
	switch varName {
	case dataset.ColLanguage:
		return rec.Language, nil
	case dataset.ColRegister:
		return rec.Register, nil
	case dataset.ColMode:
		return rec.Mode, nil
	}
	return "", fmt.Errorf("text %s: %q is not a categorical predictor", rec.ID, varName)
}

// summarize reduces draws to mean, standard error, and the 95% interval.
func summarize(draws []float64) (Summary, error) {
	mean, err := stats.Mean(draws)
	if err != nil {
		return Summary{}, err
	}
	sd, err := stats.StandardDeviationSample(draws)
	if err != nil {
		return Summary{}, err
	}
	q025, err := stats.Percentile(draws, 2.5)
	if err != nil {
		return Summary{}, err
	}
	q50, err := stats.Median(draws)
	if err != nil {
		return Summary{}, err
	}
	q975, err := stats.Percentile(draws, 97.5)
	if err != nil {
		return Summary{}, err
	}
	return Summary{Mean: mean, SE: sd, Q025: q025, Q50: q50, Q975: q975}, nil
}
