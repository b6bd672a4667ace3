package bayes

import (
	"fmt"
	"math"

	"github.com/vprate/vprate-go/pkg/models"
)

// Hypothesis is a directional inequality between two coefficients:
// "Larger exceeds Smaller" in the posterior. With Absolute set the
// comparison is between magnitudes.
type Hypothesis struct {
	Larger   string `json:"larger" yaml:"larger"`
	Smaller  string `json:"smaller" yaml:"smaller"`
	Absolute bool   `json:"absolute,omitempty" yaml:"absolute,omitempty"`
}

func (h Hypothesis) String() string {
	if h.Absolute {
		return fmt.Sprintf("|%s| > |%s|", h.Larger, h.Smaller)
	}
	return fmt.Sprintf("%s > %s", h.Larger, h.Smaller)
}

// HypothesisResult reports the posterior support for a directional
// hypothesis. The evidence ratio is the posterior mass satisfying the
// inequality over the mass of its complement; when one side holds in
// every draw the ratio is +Inf (or 0), reported verbatim rather than
// coerced to a finite placeholder.
type HypothesisResult struct {
	Hypothesis    Hypothesis `json:"hypothesis"`
	Probability   float64    `json:"probability"`
	EvidenceRatio float64    `json:"evidence_ratio"`
	DrawsFor      int        `json:"draws_for"`
	DrawsAgainst  int        `json:"draws_against"`
}

// EvaluateHypothesis counts the posterior draws satisfying the
// inequality against its complement.
func EvaluateHypothesis(m *models.FittedModel, h Hypothesis) (*HypothesisResult, error) {
	larger, err := m.ParamDraws(h.Larger)
	if err != nil {
		return nil, err
	}
	smaller, err := m.ParamDraws(h.Smaller)
	if err != nil {
		return nil, err
	}
	if len(larger) == 0 {
		return nil, fmt.Errorf("model %s has no posterior draws", m.Name)
	}

	res := &HypothesisResult{Hypothesis: h}
	for i := range larger {
		a, b := larger[i], smaller[i]
		if h.Absolute {
			a, b = math.Abs(a), math.Abs(b)
		}
		if a > b {
			res.DrawsFor++
		} else {
			res.DrawsAgainst++
		}
	}

	total := float64(res.DrawsFor + res.DrawsAgainst)
	res.Probability = float64(res.DrawsFor) / total
	switch {
	case res.DrawsAgainst == 0 && res.DrawsFor > 0:
		res.EvidenceRatio = math.Inf(1)
	case res.DrawsFor == 0:
		res.EvidenceRatio = 0
	default:
		res.EvidenceRatio = float64(res.DrawsFor) / float64(res.DrawsAgainst)
	}
	return res, nil
}
