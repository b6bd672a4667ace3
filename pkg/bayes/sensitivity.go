package bayes

import (
	"errors"
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"

	"github.com/vprate/vprate-go/pkg/dataset"
	"github.com/vprate/vprate-go/pkg/models"
)

// DefaultShiftTolerance is the largest posterior-mean movement, on the
// coefficient (log-rate) scale, still reported as robust to the prior.
const DefaultShiftTolerance = 0.1

// CoefficientShift records how far one fixed-effect posterior mean moves
// across the prior variants, with the baseline 95% credible interval for
// scale.
type CoefficientShift struct {
	Coefficient  string             `json:"coefficient"`
	Baseline     float64            `json:"baseline"`
	BaselineQ025 float64            `json:"baseline_q025"`
	BaselineQ975 float64            `json:"baseline_q975"`
	VariantMean  map[string]float64 `json:"variant_mean"`
	MaxShift     float64            `json:"max_shift"`
	Robust       bool               `json:"robust"`
}

// SensitivityResult is the outcome of refitting one model under the
// standard prior perturbations. Caveats carry anything that weakens the
// conclusion, such as a variant that failed to converge.
type SensitivityResult struct {
	ModelName string             `json:"model_name"`
	Tolerance float64            `json:"tolerance"`
	Shifts    []CoefficientShift `json:"shifts"`
	Robust    bool               `json:"robust"`
	Caveats   []string           `json:"caveats,omitempty"`
}

// PriorSensitivity refits a converged model under the four standard
// prior perturbations and measures how far each fixed-effect posterior
// mean moves. A conclusion is robust when no coefficient shifts by more
// than the tolerance under any variant that itself converged.
func PriorSensitivity(frame *dataset.Frame, baseline *models.FittedModel, tolerance float64) (*SensitivityResult, error) {
	if baseline.Status != models.FitStatusConverged {
		return nil, fmt.Errorf("model %s has status %s; sensitivity analysis requires a converged baseline", baseline.Name, baseline.Status)
	}
	if tolerance <= 0 {
		tolerance = DefaultShiftTolerance
	}

	res := &SensitivityResult{ModelName: baseline.Name, Tolerance: tolerance, Robust: true}
	fixed := baseline.FixedEffectNames()

	baseMeans := make(map[string]float64, len(fixed))
	baseLow := make(map[string]float64, len(fixed))
	baseHigh := make(map[string]float64, len(fixed))
	for _, name := range fixed {
		draws, err := baseline.ParamDraws(name)
		if err != nil {
			return nil, err
		}
		baseMeans[name] = stat.Mean(draws, nil)
		if baseLow[name], err = stats.Percentile(draws, 2.5); err != nil {
			return nil, fmt.Errorf("coefficient %s: %w", name, err)
		}
		if baseHigh[name], err = stats.Percentile(draws, 97.5); err != nil {
			return nil, fmt.Errorf("coefficient %s: %w", name, err)
		}
	}

	variantMeans := make(map[string]map[string]float64)
	for _, variant := range baseline.Priors.SensitivityVariants() {
		refit, err := Fit(frame, &baseline.Formula, variant, baseline.Settings)
		if errors.Is(err, ErrNotConverged) {
			res.Caveats = append(res.Caveats,
				fmt.Sprintf("variant %s did not converge and is excluded from the shift comparison", variant.Name))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("variant %s: %w", variant.Name, err)
		}
		means := make(map[string]float64, len(fixed))
		for _, name := range fixed {
			draws, err := refit.ParamDraws(name)
			if err != nil {
				return nil, fmt.Errorf("variant %s: %w", variant.Name, err)
			}
			means[name] = stat.Mean(draws, nil)
		}
		variantMeans[variant.Name] = means
	}
	if len(variantMeans) == 0 {
		res.Robust = false
		res.Caveats = append(res.Caveats, "no prior variant converged; sensitivity could not be assessed")
		return res, nil
	}

	for _, name := range fixed {
		shift := CoefficientShift{
			Coefficient:  name,
			Baseline:     baseMeans[name],
			BaselineQ025: baseLow[name],
			BaselineQ975: baseHigh[name],
			VariantMean:  make(map[string]float64, len(variantMeans)),
			Robust:       true,
		}
		for variant, means := range variantMeans {
			shift.VariantMean[variant] = means[name]
			if d := math.Abs(means[name] - baseMeans[name]); d > shift.MaxShift {
				shift.MaxShift = d
			}
		}
		if shift.MaxShift > tolerance {
			shift.Robust = false
			res.Robust = false
		}
		res.Shifts = append(res.Shifts, shift)
	}
	return res, nil
}
