package bayes

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/vprate/vprate-go/pkg/dataset"
	"github.com/vprate/vprate-go/pkg/models"
)

// CoefIntercept is the parameter name of the model intercept.
const CoefIntercept = "intercept"

// termColumn describes one design-matrix column as a product of frame
// columns. The intercept has no factors; main effects have one;
// pairwise interactions have two.
type termColumn struct {
	Name    string
	Factors []string
}

// expandTerms resolves a formula's fixed terms and interactions into
// concrete design columns, expanding categorical predictors to their
// sum-to-zero contrast columns. The same expansion serves model fitting
// and new-data prediction, so coefficients always line up.
func expandTerms(t *dataset.Transform, f *models.Formula) ([]termColumn, error) {
	expand := func(term string) []string {
		if t.IsCategorical(term) {
			return t.ContrastColumns(term)
		}
		return []string{term}
	}

	cols := []termColumn{{Name: CoefIntercept}}
	for _, term := range f.Fixed {
		for _, c := range expand(term) {
			cols = append(cols, termColumn{Name: c, Factors: []string{c}})
		}
	}
	for _, pair := range f.Interactions {
		for _, a := range expand(pair[0]) {
			for _, b := range expand(pair[1]) {
				cols = append(cols, termColumn{Name: a + ":" + b, Factors: []string{a, b}})
			}
		}
	}

	seen := make(map[string]bool, len(cols))
	for _, c := range cols {
		if seen[c.Name] {
			return nil, fmt.Errorf("formula %s: design column %q appears twice", f.Name, c.Name)
		}
		seen[c.Name] = true
	}
	return cols, nil
}

// Design is the fully numeric form of one model specification: the
// fixed-effect matrix, response, log-exposure offset, and optional
// random-intercept grouping.
type Design struct {
	X           *mat.Dense
	CoefNames   []string
	Y           []float64
	Offset      []float64 // log exposure, zero when the formula has no offset
	GroupName   string
	Group       []int // row -> group level index; nil without a random term
	GroupLevels []string
}

// BuildDesign validates the formula against the transformed data and
// assembles the design. Categorical fixed effects expand to contrasts;
// the offset column enters as its log.
func BuildDesign(frame *dataset.Frame, f *models.Formula) (*Design, error) {
	if err := f.Validate(frame.Transform.PredictorColumns()); err != nil {
		return nil, err
	}
	terms, err := expandTerms(frame.Transform, f)
	if err != nil {
		return nil, err
	}

	n, p := frame.N, len(terms)
	d := &Design{
		X:         mat.NewDense(n, p, nil),
		CoefNames: make([]string, p),
		Y:         frame.Response,
		Offset:    make([]float64, n),
	}
	for j, term := range terms {
		d.CoefNames[j] = term.Name
		col := make([]float64, n)
		for i := range col {
			col[i] = 1
		}
		for _, factor := range term.Factors {
			data, err := frame.Column(factor)
			if err != nil {
				return nil, fmt.Errorf("formula %s: %w", f.Name, err)
			}
			for i := range col {
				col[i] *= data[i]
			}
		}
		d.X.SetCol(j, col)
	}

	if f.Offset != "" {
		exposure, err := frame.Column(f.Offset)
		if err != nil {
			return nil, fmt.Errorf("formula %s: %w", f.Name, err)
		}
		for i, e := range exposure {
			if e <= 0 {
				return nil, fmt.Errorf("formula %s: non-positive exposure %g in row %d", f.Name, e, i)
			}
			d.Offset[i] = math.Log(e)
		}
	}

	if f.Group != "" {
		idx, levels, err := frame.GroupIndex(f.Group)
		if err != nil {
			return nil, fmt.Errorf("formula %s: %w", f.Name, err)
		}
		d.GroupName = f.Group
		d.Group = idx
		d.GroupLevels = levels
	}
	return d, nil
}

// ParamNames returns the full sampler parameter vector layout: fixed
// coefficients, then one offset per group level, then the log of the
// group standard deviation.
func (d *Design) ParamNames() []string {
	out := append([]string(nil), d.CoefNames...)
	if d.Group != nil {
		for _, level := range d.GroupLevels {
			out = append(out, fmt.Sprintf("%s_offset[%s]", d.GroupName, level))
		}
		out = append(out, "sd_"+d.GroupName)
	}
	return out
}

// NumParams returns the sampler parameter count.
func (d *Design) NumParams() int {
	n := len(d.CoefNames)
	if d.Group != nil {
		n += len(d.GroupLevels) + 1
	}
	return n
}

// resolvePriors aligns the prior set with the coefficient vector and the
// group standard deviation. Group offsets take their prior from the
// fitted sigma at run time, so only the sd parameter appears here.
func resolvePriors(d *Design, ps *models.PriorSet) ([]models.Prior, models.Prior, error) {
	coef := make([]models.Prior, len(d.CoefNames))
	for j, name := range d.CoefNames {
		p, err := ps.Lookup(name)
		if err != nil {
			return nil, models.Prior{}, err
		}
		coef[j] = p
	}
	var sdPrior models.Prior
	if d.Group != nil {
		p, err := ps.Lookup("sd_" + d.GroupName)
		if err != nil {
			return nil, models.Prior{}, err
		}
		sdPrior = p
	}
	return coef, sdPrior, nil
}

// etaMax bounds the linear predictor; beyond it exp overflows and the
// proposal is rejected outright.
const etaMax = 30

// linearPredictor fills eta for the given parameter vector.
func (d *Design) linearPredictor(theta []float64, eta []float64) {
	n, p := len(d.Y), len(d.CoefNames)
	for i := 0; i < n; i++ {
		e := d.Offset[i]
		for j := 0; j < p; j++ {
			e += d.X.At(i, j) * theta[j]
		}
		if d.Group != nil {
			e += theta[p+d.Group[i]]
		}
		eta[i] = e
	}
}

// poissonLogLik is the Poisson log-likelihood of the sample given the
// linear predictor on the log scale.
func (d *Design) poissonLogLik(eta []float64) float64 {
	ll := 0.0
	for i, y := range d.Y {
		if eta[i] > etaMax {
			return math.Inf(-1)
		}
		lg, _ := math.Lgamma(y + 1)
		ll += y*eta[i] - math.Exp(eta[i]) - lg
	}
	return ll
}

// logPrior evaluates the joint prior density of a parameter vector: the
// normal priors on fixed coefficients, the Normal(0, sigma) population
// of group offsets, the half-normal prior on sigma itself, and the
// Jacobian of the log-sigma parameterization.
func (d *Design) logPrior(theta []float64, coefPriors []models.Prior, sdPrior models.Prior) float64 {
	lp := 0.0
	for j, prior := range coefPriors {
		lp += distuv.Normal{Mu: prior.Mean, Sigma: prior.SD}.LogProb(theta[j])
	}
	if d.Group == nil {
		return lp
	}
	p, g := len(d.CoefNames), len(d.GroupLevels)
	logSigma := theta[p+g]
	if logSigma > etaMax {
		return math.Inf(-1)
	}
	sigma := math.Exp(logSigma)
	pop := distuv.Normal{Mu: 0, Sigma: sigma}
	for k := 0; k < g; k++ {
		lp += pop.LogProb(theta[p+k])
	}
	// Half-normal on sigma (normal truncated at zero, constant dropped)
	// plus the log-scale Jacobian.
	lp += distuv.Normal{Mu: sdPrior.Mean, Sigma: sdPrior.SD}.LogProb(sigma) + logSigma
	return lp
}
