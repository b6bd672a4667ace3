package visualize

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/guptarohit/asciigraph"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/vprate/vprate-go/pkg/models"
)

const (
	plotWidth  = 70
	plotHeight = 12
	gridPoints = 70
)

// kde evaluates a Gaussian kernel density estimate of the draws on an
// evenly spaced grid. Bandwidth is Silverman's rule of thumb.
func kde(draws []float64, lo, hi float64) []float64 {
	_, sd := stat.MeanStdDev(draws, nil)
	h := 1.06 * sd * math.Pow(float64(len(draws)), -0.2)
	if h <= 0 {
		h = 1e-3
	}
	grid := make([]float64, gridPoints)
	step := (hi - lo) / float64(gridPoints-1)
	norm := 1 / (float64(len(draws)) * h * math.Sqrt(2*math.Pi))
	for g := range grid {
		x := lo + float64(g)*step
		acc := 0.0
		for _, d := range draws {
			z := (x - d) / h
			acc += math.Exp(-0.5 * z * z)
		}
		grid[g] = acc * norm
	}
	return grid
}

func drawRange(draws []float64, pad float64) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, d := range draws {
		if d < lo {
			lo = d
		}
		if d > hi {
			hi = d
		}
	}
	span := hi - lo
	if span == 0 {
		span = 1
	}
	return lo - pad*span, hi + pad*span
}

// ObservedRateDensity renders the observed per-hundred-word verb-phrase
// rates as one density curve per group on a shared grid, so the raw
// group contrasts are visible before any model enters the picture.
// Series order follows the sorted group labels in the caption.
func ObservedRateDensity(texts []models.TextRecord, groupBy func(models.TextRecord) string) (string, error) {
	if len(texts) == 0 {
		return "", fmt.Errorf("no texts to plot")
	}
	groups := make(map[string][]float64)
	all := make([]float64, 0, len(texts))
	for _, rec := range texts {
		rate := rec.VPRate()
		groups[groupBy(rec)] = append(groups[groupBy(rec)], rate)
		all = append(all, rate)
	}
	labels := make([]string, 0, len(groups))
	for g := range groups {
		labels = append(labels, g)
	}
	sort.Strings(labels)

	lo, hi := drawRange(all, 0.1)
	if lo < 0 {
		lo = 0
	}
	series := make([][]float64, len(labels))
	for i, g := range labels {
		series[i] = kde(groups[g], lo, hi)
	}
	plot := asciigraph.PlotMany(series,
		asciigraph.Width(plotWidth),
		asciigraph.Height(plotHeight),
		asciigraph.Caption(fmt.Sprintf("observed rate density by group (%s), x in [%.3f, %.3f]",
			strings.Join(labels, ", "), lo, hi)),
	)
	return plot, nil
}

// PosteriorDensity renders the marginal posterior of one parameter as an
// ASCII density curve.
func PosteriorDensity(m *models.FittedModel, param string) (string, error) {
	draws, err := m.ParamDraws(param)
	if err != nil {
		return "", err
	}
	lo, hi := drawRange(draws, 0.1)
	plot := asciigraph.Plot(kde(draws, lo, hi),
		asciigraph.Width(plotWidth),
		asciigraph.Height(plotHeight),
		asciigraph.Caption(fmt.Sprintf("%s posterior density, x in [%.3f, %.3f]", param, lo, hi)),
	)
	return plot, nil
}

// PriorPosteriorOverlay renders the prior and the posterior of one
// coefficient on a shared grid, so prior influence is visible at a
// glance. The first series is the prior, the second the posterior.
func PriorPosteriorOverlay(m *models.FittedModel, param string, prior models.Prior) (string, error) {
	draws, err := m.ParamDraws(param)
	if err != nil {
		return "", err
	}
	lo, hi := drawRange(draws, 0.1)
	// Widen to cover the bulk of the prior as well.
	if p := prior.Mean - 2*prior.SD; p < lo {
		lo = p
	}
	if p := prior.Mean + 2*prior.SD; p > hi {
		hi = p
	}

	priorCurve := make([]float64, gridPoints)
	dist := distuv.Normal{Mu: prior.Mean, Sigma: prior.SD}
	step := (hi - lo) / float64(gridPoints-1)
	for g := range priorCurve {
		priorCurve[g] = dist.Prob(lo + float64(g)*step)
	}

	plot := asciigraph.PlotMany([][]float64{priorCurve, kde(draws, lo, hi)},
		asciigraph.Width(plotWidth),
		asciigraph.Height(plotHeight),
		asciigraph.Caption(fmt.Sprintf("%s: prior (first series) vs posterior, x in [%.3f, %.3f]", param, lo, hi)),
	)
	return plot, nil
}

// RateScaleDensity renders the posterior of a coefficient after
// exponentiation, i.e. as a multiplicative effect on the verb-phrase
// rate. The draws are exponentiated individually; summarizing first and
// exponentiating after would bias the curve.
func RateScaleDensity(m *models.FittedModel, param string) (string, error) {
	draws, err := m.ParamDraws(param)
	if err != nil {
		return "", err
	}
	rates := make([]float64, len(draws))
	for i, d := range draws {
		rates[i] = math.Exp(d)
	}
	lo, hi := drawRange(rates, 0.1)
	if lo < 0 {
		lo = 0
	}
	plot := asciigraph.Plot(kde(rates, lo, hi),
		asciigraph.Width(plotWidth),
		asciigraph.Height(plotHeight),
		asciigraph.Caption(fmt.Sprintf("exp(%s) rate-scale density, x in [%.3f, %.3f]", param, lo, hi)),
	)
	return plot, nil
}

// TracePlot renders each chain of one parameter as a separate series.
// Flat, overlapping traces are the visual counterpart of R-hat near 1.
func TracePlot(m *models.FittedModel, param string) (string, error) {
	chains, err := m.ChainDraws(param)
	if err != nil {
		return "", err
	}
	// Thin long chains so the plot stays readable at terminal width.
	series := make([][]float64, len(chains))
	for c, chain := range chains {
		stride := len(chain)/plotWidth + 1
		for i := 0; i < len(chain); i += stride {
			series[c] = append(series[c], chain[i])
		}
	}
	plot := asciigraph.PlotMany(series,
		asciigraph.Width(plotWidth),
		asciigraph.Height(plotHeight),
		asciigraph.Caption(fmt.Sprintf("%s trace, %d chains", param, len(chains))),
	)
	return plot, nil
}
