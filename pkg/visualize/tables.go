package visualize

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/montanaflynn/stats"
	"github.com/olekukonko/tablewriter"

	"github.com/vprate/vprate-go/pkg/bayes"
	"github.com/vprate/vprate-go/pkg/models"
)

// CoefficientTable renders the fixed-effect posterior summaries of one
// fitted model, with the convergence diagnostics alongside.
func CoefficientTable(m *models.FittedModel) (string, error) {
	var b strings.Builder
	table := tablewriter.NewWriter(&b)
	table.SetHeader([]string{"Coefficient", "Mean", "SD", "2.5%", "50%", "97.5%", "R-hat", "ESS"})

	for _, name := range m.FixedEffectNames() {
		draws, err := m.ParamDraws(name)
		if err != nil {
			return "", err
		}
		mean, _ := stats.Mean(draws)
		sd, _ := stats.StandardDeviationSample(draws)
		q025, _ := stats.Percentile(draws, 2.5)
		q50, _ := stats.Median(draws)
		q975, _ := stats.Percentile(draws, 97.5)

		rhat, ess := math.NaN(), math.NaN()
		if m.Diagnostics != nil {
			rhat = m.Diagnostics.RHat[name]
			ess = m.Diagnostics.ESS[name]
		}
		table.Append([]string{
			name,
			fmt.Sprintf("%.3f", mean),
			fmt.Sprintf("%.3f", sd),
			fmt.Sprintf("%.3f", q025),
			fmt.Sprintf("%.3f", q50),
			fmt.Sprintf("%.3f", q975),
			fmt.Sprintf("%.3f", rhat),
			fmt.Sprintf("%.0f", ess),
		})
	}
	table.Render()
	return b.String(), nil
}

// ComparisonTable renders the model ranking.
func ComparisonTable(r *bayes.Ranking) string {
	var b strings.Builder
	table := tablewriter.NewWriter(&b)
	table.SetHeader([]string{"Model", "ELPD", "SE", "dELPD", "dSE", "Distinct", "High k"})

	for _, row := range r.Models {
		distinct := "yes"
		if row.Indistinguishable {
			distinct = "no"
		}
		if row.Name == r.Best {
			distinct = "-"
		}
		table.Append([]string{
			row.Name,
			fmt.Sprintf("%.2f", row.ELPD),
			fmt.Sprintf("%.2f", row.SE),
			fmt.Sprintf("%.2f", row.DeltaELPD),
			fmt.Sprintf("%.2f", row.DeltaSE),
			distinct,
			fmt.Sprintf("%d", row.HighParetoK),
		})
	}
	table.Render()
	return b.String()
}

// HypothesisTable renders the directional hypothesis evaluations.
// Infinite evidence ratios print as "inf": every draw agreed.
func HypothesisTable(results []*bayes.HypothesisResult) string {
	var b strings.Builder
	table := tablewriter.NewWriter(&b)
	table.SetHeader([]string{"Hypothesis", "P", "Evidence ratio", "For", "Against"})

	for _, res := range results {
		ratio := fmt.Sprintf("%.2f", res.EvidenceRatio)
		if math.IsInf(res.EvidenceRatio, 1) {
			ratio = "inf"
		}
		table.Append([]string{
			res.Hypothesis.String(),
			fmt.Sprintf("%.3f", res.Probability),
			ratio,
			fmt.Sprintf("%d", res.DrawsFor),
			fmt.Sprintf("%d", res.DrawsAgainst),
		})
	}
	table.Render()
	return b.String()
}

// SensitivityTable renders the prior-sensitivity shifts per coefficient.
func SensitivityTable(res *bayes.SensitivityResult) string {
	var b strings.Builder
	table := tablewriter.NewWriter(&b)
	table.SetHeader([]string{"Coefficient", "Baseline", "Max shift", "Robust"})

	for _, shift := range res.Shifts {
		robust := "yes"
		if !shift.Robust {
			robust = "no"
		}
		table.Append([]string{
			shift.Coefficient,
			fmt.Sprintf("%.3f", shift.Baseline),
			fmt.Sprintf("%.3f", shift.MaxShift),
			robust,
		})
	}
	table.Render()

	for _, caveat := range res.Caveats {
		fmt.Fprintf(&b, "caveat: %s\n", caveat)
	}
	return b.String()
}

// RateBoxTable renders five-number summaries of the observed verb-phrase
// rates grouped by one categorical predictor, the tabular stand-in for a
// box plot.
func RateBoxTable(texts []models.TextRecord, groupBy func(models.TextRecord) string) (string, error) {
	groups := make(map[string][]float64)
	for _, rec := range texts {
		key := groupBy(rec)
		groups[key] = append(groups[key], rec.VPRate())
	}
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	table := tablewriter.NewWriter(&b)
	table.SetHeader([]string{"Group", "N", "Min", "Q1", "Median", "Q3", "Max"})

	for _, key := range keys {
		rates := groups[key]
		min, err := stats.Min(rates)
		if err != nil {
			return "", fmt.Errorf("group %s: %w", key, err)
		}
		max, _ := stats.Max(rates)
		q1, _ := stats.Percentile(rates, 25)
		q50, _ := stats.Median(rates)
		q3, _ := stats.Percentile(rates, 75)
		table.Append([]string{
			key,
			fmt.Sprintf("%d", len(rates)),
			fmt.Sprintf("%.2f", min),
			fmt.Sprintf("%.2f", q1),
			fmt.Sprintf("%.2f", q50),
			fmt.Sprintf("%.2f", q3),
			fmt.Sprintf("%.2f", max),
		})
	}
	table.Render()
	return b.String(), nil
}

// RegisterSummaryTable renders the register-level aggregate table.
func RegisterSummaryTable(summaries []models.RegisterSummary) string {
	var b strings.Builder
	table := tablewriter.NewWriter(&b)
	table.SetHeader([]string{"Register", "Texts", "Mean VP rate", "Mean density", "Mean tokens"})

	for _, s := range summaries {
		table.Append([]string{
			s.Register,
			fmt.Sprintf("%d", s.Texts),
			fmt.Sprintf("%.2f", s.MeanVPRate),
			fmt.Sprintf("%.3f", s.MeanDensity),
			fmt.Sprintf("%.0f", s.MeanTokens),
		})
	}
	table.Render()
	return b.String()
}
