package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/vprate/vprate-go/pkg/bayes"
	"github.com/vprate/vprate-go/pkg/config"
	"github.com/vprate/vprate-go/pkg/dataset"
	"github.com/vprate/vprate-go/pkg/models"
	"github.com/vprate/vprate-go/pkg/modelstore"
	"github.com/vprate/vprate-go/pkg/visualize"
	"github.com/vprate/vprate-go/utils"
)

func main() {
	corpusFlag := flag.String("corpus", "", "path to the per-text corpus CSV (overrides CORPUS_PATH)")
	analysisFlag := flag.String("analysis", "", "path to the analysis YAML (overrides ANALYSIS_PATH)")
	refit := flag.Bool("refit", false, "ignore stored artifacts and sample afresh")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *corpusFlag != "" {
		cfg.CorpusPath = *corpusFlag
	}
	if *analysisFlag != "" {
		cfg.AnalysisPath = *analysisFlag
	}

	utils.InitLogger(cfg.LogLevel)
	logger := utils.GetLogger().WithFields(utils.Component("analysis"))

	var spec *config.AnalysisSpec
	if _, statErr := os.Stat(cfg.AnalysisPath); os.IsNotExist(statErr) && *analysisFlag == "" {
		spec = config.CanonicalAnalysis()
		logger.Info("no analysis file; using the canonical candidate sequence",
			utils.String("path", cfg.AnalysisPath))
	} else {
		spec, err = config.LoadAnalysis(cfg.AnalysisPath)
		if err != nil {
			log.Fatalf("Failed to load analysis: %v", err)
		}
	}

	texts, err := dataset.LoadTexts(cfg.CorpusPath)
	if err != nil {
		log.Fatalf("Failed to load corpus: %v", err)
	}
	logger.Info("loaded corpus", utils.Int("texts", len(texts)), utils.String("path", cfg.CorpusPath))

	transform, err := dataset.FitTransform(texts)
	if err != nil {
		log.Fatalf("Failed to fit predictor transform: %v", err)
	}
	frame, err := transform.Frame(texts)
	if err != nil {
		log.Fatalf("Failed to build analysis frame: %v", err)
	}

	store, err := modelstore.NewSQLiteStore(cfg.ModelDBPath)
	if err != nil {
		log.Fatalf("Failed to open model store: %v", err)
	}
	defer store.Close()

	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}

	settings := cfg.SamplerSettings()
	sample := func(f *models.Formula, ps *models.PriorSet, s models.SamplerSettings) (*models.FittedModel, error) {
		logger.Info("sampling", utils.String("model", f.Name), utils.Int("chains", s.Chains))
		return bayes.Fit(frame, f, ps, s)
	}

	var candidates []bayes.Candidate
	fitted := make(map[string]*models.FittedModel)
	for _, fs := range spec.Formulas {
		formula := fs.Formula(dataset.ColVPTotal, dataset.ColHundredWords)

		var m *models.FittedModel
		if *refit {
			m, err = sample(formula, &spec.Priors, settings)
			if m != nil {
				if saveErr := store.SaveModel(m); saveErr != nil {
					logger.Error("failed to save artifact", saveErr, utils.String("model", formula.Name))
				}
			}
		} else {
			m, err = modelstore.LoadOrFit(store, formula, &spec.Priors, settings, sample)
		}
		if errors.Is(err, bayes.ErrNotConverged) {
			logger.Warn("model excluded from comparison", utils.String("model", formula.Name), utils.String("reason", err.Error()))
			continue
		}
		if err != nil {
			log.Fatalf("Failed to fit model %s: %v", formula.Name, err)
		}
		fitted[m.Name] = m

		loo, err := bayes.LOO(m, frame)
		if err != nil {
			log.Fatalf("Failed to score model %s: %v", m.Name, err)
		}
		if len(loo.HighK) > 0 {
			logger.Warn("unreliable LOO observations", utils.String("model", m.Name), utils.Int("high_pareto_k", len(loo.HighK)))
		}
		candidates = append(candidates, bayes.Candidate{LOO: loo})
	}
	if len(candidates) == 0 {
		log.Fatalf("No candidate model converged; nothing to report")
	}

	ranking, err := bayes.Rank(candidates)
	if err != nil {
		log.Fatalf("Failed to rank models: %v", err)
	}

	var report strings.Builder
	report.WriteString("Model comparison\n")
	report.WriteString(visualize.ComparisonTable(ranking))
	report.WriteString("\n")

	best := fitted[ranking.Best]
	logger.Info("selected model", utils.String("model", best.Name), utils.String("formula", best.Formula.Key()))

	coefTable, err := visualize.CoefficientTable(best)
	if err != nil {
		log.Fatalf("Failed to render coefficient table: %v", err)
	}
	report.WriteString(fmt.Sprintf("Coefficients (%s)\n", best.Name))
	report.WriteString(coefTable)
	report.WriteString("\n")

	for _, name := range best.FixedEffectNames() {
		prior, err := spec.Priors.Lookup(name)
		if err != nil {
			log.Fatalf("Failed to resolve prior for %s: %v", name, err)
		}
		overlay, err := visualize.PriorPosteriorOverlay(best, name, prior)
		if err != nil {
			log.Fatalf("Failed to plot %s: %v", name, err)
		}
		report.WriteString(overlay)
		report.WriteString("\n\n")
		rateScale, err := visualize.RateScaleDensity(best, name)
		if err != nil {
			log.Fatalf("Failed to plot %s: %v", name, err)
		}
		report.WriteString(rateScale)
		report.WriteString("\n\n")
	}

	if len(spec.Hypotheses) > 0 {
		var results []*bayes.HypothesisResult
		for _, h := range spec.Hypotheses {
			res, err := bayes.EvaluateHypothesis(best, h)
			if err != nil {
				log.Fatalf("Failed to evaluate hypothesis %s: %v", h, err)
			}
			results = append(results, res)
		}
		report.WriteString("Hypotheses\n")
		report.WriteString(visualize.HypothesisTable(results))
		report.WriteString("\n")
	}

	ppc, err := bayes.PosteriorPredictiveCheck(best, frame)
	if err != nil {
		log.Fatalf("Failed to run predictive check: %v", err)
	}
	report.WriteString(fmt.Sprintf("Posterior predictive check (%d replicates)\n", ppc.Replicates))
	report.WriteString(fmt.Sprintf("  mean rate: observed %.2f, replicate mean %.2f, quantile %.2f\n",
		ppc.MeanRate.Observed, ppc.MeanRate.RepMean, ppc.MeanRate.Quantile))
	report.WriteString(fmt.Sprintf("  max rate:  observed %.2f, replicate mean %.2f, quantile %.2f\n\n",
		ppc.MaxRate.Observed, ppc.MaxRate.RepMean, ppc.MaxRate.Quantile))

	sens, err := bayes.PriorSensitivity(frame, best, spec.Tolerance)
	if err != nil {
		log.Fatalf("Failed to run prior sensitivity: %v", err)
	}
	report.WriteString("Prior sensitivity\n")
	report.WriteString(visualize.SensitivityTable(sens))
	report.WriteString("\n")

	rateDensity, err := visualize.ObservedRateDensity(texts, func(r models.TextRecord) string {
		return r.Language
	})
	if err != nil {
		log.Fatalf("Failed to plot observed rates: %v", err)
	}
	report.WriteString("Observed rate density by language\n")
	report.WriteString(rateDensity)
	report.WriteString("\n\n")

	boxTable, err := visualize.RateBoxTable(texts, func(r models.TextRecord) string {
		return r.Language + "/" + r.Mode
	})
	if err != nil {
		log.Fatalf("Failed to render rate table: %v", err)
	}
	report.WriteString("Observed rates by language and mode\n")
	report.WriteString(boxTable)

	if cfg.SummaryPath != "" {
		summaries, err := dataset.LoadRegisterSummary(cfg.SummaryPath)
		if err != nil {
			log.Fatalf("Failed to load register summary: %v", err)
		}
		report.WriteString("\nRegister summary\n")
		report.WriteString(visualize.RegisterSummaryTable(summaries))
	}

	fmt.Print(report.String())

	reportPath := filepath.Join(cfg.OutputDir, "report.txt")
	if err := os.WriteFile(reportPath, []byte(report.String()), 0644); err != nil {
		log.Fatalf("Failed to write report: %v", err)
	}
	logger.Info("wrote report", utils.String("path", reportPath))
}
