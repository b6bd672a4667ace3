package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/vprate/vprate-go/pkg/bayes"
	"github.com/vprate/vprate-go/pkg/dataset"
	"github.com/vprate/vprate-go/pkg/models"
)

// Config holds the application configuration
type Config struct {
	Environment  string
	LogLevel     string
	CorpusPath   string
	SummaryPath  string
	ModelDBPath  string
	OutputDir    string
	AnalysisPath string
	Chains       int
	Warmup       int
	Iterations   int
	Seed         int64
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	defaults := bayes.DefaultSettings()
	config := &Config{
		Environment:  getEnv("ENVIRONMENT", "development"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		CorpusPath:   getEnv("CORPUS_PATH", "data/texts.csv"),
		SummaryPath:  getEnv("REGISTER_SUMMARY_PATH", ""),
		ModelDBPath:  getEnv("MODEL_DB_PATH", "models.db"),
		OutputDir:    getEnv("OUTPUT_DIR", "output"),
		AnalysisPath: getEnv("ANALYSIS_PATH", "analysis.yaml"),
		Chains:       getEnvAsInt("SAMPLER_CHAINS", defaults.Chains),
		Warmup:       getEnvAsInt("SAMPLER_WARMUP", defaults.Warmup),
		Iterations:   getEnvAsInt("SAMPLER_ITERATIONS", defaults.Iterations),
		Seed:         getEnvAsInt64("SAMPLER_SEED", defaults.Seed),
	}

	// Validate required configuration
	if config.CorpusPath == "" {
		return nil, fmt.Errorf("CORPUS_PATH is required")
	}
	if config.Chains < 2 {
		return nil, fmt.Errorf("SAMPLER_CHAINS must be at least 2, got %d", config.Chains)
	}

	return config, nil
}

// SamplerSettings converts the configured run parameters to the
// sampler's settings value.
func (c *Config) SamplerSettings() models.SamplerSettings {
	return models.SamplerSettings{
		Chains:     c.Chains,
		Warmup:     c.Warmup,
		Iterations: c.Iterations,
		Seed:       c.Seed,
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsInt64 retrieves an environment variable as an int64 or returns a default value
func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// FormulaSpec is one candidate model in the analysis file.
type FormulaSpec struct {
	Name         string      `yaml:"name"`
	Fixed        []string    `yaml:"fixed"`
	Interactions [][2]string `yaml:"interactions,omitempty"`
	Group        string      `yaml:"group,omitempty"`
}

// AnalysisSpec is the YAML-authored description of one analysis run:
// the candidate formulas, the prior set, and the hypotheses to evaluate
// on the winning model.
type AnalysisSpec struct {
	Formulas   []FormulaSpec      `yaml:"formulas"`
	Priors     models.PriorSet    `yaml:"priors"`
	Hypotheses []bayes.Hypothesis `yaml:"hypotheses,omitempty"`
	Tolerance  float64            `yaml:"sensitivity_tolerance,omitempty"`
}

// LoadAnalysis reads and validates the analysis file.
func LoadAnalysis(path string) (*AnalysisSpec, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read analysis file: %w", err)
	}
	var spec AnalysisSpec
	if err := yaml.Unmarshal(raw, &spec); err != nil {
		return nil, fmt.Errorf("failed to parse analysis file %s: %w", path, err)
	}
	if len(spec.Formulas) == 0 {
		return nil, fmt.Errorf("analysis file %s: at least one formula is required", path)
	}
	seen := make(map[string]bool, len(spec.Formulas))
	for _, f := range spec.Formulas {
		if f.Name == "" {
			return nil, fmt.Errorf("analysis file %s: every formula needs a name", path)
		}
		if seen[f.Name] {
			return nil, fmt.Errorf("analysis file %s: duplicate formula name %q", path, f.Name)
		}
		seen[f.Name] = true
	}
	if err := spec.Priors.Validate(); err != nil {
		return nil, fmt.Errorf("analysis file %s: %w", path, err)
	}
	return &spec, nil
}

// CanonicalFormulas returns the standard candidate sequence: strictly
// increasing complexity from a language-only model up to the full model
// with both interactions and a random register intercept, plus one
// variant replacing the random intercept with fixed register contrasts.
func CanonicalFormulas() []FormulaSpec {
	interactions := [][2]string{
		{dataset.ColLanguage, dataset.ColMode},
		{dataset.ColLanguage, dataset.ColDensityZ},
	}
	fixed := []string{dataset.ColLanguage, dataset.ColMode, dataset.ColDensityZ}
	return []FormulaSpec{
		{Name: "language", Fixed: []string{dataset.ColLanguage}},
		{Name: "language-mode", Fixed: []string{dataset.ColLanguage, dataset.ColMode}},
		{Name: "language-mode-density", Fixed: fixed},
		{Name: "interactions", Fixed: fixed, Interactions: interactions},
		{Name: "full", Fixed: fixed, Interactions: interactions, Group: dataset.ColRegister},
		{Name: "fixed-register", Fixed: append(append([]string(nil), fixed...), dataset.ColRegister), Interactions: interactions},
	}
}

// CanonicalAnalysis returns a complete analysis specification for runs
// without an authored analysis file: the canonical candidate sequence
// under a weakly-informative default prior.
func CanonicalAnalysis() *AnalysisSpec {
	return &AnalysisSpec{
		Formulas: CanonicalFormulas(),
		Priors: models.PriorSet{
			Name:    "weakly-informative",
			Priors:  map[string]models.Prior{},
			Default: &models.Prior{Mean: 0, SD: 5},
		},
	}
}

// Formula materializes one spec entry as a model formula with the
// standard response and exposure offset filled in.
func (s FormulaSpec) Formula(response, offset string) *models.Formula {
	return &models.Formula{
		Name:         s.Name,
		Response:     response,
		Fixed:        s.Fixed,
		Interactions: s.Interactions,
		Group:        s.Group,
		Offset:       offset,
	}
}
