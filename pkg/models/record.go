package models

import "fmt"

// Mode values distinguish spoken from written texts.
const (
	ModeSpoken  = "spoken"
	ModeWritten = "written"
)

// TextRecord represents one corpus text with its predictors and the
// verb-phrase count outcome.
type TextRecord struct {
	ID             string  `json:"id"`
	Language       string  `json:"language"`
	Register       string  `json:"register"`
	Mode           string  `json:"mode"`
	Tokens         int     `json:"tokens"`
	VPTotal        int     `json:"vp_total"`
	VPFinite       int     `json:"vp_finite"`
	VPNonfinite    int     `json:"vp_nonfinite"`
	LexicalDensity float64 `json:"lexical_density"`
}

// Validate checks the internal consistency of a text record.
func (r *TextRecord) Validate() error {
	if r.Language == "" {
		return fmt.Errorf("text %s: language is required", r.ID)
	}
	if r.Register == "" {
		return fmt.Errorf("text %s: register is required", r.ID)
	}
	if r.Mode != ModeSpoken && r.Mode != ModeWritten {
		return fmt.Errorf("text %s: mode must be %q or %q, got %q", r.ID, ModeSpoken, ModeWritten, r.Mode)
	}
	if r.Tokens <= 0 {
		return fmt.Errorf("text %s: token count must be positive, got %d", r.ID, r.Tokens)
	}
	if r.VPTotal < 0 {
		return fmt.Errorf("text %s: verb-phrase count must be non-negative, got %d", r.ID, r.VPTotal)
	}
	if r.VPFinite < 0 || r.VPNonfinite < 0 {
		return fmt.Errorf("text %s: verb-phrase subtype counts must be non-negative", r.ID)
	}
	if r.VPFinite+r.VPNonfinite > 0 && r.VPFinite+r.VPNonfinite != r.VPTotal {
		return fmt.Errorf("text %s: finite (%d) + non-finite (%d) verb phrases do not sum to total (%d)",
			r.ID, r.VPFinite, r.VPNonfinite, r.VPTotal)
	}
	return nil
}

// VPRate returns the observed verb-phrase rate per hundred words.
func (r *TextRecord) VPRate() float64 {
	return float64(r.VPTotal) / (float64(r.Tokens) / 100.0)
}

// HundredWords returns the text length in hundred-word units, the
// exposure scale used throughout the analysis.
func (r *TextRecord) HundredWords() float64 {
	return float64(r.Tokens) / 100.0
}

// RegisterSummary aggregates the corpus measures at the register level.
// Used for visualization only, never for model fitting.
type RegisterSummary struct {
	Register    string  `json:"register"`
	Texts       int     `json:"texts"`
	MeanVPRate  float64 `json:"mean_vp_rate"`
	MeanDensity float64 `json:"mean_density"`
	MeanTokens  float64 `json:"mean_tokens"`
}
