package dataset

import (
	"context"
	"fmt"
	"os"
	"strings"

	dataframe "github.com/rocketlaunchr/dataframe-go"
	"github.com/rocketlaunchr/dataframe-go/imports"

	"github.com/vprate/vprate-go/pkg/models"
)

// Column names expected in the per-text input table.
const (
	ColTextID         = "text_id"
	ColLanguage       = "language"
	ColRegister       = "register"
	ColMode           = "mode"
	ColTokens         = "tokens"
	ColVPTotal        = "vp_total"
	ColVPFinite       = "vp_finite"
	ColVPNonfinite    = "vp_nonfinite"
	ColLexicalDensity = "lexical_density"
)

// LoadTexts reads the per-text corpus table from a CSV file. Every row is
// validated; a single bad row fails the load so the analysis never runs
// on a silently truncated sample.
func LoadTexts(path string) ([]models.TextRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open corpus table: %w", err)
	}
	defer f.Close()

	df, err := imports.LoadFromCSV(context.Background(), f, imports.CSVLoadOptions{
		DictateDataType: map[string]interface{}{
			ColTextID:         "",
			ColLanguage:       "",
			ColRegister:       "",
			ColMode:           "",
			ColTokens:         int64(0),
			ColVPTotal:        int64(0),
			ColVPFinite:       int64(0),
			ColVPNonfinite:    int64(0),
			ColLexicalDensity: float64(0),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse corpus table %s: %w", path, err)
	}

	n := df.NRows()
	if n == 0 {
		return nil, fmt.Errorf("corpus table %s contains no rows", path)
	}

	records := make([]models.TextRecord, 0, n)
	for i := 0; i < n; i++ {
		row := df.Row(i, false, dataframe.SeriesName)
		rec := models.TextRecord{
			ID:             stringCell(row, ColTextID),
			Language:       strings.ToLower(stringCell(row, ColLanguage)),
			Register:       strings.ToLower(stringCell(row, ColRegister)),
			Mode:           strings.ToLower(stringCell(row, ColMode)),
			Tokens:         intCell(row, ColTokens),
			VPTotal:        intCell(row, ColVPTotal),
			VPFinite:       intCell(row, ColVPFinite),
			VPNonfinite:    intCell(row, ColVPNonfinite),
			LexicalDensity: floatCell(row, ColLexicalDensity),
		}
		if rec.ID == "" {
			rec.ID = fmt.Sprintf("row-%d", i+1)
		}
		if err := rec.Validate(); err != nil {
			return nil, fmt.Errorf("corpus table %s row %d: %w", path, i+1, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// LoadRegisterSummary reads the register-level aggregate table. The
// summary feeds visualization only and is never used for model fitting.
func LoadRegisterSummary(path string) ([]models.RegisterSummary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open register summary: %w", err)
	}
	defer f.Close()

	df, err := imports.LoadFromCSV(context.Background(), f, imports.CSVLoadOptions{
		DictateDataType: map[string]interface{}{
			"register":     "",
			"texts":        int64(0),
			"mean_vp_rate": float64(0),
			"mean_density": float64(0),
			"mean_tokens":  float64(0),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse register summary %s: %w", path, err)
	}

	n := df.NRows()
	summaries := make([]models.RegisterSummary, 0, n)
	for i := 0; i < n; i++ {
		row := df.Row(i, false, dataframe.SeriesName)
		s := models.RegisterSummary{
			Register:    strings.ToLower(stringCell(row, "register")),
			Texts:       intCell(row, "texts"),
			MeanVPRate:  floatCell(row, "mean_vp_rate"),
			MeanDensity: floatCell(row, "mean_density"),
			MeanTokens:  floatCell(row, "mean_tokens"),
		}
		if s.Register == "" {
			return nil, fmt.Errorf("register summary %s row %d: register is required", path, i+1)
		}
		summaries = append(summaries, s)
	}
	return summaries, nil
}

func stringCell(row map[interface{}]interface{}, col string) string {
	v, ok := row[col]
	if !ok || v == nil {
		return ""
	}
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func intCell(row map[interface{}]interface{}, col string) int {
	v, ok := row[col]
	if !ok || v == nil {
		return 0
	}
	switch n := v.(type) {
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}

func floatCell(row map[interface{}]interface{}, col string) float64 {
	v, ok := row[col]
	if !ok || v == nil {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	}
	return 0
}
