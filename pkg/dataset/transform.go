package dataset

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/stat"

	"github.com/vprate/vprate-go/pkg/models"
)

// ErrUnknownLevel reports a categorical level that was absent from the
// sample the transform was fitted on. It surfaces at prediction time,
// never at fit time.
var ErrUnknownLevel = errors.New("unknown categorical level")

// Derived design-column names.
const (
	ColDensityZ     = "density_z"
	ColHundredWords = "hundred_words"
)

// categoricalVars fixes the order in which categorical predictors expand
// into contrast columns, so column order is stable across fits.
var categoricalVars = []string{ColLanguage, ColRegister, ColMode}

// Transform holds the frozen predictor transform: the density sample
// moments, the per-hundred-words exposure scaling, and the categorical
// level orders for sum-to-zero contrast coding. It is fitted once over
// the full analysis sample and reused unchanged for every model fit and
// for new-data prediction, keeping coefficients on one comparable scale.
type Transform struct {
	DensityMean float64             `json:"density_mean"`
	DensitySD   float64             `json:"density_sd"`
	Levels      map[string][]string `json:"levels"` // categorical -> ordered levels; last is the omitted reference
}

// FitTransform computes the transform over the analysis sample. The
// density standard deviation uses the conventional sample (ddof=1)
// estimator. Level order is first appearance in the sample; the last
// observed level of each categorical becomes the omitted reference.
func FitTransform(texts []models.TextRecord) (*Transform, error) {
	if len(texts) < 2 {
		return nil, fmt.Errorf("cannot fit transform on %d texts; need at least 2", len(texts))
	}

	density := make([]float64, len(texts))
	for i, rec := range texts {
		density[i] = rec.LexicalDensity
	}
	mean, sd := stat.MeanStdDev(density, nil)
	if sd == 0 {
		return nil, fmt.Errorf("lexical density is constant; cannot z-score")
	}

	t := &Transform{
		DensityMean: mean,
		DensitySD:   sd,
		Levels:      make(map[string][]string, len(categoricalVars)),
	}
	for _, rec := range texts {
		t.addLevel(ColLanguage, rec.Language)
		t.addLevel(ColRegister, rec.Register)
		t.addLevel(ColMode, rec.Mode)
	}
	return t, nil
}

func (t *Transform) addLevel(varName, level string) {
	for _, l := range t.Levels[varName] {
		if l == level {
			return
		}
	}
	t.Levels[varName] = append(t.Levels[varName], level)
}

// PredictorColumns lists every predictor name a formula may reference:
// the categorical variables plus the derived numeric columns.
func (t *Transform) PredictorColumns() []string {
	out := append([]string(nil), categoricalVars...)
	return append(out, ColDensityZ, ColHundredWords)
}

// IsCategorical reports whether a predictor expands to contrast columns.
func (t *Transform) IsCategorical(name string) bool {
	_, ok := t.Levels[name]
	return ok
}

// ContrastColumns returns the k-1 contrast column names for a categorical
// predictor, one per non-reference level.
func (t *Transform) ContrastColumns(varName string) []string {
	levels := t.Levels[varName]
	if len(levels) < 2 {
		return nil
	}
	out := make([]string, len(levels)-1)
	for i, level := range levels[:len(levels)-1] {
		out[i] = varName + "_" + level
	}
	return out
}

// contrastRow encodes one level under sum-to-zero coding: 1 in the
// level's own column, -1 in every column for the reference level, 0
// elsewhere. The implied reference coefficient is the negative sum of
// the others, so all k level effects sum to zero.
func (t *Transform) contrastRow(varName, level string) ([]float64, error) {
	levels := t.Levels[varName]
	idx := -1
	for i, l := range levels {
		if l == level {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s=%q not in fitted sample", ErrUnknownLevel, varName, level)
	}
	row := make([]float64, len(levels)-1)
	if idx == len(levels)-1 {
		for i := range row {
			row[i] = -1
		}
	} else {
		row[idx] = 1
	}
	return row, nil
}

// Apply produces the numeric design columns for a single record using
// the frozen transform. An unseen categorical level fails with
// ErrUnknownLevel.
func (t *Transform) Apply(rec models.TextRecord) (map[string]float64, error) {
	out := map[string]float64{
		ColDensityZ:     (rec.LexicalDensity - t.DensityMean) / t.DensitySD,
		ColHundredWords: rec.HundredWords(),
	}
	values := map[string]string{
		ColLanguage: rec.Language,
		ColRegister: rec.Register,
		ColMode:     rec.Mode,
	}
	for _, varName := range categoricalVars {
		row, err := t.contrastRow(varName, values[varName])
		if err != nil {
			return nil, err
		}
		for i, col := range t.ContrastColumns(varName) {
			out[col] = row[i]
		}
	}
	return out, nil
}

// Frame is the transformed analysis table: the ordered design columns,
// the response vector, and the raw records they came from.
type Frame struct {
	N         int
	Transform *Transform
	Columns   []string
	Data      map[string][]float64
	Response  []float64
	Records   []models.TextRecord
}

// Frame applies the transform to the whole sample.
func (t *Transform) Frame(texts []models.TextRecord) (*Frame, error) {
	cols := []string{ColDensityZ, ColHundredWords}
	for _, varName := range categoricalVars {
		cols = append(cols, t.ContrastColumns(varName)...)
	}

	f := &Frame{
		N:         len(texts),
		Transform: t,
		Columns:   cols,
		Data:      make(map[string][]float64, len(cols)),
		Response:  make([]float64, len(texts)),
		Records:   texts,
	}
	for _, c := range cols {
		f.Data[c] = make([]float64, len(texts))
	}
	for i, rec := range texts {
		row, err := t.Apply(rec)
		if err != nil {
			return nil, fmt.Errorf("text %s: %w", rec.ID, err)
		}
		for _, c := range cols {
			f.Data[c][i] = row[c]
		}
		f.Response[i] = float64(rec.VPTotal)
	}
	return f, nil
}

// Column returns one design column by name.
func (f *Frame) Column(name string) ([]float64, error) {
	col, ok := f.Data[name]
	if !ok {
		return nil, fmt.Errorf("no design column %q", name)
	}
	return col, nil
}

// GroupIndex maps each row to the index of its level within the fitted
// level order of a categorical variable.
func (f *Frame) GroupIndex(varName string) ([]int, []string, error) {
	levels, ok := f.Transform.Levels[varName]
	if !ok {
		return nil, nil, fmt.Errorf("%q is not a categorical predictor", varName)
	}
	pos := make(map[string]int, len(levels))
	for i, l := range levels {
		pos[l] = i
	}
	idx := make([]int, f.N)
	for i, rec := range f.Records {
		var level string
		switch varName {
		case ColLanguage:
			level = rec.Language
		case ColRegister:
			level = rec.Register
		case ColMode:
			level = rec.Mode
		}
		j, ok := pos[level]
		if !ok {
			return nil, nil, fmt.Errorf("%w: %s=%q", ErrUnknownLevel, varName, level)
		}
		idx[i] = j
	}
	return idx, levels, nil
}
