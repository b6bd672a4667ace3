package models

import (
	"fmt"
	"strings"
)

// Formula is a structured model specification: fixed-effect terms,
// pairwise interactions, an optional random-intercept grouping factor,
// and an optional exposure offset. Terms name predictor columns of the
// transformed data; categorical predictors expand to their contrast
// columns when the design matrix is built.
type Formula struct {
	Name         string      `json:"name"`
	Response     string      `json:"response"`
	Fixed        []string    `json:"fixed"`
	Interactions [][2]string `json:"interactions,omitempty"`
	Group        string      `json:"group,omitempty"`
	Offset       string      `json:"offset,omitempty"`
}

// Validate checks every term of the formula against the set of predictor
// columns available in the transformed data. Called before any fit is
// attempted so that a typo fails fast rather than mid-sampling.
func (f *Formula) Validate(predictors []string) error {
	if f.Response == "" {
		return fmt.Errorf("formula %s: response is required", f.Name)
	}
	known := make(map[string]bool, len(predictors))
	for _, p := range predictors {
		known[p] = true
	}
	seen := make(map[string]bool, len(f.Fixed))
	for _, term := range f.Fixed {
		if !known[term] {
			return fmt.Errorf("formula %s: unknown fixed term %q", f.Name, term)
		}
		if seen[term] {
			return fmt.Errorf("formula %s: duplicate fixed term %q", f.Name, term)
		}
		seen[term] = true
	}
	for _, pair := range f.Interactions {
		for _, term := range pair {
			if !known[term] {
				return fmt.Errorf("formula %s: unknown interaction term %q", f.Name, term)
			}
		}
		if !seen[pair[0]] || !seen[pair[1]] {
			return fmt.Errorf("formula %s: interaction %s:%s requires both main effects", f.Name, pair[0], pair[1])
		}
	}
	if f.Group != "" {
		if !known[f.Group] {
			return fmt.Errorf("formula %s: unknown grouping factor %q", f.Name, f.Group)
		}
		if seen[f.Group] {
			return fmt.Errorf("formula %s: %q cannot be both a fixed term and the grouping factor", f.Name, f.Group)
		}
	}
	if f.Offset != "" && !known[f.Offset] {
		return fmt.Errorf("formula %s: unknown offset term %q", f.Name, f.Offset)
	}
	return nil
}

// Key returns a canonical, human-readable identity for the formula.
// Two fits with equal keys and equal prior sets are directly comparable
// artifacts of the same specification.
func (f *Formula) Key() string {
	var b strings.Builder
	b.WriteString(f.Response)
	b.WriteString(" ~ 1")
	for _, term := range f.Fixed {
		b.WriteString(" + ")
		b.WriteString(term)
	}
	for _, pair := range f.Interactions {
		b.WriteString(" + ")
		b.WriteString(pair[0])
		b.WriteString(":")
		b.WriteString(pair[1])
	}
	if f.Group != "" {
		b.WriteString(" + (1|")
		b.WriteString(f.Group)
		b.WriteString(")")
	}
	if f.Offset != "" {
		b.WriteString(" + offset(log(")
		b.WriteString(f.Offset)
		b.WriteString("))")
	}
	return b.String()
}
