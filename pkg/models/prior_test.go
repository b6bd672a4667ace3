package models

import (
	"math"
	"testing"
)

func basePriors() *PriorSet {
	return &PriorSet{
		Name: "original",
		Priors: map[string]Prior{
			"intercept":   {Mean: 2.4, SD: 0.5},
			"density_z":   {Mean: 0.2, SD: 0.3},
			"sd_register": {Mean: 0.5, SD: 0.25},
		},
		Default: &Prior{Mean: 0, SD: 1},
	}
}

// TestPriorSetLookup tests explicit and default prior resolution
func TestPriorSetLookup(t *testing.T) {
	ps := basePriors()
	p, err := ps.Lookup("intercept")
	if err != nil {
		t.Fatalf("lookup intercept: %v", err)
	}
	if p.Mean != 2.4 || p.SD != 0.5 {
		t.Errorf("unexpected intercept prior %+v", p)
	}

	p, err = ps.Lookup("mode_spoken")
	if err != nil {
		t.Fatalf("lookup default: %v", err)
	}
	if p.Mean != 0 || p.SD != 1 {
		t.Errorf("expected default prior, got %+v", p)
	}

	ps.Default = nil
	if _, err := ps.Lookup("mode_spoken"); err == nil {
		t.Error("expected error without default prior")
	}
}

// TestPriorSetValidate tests rejection of non-positive standard deviations
func TestPriorSetValidate(t *testing.T) {
	ps := basePriors()
	if err := ps.Validate(); err != nil {
		t.Fatalf("expected valid set, got %v", err)
	}
	ps.Priors["density_z"] = Prior{Mean: 0, SD: 0}
	if err := ps.Validate(); err == nil {
		t.Error("expected error for zero sd")
	}
}

// TestSensitivityVariants tests the four standard prior perturbations
func TestSensitivityVariants(t *testing.T) {
	ps := basePriors()
	variants := ps.SensitivityVariants()
	if len(variants) != 4 {
		t.Fatalf("expected 4 variants, got %d", len(variants))
	}

	uninformative, wider, narrower, informative := variants[0], variants[1], variants[2], variants[3]

	if got := uninformative.Priors["intercept"].Mean; got != 0 {
		t.Errorf("uninformative mean should be 0, got %g", got)
	}
	if got := uninformative.Priors["intercept"].SD; got != 0.5 {
		t.Errorf("uninformative sd should be unchanged, got %g", got)
	}
	if got := wider.Priors["intercept"].SD; math.Abs(got-1.0) > 1e-12 {
		t.Errorf("wider sd should double, got %g", got)
	}
	if got := narrower.Priors["intercept"].SD; math.Abs(got-0.25) > 1e-12 {
		t.Errorf("narrower sd should halve, got %g", got)
	}
	if got := informative.Priors["intercept"].Mean; math.Abs(got-3.6) > 1e-12 {
		t.Errorf("more-informative mean should scale by 1.5, got %g", got)
	}

	// Variants never alias the original.
	if ps.Priors["intercept"].Mean != 2.4 || ps.Priors["intercept"].SD != 0.5 {
		t.Error("original prior set was mutated by variant construction")
	}
}
