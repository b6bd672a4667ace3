package bayes

import (
	"reflect"
	"testing"
)

func looResult(name string, pointwise []float64) *LOOResult {
	r := &LOOResult{ModelName: name, Pointwise: pointwise, N: len(pointwise)}
	for _, p := range pointwise {
		r.ELPD += p
	}
	return r
}

func TestRankOrdersByELPD(t *testing.T) {
	a := looResult("full", []float64{-1, -1, -1, -1})
	b := looResult("reduced", []float64{-2, -2, -2, -2})

	ranking, err := Rank([]Candidate{{LOO: b}, {LOO: a}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ranking.Best != "full" {
		t.Errorf("best = %q, want full", ranking.Best)
	}
	if ranking.Models[0].Name != "full" || ranking.Models[1].Name != "reduced" {
		t.Errorf("order = %s, %s", ranking.Models[0].Name, ranking.Models[1].Name)
	}
	if ranking.Models[0].DeltaELPD != 0 {
		t.Errorf("top model delta = %v, want 0", ranking.Models[0].DeltaELPD)
	}
	if got := ranking.Models[1].DeltaELPD; got != -4 {
		t.Errorf("second model delta = %v, want -4", got)
	}
}

func TestRankOrderInvariance(t *testing.T) {
	a := looResult("a", []float64{-1.2, -0.8, -1.1})
	b := looResult("b", []float64{-1.0, -1.0, -1.0})
	c := looResult("c", []float64{-1.5, -1.4, -0.2})

	first, err := Rank([]Candidate{{LOO: a}, {LOO: b}, {LOO: c}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := Rank([]Candidate{{LOO: c}, {LOO: a}, {LOO: b}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("ranking depends on candidate order:\n%+v\n%+v", first, second)
	}
}

func TestRankTieBreaksByName(t *testing.T) {
	a := looResult("zeta", []float64{-1, -1})
	b := looResult("alpha", []float64{-1, -1})
	ranking, err := Rank([]Candidate{{LOO: a}, {LOO: b}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ranking.Best != "alpha" {
		t.Errorf("tie broke to %q, want alpha", ranking.Best)
	}
}

func TestRankIndistinguishable(t *testing.T) {
	// Noisy pointwise differences with a small total gap: the gap lies
	// inside its own standard error.
	a := looResult("a", []float64{-1.0, -1.4, -0.9, -1.2})
	b := looResult("b", []float64{-1.3, -1.0, -1.2, -1.1})
	ranking, err := Rank([]Candidate{{LOO: a}, {LOO: b}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	runner := ranking.Models[1]
	if !runner.Indistinguishable {
		t.Errorf("delta %v with SE %v not flagged indistinguishable", runner.DeltaELPD, runner.DeltaSE)
	}
}

func TestRankClearlySeparated(t *testing.T) {
	a := looResult("a", []float64{-1, -1, -1, -1})
	b := looResult("b", []float64{-3, -3, -3.1, -2.9})
	ranking, err := Rank([]Candidate{{LOO: a}, {LOO: b}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ranking.Models[1].Indistinguishable {
		t.Error("clearly worse model flagged indistinguishable")
	}
}

func TestRankMismatchedDatasets(t *testing.T) {
	a := looResult("a", []float64{-1, -1})
	b := looResult("b", []float64{-1, -1, -1})
	if _, err := Rank([]Candidate{{LOO: a}, {LOO: b}}); err == nil {
		t.Fatal("expected error for candidates scored on different observation counts")
	}
}

func TestRankEmpty(t *testing.T) {
	if _, err := Rank(nil); err == nil {
		t.Fatal("expected error for empty candidate list")
	}
}
