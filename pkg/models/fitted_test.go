package models

import (
	"testing"
	"time"
)

func testFitted() *FittedModel {
	return &FittedModel{
		ID:         "fit-1",
		Name:       "full",
		ParamNames: []string{"intercept", "mode_spoken", "register_offset[academic]", "sd_register"},
		Draws: [][][]float64{
			{ // chain 0
				{1.0, 0.1, -0.2, 0.4},
				{1.1, 0.2, -0.1, 0.5},
			},
			{ // chain 1
				{0.9, 0.15, -0.25, 0.45},
				{1.05, 0.05, -0.15, 0.55},
			},
		},
		Status:    FitStatusConverged,
		CreatedAt: time.Now().UTC(),
	}
}

// TestFittedModelDraws tests pooled and per-chain draw extraction
func TestFittedModelDraws(t *testing.T) {
	m := testFitted()

	if got := m.NumDraws(); got != 4 {
		t.Fatalf("expected 4 pooled draws, got %d", got)
	}

	draws, err := m.ParamDraws("intercept")
	if err != nil {
		t.Fatalf("ParamDraws: %v", err)
	}
	want := []float64{1.0, 1.1, 0.9, 1.05}
	for i, v := range want {
		if draws[i] != v {
			t.Errorf("draw %d: expected %g, got %g", i, v, draws[i])
		}
	}

	chains, err := m.ChainDraws("mode_spoken")
	if err != nil {
		t.Fatalf("ChainDraws: %v", err)
	}
	if len(chains) != 2 || len(chains[0]) != 2 {
		t.Fatalf("unexpected chain shape %dx%d", len(chains), len(chains[0]))
	}
	if chains[1][0] != 0.15 {
		t.Errorf("expected chain 1 draw 0 = 0.15, got %g", chains[1][0])
	}

	if _, err := m.ParamDraws("no_such_param"); err == nil {
		t.Error("expected error for unknown parameter")
	}
}

// TestFixedEffectNames tests exclusion of group-level parameters
func TestFixedEffectNames(t *testing.T) {
	m := testFitted()
	fixed := m.FixedEffectNames()
	want := []string{"intercept", "mode_spoken"}
	if len(fixed) != len(want) {
		t.Fatalf("expected %v, got %v", want, fixed)
	}
	for i := range want {
		if fixed[i] != want[i] {
			t.Errorf("expected %v, got %v", want, fixed)
		}
	}
}
