package models

import "testing"

var testPredictors = []string{"language", "register", "mode", "density_z", "hundred_words"}

// TestFormulaValidate tests formula validation against the predictor set
func TestFormulaValidate(t *testing.T) {
	full := Formula{
		Name:     "full",
		Response: "vp_total",
		Fixed:    []string{"language", "mode", "density_z"},
		Interactions: [][2]string{
			{"language", "mode"},
			{"language", "density_z"},
		},
		Group:  "register",
		Offset: "hundred_words",
	}
	if err := full.Validate(testPredictors); err != nil {
		t.Fatalf("expected full model to validate, got %v", err)
	}

	tests := []struct {
		name   string
		mutate func(f *Formula)
	}{
		{"missing response", func(f *Formula) { f.Response = "" }},
		{"unknown fixed term", func(f *Formula) { f.Fixed = append(f.Fixed, "genre") }},
		{"duplicate fixed term", func(f *Formula) { f.Fixed = append(f.Fixed, "mode") }},
		{"unknown interaction", func(f *Formula) { f.Interactions = [][2]string{{"language", "genre"}} }},
		{"interaction without main effect", func(f *Formula) {
			f.Fixed = []string{"language"}
			f.Interactions = [][2]string{{"language", "mode"}}
		}},
		{"unknown group", func(f *Formula) { f.Group = "speaker" }},
		{"group also fixed", func(f *Formula) { f.Fixed = append(f.Fixed, "register") }},
		{"unknown offset", func(f *Formula) { f.Offset = "words" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := full
			f.Fixed = append([]string(nil), full.Fixed...)
			f.Interactions = append([][2]string(nil), full.Interactions...)
			tt.mutate(&f)
			if err := f.Validate(testPredictors); err == nil {
				t.Errorf("expected validation error for %s", tt.name)
			}
		})
	}
}

// TestFormulaKey tests the canonical formula identity string
func TestFormulaKey(t *testing.T) {
	f := Formula{
		Name:         "full",
		Response:     "vp_total",
		Fixed:        []string{"language", "mode"},
		Interactions: [][2]string{{"language", "mode"}},
		Group:        "register",
		Offset:       "hundred_words",
	}
	want := "vp_total ~ 1 + language + mode + language:mode + (1|register) + offset(log(hundred_words))"
	if got := f.Key(); got != want {
		t.Errorf("formula key mismatch:\n got %s\nwant %s", got, want)
	}

	minimal := Formula{Name: "language-only", Response: "vp_total", Fixed: []string{"language"}}
	if got := minimal.Key(); got != "vp_total ~ 1 + language" {
		t.Errorf("unexpected minimal key %s", got)
	}
}
