package models

import (
	"fmt"
	"time"
)

// FitStatus represents the lifecycle state of a fitted model artifact.
type FitStatus string

const (
	FitStatusDraft     FitStatus = "draft"     // Specified but not sampled
	FitStatusSampling  FitStatus = "sampling"  // Chains currently running
	FitStatusConverged FitStatus = "converged" // All R-hat values within threshold
	FitStatusFailed    FitStatus = "failed"    // Non-convergence or sampling error
)

// SamplerSettings holds the fixed MCMC run parameters.
type SamplerSettings struct {
	Chains     int   `json:"chains"`
	Warmup     int   `json:"warmup"`
	Iterations int   `json:"iterations"`
	Seed       int64 `json:"seed"`
}

// Diagnostics holds per-parameter convergence statistics for one fit.
type Diagnostics struct {
	RHat       map[string]float64 `json:"rhat"`
	ESS        map[string]float64 `json:"ess"`
	MaxRHat    float64            `json:"max_rhat"`
	AcceptRate float64            `json:"accept_rate"`
	Converged  bool               `json:"converged"`
}

// FittedModel is the immutable artifact produced by one MCMC run: the
// posterior sample collection (chains x iterations x parameters) plus the
// formula, prior set, and sampler settings that produced it. Once status
// is converged or failed the artifact is only ever read.
type FittedModel struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Formula     Formula         `json:"formula"`
	Priors      PriorSet        `json:"priors"`
	Settings    SamplerSettings `json:"settings"`
	ParamNames  []string        `json:"param_names"`
	Draws       [][][]float64   `json:"draws"` // chain -> iteration -> parameter
	Diagnostics *Diagnostics    `json:"diagnostics,omitempty"`
	Status      FitStatus       `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	FittedAt    *time.Time      `json:"fitted_at,omitempty"`
}

// NumDraws returns the total number of retained posterior draws across
// all chains.
func (m *FittedModel) NumDraws() int {
	n := 0
	for _, chain := range m.Draws {
		n += len(chain)
	}
	return n
}

// ParamIndex returns the column index of a named parameter.
func (m *FittedModel) ParamIndex(name string) (int, error) {
	for i, p := range m.ParamNames {
		if p == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("model %s: unknown parameter %q", m.Name, name)
}

// ParamDraws returns all retained draws of one parameter, pooled across
// chains in chain order.
func (m *FittedModel) ParamDraws(name string) ([]float64, error) {
	idx, err := m.ParamIndex(name)
	if err != nil {
		return nil, err
	}
	out := make([]float64, 0, m.NumDraws())
	for _, chain := range m.Draws {
		for _, draw := range chain {
			out = append(out, draw[idx])
		}
	}
	return out, nil
}

// ChainDraws returns the draws of one parameter split by chain, as the
// convergence diagnostics need them.
func (m *FittedModel) ChainDraws(name string) ([][]float64, error) {
	idx, err := m.ParamIndex(name)
	if err != nil {
		return nil, err
	}
	out := make([][]float64, len(m.Draws))
	for c, chain := range m.Draws {
		out[c] = make([]float64, len(chain))
		for i, draw := range chain {
			out[c][i] = draw[idx]
		}
	}
	return out, nil
}

// FlatDraws returns the pooled draw matrix (draws x parameters).
func (m *FittedModel) FlatDraws() [][]float64 {
	out := make([][]float64, 0, m.NumDraws())
	for _, chain := range m.Draws {
		out = append(out, chain...)
	}
	return out
}

// FixedEffectNames returns the parameter names of the fixed effects,
// excluding group-level offsets and their standard deviation.
func (m *FittedModel) FixedEffectNames() []string {
	var out []string
	for _, p := range m.ParamNames {
		if isGroupParam(p) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func isGroupParam(name string) bool {
	if len(name) > 3 && name[:3] == "sd_" {
		return true
	}
	for i := 0; i < len(name); i++ {
		if name[i] == '[' {
			return true
		}
	}
	return false
}
