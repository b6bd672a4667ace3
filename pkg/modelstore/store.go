package modelstore

import (
	"fmt"

	"github.com/vprate/vprate-go/pkg/models"
)

// Store is the interface for fitted-model persistence. An artifact is
// saved once after sampling and only ever read afterwards; re-running an
// analysis looks an artifact up by its fit key instead of re-sampling.
type Store interface {
	SaveModel(model *models.FittedModel) error
	GetModel(id string) (*models.FittedModel, error)
	GetModelByKey(fitKey string) (*models.FittedModel, error)
	ListModels() ([]*models.FittedModel, error)
	DeleteModel(id string) error
	Close() error
}

// FitKey is the identity under which an artifact is cached: the formula
// structure, the prior set, and the sampler settings. Two runs with
// equal keys produce statistically identical draws, so the stored
// artifact can stand in for a fresh fit.
func FitKey(formula *models.Formula, priors *models.PriorSet, settings models.SamplerSettings) string {
	return fmt.Sprintf("%s|priors=%s|chains=%d|warmup=%d|iter=%d|seed=%d",
		formula.Key(), priors.Name, settings.Chains, settings.Warmup, settings.Iterations, settings.Seed)
}

// FitFunc runs a fresh sampling pass. It matches the sampler's Fit with
// the data already bound.
type FitFunc func(formula *models.Formula, priors *models.PriorSet, settings models.SamplerSettings) (*models.FittedModel, error)

// LoadOrFit returns the stored artifact for the fit key when one exists
// and is converged, and otherwise samples afresh and saves the result.
// A stored failed fit is not reused; the caller gets a fresh attempt.
func LoadOrFit(store Store, formula *models.Formula, priors *models.PriorSet, settings models.SamplerSettings, fit FitFunc) (*models.FittedModel, error) {
	key := FitKey(formula, priors, settings)
	if cached, err := store.GetModelByKey(key); err == nil && cached.Status == models.FitStatusConverged {
		return cached, nil
	}

	fitted, fitErr := fit(formula, priors, settings)
	if fitted != nil {
		// Failed fits are saved too; the artifact records why the
		// analysis has no usable model for this specification.
		if saveErr := store.SaveModel(fitted); saveErr != nil {
			return nil, fmt.Errorf("failed to save fitted model %s: %w", fitted.Name, saveErr)
		}
	}
	return fitted, fitErr
}
