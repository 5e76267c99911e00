package meta

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"FxSignal/internal/domain/models"
	"FxSignal/internal/domain/service"
)

const manifestPrefix = "meta_model_"

// Manifest is the on-disk description of one currency model.
type Manifest struct {
	Currency      string          `json:"currency" validate:"required,len=3"`
	Kind          string          `json:"kind" validate:"required,oneof=single ensemble"`
	Features      []string        `json:"features" validate:"required,min=1,dive,required"`
	Models        []ModelManifest `json:"models" validate:"required,min=1,max=2,dive"`
	ValidationMSE []float64       `json:"validation_mse,omitempty" validate:"omitempty,dive,gt=0"`
	Weights       []float64       `json:"weights,omitempty"`
}

type ModelManifest struct {
	Type         string    `json:"type" validate:"required,oneof=linear remote"`
	Intercept    float64   `json:"intercept"`
	Coefficients []float64 `json:"coefficients,omitempty"`
	Endpoint     string    `json:"endpoint,omitempty" validate:"required_if=Type remote"`
}

// RemoteFactory builds a regressor that lives on the model server.
type RemoteFactory func(currency, endpoint string) (service.Regressor, error)

var manifestValidator = validator.New()

// LoadModels reads every meta_model_{CUR}.json under dir and resolves each
// into a Single or WeightedEnsemble. An empty directory is ErrMissingArtifact.
func LoadModels(dir string, remote RemoteFactory) (map[string]CurrencyModel, error) {
	paths, err := filepath.Glob(filepath.Join(dir, manifestPrefix+"*.json"))
	if err != nil {
		return nil, fmt.Errorf("glob models: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: no %s*.json in %s", models.ErrMissingArtifact, manifestPrefix, dir)
	}
	sort.Strings(paths)

	out := make(map[string]CurrencyModel, len(paths))
	for _, p := range paths {
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		var m Manifest
		if err := json.Unmarshal(b, &m); err != nil {
			return nil, fmt.Errorf("parse %s: %w", p, err)
		}
		if m.Currency == "" {
			m.Currency = strings.TrimSuffix(strings.TrimPrefix(filepath.Base(p), manifestPrefix), ".json")
		}
		cm, err := Resolve(m, remote)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		out[cm.Currency] = cm
	}
	return out, nil
}

// Resolve validates a manifest and fixes its model shape.
func Resolve(m Manifest, remote RemoteFactory) (CurrencyModel, error) {
	m.Currency = strings.ToUpper(m.Currency)
	if err := manifestValidator.Struct(m); err != nil {
		return CurrencyModel{}, err
	}
	regs := make([]service.Regressor, len(m.Models))
	for i, mm := range m.Models {
		r, err := buildRegressor(m.Currency, mm, len(m.Features), remote)
		if err != nil {
			return CurrencyModel{}, fmt.Errorf("model %d: %w", i, err)
		}
		regs[i] = r
	}

	cm := CurrencyModel{Currency: m.Currency, Features: m.Features}
	switch m.Kind {
	case "single":
		if len(regs) != 1 {
			return CurrencyModel{}, fmt.Errorf("single model needs exactly 1 member, got %d", len(regs))
		}
		cm.Model = Single{Regressor: regs[0]}
	case "ensemble":
		if len(regs) != 2 {
			return CurrencyModel{}, fmt.Errorf("ensemble needs exactly 2 members, got %d", len(regs))
		}
		wa, wb, err := ensembleWeights(m)
		if err != nil {
			return CurrencyModel{}, err
		}
		cm.Model = WeightedEnsemble{A: regs[0], WeightA: wa, B: regs[1], WeightB: wb}
	}
	return cm, nil
}

// ensembleWeights prefers weights stored at training time and falls back to
// deriving them from the recorded validation errors.
func ensembleWeights(m Manifest) (float64, float64, error) {
	if len(m.Weights) == 2 {
		return m.Weights[0], m.Weights[1], nil
	}
	if len(m.ValidationMSE) == 2 {
		return EnsembleWeights(m.ValidationMSE[0], m.ValidationMSE[1])
	}
	return 0, 0, fmt.Errorf("ensemble %s has neither weights nor validation_mse", m.Currency)
}

func buildRegressor(currency string, mm ModelManifest, nFeatures int, remote RemoteFactory) (service.Regressor, error) {
	switch mm.Type {
	case "linear":
		if len(mm.Coefficients) != nFeatures {
			return nil, fmt.Errorf("linear model has %d coefficients for %d features", len(mm.Coefficients), nFeatures)
		}
		return Linear{Intercept: mm.Intercept, Coefficients: mm.Coefficients}, nil
	case "remote":
		if remote == nil {
			return nil, fmt.Errorf("%w: remote model %s but no model server configured", models.ErrMissingArtifact, mm.Endpoint)
		}
		return remote(currency, mm.Endpoint)
	}
	return nil, fmt.Errorf("unknown model type %q", mm.Type)
}
