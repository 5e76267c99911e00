package meta

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"FxSignal/internal/domain/models"
	"FxSignal/internal/domain/service"
)

// SchemaError lists the features a model expected but the record lacked.
type SchemaError struct {
	Currency string
	Missing  []string
}

func (e *SchemaError) Error() string {
	head := e.Missing
	if len(head) > 5 {
		head = head[:5]
	}
	return fmt.Sprintf("%s: model %s missing %d features (%s)",
		models.ErrFeatureSchemaMismatch, e.Currency, len(e.Missing), strings.Join(head, ", "))
}

func (e *SchemaError) Unwrap() error { return models.ErrFeatureSchemaMismatch }

// Model is either a Single regressor or a WeightedEnsemble of two. The shape
// is fixed when the artifact is loaded.
type Model interface {
	Predict(ctx context.Context, x []float64) (float64, error)
	Kind() string
}

type Single struct {
	Regressor service.Regressor
}

func (m Single) Kind() string { return "single" }

func (m Single) Predict(ctx context.Context, x []float64) (float64, error) {
	return m.Regressor.Predict(ctx, x)
}

// WeightedEnsemble combines two regressors with weights fixed at training
// time. Weights are used as stored.
type WeightedEnsemble struct {
	A       service.Regressor
	WeightA float64
	B       service.Regressor
	WeightB float64
}

func (m WeightedEnsemble) Kind() string { return "ensemble" }

func (m WeightedEnsemble) Predict(ctx context.Context, x []float64) (float64, error) {
	a, err := m.A.Predict(ctx, x)
	if err != nil {
		return 0, fmt.Errorf("ensemble member a: %w", err)
	}
	b, err := m.B.Predict(ctx, x)
	if err != nil {
		return 0, fmt.Errorf("ensemble member b: %w", err)
	}
	return m.WeightA*a + m.WeightB*b, nil
}

// EnsembleWeights returns inverse-validation-error weights that sum to one.
func EnsembleWeights(mse1, mse2 float64) (float64, float64, error) {
	if mse1 <= 0 || mse2 <= 0 {
		return 0, 0, errors.New("validation mse must be positive")
	}
	inv1, inv2 := 1/mse1, 1/mse2
	w1 := inv1 / (inv1 + inv2)
	return w1, 1 - w1, nil
}

// CurrencyModel binds a model to its currency and input ordering.
type CurrencyModel struct {
	Currency string
	Features []string
	Model    Model
}

// Linear is an in-process regressor: intercept + coefficients . x.
type Linear struct {
	Intercept    float64
	Coefficients []float64
}

func (l Linear) Predict(_ context.Context, x []float64) (float64, error) {
	if len(x) != len(l.Coefficients) {
		return 0, fmt.Errorf("linear model: got %d inputs, want %d", len(x), len(l.Coefficients))
	}
	y := l.Intercept
	for i, c := range l.Coefficients {
		y += c * x[i]
	}
	return y, nil
}
