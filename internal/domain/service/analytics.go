package service

import (
	"context"

	"FxSignal/internal/domain/models"
)

// Classifier scores a feature window (rows x columns, oldest first) for one
// symbol and timeframe.
type Classifier interface {
	Classify(ctx context.Context, symbol, tf string, window [][]float64) (models.ProbabilityVector, error)
}

// Regressor predicts a scalar return from an ordered feature vector.
type Regressor interface {
	Predict(ctx context.Context, features []float64) (float64, error)
}
