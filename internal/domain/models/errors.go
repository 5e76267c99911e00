package models

import "errors"

var (
	// ErrMissingArtifact marks a unit whose bars, metadata or model file is absent.
	ErrMissingArtifact = errors.New("missing artifact")
	// ErrInsufficientData marks a unit with too few rows to fill its windows.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrFeatureSchemaMismatch aborts meta ranking when the flattened record
	// does not carry every feature a currency model expects.
	ErrFeatureSchemaMismatch = errors.New("feature schema mismatch")
)
