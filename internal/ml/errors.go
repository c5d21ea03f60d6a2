// Package ml provides the model adapters behind the ensemble.
package ml

import "errors"

var (
	// ErrModelUnavailable indicates the adapter has no loaded artifact or its backend is down
	ErrModelUnavailable = errors.New("model unavailable")

	// ErrFeatureShapeMismatch indicates the vector length disagrees with the model's input size
	ErrFeatureShapeMismatch = errors.New("feature shape mismatch")

	// ErrInvalidArtifact indicates a model artifact failed validation
	ErrInvalidArtifact = errors.New("invalid model artifact")

	// ErrInvalidOutput indicates a model produced a non-finite or malformed result
	ErrInvalidOutput = errors.New("invalid model output")

	// ErrUnknownModel indicates the registry has no adapter with the requested name
	ErrUnknownModel = errors.New("unknown model")

	// ErrDuplicateModel indicates an adapter with the same name is already registered
	ErrDuplicateModel = errors.New("duplicate model")

	// ErrConnectionFailed indicates the remote inference or training service could not be reached
	ErrConnectionFailed = errors.New("connection failed")

	// ErrTrainingServiceUnavailable indicates the training service rejected or failed a request
	ErrTrainingServiceUnavailable = errors.New("training service unavailable")
)
