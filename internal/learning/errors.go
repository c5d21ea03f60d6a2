// Package learning tracks settled prediction accuracy and raises retrain signals.
package learning

import "errors"

var (
	// ErrUnknownBucket indicates no bucket exists for the requested key
	ErrUnknownBucket = errors.New("unknown accuracy bucket")

	// ErrInvalidTransition indicates a retrain lifecycle call out of order
	ErrInvalidTransition = errors.New("invalid bucket state transition")
)
