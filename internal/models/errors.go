package models

import "errors"

// Custom errors
var (
	ErrNotFound       = errors.New("record not found")
	ErrDuplicateKey   = errors.New("duplicate key violation")
	ErrInvalidID      = errors.New("invalid ID format")
	ErrNoModelQuorum  = errors.New("no model quorum")
	ErrAlreadySettled = errors.New("prediction already settled")
	ErrProfileMissing = errors.New("risk profile missing")
	ErrInvalidOutcome = errors.New("actual winner must be the home or away team")
)
