package models

import "errors"

// Validation errors for item definitions.
var (
	// ErrEmptyItemName indicates a definition with no name.
	ErrEmptyItemName = errors.New("item name must not be empty")
	// ErrInvalidCategory indicates an unknown category value.
	ErrInvalidCategory = errors.New("invalid item category")
	// ErrInvalidReliability indicates a reliability outside [0,1].
	ErrInvalidReliability = errors.New("reliability must be in [0,1]")
)
