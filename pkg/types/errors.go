package types

import "errors"

// Domain errors for type validation
var (
	ErrEmptyName             = errors.New("food name cannot be empty")
	ErrNegativeServingSize   = errors.New("serving size cannot be negative")
	ErrInvalidRank           = errors.New("rank must be >= 1")
	ErrInvalidRelevanceScore = errors.New("relevance score must be between 0 and 100")
)
