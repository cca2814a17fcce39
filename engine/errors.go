package engine

import "errors"

// Sentinel errors surfaced across the command/HTTP boundary (spec.md §7
// "Lookup errors" / "Validation errors" rows).
var (
	ErrSnakeNotFound   = errors.New("snake not found")
	ErrInvalidName     = errors.New("name must be 1-20 characters")
	ErrInvalidAISource = errors.New("aiFunction must be 1-10000 characters")
	ErrGameNotRunning  = errors.New("game is not running")
)
