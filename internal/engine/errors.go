package engine

import (
	"errors"
	"fmt"
)

// ErrInsufficientData matches any *InsufficientDataError via errors.Is.
var ErrInsufficientData = errors.New("insufficient data")

// InsufficientDataError reports a series too short to analyse.
type InsufficientDataError struct {
	Points   int
	Required int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("at least %d data points required, got %d", e.Required, e.Points)
}

// Is reports whether target is ErrInsufficientData.
func (e *InsufficientDataError) Is(target error) bool {
	return target == ErrInsufficientData
}
