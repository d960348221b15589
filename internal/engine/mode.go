package engine

import (
	"fmt"
	"strings"
)

// Mode selects how velocity is measured. Each mode carries its own velocity
// cutoffs because the two formulas differ by roughly an order of magnitude.
type Mode string

const (
	// ModeSmoothed differentiates a quadratic fit of the last five points.
	ModeSmoothed Mode = "smoothed"
	// ModeSimple takes a secant slope over the last five raw points.
	ModeSimple Mode = "simple"
)

// Thresholds are the velocity cutoffs of the first three classification rules.
type Thresholds struct {
	BreakoutVelocity     float64
	AccelerationVelocity float64
	EarlySignalVelocity  float64
}

var modeThresholds = map[Mode]Thresholds{
	ModeSmoothed: {BreakoutVelocity: 3, AccelerationVelocity: 1, EarlySignalVelocity: 0.5},
	ModeSimple:   {BreakoutVelocity: 0.5, AccelerationVelocity: 0.2, EarlySignalVelocity: 0.1},
}

// ParseMode resolves a configured mode name. An empty name yields ModeSmoothed.
func ParseMode(name string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(name))) {
	case "", ModeSmoothed:
		return ModeSmoothed, nil
	case ModeSimple:
		return ModeSimple, nil
	default:
		return "", fmt.Errorf("unknown velocity mode %q", name)
	}
}

// Thresholds returns the cutoff table paired with m.
func (m Mode) Thresholds() Thresholds {
	if th, ok := modeThresholds[m]; ok {
		return th
	}
	return modeThresholds[ModeSmoothed]
}
