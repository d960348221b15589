package engine

import (
	"math"

	"github.com/trendpulse/trendpulse/internal/models"
)

const (
	snrBreakout     = 5.0
	snrAcceleration = 3.0
	snrEarlySignal  = 2.0
	snrEmerging     = 1.5

	r0Viral   = 2.0
	r0Growing = 1.0

	peakHorizonDays = 60.0
	minPeakDays     = 7
	maxPeakDays     = 365
	firstMoverLead  = 3

	confidenceHorizon = 90.0
	confidenceWeight  = 0.25
	confidenceBase    = 0.2
	confidenceMinR0   = 0.5
)

type phaseRule struct {
	phase    models.Phase
	priority models.Priority
	match    func(m models.Metrics, th Thresholds) bool
}

// phaseRules is evaluated top to bottom and the first match wins. The
// conditions overlap, so the order is part of the contract.
var phaseRules = []phaseRule{
	{
		phase:    models.PhaseBreakout,
		priority: models.PriorityCritical,
		match: func(m models.Metrics, th Thresholds) bool {
			return m.SNR >= snrBreakout && m.Velocity >= th.BreakoutVelocity && m.R0 >= r0Viral
		},
	},
	{
		phase:    models.PhaseAcceleration,
		priority: models.PriorityHigh,
		match: func(m models.Metrics, th Thresholds) bool {
			return m.SNR >= snrAcceleration && m.Velocity >= th.AccelerationVelocity && m.R0 >= r0Growing
		},
	},
	{
		phase:    models.PhaseEarlySignal,
		priority: models.PriorityMedium,
		match: func(m models.Metrics, th Thresholds) bool {
			return m.SNR >= snrEarlySignal && m.Velocity >= th.EarlySignalVelocity
		},
	},
	{
		phase:    models.PhaseEmerging,
		priority: models.PriorityLow,
		match: func(m models.Metrics, _ Thresholds) bool {
			return m.SNR >= snrEmerging || m.Velocity > 0
		},
	},
}

// Classify maps metrics to a phase and priority using the thresholds of one
// velocity mode.
func Classify(m models.Metrics, th Thresholds) (models.Phase, models.Priority) {
	for _, rule := range phaseRules {
		if rule.match(m, th) {
			return rule.phase, rule.priority
		}
	}
	return models.PhaseBaseline, models.PriorityLow
}

// EstimatePeak predicts days to peak from R0 and velocity. Without growth the
// estimate is models.NoPeakDays.
func EstimatePeak(m models.Metrics) models.PeakEstimate {
	peak := models.NoPeakDays
	if m.R0 > 1 && m.Velocity > 0 {
		days := math.Floor(peakHorizonDays / math.Max(m.R0, 0.5) / math.Max(m.Velocity+1, 1))
		peak = int(clamp(days, minPeakDays, maxPeakDays))
	}
	return models.PeakEstimate{
		PeakDays:       peak,
		FirstMoverDays: max(0, peak-firstMoverLead),
	}
}

// DetermineUrgency picks the response speed for a phase and peak estimate.
func DetermineUrgency(phase models.Phase, peakDays int) models.Urgency {
	switch {
	case phase == models.PhaseBreakout || peakDays < 7:
		return models.UrgencyImmediate
	case phase == models.PhaseAcceleration || peakDays < 14:
		return models.UrgencySameDay
	case peakDays < 30:
		return models.UrgencyFastTrack
	case peakDays < 60:
		return models.UrgencyStandard
	default:
		return models.UrgencyPlanned
	}
}

// Confidence scores how much to trust a verdict on n points. The result lies
// in [0.2, 0.95].
func Confidence(n int, m models.Metrics) float64 {
	dataQuality := math.Min(1, float64(n)/confidenceHorizon)
	snrConf := math.Min(1, math.Abs(finite(m.SNR))/snrBreakout)
	r0Conf := 0.0
	if m.R0 > confidenceMinR0 {
		r0Conf = math.Min(1, m.R0/r0Viral)
	}
	return dataQuality*confidenceWeight + snrConf*confidenceWeight + r0Conf*confidenceWeight + confidenceBase
}

func clamp(v, minVal, maxVal float64) float64 {
	if v < minVal {
		return minVal
	}
	if v > maxVal {
		return maxVal
	}
	return v
}
