package engine

import (
	"math"

	"github.com/trendpulse/trendpulse/internal/models"
	"github.com/trendpulse/trendpulse/internal/stats"
)

const (
	// MinPoints is the shortest series Analyze accepts.
	MinPoints = 5
	// DefaultR0Window is the trailing window R0 ratios are measured against.
	DefaultR0Window = 7

	baselineFraction = 0.3
	r0TailRatios     = 3
	velocitySpan     = 5
)

// ComputeR0 averages the last (up to three) windowed ratios of series. It is 0
// when the series is shorter than window+3 or no ratio is defined.
func ComputeR0(series []float64, window int) float64 {
	if len(series) < window+3 {
		return 0
	}
	ratios := stats.WindowedRatios(series, window)
	if len(ratios) == 0 {
		return 0
	}
	return finite(stats.Mean(ratios[max(0, len(ratios)-r0TailRatios):]))
}

// BaselineEnd is the exclusive end of the baseline window: the leading 30% of
// the series, never fewer than MinPoints.
func BaselineEnd(n int) int {
	return min(n, max(MinPoints, int(math.Floor(baselineFraction*float64(n)))))
}

// ComputeBaseline returns the mean and population standard deviation of the
// baseline window.
func ComputeBaseline(series []float64) (mean, std float64) {
	window := series[:BaselineEnd(len(series))]
	return stats.Mean(window), stats.StdDev(window)
}

// ComputeSNR expresses current in baseline standard deviations. Series whose
// moments overflow float64 report 0.
func ComputeSNR(current, baselineMean, baselineStd float64) float64 {
	if !(baselineStd > 0) {
		return 0
	}
	return finite((current - baselineMean) / baselineStd)
}

// ComputeVelocity measures the short-term rate of change of series in mode.
func ComputeVelocity(series []float64, mode Mode) float64 {
	if len(series) == 0 {
		return 0
	}
	if mode == ModeSimple {
		return finite(stats.SecantSlope(series, velocitySpan))
	}

	smoothed := stats.Smooth(series)
	if len(smoothed) < 2 {
		return 0
	}
	prev := smoothed[len(smoothed)-2]
	if prev <= 0 {
		return 0
	}
	return finite((smoothed[len(smoothed)-1] - prev) / prev)
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// ComputeMetrics derives SNR, R0 and velocity for series.
func ComputeMetrics(series []float64, window int, mode Mode) models.Metrics {
	if len(series) == 0 {
		return models.Metrics{}
	}
	mean, std := ComputeBaseline(series)
	return models.Metrics{
		SNR:      ComputeSNR(series[len(series)-1], mean, std),
		R0:       ComputeR0(series, window),
		Velocity: ComputeVelocity(series, mode),
	}
}
