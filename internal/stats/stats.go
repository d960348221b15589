// Package stats holds the small numeric helpers the trend engine is built on.
// Every function is pure and returns 0 (or an empty slice) on degenerate input
// instead of NaN or Inf.
package stats

import (
	"math"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/trend"
)

// SmoothWindow is the number of trailing points fitted by Smooth.
const SmoothWindow = 5

// Mean returns the arithmetic mean of seq, or 0 when seq is empty.
func Mean(seq []float64) float64 {
	if len(seq) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range seq {
		sum += v
	}
	return sum / float64(len(seq))
}

// StdDev returns the population standard deviation of seq, or 0 when seq has
// fewer than two points.
func StdDev(seq []float64) float64 {
	if len(seq) < 2 {
		return 0
	}
	mean := Mean(seq)
	variance := 0.0
	for _, v := range seq {
		variance += math.Pow(v-mean, 2)
	}
	variance /= float64(len(seq))
	return math.Sqrt(variance)
}

// WindowedRatios returns seq[i] divided by the mean of the window points
// preceding it, for every i in [window, len(seq)). Indices whose prior mean
// is not positive are skipped.
//
// Prior means come from a running-sum moving average. A running sum carries
// the rounding error of every value that has passed through it, so a window
// whose sum is small next to that error bound is re-summed from its slice.
func WindowedRatios(seq []float64, window int) []float64 {
	if window <= 0 || len(seq) <= window {
		return nil
	}

	sma := trend.NewSmaWithPeriod[float64](window)
	priorMeans := helper.ChanToSlice(sma.Compute(helper.SliceToChan(seq[:len(seq)-1])))

	// Each add or subtract in the running sum is off by at most eps times a
	// partial sum no larger than window*maxAbs.
	unit := 4 * float64(len(seq)) * float64(window) * epsilon

	maxAbs := 0.0
	for _, v := range seq[:window] {
		maxAbs = math.Max(maxAbs, math.Abs(v))
	}

	ratios := make([]float64, 0, len(priorMeans))
	for k, prior := range priorMeans {
		i := k + window
		if i >= len(seq) {
			break
		}
		if errBound := unit * maxAbs; errBound >= trustedFraction*math.Abs(prior)*float64(window) {
			prior = Mean(seq[k:i])
		}
		if prior > 0 {
			ratios = append(ratios, seq[i]/prior)
		}
		maxAbs = math.Max(maxAbs, math.Abs(seq[i]))
	}
	return ratios
}

const (
	epsilon = 0x1p-52
	// trustedFraction is the largest error, relative to the window sum, that
	// the running average may carry before the window is re-summed.
	trustedFraction = 1e-9
)

// Smooth fits an order-2 polynomial by least squares to the last
// min(SmoothWindow, len(seq)) points and returns the fitted value at each of
// them. This matches the tail of a Savitzky-Golay filter in interpolation
// mode. Windows shorter than three points are returned unchanged.
func Smooth(seq []float64) []float64 {
	w := min(SmoothWindow, len(seq))
	tail := seq[len(seq)-w:]
	out := make([]float64, w)
	if w < 3 {
		copy(out, tail)
		return out
	}

	// Centre the abscissa so odd moments vanish and the normal equations
	// split into a1 alone and a 2x2 system for a0, a2.
	center := float64(w-1) / 2
	var s0, s2, s4, sy, sxy, sx2y float64
	for i, y := range tail {
		x := float64(i) - center
		x2 := x * x
		s0++
		s2 += x2
		s4 += x2 * x2
		sy += y
		sxy += x * y
		sx2y += x2 * y
	}

	det := s0*s4 - s2*s2
	a1 := sxy / s2
	a0 := (s4*sy - s2*sx2y) / det
	a2 := (s0*sx2y - s2*sy) / det

	for i := range tail {
		x := float64(i) - center
		out[i] = a0 + a1*x + a2*x*x
	}
	return out
}

// SecantSlope is the relative change between the first and last of the
// trailing span raw points, averaged over span. The first point is floored at
// 1 so near-zero starts do not explode.
func SecantSlope(seq []float64, span int) float64 {
	if span <= 0 || len(seq) == 0 {
		return 0
	}
	r := seq[len(seq)-min(span, len(seq)):]
	return (r[len(r)-1] - r[0]) / math.Max(r[0], 1) / float64(span)
}
