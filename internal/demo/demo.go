// Package demo generates synthetic keyword popularity series for the demo
// endpoint and for local experimentation.
package demo

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
)

// Pattern names a synthetic series shape.
type Pattern string

const (
	PatternFlat      Pattern = "flat"
	PatternEmerging  Pattern = "emerging"
	PatternViral     Pattern = "viral"
	PatternDeclining Pattern = "declining"
	PatternSeasonal  Pattern = "seasonal"
)

const (
	MinDays     = 5
	MaxDays     = 365
	DefaultDays = 90

	baseLevel  = 20.0
	noiseLevel = 0.08
)

// Patterns lists the supported shapes.
var Patterns = []Pattern{PatternFlat, PatternEmerging, PatternViral, PatternDeclining, PatternSeasonal}

// ParsePattern resolves a pattern name, defaulting to PatternEmerging.
func ParsePattern(name string) (Pattern, error) {
	if name == "" {
		return PatternEmerging, nil
	}
	p := Pattern(strings.ToLower(name))
	for _, known := range Patterns {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown pattern %q", name)
}

// Generate returns days non-negative daily values shaped like pattern. The
// same seed always yields the same series. days is clamped to
// [MinDays, MaxDays].
func Generate(pattern Pattern, days int, seed uint64) ([]float64, error) {
	shape, ok := shapes[pattern]
	if !ok {
		return nil, fmt.Errorf("unknown pattern %q", pattern)
	}
	days = min(MaxDays, max(MinDays, days))

	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	series := make([]float64, days)
	for i := range series {
		progress := float64(i) / float64(days-1)
		level := shape(progress, i)
		noise := 1 + rng.NormFloat64()*noiseLevel
		series[i] = math.Round(math.Max(0, level*noise)*100) / 100
	}
	return series, nil
}

// shapes maps a pattern to its noiseless level at a given progress in [0,1]
// and day index.
var shapes = map[Pattern]func(progress float64, day int) float64{
	PatternFlat: func(float64, int) float64 {
		return baseLevel
	},
	PatternEmerging: func(progress float64, _ int) float64 {
		// Flat for most of the window, then a gentle linear climb.
		if progress < 0.7 {
			return baseLevel
		}
		return baseLevel * (1 + (progress-0.7)*5)
	},
	PatternViral: func(progress float64, _ int) float64 {
		if progress < 0.75 {
			return baseLevel
		}
		return baseLevel * math.Exp((progress-0.75)*16)
	},
	PatternDeclining: func(progress float64, _ int) float64 {
		return baseLevel * 3 * math.Exp(-progress*2)
	},
	PatternSeasonal: func(_ float64, day int) float64 {
		return baseLevel * (1 + 0.4*math.Sin(2*math.Pi*float64(day)/7))
	},
}
