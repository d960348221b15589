package utils

import (
	"slices"
	"sync"
	"time"
)

// LatencyTracker keeps the most recent duration samples in a ring buffer and
// computes percentiles over them.
type LatencyTracker struct {
	mu      sync.RWMutex
	samples []time.Duration
	next    int
	full    bool
}

// NewLatencyTracker creates a tracker storing up to maxSize samples.
func NewLatencyTracker(maxSize int) *LatencyTracker {
	if maxSize <= 0 {
		maxSize = 512
	}
	return &LatencyTracker{samples: make([]time.Duration, maxSize)}
}

// Observe records a new duration, overwriting the oldest once full.
func (l *LatencyTracker) Observe(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.samples[l.next] = d
	l.next++
	if l.next == len(l.samples) {
		l.next = 0
		l.full = true
	}
}

// Percentile returns the percentile (0-100) duration. Returns zero if no samples.
func (l *LatencyTracker) Percentile(p float64) time.Duration {
	l.mu.RLock()
	sorted := slices.Clone(l.window())
	l.mu.RUnlock()

	if len(sorted) == 0 {
		return 0
	}
	slices.Sort(sorted)

	switch {
	case p <= 0:
		return sorted[0]
	case p >= 100:
		return sorted[len(sorted)-1]
	}
	index := int((p / 100.0) * float64(len(sorted)-1))
	return sorted[min(max(index, 0), len(sorted)-1)]
}

// Count returns number of samples recorded.
func (l *LatencyTracker) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.window())
}

func (l *LatencyTracker) window() []time.Duration {
	if l.full {
		return l.samples
	}
	return l.samples[:l.next]
}
