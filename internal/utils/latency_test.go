package utils

import (
	"testing"
	"time"
)

func TestLatencyTrackerPercentile(t *testing.T) {
	tracker := NewLatencyTracker(10)
	durations := []time.Duration{50 * time.Millisecond, 10 * time.Millisecond, 30 * time.Millisecond, 20 * time.Millisecond, 40 * time.Millisecond}
	for _, d := range durations {
		tracker.Observe(d)
	}

	if tracker.Count() != len(durations) {
		t.Fatalf("expected count %d, got %d", len(durations), tracker.Count())
	}
	if p95 := tracker.Percentile(95); p95 < 40*time.Millisecond {
		t.Fatalf("expected percentile >= 40ms, got %v", p95)
	}
	if p0 := tracker.Percentile(0); p0 != 10*time.Millisecond {
		t.Fatalf("expected minimum 10ms, got %v", p0)
	}
	if p100 := tracker.Percentile(100); p100 != 50*time.Millisecond {
		t.Fatalf("expected maximum 50ms, got %v", p100)
	}
}

func TestLatencyTrackerBoundedSize(t *testing.T) {
	tracker := NewLatencyTracker(3)
	for i := 0; i < 10; i++ {
		tracker.Observe(time.Duration(i) * time.Millisecond)
	}
	if tracker.Count() != 3 {
		t.Fatalf("expected tracker size 3, got %d", tracker.Count())
	}
	// Only 7, 8 and 9ms survive.
	if p0 := tracker.Percentile(0); p0 != 7*time.Millisecond {
		t.Fatalf("expected oldest samples evicted, min is %v", p0)
	}
}

func TestLatencyTrackerEmpty(t *testing.T) {
	if p := NewLatencyTracker(0).Percentile(50); p != 0 {
		t.Fatalf("expected zero percentile without samples, got %v", p)
	}
}
