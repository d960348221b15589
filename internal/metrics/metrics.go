package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels analyses that produced a verdict.
	OutcomeSuccess = "success"
	// OutcomeRejected labels analyses refused for bad or short input.
	OutcomeRejected = "rejected"

	// CacheHit, CacheMiss and CacheError label result cache lookups.
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"
)

var (
	analysesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trendpulse",
			Name:      "analyses_total",
			Help:      "Total number of single-series analyses, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	analysisDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "trendpulse",
			Name:      "analysis_seconds",
			Help:      "Analysis latency in seconds, including cache lookups.",
			Buckets:   []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.05, 0.1},
		},
	)

	phaseTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trendpulse",
			Name:      "phase_total",
			Help:      "Number of verdicts per growth phase.",
		},
		[]string{"phase"},
	)

	batchEntriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trendpulse",
			Name:      "batch_entries_total",
			Help:      "Batch entries seen, partitioned by whether they were analyzed or dropped.",
		},
		[]string{"state"},
	)

	cacheRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trendpulse",
			Name:      "cache_requests_total",
			Help:      "Result cache lookups, partitioned by result.",
		},
		[]string{"result"},
	)
)

// Register attaches trendpulse collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		analysesTotal,
		analysisDurationSeconds,
		phaseTotal,
		batchEntriesTotal,
		cacheRequestsTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveAnalysis records an analysis duration and outcome label.
func ObserveAnalysis(duration time.Duration, outcome string) {
	label := outcome
	if label != OutcomeRejected {
		label = OutcomeSuccess
	}
	analysesTotal.WithLabelValues(label).Inc()
	if duration < 0 {
		duration = 0
	}
	analysisDurationSeconds.Observe(duration.Seconds())
}

// ObservePhase counts a verdict for phase.
func ObservePhase(phase string) {
	phaseTotal.WithLabelValues(phase).Inc()
}

// ObserveBatch counts analyzed and dropped batch entries.
func ObserveBatch(analyzed, dropped int) {
	batchEntriesTotal.WithLabelValues("analyzed").Add(float64(analyzed))
	batchEntriesTotal.WithLabelValues("dropped").Add(float64(dropped))
}

// ObserveCache counts a result cache lookup.
func ObserveCache(result string) {
	cacheRequestsTotal.WithLabelValues(result).Inc()
}
