package engine

import (
	"log/slog"
	"math"
	"sort"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/trendpulse/trendpulse/internal/models"
)

// AnalyzerConfig fixes the behaviour of an Analyzer for its whole lifetime.
type AnalyzerConfig struct {
	Mode             Mode
	R0Window         int
	BatchConcurrency int
}

// Analyzer runs the series -> metrics -> classification -> recommendation
// pipeline. It holds no per-call state and is safe for concurrent use.
type Analyzer struct {
	logger      *slog.Logger
	mode        Mode
	thresholds  Thresholds
	r0Window    int
	concurrency int
	recommender *Recommender
}

// NewAnalyzer constructs an analyzer. A nil recommender serves the built-in
// table.
func NewAnalyzer(cfg AnalyzerConfig, recommender *Recommender, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeSmoothed
	}
	if cfg.R0Window <= 0 {
		cfg.R0Window = DefaultR0Window
	}
	if cfg.BatchConcurrency <= 0 {
		cfg.BatchConcurrency = 8
	}
	if recommender == nil {
		recommender = NewRecommender(nil, logger)
	}
	return &Analyzer{
		logger:      logger,
		mode:        cfg.Mode,
		thresholds:  cfg.Mode.Thresholds(),
		r0Window:    cfg.R0Window,
		concurrency: cfg.BatchConcurrency,
		recommender: recommender,
	}
}

// Mode reports the velocity mode the analyzer was built with.
func (a *Analyzer) Mode() Mode {
	return a.mode
}

// TableGeneration identifies the recommendation table currently served.
// Results computed under different generations may carry different
// recommendations.
func (a *Analyzer) TableGeneration() uint64 {
	return a.recommender.Generation()
}

// Analyze produces the verdict for one keyword series. It fails with an
// *InsufficientDataError when values holds fewer than MinPoints points.
func (a *Analyzer) Analyze(values []float64, keyword, brand, category string) (models.AnalysisResult, error) {
	if len(values) < MinPoints {
		return models.AnalysisResult{}, &InsufficientDataError{Points: len(values), Required: MinPoints}
	}

	m := ComputeMetrics(values, a.r0Window, a.mode)
	phase, priority := Classify(m, a.thresholds)
	peak := EstimatePeak(m)
	urgency := DetermineUrgency(phase, peak.PeakDays)
	confidence := Confidence(len(values), m)

	a.logger.Debug("trend analyzed",
		slog.String("keyword", keyword),
		slog.String("phase", string(phase)),
		slog.Float64("snr", m.SNR),
		slog.Float64("r0", m.R0),
		slog.Float64("velocity", m.Velocity),
	)

	return models.AnalysisResult{
		Keyword:         keyword,
		Phase:           phase,
		Priority:        priority,
		R0:              round(m.R0, 3),
		SNR:             round(m.SNR, 2),
		Velocity:        round(m.Velocity, 3),
		PeakDays:        peak.PeakDays,
		FirstMoverDays:  peak.FirstMoverDays,
		Confidence:      round(confidence, 2),
		Urgency:         urgency,
		Recommendations: a.recommender.Recommend(urgency),
		Brand:           brand,
		Category:        category,
	}, nil
}

// AnalyzeBatch analyses every entry with at least MinPoints values and returns
// the results ordered by priority, keeping input order among equals. Short
// entries are dropped without being reported.
func (a *Analyzer) AnalyzeBatch(entries []models.TrendInput) models.BatchResult {
	slots := make([]*models.AnalysisResult, len(entries))

	var g errgroup.Group
	g.SetLimit(a.concurrency)
	for i, entry := range entries {
		if len(entry.Values) < MinPoints {
			continue
		}
		g.Go(func() error {
			res, err := a.Analyze(entry.Values, entry.Keyword, entry.Brand, entry.Category)
			if err != nil {
				return err
			}
			slots[i] = &res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		a.logger.Warn("batch entry skipped", slog.Any("error", err))
	}

	results := make([]models.AnalysisResult, 0, len(entries))
	for _, res := range slots {
		if res != nil {
			results = append(results, *res)
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Priority.Rank() < results[j].Priority.Rank()
	})

	if dropped := len(entries) - len(results); dropped > 0 {
		a.logger.Debug("batch entries dropped", slog.Int("dropped", dropped), slog.Int("analyzed", len(results)))
	}
	return models.BatchResult{Results: results, Count: len(results)}
}

func round(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	// Exact binary expansion, so 2.675 (stored just below) rounds down.
	return decimal.NewFromFloatWithExponent(v, -1074).RoundBank(places).InexactFloat64()
}
