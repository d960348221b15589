package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/trendpulse/trendpulse/internal/cache"
	"github.com/trendpulse/trendpulse/internal/demo"
	"github.com/trendpulse/trendpulse/internal/engine"
	"github.com/trendpulse/trendpulse/internal/metrics"
	"github.com/trendpulse/trendpulse/internal/models"
	"github.com/trendpulse/trendpulse/internal/utils"
)

// CacheOptions controls memoisation of single analyses.
type CacheOptions struct {
	TTL       time.Duration
	KeyPrefix string
}

// TrendService is the facade shared by the REST and gRPC front ends.
type TrendService struct {
	logger    *slog.Logger
	analyzer  *engine.Analyzer
	cache     cache.Provider
	cacheOpts CacheOptions
	latencies *utils.LatencyTracker
}

// NewTrendService constructs the service. A nil provider disables caching.
func NewTrendService(logger *slog.Logger, analyzer *engine.Analyzer, provider cache.Provider, opts CacheOptions) *TrendService {
	if logger == nil {
		logger = slog.Default()
	}
	if analyzer == nil {
		analyzer = engine.NewAnalyzer(engine.AnalyzerConfig{}, nil, logger)
	}
	if provider == nil {
		provider = cache.NoopProvider{}
	}
	return &TrendService{
		logger:    logger,
		analyzer:  analyzer,
		cache:     provider,
		cacheOpts: opts,
		latencies: utils.NewLatencyTracker(1024),
	}
}

// Analyze validates in and returns its verdict, serving repeated series from
// the cache when one is configured.
func (s *TrendService) Analyze(ctx context.Context, in models.TrendInput) (models.AnalysisResult, error) {
	start := time.Now()
	if err := validateInput(in); err != nil {
		metrics.ObserveAnalysis(time.Since(start), metrics.OutcomeRejected)
		return models.AnalysisResult{}, err
	}

	key := s.cacheKey(in)
	if cached, ok := s.lookup(ctx, key); ok {
		s.observe(time.Since(start), cached.Phase)
		return cached, nil
	}

	result, err := s.analyzer.Analyze(in.Values, in.Keyword, in.Brand, in.Category)
	if err != nil {
		metrics.ObserveAnalysis(time.Since(start), metrics.OutcomeRejected)
		if errors.Is(err, engine.ErrInsufficientData) {
			return models.AnalysisResult{}, utils.InvalidInput("analyze", err.Error(), err)
		}
		return models.AnalysisResult{}, utils.NewAppError("analyze", "analysis failed", err)
	}

	s.store(ctx, key, result)
	s.observe(time.Since(start), result.Phase)
	return result, nil
}

// AnalyzeBatch analyses every acceptable entry and returns them ordered by
// priority. Entries without a keyword, with negative values or with too few
// points are dropped.
func (s *TrendService) AnalyzeBatch(ctx context.Context, entries []models.TrendInput) (models.BatchResult, error) {
	if err := ctx.Err(); err != nil {
		return models.BatchResult{}, err
	}

	accepted := make([]models.TrendInput, 0, len(entries))
	for _, entry := range entries {
		if validateInput(entry) != nil {
			continue
		}
		accepted = append(accepted, entry)
	}

	result := s.analyzer.AnalyzeBatch(accepted)
	for _, r := range result.Results {
		metrics.ObservePhase(string(r.Phase))
	}
	metrics.ObserveBatch(result.Count, len(entries)-result.Count)
	s.logger.Debug("batch analyzed", slog.Int("entries", len(entries)), slog.Int("analyzed", result.Count))
	return result, nil
}

// Demo generates a synthetic series for pattern and analyses it under keyword.
func (s *TrendService) Demo(ctx context.Context, keyword, pattern string, days int, seed uint64) (models.DemoResult, error) {
	p, err := demo.ParsePattern(pattern)
	if err != nil {
		return models.DemoResult{}, utils.InvalidInput("demo", err.Error(), err)
	}
	if days == 0 {
		days = demo.DefaultDays
	}
	if keyword == "" {
		keyword = "demo-" + string(p)
	}

	series, err := demo.Generate(p, days, seed)
	if err != nil {
		return models.DemoResult{}, utils.InvalidInput("demo", err.Error(), err)
	}
	analysis, err := s.Analyze(ctx, models.TrendInput{Keyword: keyword, Values: series})
	if err != nil {
		return models.DemoResult{}, err
	}
	return models.DemoResult{Pattern: string(p), Seed: seed, Series: series, Analysis: analysis}, nil
}

// Mode reports the analyzer's velocity mode.
func (s *TrendService) Mode() engine.Mode {
	return s.analyzer.Mode()
}

func (s *TrendService) observe(d time.Duration, phase models.Phase) {
	metrics.ObserveAnalysis(d, metrics.OutcomeSuccess)
	metrics.ObservePhase(string(phase))
	s.latencies.Observe(d)
	if count := s.latencies.Count(); count >= 20 && count%20 == 0 {
		p95 := s.latencies.Percentile(95)
		s.logger.Info("analysis latency", slog.Duration("p95", p95), slog.Int("samples", count))
	}
}

func (s *TrendService) lookup(ctx context.Context, key string) (models.AnalysisResult, bool) {
	data, err := s.cache.Get(ctx, key)
	switch {
	case errors.Is(err, cache.ErrCacheMiss):
		metrics.ObserveCache(metrics.CacheMiss)
		return models.AnalysisResult{}, false
	case err != nil:
		metrics.ObserveCache(metrics.CacheError)
		s.logger.Warn("cache lookup failed", slog.Any("error", err))
		return models.AnalysisResult{}, false
	}

	var result models.AnalysisResult
	if err := json.Unmarshal(data, &result); err != nil {
		metrics.ObserveCache(metrics.CacheError)
		s.logger.Warn("cached analysis unreadable", slog.Any("error", err))
		return models.AnalysisResult{}, false
	}
	metrics.ObserveCache(metrics.CacheHit)
	return result, true
}

func (s *TrendService) store(ctx context.Context, key string, result models.AnalysisResult) {
	data, err := json.Marshal(result)
	if err != nil {
		s.logger.Warn("encode analysis for cache", slog.Any("error", err))
		return
	}
	if err := s.cache.Set(ctx, key, data, s.cacheOpts.TTL); err != nil {
		s.logger.Warn("cache store failed", slog.Any("error", err))
	}
}

func (s *TrendService) cacheKey(in models.TrendInput) string {
	h := sha256.New()
	for _, part := range []string{string(s.analyzer.Mode()), in.Keyword, in.Brand, in.Category} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	h.Write(strconv.AppendUint(nil, s.analyzer.TableGeneration(), 10))
	h.Write([]byte{0})
	for _, v := range in.Values {
		h.Write(strconv.AppendFloat(nil, v, 'g', -1, 64))
		h.Write([]byte{','})
	}
	return s.cacheOpts.KeyPrefix + hex.EncodeToString(h.Sum(nil))
}

func validateInput(in models.TrendInput) error {
	if strings.TrimSpace(in.Keyword) == "" {
		return utils.InvalidInput("analyze", "keyword is required", nil)
	}
	for i, v := range in.Values {
		if v < 0 {
			return utils.InvalidInput("analyze", fmt.Sprintf("values must be non-negative, got %v at index %d", v, i), nil)
		}
	}
	if len(in.Values) < engine.MinPoints {
		err := &engine.InsufficientDataError{Points: len(in.Values), Required: engine.MinPoints}
		return utils.InvalidInput("analyze", err.Error(), err)
	}
	return nil
}
