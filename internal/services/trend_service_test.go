package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/trendpulse/trendpulse/internal/cache"
	"github.com/trendpulse/trendpulse/internal/engine"
	"github.com/trendpulse/trendpulse/internal/models"
	"github.com/trendpulse/trendpulse/internal/utils"
)

type countingProvider struct {
	*cache.MemoryProvider
	gets, sets int
}

func (c *countingProvider) Get(ctx context.Context, key string) ([]byte, error) {
	c.gets++
	return c.MemoryProvider.Get(ctx, key)
}

func (c *countingProvider) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.sets++
	return c.MemoryProvider.Set(ctx, key, value, ttl)
}

type failingProvider struct{}

func (failingProvider) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("connection refused")
}

func (failingProvider) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("connection refused")
}

func (failingProvider) Close() error { return nil }

func TestAnalyzeRejectsBadInput(t *testing.T) {
	service := NewTrendService(nil, nil, nil, CacheOptions{})

	cases := map[string]models.TrendInput{
		"missing keyword": {Values: []float64{1, 2, 3, 4, 5}},
		"blank keyword":   {Keyword: "  ", Values: []float64{1, 2, 3, 4, 5}},
		"negative value":  {Keyword: "k", Values: []float64{1, 2, -3, 4, 5}},
		"too short":       {Keyword: "k", Values: []float64{1, 2, 3, 4}},
	}
	for name, in := range cases {
		_, err := service.Analyze(context.Background(), in)
		if !utils.IsInvalidInput(err) {
			t.Fatalf("%s: expected invalid input error, got %v", name, err)
		}
	}

	_, err := service.Analyze(context.Background(), models.TrendInput{Keyword: "k", Values: []float64{1, 2}})
	if !errors.Is(err, engine.ErrInsufficientData) {
		t.Fatalf("expected insufficient data error, got %v", err)
	}
	if msg := utils.PublicMessage(err, ""); msg != "at least 5 data points required, got 2" {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestAnalyzeUsesCache(t *testing.T) {
	provider := &countingProvider{MemoryProvider: cache.NewMemoryProvider()}
	service := NewTrendService(nil, nil, provider, CacheOptions{TTL: time.Minute, KeyPrefix: "test:"})
	in := models.TrendInput{Keyword: "oat milk", Values: []float64{1, 2, 3, 4, 5}, Brand: "acme"}

	first, err := service.Analyze(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := service.Analyze(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if provider.gets != 2 || provider.sets != 1 {
		t.Fatalf("expected 2 gets and 1 set, got %d and %d", provider.gets, provider.sets)
	}
	if first.Phase != second.Phase || first.SNR != second.SNR || second.Brand != "acme" {
		t.Fatalf("cached result differs: %+v vs %+v", first, second)
	}
	if first.Phase != models.PhaseEmerging {
		t.Fatalf("expected emerging, got %s", first.Phase)
	}

	other := in
	other.Category = "drinks"
	if _, err := service.Analyze(context.Background(), other); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider.sets != 2 {
		t.Fatalf("expected distinct key for a different category, sets=%d", provider.sets)
	}
}

func TestAnalyzeCacheFollowsRecommendationTable(t *testing.T) {
	recommender := engine.NewRecommender(nil, nil)
	analyzer := engine.NewAnalyzer(engine.AnalyzerConfig{}, recommender, nil)
	service := NewTrendService(nil, analyzer, cache.NewMemoryProvider(), CacheOptions{TTL: time.Minute})
	in := models.TrendInput{Keyword: "k", Values: []float64{10, 10, 10, 10, 10, 10}}

	res, err := service.Analyze(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Urgency != models.UrgencyPlanned || res.Recommendations[0].Type != "Long-form Content" {
		t.Fatalf("unexpected default recommendation: %s %+v", res.Urgency, res.Recommendations)
	}

	recommender.Replace(engine.RecommendationTable{
		models.UrgencyPlanned: {{Type: "Evergreen Guide", Deadline: "1 month", Priority: models.PriorityLow}},
	})

	res, err = service.Analyze(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Recommendations) != 1 || res.Recommendations[0].Type != "Evergreen Guide" {
		t.Fatalf("expected the replaced table, got %+v", res.Recommendations)
	}
}

func TestAnalyzeSurvivesCacheFailure(t *testing.T) {
	service := NewTrendService(nil, nil, failingProvider{}, CacheOptions{TTL: time.Minute})
	res, err := service.Analyze(context.Background(), models.TrendInput{Keyword: "k", Values: []float64{10, 10, 10, 10, 10, 10}})
	if err != nil {
		t.Fatalf("cache failure must not fail the call: %v", err)
	}
	if res.Phase != models.PhaseBaseline {
		t.Fatalf("expected baseline, got %s", res.Phase)
	}
}

func TestAnalyzeBatchDropsInvalidEntries(t *testing.T) {
	service := NewTrendService(nil, nil, nil, CacheOptions{})
	entries := []models.TrendInput{
		{Keyword: "flat", Values: []float64{10, 10, 10, 10, 10, 10}},
		{Keyword: "", Values: []float64{1, 2, 3, 4, 5}},
		{Keyword: "negative", Values: []float64{1, -2, 3, 4, 5}},
		{Keyword: "short", Values: []float64{1, 2}},
		{Keyword: "rising", Values: []float64{1, 2, 3, 4, 5}},
		{Keyword: "signal", Values: earlySignalSeries()},
	}

	res, err := service.AnalyzeBatch(context.Background(), entries)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Count != 3 || len(res.Results) != 3 {
		t.Fatalf("expected 3 results, got %+v", res)
	}
	want := []string{"signal", "flat", "rising"}
	for i, keyword := range want {
		if res.Results[i].Keyword != keyword {
			t.Fatalf("position %d: expected %s, got %s", i, keyword, res.Results[i].Keyword)
		}
	}
	if res.Results[0].Priority != models.PriorityMedium {
		t.Fatalf("expected medium priority first, got %s", res.Results[0].Priority)
	}
}

// earlySignalSeries is a quiet 9/11 baseline followed by a steady climb.
func earlySignalSeries() []float64 {
	series := make([]float64, 0, 25)
	for i := 0; i < 20; i++ {
		series = append(series, float64(9+2*(i%2)))
	}
	return append(series, 10, 12, 14, 16, 40)
}

func TestAnalyzeBatchEmpty(t *testing.T) {
	service := NewTrendService(nil, nil, nil, CacheOptions{})
	res, err := service.AnalyzeBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Count != 0 || res.Results == nil {
		t.Fatalf("expected empty non-nil results, got %+v", res)
	}
}

func TestAnalyzeBatchCancelled(t *testing.T) {
	service := NewTrendService(nil, nil, nil, CacheOptions{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := service.AnalyzeBatch(ctx, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestDemo(t *testing.T) {
	service := NewTrendService(nil, nil, nil, CacheOptions{})

	res, err := service.Demo(context.Background(), "", "viral", 30, 42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Series) != 30 || res.Pattern != "viral" || res.Analysis.Keyword != "demo-viral" {
		t.Fatalf("unexpected demo result: pattern=%s len=%d keyword=%s", res.Pattern, len(res.Series), res.Analysis.Keyword)
	}

	again, err := service.Demo(context.Background(), "", "viral", 30, 42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again.Analysis.SNR != res.Analysis.SNR {
		t.Fatalf("same seed must reproduce the analysis")
	}

	if _, err := service.Demo(context.Background(), "", "sideways", 30, 1); !utils.IsInvalidInput(err) {
		t.Fatalf("expected invalid input for unknown pattern, got %v", err)
	}
}
