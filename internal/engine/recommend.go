package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"gopkg.in/yaml.v3"

	"github.com/trendpulse/trendpulse/internal/models"
)

// RecommendationTable maps an urgency to its ordered content actions.
type RecommendationTable map[models.Urgency][]models.Recommendation

// RecommendationFile is the YAML root structure.
type RecommendationFile struct {
	Recommendations map[string][]models.Recommendation `yaml:"recommendations"`
}

// DefaultRecommendations returns the built-in table.
func DefaultRecommendations() RecommendationTable {
	return RecommendationTable{
		models.UrgencyImmediate: {
			{Type: "Real-time Social Post", Deadline: "< 2 hours", Priority: models.PriorityCritical},
			{Type: "Newsjacking Thread", Deadline: "< 4 hours", Priority: models.PriorityHigh},
		},
		models.UrgencySameDay: {
			{Type: "Social Media Series", Deadline: "24 hours", Priority: models.PriorityHigh},
			{Type: "Blog Post Draft", Deadline: "48 hours", Priority: models.PriorityMedium},
		},
		models.UrgencyFastTrack: {
			{Type: "Thought Leadership", Deadline: "1 week", Priority: models.PriorityMedium},
			{Type: "Video Explainer", Deadline: "1-2 weeks", Priority: models.PriorityMedium},
		},
		models.UrgencyStandard: {
			{Type: "Pillar Content", Deadline: "2-3 weeks", Priority: models.PriorityMedium},
			{Type: "Video Series", Deadline: "3-4 weeks", Priority: models.PriorityLow},
		},
		models.UrgencyPlanned: {
			{Type: "Long-form Content", Deadline: "1-2 months", Priority: models.PriorityLow},
			{Type: "Campaign Strategy", Deadline: "2-3 months", Priority: models.PriorityLow},
		},
	}
}

// LoadRecommendations reads a table from path. A missing file returns a nil
// table and no error so callers can keep the defaults.
func LoadRecommendations(path string) (RecommendationTable, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var file RecommendationFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse recommendations: %w", err)
	}

	table := make(RecommendationTable, len(file.Recommendations))
	for key, recs := range file.Recommendations {
		urgency := models.Urgency(key)
		if !knownUrgency(urgency) {
			return nil, fmt.Errorf("unknown urgency %q", key)
		}
		for _, rec := range recs {
			if rec.Type == "" {
				return nil, fmt.Errorf("recommendation under %q has no type", key)
			}
			if rec.Priority.Rank() > models.PriorityLow.Rank() {
				return nil, fmt.Errorf("recommendation %q has unknown priority %q", rec.Type, rec.Priority)
			}
		}
		table[urgency] = append([]models.Recommendation(nil), recs...)
	}
	return table, nil
}

// Recommender serves an immutable recommendation table. Replace swaps the
// whole table at once, so concurrent readers never observe a partial update.
type Recommender struct {
	table      atomic.Pointer[RecommendationTable]
	generation atomic.Uint64
	logger     *slog.Logger
}

// NewRecommender returns a recommender seeded with table, or the built-in
// table when table is nil.
func NewRecommender(table RecommendationTable, logger *slog.Logger) *Recommender {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Recommender{logger: logger}
	if table == nil {
		table = DefaultRecommendations()
	}
	r.table.Store(&table)
	return r
}

// Replace installs a new table. A nil table restores the built-in one.
func (r *Recommender) Replace(table RecommendationTable) {
	if table == nil {
		table = DefaultRecommendations()
	}
	r.table.Store(&table)
	gen := r.generation.Add(1)
	r.logger.Info("recommendation table replaced", slog.Int("urgencies", len(table)), slog.Uint64("generation", gen))
}

// Generation counts the Replace calls so far. It moves only after the new
// table is visible to Recommend.
func (r *Recommender) Generation() uint64 {
	if r == nil {
		return 0
	}
	return r.generation.Load()
}

// Recommend returns the actions for urgency. Unknown urgencies yield an empty
// slice.
func (r *Recommender) Recommend(urgency models.Urgency) []models.Recommendation {
	if r == nil {
		return []models.Recommendation{}
	}
	table := *r.table.Load()
	recs, ok := table[urgency]
	if !ok {
		return []models.Recommendation{}
	}
	return append(make([]models.Recommendation, 0, len(recs)), recs...)
}

func knownUrgency(u models.Urgency) bool {
	for _, known := range models.Urgencies {
		if u == known {
			return true
		}
	}
	return false
}
