package models

// Phase is the qualitative growth stage of a trend.
type Phase string

const (
	PhaseBaseline     Phase = "baseline"
	PhaseEmerging     Phase = "emerging"
	PhaseEarlySignal  Phase = "early_signal"
	PhaseAcceleration Phase = "acceleration"
	PhaseBreakout     Phase = "breakout"
)

// Priority ranks how much attention a trend deserves.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Rank orders priorities for batch sorting. Unknown priorities sort last.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 3
	default:
		return 4
	}
}

// Urgency is the recommended response speed.
type Urgency string

const (
	UrgencyImmediate Urgency = "immediate"
	UrgencySameDay   Urgency = "same_day"
	UrgencyFastTrack Urgency = "fast_track"
	UrgencyStandard  Urgency = "standard"
	UrgencyPlanned   Urgency = "planned"
)

// Urgencies lists every urgency in decreasing order of speed.
var Urgencies = []Urgency{UrgencyImmediate, UrgencySameDay, UrgencyFastTrack, UrgencyStandard, UrgencyPlanned}

// NoPeakDays is the sentinel peak estimate meaning no peak is predicted.
const NoPeakDays = 999

// Metrics holds the raw spread indicators of a series.
type Metrics struct {
	SNR      float64
	R0       float64
	Velocity float64
}

// PeakEstimate predicts when a trend tops out.
type PeakEstimate struct {
	PeakDays       int
	FirstMoverDays int
}

// Recommendation is a content action with its own deadline and priority.
type Recommendation struct {
	Type     string   `json:"type" yaml:"type"`
	Deadline string   `json:"deadline" yaml:"deadline"`
	Priority Priority `json:"priority" yaml:"priority"`
}

// TrendInput is a keyword series submitted for analysis.
type TrendInput struct {
	Keyword  string    `json:"keyword"`
	Values   []float64 `json:"values"`
	Brand    string    `json:"brand,omitempty"`
	Category string    `json:"category,omitempty"`
}

// AnalysisResult is the rendered verdict for one series.
type AnalysisResult struct {
	Keyword         string           `json:"keyword"`
	Phase           Phase            `json:"phase"`
	Priority        Priority         `json:"priority"`
	R0              float64          `json:"r0"`
	SNR             float64          `json:"snr"`
	Velocity        float64          `json:"velocity"`
	PeakDays        int              `json:"peak_days"`
	FirstMoverDays  int              `json:"first_mover_days"`
	Confidence      float64          `json:"confidence"`
	Urgency         Urgency          `json:"urgency"`
	Recommendations []Recommendation `json:"recommendations"`
	Brand           string           `json:"brand,omitempty"`
	Category        string           `json:"category,omitempty"`
}

// BatchResult wraps the sorted output of a batch analysis.
type BatchResult struct {
	Results []AnalysisResult `json:"results"`
	Count   int              `json:"count"`
}

// DemoResult pairs a generated series with its analysis.
type DemoResult struct {
	Pattern  string         `json:"pattern"`
	Seed     uint64         `json:"seed"`
	Series   []float64      `json:"series"`
	Analysis AnalysisResult `json:"analysis"`
}
