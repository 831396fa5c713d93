// Package feedback turns helpful/not-helpful votes into priority adjustments
// for later synthesis runs. It only ever reads aggregates; feedback rows and
// recommendations are never edited here.
package feedback

import (
	"fmt"

	"github.com/franz/file-curator/internal/model"
	"github.com/franz/file-curator/internal/util"
)

const (
	// DefaultWindowSize is how many recent events per type are considered
	DefaultWindowSize = 50

	// DefaultMinSamples is how many events a type needs before it can be dampened
	DefaultMinSamples = 10

	// DampenBelow is the helpful ratio under which a type loses one priority tier
	DampenBelow = 0.3
)

// Config holds feedback loop settings
type Config struct {
	WindowSize int
	MinSamples int
}

// Source supplies recent feedback when warming a loop at startup.
// Rows are expected newest first.
type Source interface {
	QueryRecentFeedback(t model.RecommendationType, limit int) ([]*model.Feedback, error)
}

// Loop applies the dampening policy on top of a Tracker
type Loop struct {
	tracker    Tracker
	windowSize int
	minSamples int
}

// New creates a loop backed by an in-memory Window
func New(cfg *Config) *Loop {
	if cfg == nil {
		cfg = &Config{}
	}
	size := cfg.WindowSize
	if size <= 0 {
		size = DefaultWindowSize
	}
	return NewWithTracker(NewWindow(size), size, cfg.MinSamples)
}

// NewWithTracker creates a loop over any Tracker implementation
func NewWithTracker(tracker Tracker, windowSize, minSamples int) *Loop {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	if minSamples <= 0 {
		minSamples = DefaultMinSamples
	}
	if minSamples > windowSize {
		minSamples = windowSize
	}
	return &Loop{tracker: tracker, windowSize: windowSize, minSamples: minSamples}
}

// RecordFeedback adds one vote to the aggregate of its recommendation type
func (l *Loop) RecordFeedback(t model.RecommendationType, helpful bool) {
	l.tracker.Record(t, helpful)
}

// Ratio exposes the tracker's view of a type
func (l *Loop) Ratio(t model.RecommendationType) (float64, int) {
	return l.tracker.Ratio(t)
}

// AdjustedPriority returns the priority delta for a type: -1 when enough
// recent feedback says the type is mostly unhelpful, otherwise 0.
// It never returns a positive delta.
func (l *Loop) AdjustedPriority(t model.RecommendationType) int {
	ratio, samples := l.tracker.Ratio(t)
	if samples < l.minSamples {
		return 0
	}
	if ratio < DampenBelow {
		return -1
	}
	return 0
}

// Apply shifts base by the type's delta, floored at low
func (l *Loop) Apply(t model.RecommendationType, base model.Priority) model.Priority {
	return base.Shift(l.AdjustedPriority(t))
}

// Warm replays the most recent feedback of every type from src
func (l *Loop) Warm(src Source) error {
	for _, t := range model.RecommendationTypes {
		rows, err := src.QueryRecentFeedback(t, l.windowSize)
		if err != nil {
			return fmt.Errorf("failed to load recent %s feedback: %w", t, err)
		}
		for i := len(rows) - 1; i >= 0; i-- {
			l.tracker.Record(t, rows[i].Helpful)
		}
		if len(rows) > 0 {
			ratio, samples := l.tracker.Ratio(t)
			util.DebugLog("Feedback for %s: %d samples, %.0f%% helpful", t, samples, ratio*100)
		}
	}
	return nil
}
