package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/franz/file-curator/internal/model"
	"github.com/google/uuid"
)

// EventType represents the type of event
type EventType string

const (
	EventScan      EventType = "scan"
	EventImport    EventType = "import"
	EventAssess    EventType = "assess"
	EventRecommend EventType = "recommend"
	EventFeedback  EventType = "feedback"
	EventImplement EventType = "implement"
	EventReport    EventType = "report"
	EventError     EventType = "error"
)

// EventLevel represents the severity level
type EventLevel string

const (
	LevelDebug   EventLevel = "debug"
	LevelInfo    EventLevel = "info"
	LevelWarning EventLevel = "warning"
	LevelError   EventLevel = "error"
)

var levelPriority = map[EventLevel]int{
	LevelDebug:   0,
	LevelInfo:    1,
	LevelWarning: 2,
	LevelError:   3,
}

// Event is one line of the audit log
type Event struct {
	Timestamp        time.Time         `json:"ts"`
	RunID            string            `json:"run_id"`
	Level            EventLevel        `json:"level"`
	Event            EventType         `json:"event"`
	FileID           int64             `json:"file_id,omitempty"`
	Path             string            `json:"path,omitempty"`
	AssessmentID     int64             `json:"assessment_id,omitempty"`
	RecommendationID int64             `json:"recommendation_id,omitempty"`
	Tier             string            `json:"tier,omitempty"`
	Score            *float64          `json:"score,omitempty"`
	Stage            string            `json:"stage,omitempty"`
	Duration         int64             `json:"duration_ms,omitempty"`
	Error            string            `json:"error,omitempty"`
	Extra            map[string]string `json:"extra,omitempty"`
}

// EventLogger writes events to a JSONL file. A nil logger discards everything.
type EventLogger struct {
	file     *os.File
	encoder  *json.Encoder
	mu       sync.Mutex
	path     string
	runID    string
	minLevel EventLevel
}

// NewEventLogger creates artifacts/events-<timestamp>.jsonl and tags every
// event with a fresh run id. minLevel drops less severe events.
func NewEventLogger(outputDir string, minLevel EventLevel) (*EventLogger, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	runID := uuid.NewString()
	filename := fmt.Sprintf("events-%s-%s.jsonl", time.Now().Format("20060102-150405"), runID[:8])
	path := filepath.Join(outputDir, filename)

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create event log: %w", err)
	}

	return &EventLogger{
		file:     file,
		encoder:  json.NewEncoder(file),
		path:     path,
		runID:    runID,
		minLevel: minLevel,
	}, nil
}

// Log writes an event to the JSONL file
func (l *EventLogger) Log(event *Event) error {
	if l == nil || l.file == nil {
		return nil
	}

	if levelPriority[event.Level] < levelPriority[l.minLevel] {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	event.RunID = l.runID

	if err := l.encoder.Encode(event); err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	return nil
}

// LogScan logs a registered file
func (l *EventLogger) LogScan(f *model.FileRecord) error {
	return l.Log(&Event{
		Level:  LevelDebug,
		Event:  EventScan,
		FileID: f.ID,
		Path:   f.Path,
		Extra: map[string]string{
			"category":   string(f.Type),
			"size_bytes": fmt.Sprintf("%d", f.SizeBytes),
		},
	})
}

// LogImport logs imported metrics/suggestions for a file
func (l *EventLogger) LogImport(fileID int64, path, variant string, suggestions int) error {
	return l.Log(&Event{
		Level:  LevelInfo,
		Event:  EventImport,
		FileID: fileID,
		Path:   path,
		Extra: map[string]string{
			"metrics":     variant,
			"suggestions": fmt.Sprintf("%d", suggestions),
		},
	})
}

// LogAssess logs a stored assessment
func (l *EventLogger) LogAssess(a *model.Assessment, duration time.Duration) error {
	extra := map[string]string{
		"monetization_eligible": fmt.Sprintf("%t", a.MonetizationEligible),
		"needs_deletion":        fmt.Sprintf("%t", a.NeedsDeletion),
	}
	if len(a.DeletionTriggers) > 0 {
		names := make([]string, len(a.DeletionTriggers))
		for i, t := range a.DeletionTriggers {
			names[i] = string(t)
		}
		extra["triggers"] = strings.Join(names, ",")
	}

	return l.Log(&Event{
		Level:        LevelInfo,
		Event:        EventAssess,
		FileID:       a.FileID,
		AssessmentID: a.ID,
		Tier:         a.QualityScore.String(),
		Score:        a.NormalizedScore,
		Duration:     duration.Milliseconds(),
		Extra:        extra,
	})
}

// LogRecommend logs one stored recommendation
func (l *EventLogger) LogRecommend(r *model.Recommendation) error {
	return l.Log(&Event{
		Level:            LevelInfo,
		Event:            EventRecommend,
		FileID:           r.FileID,
		AssessmentID:     r.AssessmentID,
		RecommendationID: r.ID,
		Extra: map[string]string{
			"type":     string(r.Type),
			"priority": r.Priority.String(),
		},
	})
}

// LogFeedback logs a feedback vote
func (l *EventLogger) LogFeedback(f *model.Feedback) error {
	return l.Log(&Event{
		Level:            LevelInfo,
		Event:            EventFeedback,
		RecommendationID: f.RecommendationID,
		Extra: map[string]string{
			"type":    string(f.Type),
			"helpful": fmt.Sprintf("%t", f.Helpful),
		},
	})
}

// LogImplement logs a recommendation being marked implemented
func (l *EventLogger) LogImplement(recommendationID int64) error {
	return l.Log(&Event{
		Level:            LevelInfo,
		Event:            EventImplement,
		RecommendationID: recommendationID,
	})
}

// LogReport logs a generated report
func (l *EventLogger) LogReport(path string) error {
	return l.Log(&Event{
		Level: LevelInfo,
		Event: EventReport,
		Path:  path,
	})
}

// LogError logs a failed pipeline stage
func (l *EventLogger) LogError(stage string, fileID int64, err error) error {
	return l.Log(&Event{
		Level:  LevelError,
		Event:  EventError,
		FileID: fileID,
		Stage:  stage,
		Error:  err.Error(),
	})
}

// Close closes the event log file
func (l *EventLogger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.file.Close()
}

// Path returns the path to the event log file
func (l *EventLogger) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// RunID returns the id shared by every event of this logger
func (l *EventLogger) RunID() string {
	if l == nil {
		return ""
	}
	return l.runID
}

// NullLogger returns a no-op event logger
func NullLogger() *EventLogger {
	return nil
}
