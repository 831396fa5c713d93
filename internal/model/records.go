package model

import (
	"strings"
	"time"

	"github.com/franz/file-curator/internal/metrics"
)

// FileRecord is a file known to the store. The engine treats it as read-only.
type FileRecord struct {
	ID           int64
	Path         string
	Extension    string
	Type         metrics.Category
	SizeBytes    int64
	LastModified time.Time
	Metadata     map[string]string
}

// HasMetadata reports whether field is present and non-blank in the metadata blob
func (f *FileRecord) HasMetadata(field string) bool {
	v, ok := f.Metadata[field]
	return ok && strings.TrimSpace(v) != ""
}

// AgeDays returns the whole number of days since the file was last modified
func (f *FileRecord) AgeDays(now time.Time) int {
	if f.LastModified.IsZero() || now.Before(f.LastModified) {
		return 0
	}
	return int(now.Sub(f.LastModified) / (24 * time.Hour))
}

// Assessment is an immutable classification snapshot of a file.
// Re-assessment inserts a new row; rows are never updated.
type Assessment struct {
	ID                   int64
	FileID               int64
	QualityScore         Tier
	NormalizedScore      *float64 // nil when the file was unscored
	MonetizationEligible bool
	NeedsDeletion        bool
	DeletionTriggers     []DeletionTrigger
	AssessmentDate       time.Time
	Metadata             metrics.Metrics
}

// Scored reports whether the assessment was based on a numeric score
func (a *Assessment) Scored() bool {
	return a.NormalizedScore != nil
}

// ContentSuggestion is an externally computed organization hint for a file
type ContentSuggestion struct {
	ID         int64
	FileID     int64
	Category   string
	Priority   Priority
	Suggestion string
	Reason     string
}

// Recommendation is an actionable, prioritized suggestion tied to an assessment.
// Implemented is the only field changed after creation, and only false -> true.
type Recommendation struct {
	ID           int64
	FileID       int64
	AssessmentID int64
	Type         RecommendationType
	Text         string
	Priority     Priority
	CreatedAt    time.Time
	Implemented  bool
	Metadata     map[string]string
}

// Feedback is one append-only helpful/not-helpful vote on a recommendation
type Feedback struct {
	ID               int64
	RecommendationID int64
	Type             RecommendationType // denormalized from the recommendation
	Helpful          bool
	Text             string
	CreatedAt        time.Time
}
