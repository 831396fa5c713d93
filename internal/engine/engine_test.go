package engine

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/franz/file-curator/internal/feedback"
	"github.com/franz/file-curator/internal/metrics"
	"github.com/franz/file-curator/internal/model"
	"github.com/franz/file-curator/internal/rules"
	"github.com/franz/file-curator/internal/store"
)

const testRules = `
quality_thresholds:
  code: {good: 0.7, moderate: 0.4}
monetization_criteria:
  min_quality_score: Moderate
  required_metadata: [description]
  content_types: [code]
deletion_rules:
  age_threshold_days: 365
  size_threshold_bytes: 10485760
  quality_threshold: 0.2
`

var now = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

// memStore is an in-memory Store with injectable failures
type memStore struct {
	mu          sync.Mutex
	files       map[int64]*model.FileRecord
	metrics     map[int64]metrics.Metrics
	suggestions map[int64][]*model.ContentSuggestion
	assessments []*model.Assessment
	recs        []*model.Recommendation
	feedback    []*model.Feedback

	failAssessmentInsert bool
	failRecInsert        bool
}

func newMemStore() *memStore {
	return &memStore{
		files:       make(map[int64]*model.FileRecord),
		metrics:     make(map[int64]metrics.Metrics),
		suggestions: make(map[int64][]*model.ContentSuggestion),
	}
}

func (s *memStore) GetFile(id int64) (*model.FileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.files[id], nil
}

func (s *memStore) GetMetrics(fileID int64) (metrics.Metrics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return metrics.OrNone(s.metrics[fileID]), nil
}

func (s *memStore) GetSuggestions(fileID int64) ([]*model.ContentSuggestion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.suggestions[fileID], nil
}

func (s *memStore) InsertAssessment(a *model.Assessment) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAssessmentInsert {
		return 0, errors.New("disk full")
	}
	a.ID = int64(len(s.assessments) + 1)
	s.assessments = append(s.assessments, a)
	return a.ID, nil
}

func (s *memStore) LatestAssessment(fileID int64) (*model.Assessment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.assessments) - 1; i >= 0; i-- {
		if s.assessments[i].FileID == fileID {
			return s.assessments[i], nil
		}
	}
	return nil, nil
}

func (s *memStore) InsertRecommendations(recs []*model.Recommendation) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failRecInsert {
		return nil, errors.New("locked")
	}
	ids := make([]int64, len(recs))
	for i, r := range recs {
		r.ID = int64(len(s.recs) + 1)
		s.recs = append(s.recs, r)
		ids[i] = r.ID
	}
	return ids, nil
}

func (s *memStore) GetRecommendation(id int64) (*model.Recommendation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.recs {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, nil
}

func (s *memStore) InsertFeedback(f *model.Feedback) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f.ID = int64(len(s.feedback) + 1)
	s.feedback = append(s.feedback, f)
	return f.ID, nil
}

func (s *memStore) QueryRecentFeedback(t model.RecommendationType, limit int) ([]*model.Feedback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Feedback
	for i := len(s.feedback) - 1; i >= 0 && len(out) < limit; i-- {
		if s.feedback[i].Type == t {
			out = append(out, s.feedback[i])
		}
	}
	return out, nil
}

func loadRules(t *testing.T, src string) *rules.Rules {
	t.Helper()
	r, err := rules.Parse([]byte(src), "yaml")
	if err != nil {
		t.Fatalf("failed to parse rules: %v", err)
	}
	return r
}

func newTestEngine(t *testing.T, s Store) *Engine {
	t.Helper()
	return New(&Config{
		Store: s,
		Rules: rules.Static(loadRules(t, testRules)),
		Now:   func() time.Time { return now },
	})
}

func codeFile(id int64) *model.FileRecord {
	return &model.FileRecord{
		ID:           id,
		Path:         "/src/app.go",
		Extension:    ".go",
		Type:         metrics.CategoryCode,
		SizeBytes:    2048,
		LastModified: now.AddDate(0, 0, -10),
		Metadata:     map[string]string{"description": "x"},
	}
}

func TestAssessAndRecommendScenario(t *testing.T) {
	s := newMemStore()
	s.files[1] = codeFile(1)
	s.metrics[1] = metrics.Code{LintingScore: 0.9, Complexity: 0.8, Documentation: 0.85}
	e := newTestEngine(t, s)

	a, err := e.Assess(1)
	if err != nil {
		t.Fatalf("Assess failed: %v", err)
	}
	if a.QualityScore != model.TierGood || !a.MonetizationEligible || a.NeedsDeletion {
		t.Errorf("unexpected assessment %+v", a)
	}
	if a.ID == 0 || len(s.assessments) != 1 {
		t.Error("assessment was not persisted")
	}
	if !a.AssessmentDate.Equal(now) {
		t.Errorf("expected assessment date from engine clock, got %v", a.AssessmentDate)
	}

	recs, err := e.Recommend(1)
	if err != nil {
		t.Fatalf("Recommend failed: %v", err)
	}
	if len(recs) != 1 || recs[0].Type != model.RecMonetization || recs[0].Priority != model.PriorityMedium {
		t.Errorf("expected a single medium monetization recommendation, got %+v", recs)
	}
	if recs[0].AssessmentID != a.ID || recs[0].ID == 0 {
		t.Errorf("recommendation not linked or not persisted: %+v", recs[0])
	}
}

func TestAssessIsRepeatable(t *testing.T) {
	s := newMemStore()
	s.files[1] = codeFile(1)
	s.metrics[1] = metrics.Code{LintingScore: 0.3, Complexity: 0.5, Documentation: 0.4}
	e := newTestEngine(t, s)

	first, err := e.Assess(1)
	if err != nil {
		t.Fatalf("Assess failed: %v", err)
	}
	second, err := e.Assess(1)
	if err != nil {
		t.Fatalf("Assess failed: %v", err)
	}

	if first.ID == second.ID || len(s.assessments) != 2 {
		t.Fatal("each assessment must be a new record")
	}
	if first.QualityScore != second.QualityScore ||
		first.MonetizationEligible != second.MonetizationEligible ||
		first.NeedsDeletion != second.NeedsDeletion {
		t.Errorf("repeated assessments differ: %+v vs %+v", first, second)
	}
}

func TestAssessErrors(t *testing.T) {
	noVideo := loadRules(t, testRules)

	testCases := []struct {
		name  string
		setup func(s *memStore)
		rules rules.Source
		check func(error) bool
		stage Stage
	}{
		{
			name:  "missing file",
			setup: func(s *memStore) {},
			rules: rules.Static(noVideo),
			check: IsMissingInput,
			stage: StageLoad,
		},
		{
			name: "no thresholds for the metrics category",
			setup: func(s *memStore) {
				s.files[1] = codeFile(1)
				s.metrics[1] = metrics.Video{Resolution: "1080p", Bitrate: 6000, Duration: 30}
			},
			rules: rules.Static(noVideo),
			check: IsConfigurationError,
			stage: StageClassify,
		},
		{
			name:  "no rules loaded",
			setup: func(s *memStore) { s.files[1] = codeFile(1) },
			rules: rules.Static(nil),
			check: IsConfigurationError,
			stage: StageRules,
		},
		{
			name: "store failure",
			setup: func(s *memStore) {
				s.files[1] = codeFile(1)
				s.failAssessmentInsert = true
			},
			rules: rules.Static(noVideo),
			check: IsPersistence,
			stage: StagePersistAssessment,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s := newMemStore()
			tc.setup(s)
			e := New(&Config{Store: s, Rules: tc.rules, Now: func() time.Time { return now }})

			a, err := e.Assess(1)
			if a != nil {
				t.Error("no assessment may be returned on error")
			}
			if !tc.check(err) {
				t.Fatalf("unexpected error classification: %v", err)
			}
			var se *StageError
			if !errors.As(err, &se) {
				t.Fatalf("expected *StageError, got %T", err)
			}
			if se.Stage != tc.stage || se.FileID != 1 {
				t.Errorf("expected stage %s for file 1, got %s for file %d", tc.stage, se.Stage, se.FileID)
			}
			if len(s.assessments) != 0 {
				t.Error("failed assessment must not be written")
			}
		})
	}
}

func TestRecommendWithoutAssessment(t *testing.T) {
	s := newMemStore()
	s.files[1] = codeFile(1)
	e := newTestEngine(t, s)

	if _, err := e.Recommend(1); !IsMissingInput(err) {
		t.Errorf("expected missing input error, got %v", err)
	}
}

func TestProcessKeepsAssessmentWhenRecommendationsFail(t *testing.T) {
	s := newMemStore()
	s.files[1] = codeFile(1)
	s.metrics[1] = metrics.Code{LintingScore: 0.1, Complexity: 0.1, Documentation: 0.1}
	s.failRecInsert = true
	e := newTestEngine(t, s)

	out := e.Process(1)
	if !IsPersistence(out.Err) {
		t.Fatalf("expected persistence error, got %v", out.Err)
	}
	if out.Assessment == nil || len(s.assessments) != 1 {
		t.Error("assessment should be kept when recommendation writes fail")
	}
	if len(s.recs) != 0 {
		t.Error("no recommendations should be stored")
	}

	// Recommendations can be resynthesized from the stored assessment
	s.failRecInsert = false
	recs, err := e.Recommend(1)
	if err != nil || len(recs) == 0 {
		t.Errorf("resynthesis failed: %v (%d recs)", err, len(recs))
	}
}

func TestSubmitFeedbackDampensLaterRuns(t *testing.T) {
	s := newMemStore()
	s.files[1] = codeFile(1)
	s.metrics[1] = metrics.Code{LintingScore: 0.9, Complexity: 0.9, Documentation: 0.9}
	s.suggestions[1] = []*model.ContentSuggestion{{Priority: model.PriorityHigh, Suggestion: "Move into pkg/"}}
	e := newTestEngine(t, s)

	out := e.Process(1)
	if out.Err != nil {
		t.Fatalf("Process failed: %v", out.Err)
	}
	var org *model.Recommendation
	for _, r := range out.Recommendations {
		if r.Type == model.RecOrganization {
			org = r
		}
	}
	if org == nil || org.Priority != model.PriorityHigh {
		t.Fatalf("expected a high organization recommendation, got %+v", out.Recommendations)
	}

	for i := 0; i < 50; i++ {
		if _, err := e.SubmitFeedback(org.ID, false, "not useful"); err != nil {
			t.Fatalf("SubmitFeedback failed: %v", err)
		}
	}
	if len(s.feedback) != 50 || s.feedback[0].Type != model.RecOrganization {
		t.Fatalf("feedback not stored with its type: %d rows", len(s.feedback))
	}

	// A new file with the same high suggestion is dampened
	s.files[2] = codeFile(2)
	s.files[2].Path = "/src/other.go"
	s.metrics[2] = s.metrics[1]
	s.suggestions[2] = s.suggestions[1]

	out = e.Process(2)
	if out.Err != nil {
		t.Fatalf("Process failed: %v", out.Err)
	}
	for _, r := range out.Recommendations {
		if r.Type == model.RecOrganization && r.Priority == model.PriorityHigh {
			t.Error("organization recommendation should be dampened below high")
		}
	}

	// The original recommendation row is untouched
	if org.Priority != model.PriorityHigh {
		t.Error("past recommendations must never be edited")
	}
}

func TestSubmitFeedbackUnknownRecommendation(t *testing.T) {
	e := newTestEngine(t, newMemStore())
	_, err := e.SubmitFeedback(99, true, "")
	if !IsMissingInput(err) {
		t.Fatalf("expected missing input, got %v", err)
	}
	var se *StageError
	if !errors.As(err, &se) || se.RecommendationID != 99 {
		t.Errorf("expected recommendation id in error, got %v", err)
	}
}

func TestWarmFeedback(t *testing.T) {
	s := newMemStore()
	for i := 0; i < 20; i++ {
		s.feedback = append(s.feedback, &model.Feedback{Type: model.RecDeletion, Helpful: false})
	}
	e := New(&Config{
		Store:    s,
		Rules:    rules.Static(loadRules(t, testRules)),
		Feedback: feedback.New(&feedback.Config{WindowSize: 50, MinSamples: 10}),
	})

	if err := e.WarmFeedback(); err != nil {
		t.Fatalf("WarmFeedback failed: %v", err)
	}
	if e.Feedback().AdjustedPriority(model.RecDeletion) != -1 {
		t.Error("warmed loop should dampen deletion")
	}
}

func TestRunBatch(t *testing.T) {
	s := newMemStore()
	ids := []int64{1, 2, 3, 4, 5, 6, 7, 8}
	for _, id := range ids {
		if id == 5 {
			continue // missing file
		}
		s.files[id] = codeFile(id)
		s.metrics[id] = metrics.Code{LintingScore: 0.5, Complexity: 0.5, Documentation: 0.5}
	}
	e := newTestEngine(t, s)

	result, err := e.Run(context.Background(), ids, ModeProcess)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Files != 8 || result.Assessed != 7 || result.Failed != 1 {
		t.Errorf("unexpected result: files=%d assessed=%d failed=%d", result.Files, result.Assessed, result.Failed)
	}
	if len(result.Errors) != 1 || !IsMissingInput(result.Errors[0]) {
		t.Errorf("expected one missing input error, got %v", result.Errors)
	}
	// Moderate, monetizable: monetization + quality_improvement per file
	if result.Recommendations != 14 {
		t.Errorf("expected 14 recommendations, got %d", result.Recommendations)
	}
}

func TestRunCancelled(t *testing.T) {
	s := newMemStore()
	s.files[1] = codeFile(1)
	e := newTestEngine(t, s)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := e.Run(ctx, []int64{1, 2, 3}, ModeAssess)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation error, got %v", err)
	}
	if result.Assessed != 0 || len(s.assessments) != 0 {
		t.Error("no file should be assessed after cancellation")
	}
}

func TestEngineWithSQLiteStore(t *testing.T) {
	db, err := store.Open(filepath.Join(t.TempDir(), "engine.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer db.Close()

	f := codeFile(0)
	if err := db.UpsertFile(f); err != nil {
		t.Fatalf("failed to insert file: %v", err)
	}
	if err := db.ReplaceMetrics(f.ID, metrics.Code{LintingScore: 0.9, Complexity: 0.8, Documentation: 0.85}); err != nil {
		t.Fatalf("failed to store metrics: %v", err)
	}

	e := newTestEngine(t, db)
	out := e.Process(f.ID)
	if out.Err != nil {
		t.Fatalf("Process failed: %v", out.Err)
	}

	latest, err := db.LatestAssessment(f.ID)
	if err != nil || latest == nil {
		t.Fatalf("assessment not stored: %v", err)
	}
	if latest.QualityScore != model.TierGood || !latest.MonetizationEligible {
		t.Errorf("unexpected stored assessment %+v", latest)
	}

	recs, err := db.RecommendationsForFile(f.ID)
	if err != nil || len(recs) != 1 || recs[0].Type != model.RecMonetization {
		t.Fatalf("unexpected stored recommendations %+v (%v)", recs, err)
	}

	fb, err := e.SubmitFeedback(recs[0].ID, true, "thanks")
	if err != nil {
		t.Fatalf("SubmitFeedback failed: %v", err)
	}
	if fb.Type != model.RecMonetization {
		t.Errorf("feedback type should come from the recommendation, got %s", fb.Type)
	}
}
