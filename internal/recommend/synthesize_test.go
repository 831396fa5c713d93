package recommend

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/franz/file-curator/internal/feedback"
	"github.com/franz/file-curator/internal/metrics"
	"github.com/franz/file-curator/internal/model"
	"github.com/franz/file-curator/internal/policy"
	"github.com/franz/file-curator/internal/rules"
	"github.com/franz/file-curator/internal/score"
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

func loadRules(t *testing.T) *rules.Rules {
	t.Helper()
	r, err := rules.Parse([]byte(testRules), "yaml")
	if err != nil {
		t.Fatalf("failed to parse rules: %v", err)
	}
	return r
}

func assess(t *testing.T, rs *rules.Rules, ageDays int, size int64, meta map[string]string, m metrics.Metrics) *model.Assessment {
	t.Helper()
	f := &model.FileRecord{
		ID:           7,
		Path:         "/src/app.go",
		Extension:    ".go",
		Type:         metrics.CategoryCode,
		SizeBytes:    size,
		LastModified: now.Add(-time.Duration(ageDays) * 24 * time.Hour),
		Metadata:     meta,
	}
	a, err := policy.Classify(f, m, score.Normalize(m, rs.WeightsFor(f.Type)), rs, now)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	a.ID = 42
	return a
}

func types(recs []*model.Recommendation) []model.RecommendationType {
	out := make([]model.RecommendationType, len(recs))
	for i, r := range recs {
		out[i] = r.Type
	}
	return out
}

func TestEndToEndScenario(t *testing.T) {
	rs := loadRules(t)
	a := assess(t, rs, 10, 2048, map[string]string{"description": "x"},
		metrics.Code{LintingScore: 0.9, Complexity: 0.8, Documentation: 0.85})

	recs := New(nil).Synthesize(a, nil, rs, now)

	if len(recs) != 1 {
		t.Fatalf("expected exactly one recommendation, got %v", types(recs))
	}
	r := recs[0]
	if r.Type != model.RecMonetization || r.Priority != model.PriorityMedium {
		t.Errorf("expected medium monetization, got %s %s", r.Priority, r.Type)
	}
	if r.FileID != 7 || r.AssessmentID != 42 {
		t.Errorf("recommendation not linked to its assessment: file=%d assessment=%d", r.FileID, r.AssessmentID)
	}
	if r.Implemented {
		t.Error("new recommendations start unimplemented")
	}
}

func TestRuleMatrix(t *testing.T) {
	rs := loadRules(t)
	big := int64(20 * 1024 * 1024)

	testCases := []struct {
		name     string
		a        *model.Assessment
		sugg     []*model.ContentSuggestion
		expected []model.RecommendationType
		prio     []model.Priority
	}{
		{
			name:     "poor large file",
			a:        assess(t, rs, 10, big, nil, metrics.Code{LintingScore: 0.3, Complexity: 0.3, Documentation: 0.3}),
			expected: []model.RecommendationType{model.RecDeletion, model.RecQualityImprovement},
			prio:     []model.Priority{model.PriorityHigh, model.PriorityHigh},
		},
		{
			name:     "moderate eligible file",
			a:        assess(t, rs, 10, 100, map[string]string{"description": "x"}, metrics.Code{LintingScore: 0.5, Complexity: 0.5, Documentation: 0.5}),
			expected: []model.RecommendationType{model.RecMonetization, model.RecQualityImprovement},
			prio:     []model.Priority{model.PriorityMedium, model.PriorityMedium},
		},
		{
			name: "good file with suggestions",
			a:    assess(t, rs, 10, 100, nil, metrics.Code{LintingScore: 0.9, Complexity: 0.9, Documentation: 0.9}),
			sugg: []*model.ContentSuggestion{
				{Category: "folder", Priority: model.PriorityHigh, Suggestion: "Move into src/", Reason: "stray file"},
				{Category: "naming", Priority: model.PriorityLow, Suggestion: "Rename to snake_case"},
			},
			expected: []model.RecommendationType{model.RecOrganization, model.RecOrganization},
			prio:     []model.Priority{model.PriorityHigh, model.PriorityLow},
		},
		{
			name:     "unscored file",
			a:        assess(t, rs, 10, 100, nil, metrics.None{}),
			expected: []model.RecommendationType{model.RecQualityImprovement},
			prio:     []model.Priority{model.PriorityMedium},
		},
		{
			name:     "good file with nothing to say",
			a:        assess(t, rs, 10, 100, nil, metrics.Code{LintingScore: 1, Complexity: 1, Documentation: 1}),
			expected: nil,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			recs := New(nil).Synthesize(tc.a, tc.sugg, rs, now)
			got := types(recs)
			if len(got) != len(tc.expected) {
				t.Fatalf("expected %v, got %v", tc.expected, got)
			}
			for i := range tc.expected {
				if got[i] != tc.expected[i] {
					t.Errorf("expected %v, got %v", tc.expected, got)
				}
				if recs[i].Priority != tc.prio[i] {
					t.Errorf("%s: expected priority %s, got %s", got[i], tc.prio[i], recs[i].Priority)
				}
				if recs[i].Metadata[MetaBasePriority] == "" || recs[i].Metadata[MetaReason] == "" {
					t.Errorf("%s: missing traceability metadata %v", got[i], recs[i].Metadata)
				}
			}
		})
	}
}

func TestQualityReasonNamesWeakestSubScore(t *testing.T) {
	rs := loadRules(t)
	a := assess(t, rs, 10, 100, nil, metrics.Code{LintingScore: 0.8, Complexity: 0.6, Documentation: 0.1})

	recs := New(nil).Synthesize(a, nil, rs, now)
	var q *model.Recommendation
	for _, r := range recs {
		if r.Type == model.RecQualityImprovement {
			q = r
		}
	}
	if q == nil {
		t.Fatal("expected a quality improvement recommendation")
	}
	if q.Metadata[MetaSubScore] != metrics.SubDocumentation {
		t.Errorf("expected weakest sub-score documentation, got %q", q.Metadata[MetaSubScore])
	}
	if !strings.Contains(q.Text, "documentation") {
		t.Errorf("text should name the weak area: %q", q.Text)
	}
}

func TestFeedbackDampensOrganization(t *testing.T) {
	rs := loadRules(t)
	loop := feedback.New(&feedback.Config{WindowSize: 50})
	for i := 0; i < 50; i++ {
		loop.RecordFeedback(model.RecOrganization, false)
	}

	a := assess(t, rs, 10, 100, nil, metrics.Code{LintingScore: 0.9, Complexity: 0.9, Documentation: 0.9})
	sugg := []*model.ContentSuggestion{{Priority: model.PriorityHigh, Suggestion: "Group with related files"}}

	recs := New(loop).Synthesize(a, sugg, rs, now)
	if len(recs) != 1 || recs[0].Type != model.RecOrganization {
		t.Fatalf("expected one organization recommendation, got %v", types(recs))
	}
	if recs[0].Priority == model.PriorityHigh {
		t.Error("dampened organization recommendation must not be high")
	}
	if recs[0].Metadata[MetaBasePriority] != "high" || recs[0].Metadata[MetaAdjustment] != "-1" {
		t.Errorf("unexpected metadata %v", recs[0].Metadata)
	}
}

type fixedAdjuster map[model.RecommendationType]int

func (f fixedAdjuster) AdjustedPriority(t model.RecommendationType) int { return f[t] }

func TestPoorSeverityFloor(t *testing.T) {
	rs := loadRules(t)
	a := assess(t, rs, 10, 20*1024*1024, nil, metrics.Code{LintingScore: 0.1, Complexity: 0.1, Documentation: 0.1})

	adj := fixedAdjuster{model.RecDeletion: -2, model.RecQualityImprovement: -2}
	for _, r := range New(adj).Synthesize(a, nil, rs, now) {
		if r.Priority == model.PriorityLow {
			t.Errorf("%s on a Poor file emitted at low priority", r.Type)
		}
	}
}

func TestNoEscalation(t *testing.T) {
	rs := loadRules(t)
	a := assess(t, rs, 10, 100, map[string]string{"description": "x"}, metrics.Code{LintingScore: 0.9, Complexity: 0.9, Documentation: 0.9})

	recs := New(fixedAdjuster{model.RecMonetization: 1}).Synthesize(a, nil, rs, now)
	if len(recs) != 1 || recs[0].Priority != model.PriorityMedium {
		t.Errorf("positive deltas must be ignored, got %v", recs)
	}
}

func TestUnknownSuggestionPriority(t *testing.T) {
	rs := loadRules(t)
	a := assess(t, rs, 10, 100, nil, metrics.Code{LintingScore: 0.9, Complexity: 0.9, Documentation: 0.9})
	sugg := []*model.ContentSuggestion{
		{Suggestion: "Tag with project name"},
		{Suggestion: "   "},
	}

	recs := New(nil).Synthesize(a, sugg, rs, now)
	if len(recs) != 1 {
		t.Fatalf("blank suggestions should be skipped, got %d recommendations", len(recs))
	}
	if recs[0].Priority != model.PriorityMedium {
		t.Errorf("expected medium for unset priority, got %s", recs[0].Priority)
	}
}

func TestSynthesizeIsDeterministic(t *testing.T) {
	rs := loadRules(t)
	a := assess(t, rs, 400, 20*1024*1024, nil, metrics.Code{LintingScore: 0.05, Complexity: 0.1, Documentation: 0.15})
	sugg := []*model.ContentSuggestion{{Priority: model.PriorityLow, Suggestion: "Archive", Reason: "old"}}

	s := New(nil)
	first := s.Synthesize(a, sugg, rs, now)
	second := s.Synthesize(a, sugg, rs, now)

	if len(first) != len(second) {
		t.Fatalf("runs differ in length: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] == second[i] {
			t.Fatal("each run must produce new records")
		}
		if !reflect.DeepEqual(first[i], second[i]) {
			t.Errorf("run contents differ at %d: %+v vs %+v", i, first[i], second[i])
		}
	}
	if first[0].Metadata[MetaTriggers] != "age,size,quality" {
		t.Errorf("expected all deletion triggers, got %q", first[0].Metadata[MetaTriggers])
	}
}
