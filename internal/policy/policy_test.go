package policy

import (
	"errors"
	"testing"
	"time"

	"github.com/franz/file-curator/internal/metrics"
	"github.com/franz/file-curator/internal/model"
	"github.com/franz/file-curator/internal/rules"
	"github.com/franz/file-curator/internal/score"
	"github.com/franz/file-curator/internal/util"
)

const testRules = `
quality_thresholds:
  code: {good: 0.7, moderate: 0.4}
  document: {good: 0.75, moderate: 0.5}
  image: {good: 0.8, moderate: 0.5}
monetization_criteria:
  min_quality_score: Moderate
  required_metadata: [description]
  content_types: [code, image]
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
		t.Fatalf("failed to parse test rules: %v", err)
	}
	return r
}

func codeFile(ageDays int, size int64, meta map[string]string) *model.FileRecord {
	return &model.FileRecord{
		ID:           1,
		Path:         "/src/main.go",
		Extension:    ".go",
		Type:         metrics.CategoryCode,
		SizeBytes:    size,
		LastModified: now.Add(-time.Duration(ageDays) * 24 * time.Hour),
		Metadata:     meta,
	}
}

func classify(t *testing.T, f *model.FileRecord, m metrics.Metrics, rs *rules.Rules) *model.Assessment {
	t.Helper()
	a, err := Classify(f, m, score.Normalize(m, rs.WeightsFor(f.Type)), rs, now)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	return a
}

func uniformCode(v float64) metrics.Code {
	return metrics.Code{LintingScore: v, Complexity: v, Documentation: v}
}

func TestClassifyEndToEndScenario(t *testing.T) {
	rs := loadRules(t)
	f := codeFile(10, 2048, map[string]string{"description": "x"})
	m := metrics.Code{LintingScore: 0.9, Complexity: 0.8, Documentation: 0.85}

	a := classify(t, f, m, rs)

	if a.QualityScore != model.TierGood {
		t.Errorf("expected Good, got %s", a.QualityScore)
	}
	if !a.MonetizationEligible {
		t.Error("expected monetization eligible")
	}
	if a.NeedsDeletion {
		t.Errorf("expected no deletion, got triggers %v", a.DeletionTriggers)
	}
	if a.NormalizedScore == nil || *a.NormalizedScore < 0.84 || *a.NormalizedScore > 0.86 {
		t.Errorf("unexpected normalized score %v", a.NormalizedScore)
	}
	if a.Metadata != metrics.Metrics(m) {
		t.Errorf("assessment must keep the metrics it was computed from")
	}
	if !a.AssessmentDate.Equal(now) {
		t.Errorf("expected assessment date %v, got %v", now, a.AssessmentDate)
	}
}

func TestTierMonotonic(t *testing.T) {
	rs := loadRules(t)
	th, _ := rs.ThresholdsFor(metrics.CategoryCode)

	prev := model.TierPoor
	for i := 0; i <= 100; i++ {
		s := float64(i) / 100
		tier := TierFor(s, th)
		if tier < prev {
			t.Fatalf("tier dropped from %s to %s at score %.2f", prev, tier, s)
		}
		prev = tier
	}

	testCases := []struct {
		score    float64
		expected model.Tier
	}{
		{0.0, model.TierPoor},
		{0.39, model.TierPoor},
		{0.4, model.TierModerate},
		{0.69, model.TierModerate},
		{0.7, model.TierGood},
		{1.0, model.TierGood},
	}
	for _, tc := range testCases {
		if got := TierFor(tc.score, th); got != tc.expected {
			t.Errorf("TierFor(%.2f) = %s, expected %s", tc.score, got, tc.expected)
		}
	}
}

func TestThresholdBoundaries(t *testing.T) {
	rs := loadRules(t)

	testCases := []struct {
		name        string
		m           metrics.Code
		tier        model.Tier
		qualityFlag bool
	}{
		{"exactly good", uniformCode(0.7), model.TierGood, false},
		{"exactly moderate", uniformCode(0.4), model.TierModerate, false},
		{"exactly deletion threshold", uniformCode(0.2), model.TierPoor, false},
		{"mixed mean on good", metrics.Code{LintingScore: 0.6, Complexity: 0.7, Documentation: 0.8}, model.TierGood, false},
		{"mixed mean on deletion threshold", metrics.Code{LintingScore: 0.1, Complexity: 0.2, Documentation: 0.3}, model.TierPoor, false},
		{"just below deletion threshold", uniformCode(0.19), model.TierPoor, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			a := classify(t, codeFile(10, 100, nil), tc.m, rs)
			if a.QualityScore != tc.tier {
				t.Errorf("tier = %s, expected %s (score %v)", a.QualityScore, tc.tier, *a.NormalizedScore)
			}
			fired := false
			for _, tr := range a.DeletionTriggers {
				if tr == model.TriggerQuality {
					fired = true
				}
			}
			if fired != tc.qualityFlag {
				t.Errorf("quality trigger = %v, expected %v (score %v)", fired, tc.qualityFlag, *a.NormalizedScore)
			}
		})
	}
}

func TestMonetizationImpliesMinimumTier(t *testing.T) {
	rs := loadRules(t)
	metas := []map[string]string{nil, {"description": "x"}, {"description": " "}}

	for i := 0; i <= 20; i++ {
		v := float64(i) / 20
		for _, meta := range metas {
			a := classify(t, codeFile(10, 100, meta), uniformCode(v), rs)
			if a.MonetizationEligible && a.QualityScore < rs.MonetizationCriteria.MinQualityScore {
				t.Fatalf("eligible at tier %s below minimum %s", a.QualityScore, rs.MonetizationCriteria.MinQualityScore)
			}
		}
	}
}

func TestMonetizationHardRequirements(t *testing.T) {
	rs := loadRules(t)
	good := uniformCode(0.95)

	testCases := []struct {
		name string
		file *model.FileRecord
		m    metrics.Metrics
	}{
		{
			name: "missing required metadata",
			file: codeFile(10, 100, map[string]string{"title": "t"}),
			m:    good,
		},
		{
			name: "blank required metadata",
			file: codeFile(10, 100, map[string]string{"description": "  "}),
			m:    good,
		},
		{
			name: "content type not allowed",
			file: &model.FileRecord{
				ID: 2, Type: metrics.CategoryDocument, Extension: ".md",
				LastModified: now, Metadata: map[string]string{"description": "x"},
			},
			m: metrics.Document{Readability: 1, Formatting: 1, Completeness: 1},
		},
		{
			name: "below minimum tier",
			file: codeFile(10, 100, map[string]string{"description": "x"}),
			m:    uniformCode(0.1),
		},
		{
			name: "unscored file",
			file: codeFile(10, 100, map[string]string{"description": "x"}),
			m:    metrics.None{},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			a := classify(t, tc.file, tc.m, rs)
			if a.MonetizationEligible {
				t.Errorf("expected not eligible (tier %s)", a.QualityScore)
			}
		})
	}
}

func TestDeletionTriggersAreIndependent(t *testing.T) {
	rs := loadRules(t)
	bigFile := int64(20 * 1024 * 1024)

	testCases := []struct {
		name     string
		file     *model.FileRecord
		m        metrics.Metrics
		expected []model.DeletionTrigger
	}{
		{
			name:     "age alone on a Moderate file",
			file:     codeFile(400, 100, nil),
			m:        uniformCode(0.5),
			expected: []model.DeletionTrigger{model.TriggerAge},
		},
		{
			name:     "age does not flag a Good file",
			file:     codeFile(400, 100, nil),
			m:        uniformCode(0.9),
			expected: nil,
		},
		{
			name:     "size alone on a Poor file",
			file:     codeFile(10, bigFile, nil),
			m:        uniformCode(0.3),
			expected: []model.DeletionTrigger{model.TriggerSize},
		},
		{
			name:     "size does not flag a Moderate file",
			file:     codeFile(10, bigFile, nil),
			m:        uniformCode(0.5),
			expected: nil,
		},
		{
			name:     "quality alone",
			file:     codeFile(10, 100, nil),
			m:        uniformCode(0.1),
			expected: []model.DeletionTrigger{model.TriggerQuality},
		},
		{
			name:     "all three",
			file:     codeFile(400, bigFile, nil),
			m:        uniformCode(0.1),
			expected: []model.DeletionTrigger{model.TriggerAge, model.TriggerSize, model.TriggerQuality},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			a := classify(t, tc.file, tc.m, rs)
			if a.NeedsDeletion != (len(tc.expected) > 0) {
				t.Errorf("NeedsDeletion = %v, expected %v", a.NeedsDeletion, len(tc.expected) > 0)
			}
			if len(a.DeletionTriggers) != len(tc.expected) {
				t.Fatalf("expected triggers %v, got %v", tc.expected, a.DeletionTriggers)
			}
			for i := range tc.expected {
				if a.DeletionTriggers[i] != tc.expected[i] {
					t.Errorf("expected triggers %v, got %v", tc.expected, a.DeletionTriggers)
				}
			}
		})
	}
}

func TestDeletionAndMonetizationCanCoexist(t *testing.T) {
	rs := loadRules(t)
	a := classify(t, codeFile(400, 100, map[string]string{"description": "x"}), uniformCode(0.5), rs)

	if !a.NeedsDeletion || !a.MonetizationEligible {
		t.Errorf("old Moderate sellable file should be both flagged and eligible, got deletion=%v monetization=%v",
			a.NeedsDeletion, a.MonetizationEligible)
	}
}

func TestUnscoredNeutrality(t *testing.T) {
	rs := loadRules(t)

	// Huge but recent file with no metrics: neutral and never flagged
	f := codeFile(1, 1<<40, nil)
	a := classify(t, f, metrics.None{}, rs)

	if a.QualityScore != model.TierModerate {
		t.Errorf("unscored file should be Moderate, got %s", a.QualityScore)
	}
	if a.NeedsDeletion {
		t.Errorf("unscored file must not be flagged, got %v", a.DeletionTriggers)
	}
	if a.Scored() {
		t.Error("unscored assessment should not carry a normalized score")
	}

	// Moderate meets min_quality_score, but eligibility needs a measured score
	described := classify(t, codeFile(1, 100, map[string]string{"description": "x"}), metrics.None{}, rs)
	if described.MonetizationEligible {
		t.Error("unscored file must not be monetization eligible")
	}

	// Old unscored file: only the age trigger may fire
	old := classify(t, codeFile(400, 100, nil), nil, rs)
	for _, trig := range old.DeletionTriggers {
		if trig == model.TriggerQuality {
			t.Error("quality trigger must never fire for unscored files")
		}
	}
}

func TestClassifyMissingThresholds(t *testing.T) {
	rs := loadRules(t)
	f := &model.FileRecord{ID: 9, Type: metrics.CategoryVideo, LastModified: now}
	m := metrics.Video{Resolution: "1080p", Bitrate: 6000, Duration: 60}

	a, err := Classify(f, m, score.Normalize(m, nil), rs, now)
	if !errors.Is(err, util.ErrInvalidConfig) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if a != nil {
		t.Error("no assessment may be produced on configuration error")
	}

	// Unscored video needs no thresholds
	if _, err := Classify(f, nil, score.Unscored, rs, now); err != nil {
		t.Errorf("unscored file should not require thresholds: %v", err)
	}

	if _, err := Classify(f, nil, score.Unscored, nil, now); !errors.Is(err, util.ErrInvalidConfig) {
		t.Errorf("nil rules should be a configuration error, got %v", err)
	}
}
