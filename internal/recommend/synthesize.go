// Package recommend derives prioritized recommendations from an assessment
// and the content suggestions computed for its file.
package recommend

import (
	"fmt"
	"strings"
	"time"

	"github.com/franz/file-curator/internal/metrics"
	"github.com/franz/file-curator/internal/model"
	"github.com/franz/file-curator/internal/rules"
	"github.com/franz/file-curator/internal/score"
)

// Metadata keys written on every recommendation
const (
	MetaReason       = "reason"
	MetaBasePriority = "base_priority"
	MetaTier         = "tier"
	MetaAdjustment   = "feedback_adjustment"
	MetaSubScore     = "sub_score"
	MetaTriggers     = "triggers"
	MetaCategory     = "suggestion_category"
)

// Adjuster reports the feedback-driven priority delta of a recommendation type.
// A delta above zero is ignored.
type Adjuster interface {
	AdjustedPriority(t model.RecommendationType) int
}

// Synthesizer applies the recommendation rule table
type Synthesizer struct {
	adjuster Adjuster
}

// New creates a synthesizer. A nil adjuster leaves base priorities unchanged.
func New(adjuster Adjuster) *Synthesizer {
	return &Synthesizer{adjuster: adjuster}
}

// Synthesize evaluates every rule independently and returns the resulting
// recommendations in rule order: deletion, monetization, quality improvement,
// then one organization entry per suggestion. Nothing is persisted here.
func (s *Synthesizer) Synthesize(a *model.Assessment, suggestions []*model.ContentSuggestion, rs *rules.Rules, now time.Time) []*model.Recommendation {
	var recs []*model.Recommendation

	add := func(t model.RecommendationType, base model.Priority, text string, meta map[string]string) {
		priority, delta := s.prioritize(t, base, a.QualityScore)
		meta[MetaBasePriority] = base.String()
		meta[MetaTier] = a.QualityScore.String()
		if delta != 0 {
			meta[MetaAdjustment] = fmt.Sprintf("%d", delta)
		}
		recs = append(recs, &model.Recommendation{
			FileID:       a.FileID,
			AssessmentID: a.ID,
			Type:         t,
			Text:         text,
			Priority:     priority,
			CreatedAt:    now,
			Metadata:     meta,
		})
	}

	if a.NeedsDeletion {
		text, meta := deletion(a, rs)
		add(model.RecDeletion, model.PriorityHigh, text, meta)
	}

	if a.MonetizationEligible {
		text, meta := monetization(a, rs)
		add(model.RecMonetization, model.PriorityMedium, text, meta)
	}

	switch a.QualityScore {
	case model.TierPoor:
		text, meta := qualityImprovement(a, rs)
		add(model.RecQualityImprovement, model.PriorityHigh, text, meta)
	case model.TierModerate:
		text, meta := qualityImprovement(a, rs)
		add(model.RecQualityImprovement, model.PriorityMedium, text, meta)
	}

	for _, sg := range suggestions {
		if sg == nil || strings.TrimSpace(sg.Suggestion) == "" {
			continue
		}
		base := sg.Priority
		if base < model.PriorityLow || base > model.PriorityHigh {
			base = model.PriorityMedium
		}
		meta := map[string]string{MetaReason: organizationReason(sg)}
		if sg.Category != "" {
			meta[MetaCategory] = sg.Category
		}
		add(model.RecOrganization, base, organizationText(sg), meta)
	}

	return recs
}

// prioritize applies the feedback delta. Deletion and quality improvement on
// Poor files never drop below medium.
func (s *Synthesizer) prioritize(t model.RecommendationType, base model.Priority, tier model.Tier) (model.Priority, int) {
	delta := 0
	if s.adjuster != nil {
		delta = min(s.adjuster.AdjustedPriority(t), 0)
	}
	p := base.Shift(delta)

	if tier == model.TierPoor && (t == model.RecDeletion || t == model.RecQualityImprovement) && p < model.PriorityMedium {
		p = model.PriorityMedium
	}
	return p, int(p) - int(base)
}

func deletion(a *model.Assessment, rs *rules.Rules) (string, map[string]string) {
	names := make([]string, 0, len(a.DeletionTriggers))
	reasons := make([]string, 0, len(a.DeletionTriggers))
	d := rs.DeletionRules

	for _, trig := range a.DeletionTriggers {
		names = append(names, string(trig))
		switch trig {
		case model.TriggerAge:
			reasons = append(reasons, fmt.Sprintf("unchanged for at least %d days at %s quality", d.AgeThresholdDays, a.QualityScore))
		case model.TriggerSize:
			reasons = append(reasons, fmt.Sprintf("at least %d bytes at Poor quality", d.SizeThresholdBytes))
		case model.TriggerQuality:
			reasons = append(reasons, fmt.Sprintf("score %.2f below deletion threshold %.2f", scoreOf(a), d.QualityThreshold))
		}
	}

	var text string
	switch a.QualityScore {
	case model.TierPoor:
		text = "Review this file for deletion: it is low quality and takes up space."
	case model.TierGood:
		text = "Review this file for deletion: it is good quality but has been flagged by the retention rules."
	default:
		text = "Review this file for deletion: it has been flagged by the retention rules."
	}

	return text, map[string]string{
		MetaTriggers: strings.Join(names, ","),
		MetaReason:   strings.Join(reasons, "; "),
	}
}

func monetization(a *model.Assessment, rs *rules.Rules) (string, map[string]string) {
	text := "This file meets the monetization criteria and can be listed."
	if a.QualityScore == model.TierModerate {
		text = "This file meets the monetization criteria; raising its quality would strengthen the listing."
	}
	reason := fmt.Sprintf("tier %s meets minimum %s and required metadata is present",
		a.QualityScore, rs.MonetizationCriteria.MinQualityScore)
	return text, map[string]string{MetaReason: reason}
}

func qualityImprovement(a *model.Assessment, rs *rules.Rules) (string, map[string]string) {
	if !a.Scored() {
		return "No quality metrics are recorded for this file; analyze it to get a real score.",
			map[string]string{MetaReason: "unscored file, classified as Moderate by default"}
	}

	m := metrics.OrNone(a.Metadata)
	result := score.Normalize(m, rs.WeightsFor(m.Category()))
	meta := map[string]string{}
	target := "good"
	bar := 0.0
	if th, err := rs.ThresholdsFor(result.Category); err == nil {
		bar = th.Good
		if a.QualityScore == model.TierPoor {
			target = "moderate"
			bar = th.Moderate
		}
	}

	weakest, ok := result.Weakest()
	if !ok {
		meta[MetaReason] = fmt.Sprintf("score %.2f below %s threshold %.2f", scoreOf(a), target, bar)
		return "Improve the quality of this file.", meta
	}

	name := strings.ReplaceAll(weakest.Name, "_", " ")
	meta[MetaSubScore] = weakest.Name
	meta[MetaReason] = fmt.Sprintf("%s %.2f is the weakest sub-score; score %.2f below %s threshold %.2f",
		weakest.Name, weakest.Value, scoreOf(a), target, bar)

	if a.QualityScore == model.TierPoor {
		return fmt.Sprintf("Quality is poor; start by improving %s.", name), meta
	}
	return fmt.Sprintf("Quality is acceptable; improving %s would bring it to good.", name), meta
}

func organizationText(sg *model.ContentSuggestion) string {
	return strings.TrimSpace(sg.Suggestion)
}

func organizationReason(sg *model.ContentSuggestion) string {
	if r := strings.TrimSpace(sg.Reason); r != "" {
		return r
	}
	if sg.Category != "" {
		return "content analysis suggestion (" + sg.Category + ")"
	}
	return "content analysis suggestion"
}

func scoreOf(a *model.Assessment) float64 {
	if a.NormalizedScore == nil {
		return 0
	}
	return *a.NormalizedScore
}
