// Package policy classifies a file into a quality tier and decides its
// monetization eligibility and deletion flag from a normalized score and the
// rules snapshot in effect.
package policy

import (
	"time"

	"github.com/franz/file-curator/internal/metrics"
	"github.com/franz/file-curator/internal/model"
	"github.com/franz/file-curator/internal/rules"
	"github.com/franz/file-curator/internal/score"
)

// Classify builds a new Assessment for file. It never consults or mutates
// earlier assessments. m is stored on the assessment so the tier can be
// recomputed from the row and the thresholds alone.
func Classify(file *model.FileRecord, m metrics.Metrics, result score.Result, rs *rules.Rules, now time.Time) (*model.Assessment, error) {
	if rs == nil {
		return nil, &rules.ConfigError{Field: "rules", Reason: "no rules loaded"}
	}

	tier := model.TierModerate
	var normalized *float64

	if result.Scored {
		th, err := rs.ThresholdsFor(result.Category)
		if err != nil {
			return nil, err
		}
		tier = TierFor(result.Value, th)
		v := result.Value
		normalized = &v
	}

	a := &model.Assessment{
		FileID:          file.ID,
		QualityScore:    tier,
		NormalizedScore: normalized,
		AssessmentDate:  now,
		Metadata:        metrics.OrNone(m),
	}

	a.MonetizationEligible = monetizable(file, tier, result.Scored, rs)
	a.DeletionTriggers = deletionTriggers(file, tier, result, rs, now)
	a.NeedsDeletion = len(a.DeletionTriggers) > 0

	return a, nil
}

// TierFor maps a normalized score onto a tier. It is monotonic in value.
func TierFor(value float64, th rules.Thresholds) model.Tier {
	switch {
	case value >= th.Good:
		return model.TierGood
	case value >= th.Moderate:
		return model.TierModerate
	default:
		return model.TierPoor
	}
}

// monetizable requires a measured score at or above the minimum tier, an
// allowed content type and every required metadata field filled in. Unscored
// files are never eligible, even though their default tier is Moderate.
func monetizable(file *model.FileRecord, tier model.Tier, scored bool, rs *rules.Rules) bool {
	criteria := rs.MonetizationCriteria

	if !scored || tier < criteria.MinQualityScore {
		return false
	}
	if !rs.AllowsContentType(string(file.Type), file.Extension) {
		return false
	}
	for _, field := range criteria.RequiredMetadata {
		if !file.HasMetadata(field) {
			return false
		}
	}
	return true
}

// deletionTriggers evaluates the independent deletion conditions; any one
// is enough to flag the file for review.
func deletionTriggers(file *model.FileRecord, tier model.Tier, result score.Result, rs *rules.Rules, now time.Time) []model.DeletionTrigger {
	d := rs.DeletionRules
	var triggers []model.DeletionTrigger

	if file.AgeDays(now) >= d.AgeThresholdDays && tier <= model.TierModerate {
		triggers = append(triggers, model.TriggerAge)
	}
	if file.SizeBytes >= d.SizeThresholdBytes && tier == model.TierPoor {
		triggers = append(triggers, model.TriggerSize)
	}
	if result.Scored && result.Value < d.QualityThreshold {
		triggers = append(triggers, model.TriggerQuality)
	}

	return triggers
}
