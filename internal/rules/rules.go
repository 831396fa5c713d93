// Package rules holds FileOrganizationRules: the thresholds and criteria the
// classification policy and recommendation synthesizer evaluate against.
// A *Rules value is a read-only snapshot; it is replaced, never mutated.
package rules

import (
	"errors"
	"fmt"
	"strings"

	"github.com/franz/file-curator/internal/metrics"
	"github.com/franz/file-curator/internal/model"
	"github.com/franz/file-curator/internal/util"
)

// ConfigError describes one malformed or missing rules field
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// Unwrap lets callers match with errors.Is(err, util.ErrInvalidConfig)
func (e *ConfigError) Unwrap() error {
	return util.ErrInvalidConfig
}

// Thresholds are the per-category lower bounds of the Good and Moderate tiers
type Thresholds struct {
	Good     float64
	Moderate float64
}

// Weights maps a sub-score name to its weight in the category mean
type Weights map[string]float64

// MonetizationCriteria gates monetization eligibility
type MonetizationCriteria struct {
	MinQualityScore  model.Tier
	RequiredMetadata []string
	ContentTypes     []string
}

// DeletionRules configures the independent deletion triggers
type DeletionRules struct {
	AgeThresholdDays   int
	SizeThresholdBytes int64
	QualityThreshold   float64
}

// Rules is a validated FileOrganizationRules snapshot
type Rules struct {
	QualityThresholds    map[metrics.Category]Thresholds
	MetricWeights        map[metrics.Category]Weights
	MonetizationCriteria MonetizationCriteria
	DeletionRules        DeletionRules
}

// ThresholdsFor returns the tier thresholds of a category.
// A category without thresholds is a configuration error, never a zero default.
func (r *Rules) ThresholdsFor(c metrics.Category) (Thresholds, error) {
	t, ok := r.QualityThresholds[c]
	if !ok {
		return Thresholds{}, &ConfigError{
			Field:  "quality_thresholds." + string(c),
			Reason: "no thresholds configured for category",
		}
	}
	return t, nil
}

// WeightsFor returns the configured sub-score weights of a category, or nil
// when the category uses equal weights
func (r *Rules) WeightsFor(c metrics.Category) Weights {
	return r.MetricWeights[c]
}

// AllowsContentType reports whether any of the given file types is listed in
// the monetization content types (case-insensitive)
func (r *Rules) AllowsContentType(types ...string) bool {
	for _, allowed := range r.MonetizationCriteria.ContentTypes {
		for _, t := range types {
			if t != "" && strings.EqualFold(allowed, t) {
				return true
			}
		}
	}
	return false
}

// Validate checks every field and returns all problems joined together
func (r *Rules) Validate() error {
	var errs []error
	add := func(field, reason string) {
		errs = append(errs, &ConfigError{Field: field, Reason: reason})
	}

	if len(r.QualityThresholds) == 0 {
		add("quality_thresholds", "at least one category is required")
	}
	for c, t := range r.QualityThresholds {
		field := "quality_thresholds." + string(c)
		if len(metrics.SubScores(c)) == 0 {
			add(field, "not a scored category")
			continue
		}
		if !inUnit(t.Good) || !inUnit(t.Moderate) {
			add(field, "thresholds must be within [0,1]")
		}
		if t.Good < t.Moderate {
			add(field, fmt.Sprintf("good (%.2f) must not be below moderate (%.2f)", t.Good, t.Moderate))
		}
	}

	for c, w := range r.MetricWeights {
		field := "metric_weights." + string(c)
		known := metrics.SubScores(c)
		if len(known) == 0 {
			add(field, "not a scored category")
			continue
		}
		sum := 0.0
		for name, weight := range w {
			if !contains(known, name) {
				add(field+"."+name, fmt.Sprintf("unknown sub-score (expected one of %s)", strings.Join(known, ", ")))
			}
			if weight < 0 {
				add(field+"."+name, "weight must not be negative")
			}
			sum += weight
		}
		if sum <= 0 {
			add(field, "weights must sum to more than zero")
		}
	}

	m := r.MonetizationCriteria
	if !m.MinQualityScore.Valid() {
		add("monetization_criteria.min_quality_score", "must be one of Good, Moderate, Poor")
	}

	d := r.DeletionRules
	if d.AgeThresholdDays < 0 {
		add("deletion_rules.age_threshold_days", "must not be negative")
	}
	if d.SizeThresholdBytes < 0 {
		add("deletion_rules.size_threshold_bytes", "must not be negative")
	}
	if !inUnit(d.QualityThreshold) {
		add("deletion_rules.quality_threshold", "must be within [0,1]")
	}

	return errors.Join(errs...)
}

func inUnit(v float64) bool {
	return v >= 0 && v <= 1
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
