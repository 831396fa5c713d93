// Package model holds the record shapes the engine reads and writes, and
// the ordered enums (tier, priority) its decisions are expressed in.
package model

import (
	"fmt"
	"strings"
)

// Tier is the discretized quality classification of a file.
// Tiers are ordered: Poor < Moderate < Good.
type Tier int

const (
	TierPoor Tier = iota + 1
	TierModerate
	TierGood
)

// String returns the stored name of the tier
func (t Tier) String() string {
	switch t {
	case TierPoor:
		return "Poor"
	case TierModerate:
		return "Moderate"
	case TierGood:
		return "Good"
	}
	return fmt.Sprintf("Tier(%d)", int(t))
}

// Valid reports whether t is one of the three tiers
func (t Tier) Valid() bool {
	return t >= TierPoor && t <= TierGood
}

// ParseTier parses a tier name (case-insensitive)
func ParseTier(s string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "poor":
		return TierPoor, nil
	case "moderate":
		return TierModerate, nil
	case "good":
		return TierGood, nil
	}
	return 0, fmt.Errorf("unknown quality tier %q", s)
}

// Priority orders recommendations: Low < Medium < High
type Priority int

const (
	PriorityLow Priority = iota + 1
	PriorityMedium
	PriorityHigh
)

// String returns the stored name of the priority
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityMedium:
		return "medium"
	case PriorityHigh:
		return "high"
	}
	return fmt.Sprintf("Priority(%d)", int(p))
}

// ParsePriority parses a priority name (case-insensitive)
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return PriorityLow, nil
	case "medium":
		return PriorityMedium, nil
	case "high":
		return PriorityHigh, nil
	}
	return 0, fmt.Errorf("unknown priority %q", s)
}

// Shift moves p by delta tiers, clamped to [Low, High]
func (p Priority) Shift(delta int) Priority {
	shifted := p + Priority(delta)
	if shifted < PriorityLow {
		return PriorityLow
	}
	if shifted > PriorityHigh {
		return PriorityHigh
	}
	return shifted
}

// RecommendationType classifies what a recommendation asks the user to do
type RecommendationType string

const (
	RecQualityImprovement RecommendationType = "quality_improvement"
	RecMonetization       RecommendationType = "monetization"
	RecOrganization       RecommendationType = "organization"
	RecDeletion           RecommendationType = "deletion"
)

// RecommendationTypes lists every recommendation type
var RecommendationTypes = []RecommendationType{
	RecQualityImprovement,
	RecMonetization,
	RecOrganization,
	RecDeletion,
}

// ParseRecommendationType parses a stored recommendation type
func ParseRecommendationType(s string) (RecommendationType, error) {
	for _, t := range RecommendationTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown recommendation type %q", s)
}

// DeletionTrigger names one of the independent deletion conditions
type DeletionTrigger string

const (
	TriggerAge     DeletionTrigger = "age"
	TriggerSize    DeletionTrigger = "size"
	TriggerQuality DeletionTrigger = "quality"
)
