// Package score turns per-category quality metrics into a single normalized
// score in [0,1] that the classification policy can compare against thresholds.
package score

import (
	"math"
	"strings"

	"github.com/franz/file-curator/internal/metrics"
	"github.com/franz/file-curator/internal/rules"
)

// Component is one weighted sub-score of a normalized result
type Component struct {
	Name   string
	Value  float64
	Weight float64
}

// Result is a normalized score. Scored is false for files without metrics,
// which must be excluded from quality-based decisions rather than penalized.
type Result struct {
	Value      float64
	Scored     bool
	Category   metrics.Category
	Components []Component
}

// Unscored is the result for a file without any metrics variant
var Unscored = Result{}

// Weakest returns the lowest-valued weighted component
func (r Result) Weakest() (Component, bool) {
	var weakest Component
	found := false
	for _, c := range r.Components {
		if c.Weight <= 0 {
			continue
		}
		if !found || c.Value < weakest.Value {
			weakest = c
			found = true
		}
	}
	return weakest, found
}

// Normalize computes the weighted mean of the variant's sub-scores.
// A nil weights map means equal weights.
func Normalize(m metrics.Metrics, weights rules.Weights) Result {
	var values map[string]float64

	switch v := metrics.OrNone(m).(type) {
	case metrics.Code:
		values = map[string]float64{
			metrics.SubLintingScore:  clamp(v.LintingScore),
			metrics.SubComplexity:    clamp(v.Complexity),
			metrics.SubDocumentation: clamp(v.Documentation),
		}
	case metrics.Document:
		values = map[string]float64{
			metrics.SubReadability:  clamp(v.Readability),
			metrics.SubFormatting:   clamp(v.Formatting),
			metrics.SubCompleteness: clamp(v.Completeness),
		}
	case metrics.Image:
		values = map[string]float64{
			metrics.SubResolution:   clamp(v.Resolution),
			metrics.SubColorProfile: ColorProfileScore(v.ColorProfile),
			metrics.SubCompression:  clamp(v.Compression),
		}
	case metrics.Video:
		values = map[string]float64{
			metrics.SubResolution: VideoResolutionScore(v.Resolution),
			metrics.SubBitrate:    BitrateScore(v.Bitrate),
			metrics.SubDuration:   DurationScore(v.Duration),
		}
	default:
		return Unscored
	}

	category := m.Category()
	result := Result{Scored: true, Category: category}

	var sum, total float64
	for _, name := range metrics.SubScores(category) {
		w := 1.0
		if weights != nil {
			w = weights[name]
		}
		result.Components = append(result.Components, Component{Name: name, Value: values[name], Weight: w})
		sum += values[name] * w
		total += w
	}

	if total > 0 {
		result.Value = roundScore(clamp(sum / total))
	}
	return result
}

// scorePrecision is the resolution normalized scores are rounded to, so a
// mean of sub-scores sitting on a threshold compares equal to it
const scorePrecision = 1e9

// roundScore drops float error below scorePrecision. It is monotonic.
func roundScore(v float64) float64 {
	return math.Round(v*scorePrecision) / scorePrecision
}

// videoResolutions maps resolution labels to ordinal scores
var videoResolutions = map[string]float64{
	"240p":  0.1,
	"360p":  0.2,
	"480p":  0.3,
	"sd":    0.3,
	"720p":  0.6,
	"hd":    0.6,
	"1080p": 0.8,
	"fhd":   0.8,
	"1440p": 0.9,
	"2k":    0.9,
	"2160p": 1.0,
	"4k":    1.0,
	"uhd":   1.0,
}

// colorProfiles maps image color profiles to ordinal scores
var colorProfiles = map[string]float64{
	"adobergb":  1.0,
	"prophoto":  1.0,
	"displayp3": 0.9,
	"srgb":      0.8,
	"cmyk":      0.6,
	"grayscale": 0.4,
}

// neutralScore is used for labels outside the ordinal tables
const neutralScore = 0.5

// VideoResolutionScore maps a resolution label (e.g. "1080p", "4K") to [0,1].
// Unknown labels score neutral.
func VideoResolutionScore(label string) float64 {
	return lookup(videoResolutions, label)
}

// ColorProfileScore maps an image color profile name to [0,1].
// Unknown profiles score neutral.
func ColorProfileScore(profile string) float64 {
	return lookup(colorProfiles, profile)
}

// BitrateScore tiers a video bitrate in kbps
func BitrateScore(kbps float64) float64 {
	switch {
	case kbps >= 8000:
		return 1.0
	case kbps >= 5000:
		return 0.8
	case kbps >= 2500:
		return 0.6
	case kbps >= 1000:
		return 0.4
	case kbps > 0:
		return 0.2
	default:
		return 0.0
	}
}

// DurationScore tiers a video duration in seconds. Empty videos score zero
// and very short clips score neutral.
func DurationScore(seconds float64) float64 {
	switch {
	case seconds >= 10:
		return 1.0
	case seconds > 0:
		return neutralScore
	default:
		return 0.0
	}
}

func lookup(table map[string]float64, label string) float64 {
	key := strings.ToLower(strings.TrimSpace(label))
	key = strings.NewReplacer(" ", "", "-", "", "_", "").Replace(key)
	if v, ok := table[key]; ok {
		return v
	}
	return neutralScore
}

func clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
