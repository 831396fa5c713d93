// Package metrics defines the per-category quality signals an external
// analyzer hands to the engine. Exactly one variant describes a file, or
// None when the file was never analyzed.
package metrics

import (
	"fmt"
	"strings"
)

// Category is the quality category of a file
type Category string

const (
	CategoryCode     Category = "code"
	CategoryDocument Category = "document"
	CategoryImage    Category = "image"
	CategoryVideo    Category = "video"
	CategoryOther    Category = "other"
)

// ScoredCategories lists the categories that carry a metrics variant
var ScoredCategories = []Category{CategoryCode, CategoryDocument, CategoryImage, CategoryVideo}

// ParseCategory parses a category name (case-insensitive)
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	switch c {
	case CategoryCode, CategoryDocument, CategoryImage, CategoryVideo, CategoryOther:
		return c, nil
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// Metrics is the closed set of quality metric variants.
// Implementations: Code, Document, Image, Video and None.
type Metrics interface {
	// Category returns the category the variant describes; None returns "".
	Category() Category
	sealed()
}

// Code holds code quality sub-scores in [0,1]
type Code struct {
	LintingScore  float64 `json:"linting_score" yaml:"linting_score"`
	Complexity    float64 `json:"complexity" yaml:"complexity"`
	Documentation float64 `json:"documentation" yaml:"documentation"`
}

// Document holds document quality sub-scores in [0,1]
type Document struct {
	Readability  float64 `json:"readability" yaml:"readability"`
	Formatting   float64 `json:"formatting" yaml:"formatting"`
	Completeness float64 `json:"completeness" yaml:"completeness"`
}

// Image holds image quality signals
type Image struct {
	Resolution   float64 `json:"resolution" yaml:"resolution"`
	ColorProfile string  `json:"color_profile" yaml:"color_profile"`
	Compression  float64 `json:"compression" yaml:"compression"`
}

// Video holds video quality signals.
// Bitrate is in kbps and Duration in seconds.
type Video struct {
	Resolution string  `json:"resolution" yaml:"resolution"`
	Bitrate    float64 `json:"bitrate" yaml:"bitrate"`
	Duration   float64 `json:"duration" yaml:"duration"`
}

// None marks a file without any populated metrics variant
type None struct{}

func (Code) Category() Category     { return CategoryCode }
func (Document) Category() Category { return CategoryDocument }
func (Image) Category() Category    { return CategoryImage }
func (Video) Category() Category    { return CategoryVideo }
func (None) Category() Category     { return "" }

func (Code) sealed()     {}
func (Document) sealed() {}
func (Image) sealed()    {}
func (Video) sealed()    {}
func (None) sealed()     {}

// IsNone reports whether m carries no variant (nil counts as None)
func IsNone(m Metrics) bool {
	if m == nil {
		return true
	}
	_, ok := m.(None)
	return ok
}

// OrNone returns m, or None when m is nil
func OrNone(m Metrics) Metrics {
	if m == nil {
		return None{}
	}
	return m
}

// Sub-score names, as used by weights configuration and recommendation text
const (
	SubLintingScore  = "linting_score"
	SubComplexity    = "complexity"
	SubDocumentation = "documentation"
	SubReadability   = "readability"
	SubFormatting    = "formatting"
	SubCompleteness  = "completeness"
	SubResolution    = "resolution"
	SubColorProfile  = "color_profile"
	SubCompression   = "compression"
	SubBitrate       = "bitrate"
	SubDuration      = "duration"
)

var subScores = map[Category][]string{
	CategoryCode:     {SubLintingScore, SubComplexity, SubDocumentation},
	CategoryDocument: {SubReadability, SubFormatting, SubCompleteness},
	CategoryImage:    {SubResolution, SubColorProfile, SubCompression},
	CategoryVideo:    {SubResolution, SubBitrate, SubDuration},
}

// SubScores returns the sub-score names of a category in canonical order
func SubScores(c Category) []string {
	return append([]string(nil), subScores[c]...)
}
