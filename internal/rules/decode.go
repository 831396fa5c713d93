package rules

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/franz/file-curator/internal/metrics"
	"github.com/franz/file-curator/internal/model"
)

// Raw shapes keep pointers so an absent field can be told apart from zero.
type rawRules struct {
	QualityThresholds    map[string]rawThresholds      `mapstructure:"quality_thresholds"`
	MetricWeights        map[string]map[string]float64 `mapstructure:"metric_weights"`
	MonetizationCriteria *rawMonetization              `mapstructure:"monetization_criteria"`
	DeletionRules        *rawDeletion                  `mapstructure:"deletion_rules"`
}

type rawThresholds struct {
	Good     *float64 `mapstructure:"good"`
	Moderate *float64 `mapstructure:"moderate"`
}

type rawMonetization struct {
	MinQualityScore  *string   `mapstructure:"min_quality_score"`
	RequiredMetadata *[]string `mapstructure:"required_metadata"`
	ContentTypes     *[]string `mapstructure:"content_types"`
}

type rawDeletion struct {
	AgeThresholdDays   *int     `mapstructure:"age_threshold_days"`
	SizeThresholdBytes *int64   `mapstructure:"size_threshold_bytes"`
	QualityThreshold   *float64 `mapstructure:"quality_threshold"`
}

// LoadFile reads and validates a rules file (YAML, JSON or TOML by extension)
func LoadFile(path string) (*Rules, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read rules file %s: %w", path, err)
	}
	return fromViper(v)
}

// Parse reads and validates rules from memory. format is a viper config type
// such as "yaml" or "json".
func Parse(data []byte, format string) (*Rules, error) {
	v := viper.New()
	v.SetConfigType(strings.TrimPrefix(format, "."))
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("failed to parse rules: %w", err)
	}
	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Rules, error) {
	var raw rawRules
	strict := func(c *mapstructure.DecoderConfig) {
		c.ErrorUnused = true
	}
	if err := v.Unmarshal(&raw, strict); err != nil {
		return nil, &ConfigError{Field: "rules", Reason: err.Error()}
	}

	r, err := raw.build()
	if err != nil {
		return nil, err
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

func (raw *rawRules) build() (*Rules, error) {
	var errs []error
	missing := func(field string) {
		errs = append(errs, &ConfigError{Field: field, Reason: "required field is missing"})
	}

	r := &Rules{
		QualityThresholds: make(map[metrics.Category]Thresholds),
		MetricWeights:     make(map[metrics.Category]Weights),
	}

	if raw.QualityThresholds == nil {
		missing("quality_thresholds")
	}
	for name, t := range raw.QualityThresholds {
		field := "quality_thresholds." + name
		c, err := metrics.ParseCategory(name)
		if err != nil {
			errs = append(errs, &ConfigError{Field: field, Reason: err.Error()})
			continue
		}
		if t.Good == nil {
			missing(field + ".good")
		}
		if t.Moderate == nil {
			missing(field + ".moderate")
		}
		if t.Good != nil && t.Moderate != nil {
			r.QualityThresholds[c] = Thresholds{Good: *t.Good, Moderate: *t.Moderate}
		}
	}

	for name, w := range raw.MetricWeights {
		c, err := metrics.ParseCategory(name)
		if err != nil {
			errs = append(errs, &ConfigError{Field: "metric_weights." + name, Reason: err.Error()})
			continue
		}
		weights := make(Weights, len(w))
		for k, val := range w {
			weights[k] = val
		}
		r.MetricWeights[c] = weights
	}

	if m := raw.MonetizationCriteria; m == nil {
		missing("monetization_criteria")
	} else {
		if m.MinQualityScore == nil {
			missing("monetization_criteria.min_quality_score")
		} else if tier, err := model.ParseTier(*m.MinQualityScore); err != nil {
			errs = append(errs, &ConfigError{Field: "monetization_criteria.min_quality_score", Reason: err.Error()})
		} else {
			r.MonetizationCriteria.MinQualityScore = tier
		}
		if m.RequiredMetadata == nil {
			missing("monetization_criteria.required_metadata")
		} else {
			r.MonetizationCriteria.RequiredMetadata = append([]string(nil), *m.RequiredMetadata...)
		}
		if m.ContentTypes == nil {
			missing("monetization_criteria.content_types")
		} else {
			r.MonetizationCriteria.ContentTypes = append([]string(nil), *m.ContentTypes...)
		}
	}

	if d := raw.DeletionRules; d == nil {
		missing("deletion_rules")
	} else {
		if d.AgeThresholdDays == nil {
			missing("deletion_rules.age_threshold_days")
		} else {
			r.DeletionRules.AgeThresholdDays = *d.AgeThresholdDays
		}
		if d.SizeThresholdBytes == nil {
			missing("deletion_rules.size_threshold_bytes")
		} else {
			r.DeletionRules.SizeThresholdBytes = *d.SizeThresholdBytes
		}
		if d.QualityThreshold == nil {
			missing("deletion_rules.quality_threshold")
		} else {
			r.DeletionRules.QualityThreshold = *d.QualityThreshold
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return r, nil
}

// yamlRules is the documented file layout, used when printing rules
type yamlRules struct {
	QualityThresholds map[string]yamlThresholds     `yaml:"quality_thresholds"`
	MetricWeights     map[string]map[string]float64 `yaml:"metric_weights,omitempty"`
	Monetization      struct {
		MinQualityScore  string   `yaml:"min_quality_score"`
		RequiredMetadata []string `yaml:"required_metadata"`
		ContentTypes     []string `yaml:"content_types"`
	} `yaml:"monetization_criteria"`
	Deletion struct {
		AgeThresholdDays   int     `yaml:"age_threshold_days"`
		SizeThresholdBytes int64   `yaml:"size_threshold_bytes"`
		QualityThreshold   float64 `yaml:"quality_threshold"`
	} `yaml:"deletion_rules"`
}

type yamlThresholds struct {
	Good     float64 `yaml:"good"`
	Moderate float64 `yaml:"moderate"`
}

// YAML renders the rules in the same layout LoadFile accepts
func (r *Rules) YAML() ([]byte, error) {
	var out yamlRules
	out.QualityThresholds = make(map[string]yamlThresholds, len(r.QualityThresholds))
	for c, t := range r.QualityThresholds {
		out.QualityThresholds[string(c)] = yamlThresholds{Good: t.Good, Moderate: t.Moderate}
	}
	if len(r.MetricWeights) > 0 {
		out.MetricWeights = make(map[string]map[string]float64, len(r.MetricWeights))
		for c, w := range r.MetricWeights {
			out.MetricWeights[string(c)] = w
		}
	}
	out.Monetization.MinQualityScore = r.MonetizationCriteria.MinQualityScore.String()
	out.Monetization.RequiredMetadata = r.MonetizationCriteria.RequiredMetadata
	out.Monetization.ContentTypes = r.MonetizationCriteria.ContentTypes
	out.Deletion.AgeThresholdDays = r.DeletionRules.AgeThresholdDays
	out.Deletion.SizeThresholdBytes = r.DeletionRules.SizeThresholdBytes
	out.Deletion.QualityThreshold = r.DeletionRules.QualityThreshold

	return yaml.Marshal(out)
}
