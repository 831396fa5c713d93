package meta

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/franz/file-curator/internal/metrics"
	"github.com/franz/file-curator/internal/model"
	"github.com/franz/file-curator/internal/report"
	"github.com/franz/file-curator/internal/util"
)

// ImportDoc is a file of externally computed metrics and suggestions
type ImportDoc struct {
	Files []ImportEntry `json:"files" yaml:"files"`
}

// ImportEntry carries the analyzer output for one scanned file.
// A nil Metrics leaves the stored metrics alone; an empty envelope clears them.
// A nil Suggestions leaves the stored suggestions alone; an empty list clears them.
type ImportEntry struct {
	Path        string             `json:"path" yaml:"path"`
	Metadata    map[string]string  `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	Metrics     *metrics.Envelope  `json:"metrics,omitempty" yaml:"metrics,omitempty"`
	Suggestions []ImportSuggestion `json:"suggestions,omitempty" yaml:"suggestions,omitempty"`
}

// ImportSuggestion is one content suggestion as written by the analyzer
type ImportSuggestion struct {
	Category   string `json:"category" yaml:"category"`
	Priority   string `json:"priority" yaml:"priority"`
	Suggestion string `json:"suggestion" yaml:"suggestion"`
	Reason     string `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// ParseImportFile reads an import document. Files ending in .json are
// decoded as JSON, everything else as YAML. Unknown keys are rejected.
func ParseImportFile(path string) (*ImportDoc, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read import file: %w", err)
	}

	if strings.EqualFold(filepath.Ext(path), ".json") {
		return DecodeImportJSON(bytes.NewReader(data))
	}
	return DecodeImportYAML(bytes.NewReader(data))
}

// DecodeImportJSON decodes a JSON import document
func DecodeImportJSON(r io.Reader) (*ImportDoc, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	var doc ImportDoc
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: import file: %w", util.ErrInvalidConfig, err)
	}
	return &doc, doc.validate()
}

// DecodeImportYAML decodes a YAML import document
func DecodeImportYAML(r io.Reader) (*ImportDoc, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc ImportDoc
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: import file: %w", util.ErrInvalidConfig, err)
	}
	return &doc, doc.validate()
}

func (d *ImportDoc) validate() error {
	seen := make(map[string]int, len(d.Files))
	for i, e := range d.Files {
		if strings.TrimSpace(e.Path) == "" {
			return fmt.Errorf("%w: import entry %d has no path", util.ErrInvalidConfig, i)
		}
		if j, dup := seen[e.Path]; dup {
			return fmt.Errorf("%w: import entries %d and %d share path %s", util.ErrInvalidConfig, j, i, e.Path)
		}
		seen[e.Path] = i
	}
	return nil
}

// ImportStore is the part of the record store an import writes to
type ImportStore interface {
	GetFileByPath(path string) (*model.FileRecord, error)
	MergeFileMetadata(fileID int64, fields map[string]string) error
	ReplaceMetrics(fileID int64, m metrics.Metrics) error
	ReplaceSuggestions(fileID int64, suggestions []*model.ContentSuggestion) error
}

// ImportConfig holds importer configuration
type ImportConfig struct {
	Store  ImportStore
	Logger *report.EventLogger
}

// Importer applies import documents to the store
type Importer struct {
	store  ImportStore
	logger *report.EventLogger
}

// ImportResult contains import statistics
type ImportResult struct {
	Entries             int
	MetricsReplaced     int
	SuggestionsReplaced int
	MetadataMerged      int
	Skipped             int
	Errors              []error
}

// NewImporter creates a new importer
func NewImporter(cfg *ImportConfig) *Importer {
	return &Importer{
		store:  cfg.Store,
		logger: cfg.Logger,
	}
}

// Import applies every entry of doc. Entries whose path was never scanned
// are skipped; a failing entry does not stop the others.
func (im *Importer) Import(doc *ImportDoc) *ImportResult {
	result := &ImportResult{Entries: len(doc.Files)}

	for _, e := range doc.Files {
		if err := im.apply(e, result); err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, err)
			im.logger.LogError("import", 0, err)
		}
	}
	return result
}

func (im *Importer) apply(e ImportEntry, result *ImportResult) error {
	f, err := im.store.GetFileByPath(e.Path)
	if err != nil {
		return fmt.Errorf("%s: %w", e.Path, err)
	}
	if f == nil {
		return fmt.Errorf("%s: %w (run scan first)", e.Path, util.ErrNotFound)
	}

	if fields := cleanFields(e.Metadata); len(fields) > 0 {
		if err := im.store.MergeFileMetadata(f.ID, fields); err != nil {
			return fmt.Errorf("%s: %w", e.Path, err)
		}
		result.MetadataMerged++
	}

	variant := ""
	if e.Metrics != nil {
		m := metrics.OrNone(e.Metrics.Metrics)
		if c := m.Category(); c != "" && c != f.Type {
			util.WarnLog("%s: %s metrics imported for a %s file", e.Path, c, f.Type)
		}
		if err := im.store.ReplaceMetrics(f.ID, m); err != nil {
			return fmt.Errorf("%s: %w", e.Path, err)
		}
		variant = string(m.Category())
		if variant == "" {
			variant = "none"
		}
		result.MetricsReplaced++
	}

	if e.Suggestions != nil {
		if err := im.store.ReplaceSuggestions(f.ID, toSuggestions(f.ID, e.Suggestions)); err != nil {
			return fmt.Errorf("%s: %w", e.Path, err)
		}
		result.SuggestionsReplaced++
	}

	im.logger.LogImport(f.ID, f.Path, variant, len(e.Suggestions))
	return nil
}

// cleanFields normalizes imported metadata. Blank values are kept so the
// merge removes those fields.
func cleanFields(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		key := strings.ToLower(CleanString(k))
		if key == "" {
			continue
		}
		out[key] = CleanString(v)
	}
	return out
}

// toSuggestions converts analyzer suggestions. An unrecognized priority is
// stored as unset; the synthesizer treats it as medium.
func toSuggestions(fileID int64, in []ImportSuggestion) []*model.ContentSuggestion {
	out := make([]*model.ContentSuggestion, 0, len(in))
	for _, s := range in {
		p, err := model.ParsePriority(s.Priority)
		if err != nil {
			p = 0
		}
		out = append(out, &model.ContentSuggestion{
			FileID:     fileID,
			Category:   CleanString(s.Category),
			Priority:   p,
			Suggestion: CleanString(s.Suggestion),
			Reason:     CleanString(s.Reason),
		})
	}
	return out
}
