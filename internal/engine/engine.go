// Package engine runs the assessment pipeline for a file: normalize its
// metrics, classify it, persist the assessment, then synthesize and persist
// recommendations. It also accepts feedback on recommendations.
package engine

import (
	"fmt"
	"time"

	"github.com/franz/file-curator/internal/feedback"
	"github.com/franz/file-curator/internal/metrics"
	"github.com/franz/file-curator/internal/model"
	"github.com/franz/file-curator/internal/policy"
	"github.com/franz/file-curator/internal/recommend"
	"github.com/franz/file-curator/internal/report"
	"github.com/franz/file-curator/internal/rules"
	"github.com/franz/file-curator/internal/score"
	"github.com/franz/file-curator/internal/util"
)

// Store is the record store the engine reads inputs from and appends results to.
// Lookups return (nil, nil) when the record does not exist.
type Store interface {
	GetFile(id int64) (*model.FileRecord, error)
	GetMetrics(fileID int64) (metrics.Metrics, error)
	GetSuggestions(fileID int64) ([]*model.ContentSuggestion, error)
	InsertAssessment(a *model.Assessment) (int64, error)
	LatestAssessment(fileID int64) (*model.Assessment, error)
	InsertRecommendations(recs []*model.Recommendation) ([]int64, error)
	GetRecommendation(id int64) (*model.Recommendation, error)
	InsertFeedback(f *model.Feedback) (int64, error)
	QueryRecentFeedback(t model.RecommendationType, limit int) ([]*model.Feedback, error)
}

// Config holds engine configuration
type Config struct {
	Store       Store
	Rules       rules.Source
	Feedback    *feedback.Loop
	Logger      *report.EventLogger
	Concurrency int
	Now         func() time.Time
}

// Engine runs the per-file pipeline. It is safe for concurrent use: the only
// shared mutable state is the feedback loop.
type Engine struct {
	store       Store
	rules       rules.Source
	feedback    *feedback.Loop
	synth       *recommend.Synthesizer
	logger      *report.EventLogger
	concurrency int
	now         func() time.Time
}

// New creates an engine. A nil feedback loop gets a default in-memory one.
func New(cfg *Config) *Engine {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.Feedback == nil {
		cfg.Feedback = feedback.New(nil)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Engine{
		store:       cfg.Store,
		rules:       cfg.Rules,
		feedback:    cfg.Feedback,
		synth:       recommend.New(cfg.Feedback),
		logger:      cfg.Logger,
		concurrency: cfg.Concurrency,
		now:         cfg.Now,
	}
}

// Feedback returns the engine's feedback loop
func (e *Engine) Feedback() *feedback.Loop {
	return e.feedback
}

// snapshot returns the rules in effect for one call
func (e *Engine) snapshot(fileID int64) (*rules.Rules, error) {
	var rs *rules.Rules
	if e.rules != nil {
		rs = e.rules.Current()
	}
	if rs == nil {
		return nil, &StageError{
			Stage:  StageRules,
			FileID: fileID,
			Err:    &rules.ConfigError{Field: "rules", Reason: "no rules loaded"},
		}
	}
	return rs, nil
}

// Assess normalizes and classifies a file and appends the assessment.
// Nothing is written when any step before the insert fails.
func (e *Engine) Assess(fileID int64) (*model.Assessment, error) {
	rs, err := e.snapshot(fileID)
	if err != nil {
		return nil, e.fail(err)
	}
	return e.assess(fileID, rs)
}

func (e *Engine) assess(fileID int64, rs *rules.Rules) (*model.Assessment, error) {
	start := time.Now()

	file, err := e.store.GetFile(fileID)
	if err != nil {
		return nil, e.fail(&StageError{Stage: StageLoad, FileID: fileID, Err: persistence(err)})
	}
	if file == nil {
		return nil, e.fail(&StageError{Stage: StageLoad, FileID: fileID, Err: fmt.Errorf("file: %w", util.ErrNotFound)})
	}

	m, err := e.store.GetMetrics(fileID)
	if err != nil {
		return nil, e.fail(&StageError{Stage: StageLoad, FileID: fileID, Err: persistence(err)})
	}
	m = metrics.OrNone(m)

	result := score.Normalize(m, rs.WeightsFor(m.Category()))
	if !result.Scored {
		util.DebugLog("File %d has no metrics, classifying as unscored", fileID)
	}

	a, err := policy.Classify(file, m, result, rs, e.now())
	if err != nil {
		return nil, e.fail(&StageError{Stage: StageClassify, FileID: fileID, Err: err})
	}

	if _, err := e.store.InsertAssessment(a); err != nil {
		return nil, e.fail(&StageError{Stage: StagePersistAssessment, FileID: fileID, Err: persistence(err)})
	}

	e.logger.LogAssess(a, time.Since(start))
	util.DebugLog("Assessed %s: %s (monetizable=%t, deletion=%t)",
		file.Path, a.QualityScore, a.MonetizationEligible, a.NeedsDeletion)
	return a, nil
}

// Recommend synthesizes recommendations from the file's latest assessment and
// appends them. Earlier recommendations are not deduplicated.
func (e *Engine) Recommend(fileID int64) ([]*model.Recommendation, error) {
	rs, err := e.snapshot(fileID)
	if err != nil {
		return nil, e.fail(err)
	}

	a, err := e.store.LatestAssessment(fileID)
	if err != nil {
		return nil, e.fail(&StageError{Stage: StageLoad, FileID: fileID, Err: persistence(err)})
	}
	if a == nil {
		return nil, e.fail(&StageError{Stage: StageLoad, FileID: fileID, Err: fmt.Errorf("assessment: %w", util.ErrNotFound)})
	}

	return e.recommendFrom(a, rs)
}

func (e *Engine) recommendFrom(a *model.Assessment, rs *rules.Rules) ([]*model.Recommendation, error) {
	suggestions, err := e.store.GetSuggestions(a.FileID)
	if err != nil {
		return nil, e.fail(&StageError{Stage: StageSynthesize, FileID: a.FileID, Err: persistence(err)})
	}

	recs := e.synth.Synthesize(a, suggestions, rs, e.now())
	if len(recs) == 0 {
		return recs, nil
	}

	if _, err := e.store.InsertRecommendations(recs); err != nil {
		return nil, e.fail(&StageError{Stage: StagePersistRecommendations, FileID: a.FileID, Err: persistence(err)})
	}

	for _, r := range recs {
		e.logger.LogRecommend(r)
	}
	return recs, nil
}

// Outcome is the result of running the whole pipeline for one file
type Outcome struct {
	FileID          int64
	Assessment      *model.Assessment
	Recommendations []*model.Recommendation
	Err             error
}

// Process assesses a file and synthesizes recommendations from that assessment,
// using one rules snapshot for both. When only the recommendation step fails
// the stored assessment is kept and returned alongside the error.
func (e *Engine) Process(fileID int64) *Outcome {
	out := &Outcome{FileID: fileID}

	rs, err := e.snapshot(fileID)
	if err != nil {
		out.Err = e.fail(err)
		return out
	}

	a, err := e.assess(fileID, rs)
	if err != nil {
		out.Err = err
		return out
	}
	out.Assessment = a

	out.Recommendations, out.Err = e.recommendFrom(a, rs)
	return out
}

// SubmitFeedback appends a vote on a recommendation and feeds it into the
// rolling ratio of the recommendation's type
func (e *Engine) SubmitFeedback(recommendationID int64, helpful bool, text string) (*model.Feedback, error) {
	rec, err := e.store.GetRecommendation(recommendationID)
	if err != nil {
		return nil, e.fail(&StageError{Stage: StageFeedback, RecommendationID: recommendationID, Err: persistence(err)})
	}
	if rec == nil {
		return nil, e.fail(&StageError{
			Stage:            StageFeedback,
			RecommendationID: recommendationID,
			Err:              fmt.Errorf("recommendation: %w", util.ErrNotFound),
		})
	}

	fb := &model.Feedback{
		RecommendationID: recommendationID,
		Type:             rec.Type,
		Helpful:          helpful,
		Text:             text,
		CreatedAt:        e.now(),
	}
	if _, err := e.store.InsertFeedback(fb); err != nil {
		return nil, e.fail(&StageError{Stage: StageFeedback, RecommendationID: recommendationID, Err: persistence(err)})
	}

	e.feedback.RecordFeedback(rec.Type, helpful)
	e.logger.LogFeedback(fb)
	return fb, nil
}

// WarmFeedback seeds the feedback loop from stored feedback
func (e *Engine) WarmFeedback() error {
	return e.feedback.Warm(e.store)
}

// fail records a stage error in the event log and returns it unchanged
func (e *Engine) fail(err error) error {
	if se, ok := err.(*StageError); ok {
		e.logger.LogError(string(se.Stage), se.FileID, se)
	}
	return err
}
