package engine

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/sourcegraph/conc/pool"

	"github.com/franz/file-curator/internal/util"
)

// Mode selects which pipeline steps Run performs per file
type Mode int

const (
	// ModeAssess only assesses
	ModeAssess Mode = iota
	// ModeRecommend only synthesizes from the latest assessments
	ModeRecommend
	// ModeProcess assesses and then synthesizes
	ModeProcess
)

// RunResult summarizes a batch run
type RunResult struct {
	Files           int
	Assessed        int
	Recommendations int
	Failed          int
	Outcomes        []*Outcome
	Errors          []error
}

// Run executes the pipeline for many files concurrently. Files never share
// mutable state, so a failure only affects its own file. Cancelling ctx stops
// files that have not started yet.
func (e *Engine) Run(ctx context.Context, fileIDs []int64, mode Mode) (*RunResult, error) {
	result := &RunResult{Files: len(fileIDs)}
	if len(fileIDs) == 0 {
		return result, nil
	}

	var done atomic.Int64
	var bar *progressbar.ProgressBar
	if util.ShowProgress() {
		bar = progressbar.NewOptions(len(fileIDs),
			progressbar.OptionSetDescription(describe(mode)),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("files"),
			progressbar.OptionThrottle(200*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
	}

	p := pool.NewWithResults[*Outcome]().WithMaxGoroutines(e.concurrency)
	for _, id := range fileIDs {
		id := id
		p.Go(func() *Outcome {
			defer func() {
				n := done.Add(1)
				if bar != nil {
					bar.Add(1)
				} else if n%500 == 0 {
					util.InfoLog("Progress: %d/%d files", n, len(fileIDs))
				}
			}()

			if err := ctx.Err(); err != nil {
				return &Outcome{FileID: id, Err: err}
			}
			return e.runOne(id, mode)
		})
	}
	outcomes := p.Wait()

	if bar != nil {
		bar.Finish()
	}

	for _, o := range outcomes {
		if o.Assessment != nil && mode != ModeRecommend {
			result.Assessed++
		}
		result.Recommendations += len(o.Recommendations)
		if o.Err != nil {
			result.Failed++
			result.Errors = append(result.Errors, o.Err)
		}
	}
	result.Outcomes = outcomes

	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("run interrupted: %w", err)
	}
	return result, nil
}

func (e *Engine) runOne(fileID int64, mode Mode) *Outcome {
	switch mode {
	case ModeAssess:
		a, err := e.Assess(fileID)
		return &Outcome{FileID: fileID, Assessment: a, Err: err}
	case ModeRecommend:
		recs, err := e.Recommend(fileID)
		return &Outcome{FileID: fileID, Recommendations: recs, Err: err}
	default:
		return e.Process(fileID)
	}
}

func describe(mode Mode) string {
	switch mode {
	case ModeAssess:
		return "Assessing"
	case ModeRecommend:
		return "Recommending"
	}
	return "Processing"
}
