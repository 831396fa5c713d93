package engine

import (
	"errors"
	"fmt"

	"github.com/franz/file-curator/internal/util"
)

// Stage names the pipeline step an error came from
type Stage string

const (
	StageRules                  Stage = "rules"
	StageLoad                   Stage = "load"
	StageClassify               Stage = "classify"
	StagePersistAssessment      Stage = "persist_assessment"
	StageSynthesize             Stage = "synthesize"
	StagePersistRecommendations Stage = "persist_recommendations"
	StageFeedback               Stage = "feedback"
)

// StageError carries the file or recommendation and the stage that failed.
// It unwraps to util.ErrInvalidConfig, util.ErrNotFound or util.ErrPersistence.
type StageError struct {
	Stage            Stage
	FileID           int64
	RecommendationID int64
	Err              error
}

func (e *StageError) Error() string {
	switch {
	case e.RecommendationID != 0:
		return fmt.Sprintf("recommendation %d: %s: %v", e.RecommendationID, e.Stage, e.Err)
	case e.FileID != 0:
		return fmt.Sprintf("file %d: %s: %v", e.FileID, e.Stage, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// IsConfigurationError reports whether err comes from malformed or missing rules
func IsConfigurationError(err error) bool {
	return errors.Is(err, util.ErrInvalidConfig)
}

// IsMissingInput reports whether err means a referenced record does not exist
func IsMissingInput(err error) bool {
	return errors.Is(err, util.ErrNotFound)
}

// IsPersistence reports whether err is a failed store call
func IsPersistence(err error) bool {
	return errors.Is(err, util.ErrPersistence)
}

// persistence makes sure a store error is classified as a persistence error
func persistence(err error) error {
	if errors.Is(err, util.ErrPersistence) {
		return err
	}
	return fmt.Errorf("%w: %w", util.ErrPersistence, err)
}
