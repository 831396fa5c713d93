package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/franz/file-curator/internal/engine"
	"github.com/franz/file-curator/internal/model"
	"github.com/franz/file-curator/internal/util"
)

var assessCmd = &cobra.Command{
	Use:   "assess",
	Short: "Classify files into quality tiers",
	Long: `Assess files against the current rules.

Each assessment normalizes the file's metrics into a score, classifies it
as Good, Moderate or Poor, and decides monetization eligibility and whether
the file needs deletion review. Every run appends a new assessment; earlier
ones are kept as history.

Use --file for a single file or --all for every registered file.`,
	RunE: runAssess,
}

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Synthesize recommendations from the latest assessments",
	Long: `Turn each file's latest assessment into prioritized recommendations
(deletion, monetization, quality improvement, organization).

Priorities are lowered for recommendation types users have found unhelpful.
Use --file for a single file or --all for every registered file.`,
	RunE: runRecommend,
}

func init() {
	rootCmd.AddCommand(assessCmd)
	rootCmd.AddCommand(recommendCmd)

	for _, c := range []*cobra.Command{assessCmd, recommendCmd} {
		c.Flags().Int64("file", 0, "file ID")
		c.Flags().Bool("all", false, "process every registered file")
		c.MarkFlagsMutuallyExclusive("file", "all")
		c.MarkFlagsOneRequired("file", "all")
	}
	assessCmd.Flags().Bool("recommend", false, "also synthesize recommendations from the new assessment")
}

func runAssess(cmd *cobra.Command, args []string) error {
	mode := engine.ModeAssess
	if withRecs, _ := cmd.Flags().GetBool("recommend"); withRecs {
		mode = engine.ModeProcess
	}
	return runPipeline(cmd, mode)
}

func runRecommend(cmd *cobra.Command, args []string) error {
	return runPipeline(cmd, engine.ModeRecommend)
}

func runPipeline(cmd *cobra.Command, mode engine.Mode) error {
	setupLogging()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	loader, err := loadRules()
	if err != nil {
		return err
	}

	logger := openEventLogger()
	defer logger.Close()

	eng, err := newEngine(db, loader, logger)
	if err != nil {
		return err
	}

	fileID, _ := cmd.Flags().GetInt64("file")
	if fileID != 0 {
		out := runSingle(eng, fileID, mode)
		if out.Assessment != nil {
			printAssessment(out.Assessment)
		}
		if len(out.Recommendations) > 0 {
			printRecommendations(out.Recommendations)
		}
		return out.Err
	}

	ids, err := db.ListFileIDs()
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		util.WarnLog("No files registered. Run 'fcur scan <dir>' first.")
		return nil
	}

	start := time.Now()
	result, runErr := eng.Run(ctx, ids, mode)

	util.SuccessLog("Processed %s files in %v", util.FormatCount(result.Files), time.Since(start).Round(time.Millisecond))
	if mode != engine.ModeRecommend {
		util.InfoLog("  Assessed: %s", util.FormatCount(result.Assessed))
	}
	if mode != engine.ModeAssess {
		util.InfoLog("  Recommendations: %s", util.FormatCount(result.Recommendations))
	}
	if result.Failed > 0 {
		util.WarnLog("  Failed: %d", result.Failed)
		for i, err := range result.Errors {
			if i == 10 {
				util.WarnLog("  ... and %d more (see %s)", len(result.Errors)-10, logger.Path())
				break
			}
			util.WarnLog("  %v", err)
		}
	}

	if runErr != nil {
		return runErr
	}
	if result.Failed > 0 {
		return fmt.Errorf("%d of %d files failed", result.Failed, result.Files)
	}
	return nil
}

func runSingle(eng *engine.Engine, fileID int64, mode engine.Mode) *engine.Outcome {
	switch mode {
	case engine.ModeAssess:
		a, err := eng.Assess(fileID)
		return &engine.Outcome{FileID: fileID, Assessment: a, Err: err}
	case engine.ModeRecommend:
		recs, err := eng.Recommend(fileID)
		return &engine.Outcome{FileID: fileID, Recommendations: recs, Err: err}
	}
	return eng.Process(fileID)
}

func printAssessment(a *model.Assessment) {
	score := "unscored"
	if a.NormalizedScore != nil {
		score = fmt.Sprintf("%.2f", *a.NormalizedScore)
	}
	util.InfoLog("Assessment #%d for file %d:", a.ID, a.FileID)
	util.InfoLog("  Tier: %s (score %s)", a.QualityScore, score)
	util.InfoLog("  Monetizable: %s", yesNo(a.MonetizationEligible))
	if a.NeedsDeletion {
		triggers := make([]string, len(a.DeletionTriggers))
		for i, t := range a.DeletionTriggers {
			triggers[i] = string(t)
		}
		util.InfoLog("  Needs deletion review: yes (%s)", strings.Join(triggers, ", "))
	} else {
		util.InfoLog("  Needs deletion review: no")
	}
}

func printRecommendations(recs []*model.Recommendation) {
	util.InfoLog("Recommendations:")
	for _, r := range recs {
		status := ""
		if r.Implemented {
			status = " [implemented]"
		}
		util.InfoLog("  #%d [%s] %s%s", r.ID, r.Priority, r.Type, status)
		util.InfoLog("      %s", r.Text)
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
