package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/franz/file-curator/internal/execute"
	"github.com/franz/file-curator/internal/util"
)

var feedbackCmd = &cobra.Command{
	Use:   "feedback",
	Short: "Record whether a recommendation was helpful",
	Long: `Record a helpful or not-helpful vote on a recommendation.

Votes feed a rolling per-type helpful ratio. Once enough votes exist, types
that users mostly find unhelpful are synthesized one priority lower.`,
	RunE: runFeedback,
}

var implementCmd = &cobra.Command{
	Use:   "implement",
	Short: "Mark a recommendation as implemented",
	Long: `Mark a recommendation as implemented. This cannot be undone;
marking an implemented recommendation again only prints a warning.

With --quarantine, a deletion recommendation is carried out by moving the
file below the quarantine directory (mirroring its absolute path) before it
is marked. Files are never deleted.

Examples:
  fcur implement --rec 42
  fcur implement --rec 17 --quarantine /srv/quarantine --dry-run`,
	RunE: runImplement,
}

func init() {
	rootCmd.AddCommand(feedbackCmd)
	rootCmd.AddCommand(implementCmd)

	feedbackCmd.Flags().Int64("rec", 0, "recommendation ID")
	feedbackCmd.Flags().Bool("helpful", false, "the recommendation was helpful")
	feedbackCmd.Flags().Bool("not-helpful", false, "the recommendation was not helpful")
	feedbackCmd.Flags().String("text", "", "optional comment")
	feedbackCmd.MarkFlagRequired("rec")
	feedbackCmd.MarkFlagsMutuallyExclusive("helpful", "not-helpful")
	feedbackCmd.MarkFlagsOneRequired("helpful", "not-helpful")

	implementCmd.Flags().Int64("rec", 0, "recommendation ID")
	implementCmd.Flags().String("quarantine", "", "move the file of a deletion recommendation into this directory")
	implementCmd.Flags().String("verify", "size", "verification for cross-device moves (size|hash|none)")
	implementCmd.Flags().Bool("dry-run", false, "show the quarantine move without performing it")
	implementCmd.MarkFlagRequired("rec")

	viper.BindPFlag("quarantine-verify", implementCmd.Flags().Lookup("verify"))
}

func runFeedback(cmd *cobra.Command, args []string) error {
	setupLogging()

	recID, _ := cmd.Flags().GetInt64("rec")
	helpful, _ := cmd.Flags().GetBool("helpful")
	text, _ := cmd.Flags().GetString("text")

	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	logger := openEventLogger()
	defer logger.Close()

	// Rules are not consulted when recording feedback
	eng, err := newEngine(db, nil, logger)
	if err != nil {
		return err
	}

	fb, err := eng.SubmitFeedback(recID, helpful, text)
	if err != nil {
		return err
	}

	ratio, samples := eng.Feedback().Ratio(fb.Type)
	util.SuccessLog("Feedback recorded for recommendation #%d (%s)", recID, fb.Type)
	util.InfoLog("  %s helpful ratio: %.0f%% over the last %d votes", fb.Type, ratio*100, samples)
	if adj := eng.Feedback().AdjustedPriority(fb.Type); adj < 0 {
		util.InfoLog("  %s recommendations are currently synthesized one priority lower", fb.Type)
	}
	return nil
}

func runImplement(cmd *cobra.Command, args []string) error {
	setupLogging()

	recID, _ := cmd.Flags().GetInt64("rec")
	if dir, _ := cmd.Flags().GetString("quarantine"); dir != "" {
		return runQuarantine(cmd, recID, dir)
	}

	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	logger := openEventLogger()
	defer logger.Close()

	err = db.MarkImplemented(recID)
	switch {
	case errors.Is(err, util.ErrAlreadyImplemented):
		util.WarnLog("Recommendation #%d is already implemented", recID)
		return nil
	case errors.Is(err, util.ErrNotFound):
		return fmt.Errorf("recommendation #%d: %w", recID, err)
	case err != nil:
		return err
	}

	logger.LogImplement(recID)
	util.SuccessLog("Recommendation #%d marked as implemented", recID)
	return nil
}

func runQuarantine(cmd *cobra.Command, recID int64, dir string) error {
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	verify := GetConfigString("quarantine-verify", execute.VerifySize)
	switch verify {
	case execute.VerifyNone, execute.VerifySize, execute.VerifyHash:
	default:
		return fmt.Errorf("%w: unknown verify mode %q (size|hash|none)", util.ErrInvalidConfig, verify)
	}

	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	logger := openEventLogger()
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	executor := execute.New(&execute.Config{
		Store:         db,
		QuarantineDir: dir,
		VerifyMode:    verify,
		DryRun:        dryRun,
		Logger:        logger,
	})

	action, err := executor.Quarantine(ctx, recID)
	if errors.Is(err, util.ErrAlreadyImplemented) {
		util.WarnLog("Recommendation #%d is already implemented", recID)
		return nil
	}
	if err != nil {
		return err
	}

	if action.DryRun {
		util.InfoLog("Dry run: %s would move to %s (%s)", action.Source, action.Dest, util.FormatBytes(action.Bytes))
		return nil
	}
	util.SuccessLog("Recommendation #%d implemented: %s quarantined at %s", recID, action.Source, action.Dest)
	return nil
}
