package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/franz/file-curator/internal/feedback"
	"github.com/franz/file-curator/internal/report"
	"github.com/franz/file-curator/internal/store"
	"github.com/franz/file-curator/internal/util"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate the daily Markdown report",
	Long: `Generate a summary report in Markdown format.

The report includes:
- Files by category
- Tier distribution of the latest assessments
- Monetization-eligible files
- Deletion candidates, largest first
- Open and implemented recommendations by type and priority
- Helpful ratios from user feedback

The report is saved to artifacts/reports/<timestamp>/daily.md. With
--schedule the command keeps running and regenerates the report on a cron
schedule, reloading the rules file whenever it changes.`,
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().String("out", "", "output directory (default: artifacts/reports/<timestamp>)")
	reportCmd.Flags().String("schedule", "", `cron schedule, e.g. "0 7 * * *"`)
	reportCmd.Flags().String("slack-webhook", "", "Slack incoming webhook to post the overview to")

	viper.BindPFlag("report-schedule", reportCmd.Flags().Lookup("schedule"))
	viper.BindPFlag("slack-webhook", reportCmd.Flags().Lookup("slack-webhook"))
}

func runReport(cmd *cobra.Command, args []string) error {
	setupLogging()

	outDir, _ := cmd.Flags().GetString("out")
	schedule := viper.GetString("report-schedule")
	webhook := viper.GetString("slack-webhook")

	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	logger := openEventLogger()
	defer logger.Close()

	rulesPath := ""
	if loader, err := loadRules(); err != nil {
		util.WarnLog("%v", err)
	} else {
		rulesPath = loader.Path()
		if schedule != "" {
			if err := loader.Watch(); err != nil {
				util.WarnLog("Rules hot reload disabled: %v", err)
			}
		}
	}

	generate := func(ctx context.Context) error {
		return generateReport(ctx, db, logger, outDir, rulesPath, webhook)
	}

	if schedule == "" {
		return generate(context.Background())
	}

	sched, err := report.ParseSchedule(schedule)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	util.InfoLog("Report schedule: %s", schedule)
	err = report.RunScheduled(ctx, sched, generate)
	if errors.Is(err, context.Canceled) {
		util.InfoLog("Report scheduler stopped")
		return nil
	}
	return err
}

func generateReport(ctx context.Context, db *store.Store, logger *report.EventLogger, outDir, rulesPath, webhook string) error {
	// Feedback history is re-read each time so scheduled reports see new votes
	loop := feedback.New(&feedback.Config{
		WindowSize: GetConfigInt("feedback-window", feedback.DefaultWindowSize),
		MinSamples: GetConfigInt("feedback-min-samples", feedback.DefaultMinSamples),
	})
	if err := loop.Warm(db); err != nil {
		return fmt.Errorf("failed to load feedback history: %w", err)
	}

	util.InfoLog("Analyzing data...")
	daily, err := report.GenerateDailyReport(db, loop, time.Now())
	if err != nil {
		return fmt.Errorf("failed to generate report: %w", err)
	}
	daily.DatabasePath = GetConfigString("db", "fcur-state.db")
	daily.RulesPath = rulesPath
	daily.EventLogPath = logger.Path()

	dir := outDir
	if dir == "" {
		dir = filepath.Join(GetConfigString("artifacts", "artifacts"), "reports", daily.GeneratedAt.Format("20060102-150405"))
	}
	outputPath := filepath.Join(dir, "daily.md")

	if err := report.WriteMarkdownReport(daily, outputPath); err != nil {
		return err
	}
	logger.LogReport(outputPath)

	util.SuccessLog("Report saved to: %s", outputPath)
	for _, line := range strings.Split(daily.Overview(), "\n") {
		util.InfoLog("  %s", line)
	}

	if webhook != "" {
		if err := report.PostToSlack(ctx, webhook, daily); err != nil {
			return err
		}
		util.SuccessLog("Report posted to Slack")
	}
	return nil
}
