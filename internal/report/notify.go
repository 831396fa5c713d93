package report

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/slack-go/slack"

	"github.com/franz/file-curator/internal/util"
)

// PostToSlack sends the report overview to an incoming webhook
func PostToSlack(ctx context.Context, webhookURL string, report *DailyReport) error {
	msg := &slack.WebhookMessage{
		Text: "```\n" + report.Overview() + "\n```",
	}
	if err := slack.PostWebhookContext(ctx, webhookURL, msg); err != nil {
		return fmt.Errorf("failed to post report to slack: %w", err)
	}
	return nil
}

// ParseSchedule parses a standard 5-field cron expression
// (minute hour day-of-month month day-of-week)
func ParseSchedule(expr string) (cron.Schedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(strings.TrimSpace(expr))
	if err != nil {
		return nil, fmt.Errorf("invalid report schedule %q: %w", expr, err)
	}
	return sched, nil
}

// RunScheduled calls fn at every activation of the schedule until ctx is
// cancelled. Errors from fn are logged and do not stop the loop.
func RunScheduled(ctx context.Context, sched cron.Schedule, fn func(context.Context) error) error {
	for {
		now := time.Now()
		next := sched.Next(now)
		util.InfoLog("Next report at %s (in %s)", next.Format("Mon Jan 2 15:04"), next.Sub(now).Round(time.Minute))

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		if err := fn(ctx); err != nil {
			util.ErrorLog("Scheduled report failed: %v", err)
		}
	}
}
