package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/franz/file-curator/internal/metrics"
	"github.com/franz/file-curator/internal/model"
	"github.com/franz/file-curator/internal/store"
	"github.com/franz/file-curator/internal/util"
)

// deletionListLimit caps the deletion candidates listed in a report
const deletionListLimit = 20

// Source is the read side of the record store a report is built from
type Source interface {
	CountFilesByCategory() (map[metrics.Category]int, error)
	LatestAssessments() ([]*model.Assessment, error)
	GetFile(id int64) (*model.FileRecord, error)
	RecommendationStats() ([]store.RecommendationStat, error)
	FeedbackStats() (map[model.RecommendationType]store.FeedbackStat, error)
}

// Dampener reports the current feedback adjustment of a recommendation type
type Dampener interface {
	AdjustedPriority(t model.RecommendationType) int
}

// DailyReport summarizes the latest state of every file
type DailyReport struct {
	GeneratedAt  time.Time
	DatabasePath string
	RulesPath    string
	EventLogPath string

	FilesByCategory map[metrics.Category]int
	TotalFiles      int

	Assessed    int
	Unscored    int
	TierCounts  map[model.Tier]int
	Monetizable int

	DeletionTotal      int
	DeletionBytes      int64
	DeletionCandidates []DeletionCandidate

	Recommendations []RecommendationSummary
	Feedback        []FeedbackSummary
}

// DeletionCandidate is a file whose latest assessment flags it for review
type DeletionCandidate struct {
	Path         string
	SizeBytes    int64
	LastModified time.Time
	Tier         model.Tier
	Triggers     []model.DeletionTrigger
}

// RecommendationSummary counts the recommendations of one type
type RecommendationSummary struct {
	Type        model.RecommendationType
	Open        map[model.Priority]int
	Implemented int
}

// OpenTotal returns the number of open recommendations of any priority
func (r RecommendationSummary) OpenTotal() int {
	total := 0
	for _, n := range r.Open {
		total += n
	}
	return total
}

// FeedbackSummary holds the all-time votes of one recommendation type
type FeedbackSummary struct {
	Type     model.RecommendationType
	Helpful  int
	Total    int
	Dampened bool
}

// Ratio returns the helpful share, or 0 without votes
func (f FeedbackSummary) Ratio() float64 {
	if f.Total == 0 {
		return 0
	}
	return float64(f.Helpful) / float64(f.Total)
}

// GenerateDailyReport collects the report data. dampener may be nil.
func GenerateDailyReport(src Source, dampener Dampener, now time.Time) (*DailyReport, error) {
	r := &DailyReport{
		GeneratedAt: now,
		TierCounts:  make(map[model.Tier]int),
	}

	counts, err := src.CountFilesByCategory()
	if err != nil {
		return nil, err
	}
	r.FilesByCategory = counts
	for _, n := range counts {
		r.TotalFiles += n
	}

	assessments, err := src.LatestAssessments()
	if err != nil {
		return nil, err
	}
	for _, a := range assessments {
		r.Assessed++
		r.TierCounts[a.QualityScore]++
		if !a.Scored() {
			r.Unscored++
		}
		if a.MonetizationEligible {
			r.Monetizable++
		}
		if !a.NeedsDeletion {
			continue
		}

		f, err := src.GetFile(a.FileID)
		if err != nil {
			return nil, err
		}
		if f == nil {
			continue
		}
		r.DeletionTotal++
		r.DeletionBytes += f.SizeBytes
		r.DeletionCandidates = append(r.DeletionCandidates, DeletionCandidate{
			Path:         f.Path,
			SizeBytes:    f.SizeBytes,
			LastModified: f.LastModified,
			Tier:         a.QualityScore,
			Triggers:     a.DeletionTriggers,
		})
	}

	sort.Slice(r.DeletionCandidates, func(i, j int) bool {
		ci, cj := r.DeletionCandidates[i], r.DeletionCandidates[j]
		if ci.SizeBytes != cj.SizeBytes {
			return ci.SizeBytes > cj.SizeBytes
		}
		return ci.Path < cj.Path
	})
	if len(r.DeletionCandidates) > deletionListLimit {
		r.DeletionCandidates = r.DeletionCandidates[:deletionListLimit]
	}

	stats, err := src.RecommendationStats()
	if err != nil {
		return nil, err
	}
	byType := make(map[model.RecommendationType]*RecommendationSummary)
	for _, st := range stats {
		sum, ok := byType[st.Type]
		if !ok {
			sum = &RecommendationSummary{Type: st.Type, Open: make(map[model.Priority]int)}
			byType[st.Type] = sum
		}
		if st.Implemented {
			sum.Implemented += st.Count
		} else {
			sum.Open[st.Priority] += st.Count
		}
	}

	votes, err := src.FeedbackStats()
	if err != nil {
		return nil, err
	}

	for _, t := range model.RecommendationTypes {
		if sum, ok := byType[t]; ok {
			r.Recommendations = append(r.Recommendations, *sum)
		}
		v, ok := votes[t]
		if !ok {
			continue
		}
		fs := FeedbackSummary{Type: t, Helpful: v.Helpful, Total: v.Total}
		if dampener != nil {
			fs.Dampened = dampener.AdjustedPriority(t) < 0
		}
		r.Feedback = append(r.Feedback, fs)
	}

	return r, nil
}

// Overview returns a few plain lines suitable for a chat message
func (r *DailyReport) Overview() string {
	var b strings.Builder
	fmt.Fprintf(&b, "File curator report for %s\n", r.GeneratedAt.Format("2006-01-02"))
	fmt.Fprintf(&b, "Files: %s (%s assessed, %s unscored)\n",
		util.FormatCount(r.TotalFiles), util.FormatCount(r.Assessed), util.FormatCount(r.Unscored))
	fmt.Fprintf(&b, "Tiers: %d Good / %d Moderate / %d Poor\n",
		r.TierCounts[model.TierGood], r.TierCounts[model.TierModerate], r.TierCounts[model.TierPoor])
	fmt.Fprintf(&b, "Monetizable: %d\n", r.Monetizable)
	fmt.Fprintf(&b, "Deletion candidates: %d (%s)\n", r.DeletionTotal, util.FormatBytes(r.DeletionBytes))

	open := 0
	for _, rec := range r.Recommendations {
		open += rec.OpenTotal()
	}
	fmt.Fprintf(&b, "Open recommendations: %d", open)
	return b.String()
}

// WriteMarkdownReport writes the report as Markdown
func WriteMarkdownReport(report *DailyReport, outputPath string) error {
	dir := filepath.Dir(outputPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := os.WriteFile(outputPath, []byte(RenderMarkdown(report)), 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// RenderMarkdown renders the report as a Markdown document
func RenderMarkdown(report *DailyReport) string {
	var md strings.Builder

	md.WriteString("# File Curator - Daily Report\n\n")
	md.WriteString(fmt.Sprintf("**Generated:** %s\n\n", report.GeneratedAt.Format("2006-01-02 15:04:05")))
	if report.DatabasePath != "" {
		md.WriteString(fmt.Sprintf("**Database:** `%s`\n\n", report.DatabasePath))
	}
	if report.RulesPath != "" {
		md.WriteString(fmt.Sprintf("**Rules:** `%s`\n\n", report.RulesPath))
	}
	if report.EventLogPath != "" {
		md.WriteString(fmt.Sprintf("**Event Log:** `%s`\n\n", report.EventLogPath))
	}
	md.WriteString("---\n\n")

	// Overview
	md.WriteString("## 📊 Overview\n\n")
	md.WriteString("| Metric | Value |\n")
	md.WriteString("|--------|-------|\n")
	md.WriteString(fmt.Sprintf("| Files | %s |\n", util.FormatCount(report.TotalFiles)))
	md.WriteString(fmt.Sprintf("| Assessed | %s |\n", util.FormatCount(report.Assessed)))
	if report.Unscored > 0 {
		md.WriteString(fmt.Sprintf("| Unscored | %s |\n", util.FormatCount(report.Unscored)))
	}
	md.WriteString(fmt.Sprintf("| Monetization Eligible | %d |\n", report.Monetizable))
	md.WriteString(fmt.Sprintf("| Deletion Candidates | %d (%s) |\n", report.DeletionTotal, util.FormatBytes(report.DeletionBytes)))
	md.WriteString("\n")

	// Categories
	if len(report.FilesByCategory) > 0 {
		md.WriteString("## 🗂️ Files by Category\n\n")
		md.WriteString("| Category | Files |\n")
		md.WriteString("|----------|-------|\n")
		categories := make([]string, 0, len(report.FilesByCategory))
		for c := range report.FilesByCategory {
			categories = append(categories, string(c))
		}
		sort.Strings(categories)
		for _, c := range categories {
			md.WriteString(fmt.Sprintf("| %s | %d |\n", c, report.FilesByCategory[metrics.Category(c)]))
		}
		md.WriteString("\n")
	}

	// Tiers
	if report.Assessed > 0 {
		md.WriteString("## 🏷️ Quality Tiers\n\n")
		md.WriteString("| Tier | Files |\n")
		md.WriteString("|------|-------|\n")
		for _, tier := range []model.Tier{model.TierGood, model.TierModerate, model.TierPoor} {
			md.WriteString(fmt.Sprintf("| %s | %d |\n", tier, report.TierCounts[tier]))
		}
		md.WriteString("\n")
	}

	// Deletion candidates
	if len(report.DeletionCandidates) > 0 {
		md.WriteString(fmt.Sprintf("## 🗑️ Deletion Candidates (Top %d by size)\n\n", deletionListLimit))
		md.WriteString("| Size | Last Modified | Tier | Triggers | Path |\n")
		md.WriteString("|------|---------------|------|----------|------|\n")
		for _, c := range report.DeletionCandidates {
			triggers := make([]string, len(c.Triggers))
			for i, t := range c.Triggers {
				triggers[i] = string(t)
			}
			md.WriteString(fmt.Sprintf("| %s | %s | %s | %s | `%s` |\n",
				util.FormatBytes(c.SizeBytes),
				util.FormatAge(c.LastModified),
				c.Tier,
				strings.Join(triggers, ", "),
				truncatePath(c.Path, 60)))
		}
		md.WriteString("\n")
	}

	// Recommendations
	if len(report.Recommendations) > 0 {
		md.WriteString("## 💡 Recommendations\n\n")
		md.WriteString("| Type | Open (high) | Open (medium) | Open (low) | Implemented |\n")
		md.WriteString("|------|-------------|---------------|------------|-------------|\n")
		for _, rec := range report.Recommendations {
			md.WriteString(fmt.Sprintf("| %s | %d | %d | %d | %d |\n",
				rec.Type,
				rec.Open[model.PriorityHigh],
				rec.Open[model.PriorityMedium],
				rec.Open[model.PriorityLow],
				rec.Implemented))
		}
		md.WriteString("\n")
	}

	// Feedback
	if len(report.Feedback) > 0 {
		md.WriteString("## 👍 Feedback\n\n")
		md.WriteString("| Type | Helpful | Votes | Ratio | Dampened |\n")
		md.WriteString("|------|---------|-------|-------|----------|\n")
		for _, fb := range report.Feedback {
			dampened := "no"
			if fb.Dampened {
				dampened = "yes"
			}
			md.WriteString(fmt.Sprintf("| %s | %d | %d | %.0f%% | %s |\n",
				fb.Type, fb.Helpful, fb.Total, fb.Ratio()*100, dampened))
		}
		md.WriteString("\n")
	}

	md.WriteString("---\n\n")
	md.WriteString("*Generated by fcur - File Curator*\n")

	return md.String()
}

// truncatePath shortens a path from the middle, keeping start and end
func truncatePath(path string, maxLen int) string {
	if len(path) <= maxLen {
		return path
	}
	start := maxLen/2 - 2
	end := len(path) - (maxLen/2 - 2)
	return path[:start] + "..." + path[end:]
}
