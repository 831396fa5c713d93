package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/franz/file-curator/internal/metrics"
	"github.com/franz/file-curator/internal/model"
	"github.com/franz/file-curator/internal/util"
)

// categoryOrder is the display order of file categories
var categoryOrder = append(append([]metrics.Category{}, metrics.ScoredCategories...), metrics.CategoryOther)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show a file with its latest assessment and recommendations",
	Long: `Display everything known about one file:

- Path, category, size, age and metadata
- Imported metrics and content suggestions
- Latest assessment (tier, score, monetization, deletion triggers)
- Recommendations, newest first, with their implemented state`,
	RunE: runShow,
}

func init() {
	rootCmd.AddCommand(showCmd)

	showCmd.Flags().Int64("file", 0, "file ID")
	showCmd.Flags().String("path", "", "file path (as scanned)")
	showCmd.Flags().Bool("history", false, "list every assessment, not just the latest")
	showCmd.MarkFlagsMutuallyExclusive("file", "path")
	showCmd.MarkFlagsOneRequired("file", "path")
}

func runShow(cmd *cobra.Command, args []string) error {
	setupLogging()

	fileID, _ := cmd.Flags().GetInt64("file")
	path, _ := cmd.Flags().GetString("path")
	history, _ := cmd.Flags().GetBool("history")

	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	var f *model.FileRecord
	if path != "" {
		f, err = db.GetFileByPath(path)
	} else {
		f, err = db.GetFile(fileID)
	}
	if err != nil {
		return err
	}
	if f == nil {
		return fmt.Errorf("file not found")
	}

	util.InfoLog("=== File #%d ===", f.ID)
	util.InfoLog("Path: %s", f.Path)
	util.InfoLog("Category: %s", f.Type)
	util.InfoLog("Size: %s", util.FormatBytes(f.SizeBytes))
	if !f.LastModified.IsZero() {
		util.InfoLog("Modified: %s (%s)", f.LastModified.Format("2006-01-02"), util.FormatAge(f.LastModified))
	}
	if len(f.Metadata) > 0 {
		util.InfoLog("Metadata:")
		keys := make([]string, 0, len(f.Metadata))
		for k := range f.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			util.InfoLog("  %s: %s", k, f.Metadata[k])
		}
	}

	m, err := db.GetMetrics(f.ID)
	if err != nil {
		return err
	}
	util.InfoLog("")
	if metrics.IsNone(m) {
		util.InfoLog("Metrics: none imported")
	} else {
		encoded, _ := metrics.EncodeJSON(m)
		util.InfoLog("Metrics: %s", encoded)
	}

	suggestions, err := db.GetSuggestions(f.ID)
	if err != nil {
		return err
	}
	if len(suggestions) > 0 {
		util.InfoLog("Content suggestions:")
		for _, s := range suggestions {
			priority := "unset"
			if s.Priority != 0 {
				priority = s.Priority.String()
			}
			util.InfoLog("  [%s] %s: %s", priority, s.Category, s.Suggestion)
		}
	}

	util.InfoLog("")
	if history {
		all, err := db.AssessmentHistory(f.ID)
		if err != nil {
			return err
		}
		if len(all) == 0 {
			util.WarnLog("Not assessed yet. Run 'fcur assess --file %d'.", f.ID)
		}
		for _, a := range all {
			printAssessment(a)
		}
	} else {
		a, err := db.LatestAssessment(f.ID)
		if err != nil {
			return err
		}
		if a == nil {
			util.WarnLog("Not assessed yet. Run 'fcur assess --file %d'.", f.ID)
		} else {
			printAssessment(a)
			util.InfoLog("  Assessed: %s", util.FormatAge(a.AssessmentDate))
		}
	}

	recs, err := db.RecommendationsForFile(f.ID)
	if err != nil {
		return err
	}
	util.InfoLog("")
	if len(recs) == 0 {
		util.InfoLog("No recommendations yet.")
		return nil
	}
	printRecommendations(recs)
	return nil
}
