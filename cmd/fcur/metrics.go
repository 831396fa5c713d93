package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/franz/file-curator/internal/meta"
	"github.com/franz/file-curator/internal/util"
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Manage externally computed quality metrics",
}

var metricsImportCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Import metrics and content suggestions from a YAML or JSON file",
	Long: `Import the output of an external analyzer.

The file lists scanned files by path:

  files:
    - path: /home/me/src/main.go
      metadata:
        description: Service entry point
      metrics:
        code: {linting_score: 0.9, complexity: 0.7, documentation: 0.6}
      suggestions:
        - category: structure
          priority: high
          suggestion: Move into cmd/
          reason: binaries live under cmd

At most one of code, document, image or video may be given per file; an
empty metrics object clears the file's metrics. Listed suggestions replace
the file's current suggestions. Paths must have been scanned first.`,
	Args: cobra.ExactArgs(1),
	RunE: runMetricsImport,
}

func init() {
	metricsCmd.AddCommand(metricsImportCmd)
	rootCmd.AddCommand(metricsCmd)
}

func runMetricsImport(cmd *cobra.Command, args []string) error {
	setupLogging()

	doc, err := meta.ParseImportFile(args[0])
	if err != nil {
		return err
	}
	util.InfoLog("Importing %d entries from %s", len(doc.Files), args[0])

	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	logger := openEventLogger()
	defer logger.Close()

	result := meta.NewImporter(&meta.ImportConfig{Store: db, Logger: logger}).Import(doc)

	for _, err := range result.Errors {
		util.WarnLog("Skipped: %v", err)
	}
	util.SuccessLog("Import complete: %d entries, %d skipped", result.Entries, result.Skipped)
	util.InfoLog("  Metrics replaced: %d", result.MetricsReplaced)
	util.InfoLog("  Suggestion lists replaced: %d", result.SuggestionsReplaced)
	util.InfoLog("  Metadata updated: %d", result.MetadataMerged)

	if result.Skipped == result.Entries && result.Entries > 0 {
		return fmt.Errorf("no entries imported")
	}
	return nil
}
