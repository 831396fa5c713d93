package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/franz/file-curator/internal/meta"
	"github.com/franz/file-curator/internal/scan"
	"github.com/franz/file-curator/internal/util"
)

var scanCmd = &cobra.Command{
	Use:   "scan DIR",
	Short: "Scan a directory and register its files",
	Long: `Walk a directory tree and register every regular file in the database.

Each file gets a category from its extension (code, document, image, video,
other) along with its size and modification time. Video containers also get
their title, artist, album, description and genre tags recorded.

Hidden entries, node_modules, __pycache__ and .git are skipped, as are the
system directories /proc, /sys, /dev and /run. Recursion stops 5 levels
below the root. Re-scanning refreshes existing files in place.`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().Int("max-depth", scan.DefaultMaxDepth, "directory levels visited below the root")
	scanCmd.Flags().Bool("probe-video", false, "fill missing video metrics with ffprobe")
}

func runScan(cmd *cobra.Command, args []string) error {
	setupLogging()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	maxDepth, _ := cmd.Flags().GetInt("max-depth")
	probe, _ := cmd.Flags().GetBool("probe-video")
	if probe && !meta.CheckFFprobeAvailable() {
		util.WarnLog("ffprobe not found in PATH - video metrics will not be probed")
		probe = false
	}

	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	logger := openEventLogger()
	defer logger.Close()

	scanner := scan.New(&scan.Config{
		Store:       db,
		Concurrency: GetConfigInt("concurrency", 4),
		MaxDepth:    maxDepth,
		ProbeVideo:  probe,
		Logger:      logger,
	})

	start := time.Now()
	result, err := scanner.Scan(ctx, args[0])
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	util.SuccessLog("Discovery complete in %v", time.Since(start).Round(time.Millisecond))
	util.InfoLog("  Files registered: %s (%s new, %s updated)",
		util.FormatCount(result.FilesDiscovered), util.FormatCount(result.FilesNew), util.FormatCount(result.FilesUpdated))
	util.InfoLog("  Entries skipped: %s", util.FormatCount(result.FilesSkipped))
	if result.Revisited > 0 {
		util.InfoLog("  Symlink revisits: %d", result.Revisited)
	}
	if probe {
		util.InfoLog("  Videos probed: %d", result.VideosProbed)
	}
	if len(result.Errors) > 0 {
		util.WarnLog("  Errors: %d (see %s)", len(result.Errors), logger.Path())
	}

	counts, err := db.CountFilesByCategory()
	if err == nil {
		util.InfoLog("")
		util.InfoLog("Files by category:")
		for _, c := range categoryOrder {
			if n := counts[c]; n > 0 {
				util.InfoLog("  %-9s %s", c, util.FormatCount(n))
			}
		}
	}

	util.InfoLog("")
	util.InfoLog("Next step: fcur metrics import <file> && fcur assess --all")
	return nil
}
