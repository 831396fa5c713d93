package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/franz/file-curator/internal/rules"
	"github.com/franz/file-curator/internal/store"
	"github.com/franz/file-curator/internal/util"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks on the environment and configuration",
	Long: `Run diagnostic checks to ensure fcur can operate correctly.

This command checks:
- SQLite availability (built-in driver)
- Database accessibility, schema version and integrity
- Rules file validity
- Optional tools (ffprobe for --probe-video)

Use this command to troubleshoot issues before running fcur operations.`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

type checkResult struct {
	name    string
	message string
	error   bool
	warning bool
}

func runDoctor(cmd *cobra.Command, args []string) error {
	setupLogging()

	util.InfoLog("=== fcur doctor - System Diagnostics ===")
	util.InfoLog("")

	results := []checkResult{
		checkSQLite(),
		checkDatabase(viper.GetString("db")),
		checkRules(viper.GetString("rules")),
		checkFFprobe(),
	}

	util.InfoLog("=== Diagnostic Results ===")
	util.InfoLog("")

	hasErrors := false
	hasWarnings := false

	for _, r := range results {
		symbol := "✓"
		if r.error {
			symbol = "✗"
			hasErrors = true
		} else if r.warning {
			symbol = "⚠"
			hasWarnings = true
		}

		line := fmt.Sprintf("[%s] %s", symbol, r.name)
		if r.message != "" {
			line += fmt.Sprintf(": %s", r.message)
		}

		if r.error {
			util.ErrorLog("%s", line)
		} else if r.warning {
			util.WarnLog("%s", line)
		} else {
			util.SuccessLog("%s", line)
		}
	}

	util.InfoLog("")
	if hasErrors {
		util.ErrorLog("❌ Some critical checks failed. Please resolve errors before running fcur.")
		return fmt.Errorf("system diagnostics failed")
	} else if hasWarnings {
		util.WarnLog("⚠️  Some checks produced warnings. Review them before proceeding.")
	} else {
		util.SuccessLog("✅ All checks passed! System is ready for fcur operations.")
	}

	return nil
}

// checkSQLite verifies the embedded SQLite driver works
func checkSQLite() checkResult {
	version := store.SQLiteVersion()
	if version == "" {
		return checkResult{
			name:    "SQLite",
			error:   true,
			message: "unable to determine version",
		}
	}

	return checkResult{
		name:    "SQLite",
		message: fmt.Sprintf("version %s (built-in)", version),
	}
}

// checkDatabase verifies database file accessibility and integrity
func checkDatabase(dbPath string) checkResult {
	if dbPath == "" {
		return checkResult{
			name:    "Database",
			warning: true,
			message: "no database path specified (use --db flag or config)",
		}
	}

	info, err := os.Stat(dbPath)
	if err != nil {
		if os.IsNotExist(err) {
			return checkResult{
				name:    "Database",
				message: fmt.Sprintf("%s (will be created on first run)", dbPath),
			}
		}
		return checkResult{
			name:    "Database",
			error:   true,
			message: fmt.Sprintf("cannot access %s: %v", dbPath, err),
		}
	}

	if !info.Mode().IsRegular() {
		return checkResult{
			name:    "Database",
			error:   true,
			message: fmt.Sprintf("%s is not a regular file", dbPath),
		}
	}

	db, err := store.Open(dbPath)
	if err != nil {
		return checkResult{
			name:    "Database",
			error:   true,
			message: fmt.Sprintf("cannot open %s: %v", dbPath, err),
		}
	}
	defer db.Close()

	if err := db.CheckIntegrity(); err != nil {
		return checkResult{
			name:    "Database",
			error:   true,
			message: fmt.Sprintf("integrity check failed: %v", err),
		}
	}

	version, _ := db.SchemaVersion()
	counts, _ := db.CountFilesByCategory()
	total := 0
	for _, n := range counts {
		total += n
	}

	return checkResult{
		name: "Database",
		message: fmt.Sprintf("%s (%s, schema v%d, %s files)",
			dbPath, util.FormatBytes(info.Size()), version, util.FormatCount(total)),
	}
}

// checkRules verifies the rules file loads and validates
func checkRules(path string) checkResult {
	if path == "" {
		return checkResult{
			name:    "Rules",
			error:   true,
			message: "no rules file specified (use --rules flag or config)",
		}
	}

	r, err := rules.LoadFile(path)
	if err != nil {
		return checkResult{
			name:    "Rules",
			error:   true,
			message: err.Error(),
		}
	}

	return checkResult{
		name:    "Rules",
		message: fmt.Sprintf("%s (%d categories with thresholds)", path, len(r.QualityThresholds)),
	}
}

// checkFFprobe reports whether ffprobe is available (optional)
func checkFFprobe() checkResult {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	output, err := exec.CommandContext(ctx, "ffprobe", "-version").CombinedOutput()
	if err != nil {
		return checkResult{
			name:    "ffprobe (optional)",
			warning: true,
			message: "not found (needed only for scan --probe-video)",
		}
	}

	version := "unknown"
	lines := strings.Split(string(output), "\n")
	if parts := strings.Fields(lines[0]); len(parts) >= 3 {
		version = parts[2]
	}

	return checkResult{
		name:    "ffprobe (optional)",
		message: fmt.Sprintf("version %s", version),
	}
}
