package main

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/franz/file-curator/internal/engine"
	"github.com/franz/file-curator/internal/feedback"
	"github.com/franz/file-curator/internal/report"
	"github.com/franz/file-curator/internal/rules"
	"github.com/franz/file-curator/internal/store"
	"github.com/franz/file-curator/internal/util"
)

// GetConfigString retrieves a string config value with proper precedence:
// 1. Command-line flag (if set)
// 2. Environment variable (FCUR_*)
// 3. Config file
// 4. Default value
func GetConfigString(key string, defaultValue string) string {
	val := viper.GetString(key)
	if val == "" {
		return defaultValue
	}
	return val
}

// GetConfigInt retrieves an int config value with proper precedence
func GetConfigInt(key string, defaultValue int) int {
	val := viper.GetInt(key)
	if val <= 0 {
		return defaultValue
	}
	return val
}

// setupLogging applies --verbose / --quiet to the console loggers
func setupLogging() {
	util.SetVerbose(viper.GetBool("verbose"))
	util.SetQuiet(viper.GetBool("quiet"))
}

// eventLevel maps the console verbosity onto the event log level
func eventLevel() report.EventLevel {
	switch {
	case viper.GetBool("quiet"):
		return report.LevelWarning
	case viper.GetBool("verbose"):
		return report.LevelDebug
	}
	return report.LevelInfo
}

// openStore opens the state database named by --db
func openStore() (*store.Store, error) {
	dbPath := GetConfigString("db", "fcur-state.db")
	util.DebugLog("Opening database: %s", dbPath)

	db, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// openEventLogger creates the run's event log, falling back to a no-op logger
func openEventLogger() *report.EventLogger {
	logger, err := report.NewEventLogger(GetConfigString("artifacts", "artifacts"), eventLevel())
	if err != nil {
		util.WarnLog("Failed to create event log: %v", err)
		return report.NullLogger()
	}
	util.DebugLog("Event log: %s", logger.Path())
	return logger
}

// loadRules loads and validates the rules file named by --rules
func loadRules() (*rules.Loader, error) {
	path := GetConfigString("rules", "configs/rules.yaml")
	loader, err := rules.NewLoader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules from %s: %w", path, err)
	}
	util.DebugLog("Rules loaded from %s", path)
	return loader, nil
}

// newEngine wires the engine and warms its feedback window from the store
func newEngine(db *store.Store, loader rules.Source, logger *report.EventLogger) (*engine.Engine, error) {
	loop := feedback.New(&feedback.Config{
		WindowSize: GetConfigInt("feedback-window", feedback.DefaultWindowSize),
		MinSamples: GetConfigInt("feedback-min-samples", feedback.DefaultMinSamples),
	})

	eng := engine.New(&engine.Config{
		Store:       db,
		Rules:       loader,
		Feedback:    loop,
		Logger:      logger,
		Concurrency: GetConfigInt("concurrency", 4),
	})
	if err := eng.WarmFeedback(); err != nil {
		return nil, fmt.Errorf("failed to load feedback history: %w", err)
	}
	return eng, nil
}
