package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/franz/file-curator/internal/feedback"
	"github.com/franz/file-curator/internal/util"
)

var (
	// Version is set at build time
	Version = "dev"

	cfgFile string

	rootCmd = &cobra.Command{
		Use:   "fcur",
		Short: "File Curator - assess, classify and recommend actions for your files",
		Long: `fcur (File Curator) is a rules engine for file quality and organization.
It scans directories, takes externally computed quality metrics, classifies
each file into a quality tier, flags deletion and monetization candidates,
and synthesizes prioritized recommendations that adapt to user feedback.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is ./configs/fcur.yaml)")
	pf.String("db", "fcur-state.db", "state database file")
	pf.String("rules", "configs/rules.yaml", "file organization rules (YAML)")
	pf.IntP("concurrency", "c", 4, "number of files processed in parallel")
	pf.String("artifacts", "artifacts", "directory for event logs and reports")
	pf.Int("feedback-window", feedback.DefaultWindowSize, "feedback samples kept per recommendation type")
	pf.Int("feedback-min-samples", feedback.DefaultMinSamples, "samples required before feedback adjusts priorities")
	pf.BoolP("verbose", "v", false, "verbose output")
	pf.BoolP("quiet", "q", false, "quiet output (errors only)")

	// Bind flags to viper
	for _, key := range []string{"db", "rules", "concurrency", "artifacts", "feedback-window", "feedback-min-samples", "verbose", "quiet"} {
		viper.BindPFlag(key, pf.Lookup(key))
	}
}

func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		// Search for config in common locations
		viper.AddConfigPath("./configs")
		viper.AddConfigPath(".")
		viper.SetConfigName("fcur")
		viper.SetConfigType("yaml")
	}

	// FCUR_DB, FCUR_FEEDBACK_WINDOW, ...
	viper.SetEnvPrefix("FCUR")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && !viper.GetBool("quiet") {
		util.InfoLog("Using config file: %s", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
