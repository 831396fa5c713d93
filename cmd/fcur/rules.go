package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/franz/file-curator/internal/util"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Print the effective file organization rules",
	Long: `Load and validate the rules file, then print the effective rules as
YAML. A malformed or incomplete rules file is reported with the offending
field and the command fails.`,
	RunE: runRules,
}

func init() {
	rootCmd.AddCommand(rulesCmd)

	rulesCmd.Flags().Bool("check", false, "only validate, do not print")
}

func runRules(cmd *cobra.Command, args []string) error {
	setupLogging()

	check, _ := cmd.Flags().GetBool("check")

	loader, err := loadRules()
	if err != nil {
		return err
	}

	if check {
		util.SuccessLog("Rules in %s are valid", loader.Path())
		return nil
	}

	out, err := loader.Current().YAML()
	if err != nil {
		return fmt.Errorf("failed to render rules: %w", err)
	}
	_, err = os.Stdout.Write(out)
	return err
}
