package commands

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// ValidateCmd represents the validate command
var ValidateCmd = &cobra.Command{
	Use:   "validate [dir]",
	Short: "Load and validate the mapping configuration",
	Long: `Load every mapping and schema file from the configuration
directory, then report completeness and consistency problems along
with loader health.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonOutput, _ := cmd.Flags().GetBool("json")

		dir := ""
		if len(args) == 1 {
			dir = args[0]
		}

		ldr, err := loadSnapshot(dir)
		if err != nil {
			pterm.Error.Printf("Failed to load configuration: %v\n", err)
			return err
		}
		snapshot, err := ldr.Current()
		if err != nil {
			return err
		}

		result := ldr.Validate(snapshot)
		stats := ldr.Stats()

		if jsonOutput {
			output, err := json.MarshalIndent(map[string]any{
				"validation": result,
				"stats":      stats,
			}, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(output))
			return nil
		}

		for _, e := range result.Errors {
			pterm.Error.Printf("%s\n", e)
		}
		for _, w := range result.Warnings {
			pterm.Warning.Printf("%s\n", w)
		}

		pterm.Println()
		if result.IsValid {
			pterm.Success.Printf("Configuration valid (%d warnings, checked in %s)\n",
				len(result.Warnings), result.Duration.Round(time.Microsecond))
		} else {
			pterm.Error.Printf("Configuration invalid: %d errors\n", len(result.Errors))
		}

		pterm.Info.Printf("Loads: %d, failures: %d, success rate: %.2f\n",
			stats.Loads, stats.Failures, stats.SuccessRate)
		if stats.IsHealthy() {
			pterm.Success.Printf("Loader healthy\n")
		} else {
			pterm.Warning.Printf("Loader unhealthy\n")
		}

		if !result.IsValid {
			return fmt.Errorf("configuration invalid")
		}
		return nil
	},
}
