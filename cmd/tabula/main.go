package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teranos/tabula/cmd/tabula/commands"
	"github.com/teranos/tabula/logger"
)

var rootCmd = &cobra.Command{
	Use:   "tabula",
	Short: "Tabula - column mapping and fuzzy matching engine",
	Long: `Tabula maps spreadsheet column headers to canonical target fields
using exact lookup, operator override rules, and fuzzy matching.

Available commands:
  map      - Map column headers to target fields
  match    - Score a source string against candidate targets
  validate - Load and validate the mapping configuration
  watch    - Run the configuration loader with hot reload
  rules    - Inspect and lint override rule files

Examples:
  tabula map "Asset Name" "IP Address" "Severity"
  tabula match "Severity" risk_level status severity
  tabula validate ./config
  tabula rules lint overrides.json`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		jsonOutput, _ := cmd.Flags().GetBool("json")
		if err := logger.Initialize(jsonOutput); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().Bool("json", false, "Machine-readable JSON output and logging")

	rootCmd.AddCommand(commands.MapCmd)
	rootCmd.AddCommand(commands.MatchCmd)
	rootCmd.AddCommand(commands.ValidateCmd)
	rootCmd.AddCommand(commands.WatchCmd)
	rootCmd.AddCommand(commands.RulesCmd)
}

func main() {
	defer logger.Cleanup()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
