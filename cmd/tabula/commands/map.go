package commands

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/tabula/engine"
	"github.com/teranos/tabula/mapping"
	"github.com/teranos/tabula/overrides"
)

// MapCmd represents the map command
var MapCmd = &cobra.Command{
	Use:   "map <header>...",
	Short: "Map column headers to target fields",
	Long: `Resolve one or more column headers against the loaded mapping
configuration. Each header is tried against the exact alias lookup,
then any override rules, then the fuzzy matcher.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		configDir, _ := cmd.Flags().GetString("config-dir")
		rulesPath, _ := cmd.Flags().GetString("rules")
		docType, _ := cmd.Flags().GetString("doc-type")
		org, _ := cmd.Flags().GetString("org")
		jsonOutput, _ := cmd.Flags().GetBool("json")

		cfg, err := engine.Load()
		if err != nil {
			return err
		}

		ldr, err := loadSnapshot(configDir)
		if err != nil {
			pterm.Error.Printf("Failed to load configuration: %v\n", err)
			return err
		}
		snapshot, err := ldr.Current()
		if err != nil {
			return err
		}

		var ruleEngine *overrides.Engine
		if rulesPath != "" {
			rules, err := loadRuleFile(rulesPath)
			if err != nil {
				pterm.Error.Printf("Rule file rejected: %v\n", err)
				return err
			}
			ruleEngine, err = overrides.NewEngine(overrides.ResolveHighestPriority, rules...)
			if err != nil {
				return err
			}
		}

		options := mapping.MapperOptions{
			FuzzyThreshold:  cfg.Mapping.FuzzyThreshold,
			SuggestionCount: cfg.Mapping.SuggestionCount,
			MatcherConfig:   cfg.MatcherConfig(),
		}
		mapper, err := mapping.NewColumnMapper(snapshot, ruleEngine, options)
		if err != nil {
			return err
		}

		ctx := overrides.NewContext()
		if docType != "" {
			ctx = ctx.WithDocumentType(docType)
		}
		if org != "" {
			ctx = ctx.WithOrganization(org)
		}

		result := mapper.MapColumns(args, ctx)

		if jsonOutput {
			output, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(output))
			return nil
		}

		printMappingResult(result)
		return nil
	},
}

func printMappingResult(result mapping.Result) {
	table := pterm.TableData{{"Header", "Target Field", "Confidence", "Source"}}
	for _, m := range result.Mappings {
		table = append(table, []string{
			m.Header,
			m.TargetField,
			fmt.Sprintf("%.3f", m.Confidence),
			string(m.Source),
		})
	}
	if len(result.Mappings) > 0 {
		_ = pterm.DefaultTable.WithHasHeader().WithData(table).Render()
		pterm.Println()
	}

	for _, header := range result.Unmapped {
		pterm.Warning.Printf("Unmapped: %s\n", header)
	}
	for _, s := range result.Suggestions {
		pterm.Printf("  Suggestion for %s: %s (%.3f)\n", s.Header, s.Target, s.Confidence)
	}
	for _, field := range result.MissingRequired {
		pterm.Warning.Printf("Missing required field: %s\n", field)
	}
	for _, c := range result.Conflicts {
		pterm.Warning.Printf("Rule conflict (%s): %s\n", c.Type, c.Description)
	}

	pterm.Println()
	pterm.Info.Printf("Quality score: %.3f\n", result.QualityScore)
	pterm.Info.Printf("Mapped %d of %d headers in %s\n",
		len(result.Mappings), len(result.Mappings)+len(result.Unmapped),
		result.Duration.Round(time.Microsecond))
}

func init() {
	MapCmd.Flags().String("config-dir", "", "Mapping configuration directory (defaults to loader.base_dir)")
	MapCmd.Flags().String("rules", "", "JSON file of override rules to apply")
	MapCmd.Flags().String("doc-type", "", "Document type for scoped rules")
	MapCmd.Flags().String("org", "", "Organization for scoped rules")
}
