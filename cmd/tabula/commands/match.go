package commands

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/tabula/engine"
	"github.com/teranos/tabula/fuzzy"
)

// MatchCmd represents the match command
var MatchCmd = &cobra.Command{
	Use:   "match <source> <target>...",
	Short: "Score a source string against candidate targets",
	Long: `Run the fuzzy matcher ensemble for one source string against one
or more candidate targets, showing the per-algorithm score breakdown
for each pair.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonOutput, _ := cmd.Flags().GetBool("json")

		cfg, err := engine.Load()
		if err != nil {
			return err
		}

		matcherConfig := cfg.MatcherConfig()
		matcherConfig.Explain = true
		matcherConfig.MinConfidence = 0
		matcher, err := fuzzy.NewMatcher(matcherConfig)
		if err != nil {
			return err
		}

		source := args[0]
		matches := make([]fuzzy.Match, 0, len(args)-1)
		for _, target := range args[1:] {
			matches = append(matches, matcher.Explain(source, target))
		}

		if jsonOutput {
			output, err := json.MarshalIndent(matches, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(output))
			return nil
		}

		for _, match := range matches {
			printMatch(source, match)
		}
		return nil
	},
}

func printMatch(source string, match fuzzy.Match) {
	pterm.Info.Printf("%s -> %s: %.4f", source, match.Target, match.Confidence)
	if match.Exact {
		pterm.Printf("  (exact)")
	}
	pterm.Println()

	if match.Explanation == nil {
		return
	}
	table := pterm.TableData{{"Algorithm", "Raw", "Weight", "Weighted"}}
	for _, c := range match.Explanation.Contributions {
		table = append(table, []string{
			c.Algorithm,
			fmt.Sprintf("%.4f", c.RawScore),
			fmt.Sprintf("%.2f", c.Weight),
			fmt.Sprintf("%.4f", c.WeightedScore),
		})
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(table).Render()
	if len(match.Explanation.SourceSteps) > 0 {
		pterm.Printf("  preprocessing: %s\n", strings.Join(match.Explanation.SourceSteps, ", "))
	}
	pterm.Printf("  scored in %s\n", match.Explanation.TotalDuration.Round(time.Microsecond))
	pterm.Println()
}
