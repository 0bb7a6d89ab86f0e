package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/tabula/overrides"
)

// RulesCmd represents the rules command group
var RulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect and lint override rule files",
}

var rulesLintCmd = &cobra.Command{
	Use:   "lint <file>",
	Short: "Validate an override rule file",
	Long: `Parse a JSON override rule file and report every structural
problem: invalid patterns, out-of-range priorities, catch-all
patterns, and conflicts between rules.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonOutput, _ := cmd.Flags().GetBool("json")

		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}

		rules, err := overrides.ParseRules(data)
		if err != nil {
			pterm.Error.Printf("Failed to parse %s: %v\n", args[0], err)
			return err
		}

		problems := overrides.ValidateRules(rules)

		if jsonOutput {
			messages := make([]string, 0, len(problems))
			for _, p := range problems {
				messages = append(messages, p.Error())
			}
			output, err := json.MarshalIndent(map[string]any{
				"rules":    len(rules),
				"problems": messages,
			}, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(output))
		} else {
			pterm.Info.Printf("Parsed %d rules from %s\n", len(rules), args[0])
			for _, p := range problems {
				pterm.Error.Printf("%v\n", p)
			}
			if len(problems) == 0 {
				pterm.Success.Printf("All rules valid\n")
			}
		}

		if len(problems) > 0 {
			return fmt.Errorf("%d invalid rules", len(problems))
		}
		return nil
	},
}

var rulesShowCmd = &cobra.Command{
	Use:   "show <file>",
	Short: "List the rules in a rule file by precedence",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		rules, err := overrides.ParseRules(data)
		if err != nil {
			return err
		}

		table := pterm.TableData{{"Name", "Type", "Pattern", "Target", "Priority", "Specificity"}}
		for _, r := range rules {
			table = append(table, []string{
				r.Name,
				string(r.Type),
				r.Pattern,
				r.TargetField,
				fmt.Sprintf("%d", r.Priority),
				fmt.Sprintf("%.1f", overrides.Specificity(r)),
			})
		}
		return pterm.DefaultTable.WithHasHeader().WithData(table).Render()
	},
}

func init() {
	RulesCmd.AddCommand(rulesLintCmd)
	RulesCmd.AddCommand(rulesShowCmd)
}
