package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/praetorian-inc/sieve/pkg/rule"
	"github.com/praetorian-inc/sieve/pkg/types"
	"github.com/spf13/cobra"
)

var (
	rulesPath    string
	outputFormat string
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage detection rules",
	Long:  "Commands for listing and checking detection rules",
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available rules",
	Long:  "Display all available detection rules with their IDs, sids and names",
	RunE:  runRulesList,
}

var rulesCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate rules",
	Long: `Check that every rule has an id, name, sid and valid patterns, that ids
and sids are unique, and that each rule matches its examples and none of its
negative examples.`,
	RunE: runRulesCheck,
}

func init() {
	rulesCmd.AddCommand(rulesListCmd)
	rulesCmd.AddCommand(rulesCheckCmd)
	rulesCmd.PersistentFlags().StringVar(&rulesPath, "rules", "", "Path to rules file (.yml, .yaml, .rules) or directory")
	rulesListCmd.Flags().StringVar(&outputFormat, "format", "table", "Output format: table, json")
}

func runRulesList(cmd *cobra.Command, args []string) error {
	rules, err := loadRules(rulesPath, "", "")
	if err != nil {
		return fmt.Errorf("loading rules: %w", err)
	}

	switch outputFormat {
	case "json":
		return outputRulesJSON(cmd, rules)
	case "table":
		return outputRulesTable(cmd, rules)
	default:
		return fmt.Errorf("unknown output format: %s", outputFormat)
	}
}

func runRulesCheck(cmd *cobra.Command, args []string) error {
	rules, err := loadRules(rulesPath, "", "")
	if err != nil {
		return fmt.Errorf("loading rules: %w", err)
	}
	if err := rule.ValidateRules(rules); err != nil {
		return err
	}

	patterns := 0
	for _, r := range rules {
		patterns += len(r.Patterns)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d rules (%d patterns) OK\n", len(rules), patterns)
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func outputRulesJSON(cmd *cobra.Command, rules []*types.Rule) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(rules)
}

func outputRulesTable(cmd *cobra.Command, rules []*types.Rule) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintf(w, "ID\tSID\tName\tPatterns\tCategories\n")
	fmt.Fprintf(w, "--\t---\t----\t--------\t----------\n")

	for _, r := range rules {
		categories := ""
		if len(r.Categories) > 0 {
			categories = r.Categories[0]
			if len(r.Categories) > 1 {
				categories += fmt.Sprintf(" (+%d)", len(r.Categories)-1)
			}
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%d\t%s\n", r.ID, r.SID, r.Name, len(r.Patterns), categories)
	}

	return nil
}
