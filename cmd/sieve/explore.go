package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/praetorian-inc/sieve/pkg/explore"
	"github.com/spf13/cobra"
)

var exploreDatastore string

var exploreCmd = &cobra.Command{
	Use:   "explore",
	Short: "Interactively browse scan results",
	Long: `Launch a terminal UI over the findings of a scan database.

  - Filters by rule, category, severity and source kind
  - Sortable findings table
  - Per-match provenance, location and snippet
  - Vi-style navigation (hjkl, Ctrl-f/b, g/G)`,
	Args: cobra.NoArgs,
	RunE: runExplore,
}

func init() {
	exploreCmd.Flags().StringVar(&exploreDatastore, "datastore", "sieve.db", "Path to scan database")
	rootCmd.AddCommand(exploreCmd)
}

func runExplore(cmd *cobra.Command, args []string) error {
	model, err := explore.New(exploreDatastore)
	if err != nil {
		return fmt.Errorf("loading database: %w", err)
	}
	defer model.Close()

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running explore: %w", err)
	}
	return nil
}
