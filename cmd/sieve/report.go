package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/praetorian-inc/sieve/pkg/sarif"
	"github.com/praetorian-inc/sieve/pkg/store"
	"github.com/praetorian-inc/sieve/pkg/types"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	reportDatastore  string
	reportFormat     string
	reportColor      string
	reportMaxMatches int
)

// styles holds color formatters for human output
type styles struct {
	findingHeading *color.Color
	id             *color.Color
	ruleName       *color.Color
	heading        *color.Color
	match          *color.Color
	metadata       *color.Color
}

// newStyles creates color formatters for report output
// enabled=false respects --color=never and NO_COLOR
func newStyles(enabled bool) *styles {
	s := &styles{
		findingHeading: color.New(color.Bold, color.FgHiWhite),
		id:             color.New(color.FgHiGreen),
		ruleName:       color.New(color.Bold, color.FgHiBlue),
		heading:        color.New(color.Bold),
		match:          color.New(color.FgYellow),
		metadata:       color.New(color.FgHiBlue),
	}

	if !enabled {
		for _, c := range []*color.Color{s.findingHeading, s.id, s.ruleName, s.heading, s.match, s.metadata} {
			c.DisableColor()
		}
	}

	return s
}

// snippetParts holds separated snippet components for colored output
type snippetParts struct {
	prefix   string // "..." if truncated at start
	before   string
	matching string
	after    string
	suffix   string // "..." if truncated at end
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate a report from scan results",
	Long:  "Read findings from a scan database and output a report",
	RunE:  runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportDatastore, "datastore", "sieve.db", "Path to scan database")
	reportCmd.Flags().StringVar(&reportFormat, "format", "human", "Output format: human, json, sarif")
	reportCmd.Flags().StringVar(&reportColor, "color", "auto", "Color output: auto, always, never")
	reportCmd.Flags().IntVar(&reportMaxMatches, "max-matches", 3, "Matches shown per finding in human output (0 = all)")
}

// reportData is everything read from the database for one report.
type reportData struct {
	store    store.Store
	findings []*types.Finding
	rules    map[string]*types.Rule
	ordered  []*types.Rule
}

func runReport(cmd *cobra.Command, args []string) error {
	if reportDatastore == store.MemoryPath {
		return fmt.Errorf("cannot report from in-memory store")
	}
	if _, err := os.Stat(reportDatastore); err != nil {
		return fmt.Errorf("datastore not found: %s", reportDatastore)
	}

	s, err := store.New(store.Config{Path: reportDatastore})
	if err != nil {
		return fmt.Errorf("opening datastore: %w", err)
	}
	defer s.Close()

	data, err := loadReport(s)
	if err != nil {
		return err
	}

	switch reportFormat {
	case "json":
		return outputReportJSON(cmd.OutOrStdout(), data)
	case "human":
		return outputReportHuman(cmd.OutOrStdout(), data)
	case "sarif":
		return outputReportSARIF(cmd.OutOrStdout(), data)
	default:
		return fmt.Errorf("unknown output format: %s", reportFormat)
	}
}

// loadReport reads findings and attaches their matches by finding ID.
func loadReport(s store.Store) (*reportData, error) {
	findings, err := s.GetFindings()
	if err != nil {
		return nil, fmt.Errorf("retrieving findings: %w", err)
	}
	matches, err := s.GetAllMatches()
	if err != nil {
		return nil, fmt.Errorf("retrieving matches: %w", err)
	}
	rules, err := s.GetRules()
	if err != nil {
		return nil, fmt.Errorf("retrieving rules: %w", err)
	}

	byFinding := make(map[string][]*types.Match)
	for _, m := range matches {
		byFinding[m.FindingID] = append(byFinding[m.FindingID], m)
	}
	for _, f := range findings {
		f.Matches = byFinding[f.ID]
	}

	ruleMap := make(map[string]*types.Rule, len(rules))
	for _, r := range rules {
		ruleMap[r.ID] = r
	}
	return &reportData{store: s, findings: findings, rules: ruleMap, ordered: rules}, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// formatSnippetWithParts separates snippet into parts for colored output,
// truncating to maxLen chars centered on the matched text.
func formatSnippetWithParts(before, matching, after []byte, maxLen int) snippetParts {
	full := string(before) + string(matching) + string(after)

	if len(full) <= maxLen {
		return snippetParts{
			before:   string(before),
			matching: string(matching),
			after:    string(after),
		}
	}

	matchStart := len(before)
	matchEnd := matchStart + len(matching)
	matchLen := len(matching)

	if matchLen >= maxLen {
		return snippetParts{
			prefix:   "...",
			matching: string(matching[:maxLen-6]),
			suffix:   "...",
		}
	}

	// Reserve 6 for "..." on each side.
	halfContext := (maxLen - matchLen - 6) / 2

	start := matchStart - halfContext
	end := matchEnd + halfContext
	if start < 0 {
		end -= start
		start = 0
	}
	if end > len(full) {
		start -= end - len(full)
		if start < 0 {
			start = 0
		}
		end = len(full)
	}

	parts := snippetParts{
		before:   full[start:matchStart],
		matching: full[matchStart:matchEnd],
		after:    full[matchEnd:end],
	}
	if start > 0 {
		parts.prefix = "..."
	}
	if end < len(full) {
		parts.suffix = "..."
	}
	return parts
}

func outputReportJSON(out io.Writer, data *reportData) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data.findings)
}

func outputReportSARIF(out io.Writer, data *reportData) error {
	report := sarif.NewReport()
	for _, r := range data.ordered {
		report.AddRule(r)
	}
	paths := newProvenanceCache(data.store)
	for _, f := range data.findings {
		for _, m := range f.Matches {
			report.AddResult(m, paths.path(m.BlobID))
		}
	}
	return report.Write(out)
}

// colorEnabled resolves --color against the terminal and NO_COLOR.
func colorEnabled(mode string) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	default:
		return term.IsTerminal(int(os.Stdout.Fd())) && os.Getenv("NO_COLOR") == ""
	}
}

func outputReportHuman(out io.Writer, data *reportData) error {
	color.NoColor = !colorEnabled(reportColor)
	s := newStyles(!color.NoColor)

	if len(data.findings) == 0 {
		fmt.Fprintln(out, "No findings.")
		return nil
	}

	total := len(data.findings)
	for i, f := range data.findings {
		fmt.Fprintf(out, "%s (%s %s)\n",
			s.findingHeading.Sprintf("Finding %d/%d", i+1, total),
			s.heading.Sprint("id"),
			s.id.Sprint(f.ID))

		ruleName := f.RuleID
		var sid uint32
		if r, ok := data.rules[f.RuleID]; ok {
			ruleName, sid = r.Name, r.SID
		}
		fmt.Fprintf(out, "%s %s\n", s.heading.Sprint("Rule:"), s.ruleName.Sprint(ruleName))
		if sid != 0 {
			fmt.Fprintf(out, "%s %d\n", s.heading.Sprint("SID:"), sid)
		}
		fmt.Fprintf(out, "%s %s\n", s.heading.Sprint("Content:"), s.match.Sprintf("%q", f.Content))

		shown := f.Matches
		if reportMaxMatches > 0 && len(shown) > reportMaxMatches {
			fmt.Fprintf(out, "Showing %d/%d matches:\n", reportMaxMatches, len(shown))
			shown = shown[:reportMaxMatches]
		}

		for k, m := range shown {
			fmt.Fprintf(out, "\n    %s (%s %s)\n",
				s.heading.Sprintf("Match %d/%d", k+1, len(f.Matches)),
				s.heading.Sprint("id"),
				s.id.Sprint(m.StructuralID))

			provs, err := data.store.GetProvenance(m.BlobID)
			if err == nil {
				for _, p := range provs {
					fmt.Fprintf(out, "    %s %s\n",
						s.heading.Sprintf("%s:", p.Kind()),
						s.metadata.Sprint(p.Path()))
				}
			}

			fmt.Fprintf(out, "    %s %s\n",
				s.heading.Sprint("Blob:"),
				s.metadata.Sprint(m.BlobID.Hex()))
			fmt.Fprintf(out, "    %s %d-%d\n",
				s.heading.Sprint("Offsets:"),
				m.Location.Offset.Start, m.Location.Offset.End)

			if m.Location.Source.Start.Line > 0 {
				fmt.Fprintf(out, "    %s %d:%d-%d:%d\n",
					s.heading.Sprint("Lines:"),
					m.Location.Source.Start.Line, m.Location.Source.Start.Column,
					m.Location.Source.End.Line, m.Location.Source.End.Column)
			}

			parts := formatSnippetWithParts(m.Snippet.Before, m.Snippet.Matching, m.Snippet.After, 500)
			if parts != (snippetParts{}) {
				fmt.Fprintf(out, "\n        %s%s%s%s%s\n",
					parts.prefix,
					parts.before,
					s.match.Sprint(parts.matching),
					parts.after,
					parts.suffix)
			}
		}

		fmt.Fprintf(out, "\n\n")
	}

	return nil
}
