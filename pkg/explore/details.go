package explore

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/praetorian-inc/sieve/pkg/types"
)

// detailsPane shows the matches of the selected finding, one at a time.
type detailsPane struct {
	finding     *findingRow
	matchCursor int
	width       int
	height      int
	offset      int
	focused     bool
}

func (dp *detailsPane) setFinding(f *findingRow) {
	dp.finding = f
	dp.matchCursor = 0
	dp.offset = 0
}

func (dp detailsPane) selectedMatch() *matchRow {
	if dp.finding == nil || dp.matchCursor < 0 || dp.matchCursor >= len(dp.finding.Matches) {
		return nil
	}
	return dp.finding.Matches[dp.matchCursor]
}

func (dp detailsPane) Update(msg tea.Msg) (detailsPane, tea.Cmd) {
	if !dp.focused {
		return dp, nil
	}

	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case keyMatches(msg, defaultKeys.Up):
			if dp.offset > 0 {
				dp.offset--
			}
		case keyMatches(msg, defaultKeys.Down):
			dp.offset = min(dp.offset+1, max(0, len(dp.lines())-1))
		case keyMatches(msg, defaultKeys.Left):
			if dp.matchCursor > 0 {
				dp.matchCursor--
				dp.offset = 0
			}
		case keyMatches(msg, defaultKeys.Right):
			if dp.finding != nil && dp.matchCursor < len(dp.finding.Matches)-1 {
				dp.matchCursor++
				dp.offset = 0
			}
		case keyMatches(msg, defaultKeys.Home):
			dp.offset = 0
		case keyMatches(msg, defaultKeys.PageDown):
			dp.offset = min(dp.offset+dp.visibleRows(), max(0, len(dp.lines())-1))
		case keyMatches(msg, defaultKeys.PageUp):
			dp.offset = max(0, dp.offset-dp.visibleRows())
		}
	}

	return dp, nil
}

func field(label, value string) string {
	return fmt.Sprintf("  %s %s", fieldLabelStyle.Render(label), fieldValueStyle.Render(value))
}

// lines renders the pane body before scrolling.
func (dp detailsPane) lines() []string {
	if dp.finding == nil {
		return []string{"  No finding selected"}
	}
	f := dp.finding

	lines := []string{
		field("Rule:", fmt.Sprintf("%s (%s)", f.RuleName, f.RuleID)),
		fmt.Sprintf("  %s %s", fieldLabelStyle.Render("Severity:"), renderSeverity(f.Severity)),
	}
	if len(f.Categories) > 0 {
		lines = append(lines, field("Categories:", strings.Join(f.Categories, ", ")))
	}
	lines = append(lines,
		fmt.Sprintf("  %s %s", fieldLabelStyle.Render("Content:"), snippetMatchStyle.Render(printable(f.Content))),
		field("Finding:", f.FindingID),
		"",
	)

	m := dp.selectedMatch()
	if m == nil {
		return append(lines, "  No matches")
	}
	lines = append(lines,
		"  "+headerRowStyle.Render(fmt.Sprintf("Match %d/%d (h/l to navigate)", dp.matchCursor+1, len(f.Matches))),
		"  "+strings.Repeat("─", max(0, min(40, dp.width-8))),
	)
	return append(lines, renderMatchDetails(m, dp.width-4)...)
}

func (dp detailsPane) View() string {
	if dp.width <= 0 || dp.height <= 0 {
		return ""
	}

	contentWidth := dp.width - 4
	lines := dp.lines()
	offset := min(dp.offset, max(0, len(lines)-1))
	visible := lines[offset:]
	if len(visible) > dp.visibleRows() {
		visible = visible[:dp.visibleRows()]
	}

	var b strings.Builder
	for i, line := range visible {
		b.WriteString(padRight(truncateVisible(line, contentWidth), contentWidth))
		if i < len(visible)-1 {
			b.WriteString("\n")
		}
	}
	for i := len(visible); i < dp.visibleRows(); i++ {
		b.WriteString(strings.Repeat(" ", max(0, contentWidth)))
		if i < dp.visibleRows()-1 {
			b.WriteString("\n")
		}
	}

	borderStyle := inactiveBorderStyle
	if dp.focused {
		borderStyle = activeBorderStyle
	}
	content := borderStyle.
		Width(dp.width - 2).
		Height(dp.height - 3).
		Render(b.String())

	return lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render(" Details "), content)
}

// truncateVisible cuts styled text to width visible cells.
func truncateVisible(s string, width int) string {
	if lipgloss.Width(s) <= width {
		return s
	}
	return truncateString(stripAnsi(s), width)
}

func renderMatchDetails(m *matchRow, maxWidth int) []string {
	var lines []string

	for _, prov := range m.Provenance {
		switch p := prov.(type) {
		case types.GitProvenance:
			lines = append(lines, field("Repo:", p.RepoPath), field("Path:", p.BlobPath))
			if p.Commit != nil {
				lines = append(lines, field("Commit:", p.Commit.CommitID))
				if p.Commit.AuthorName != "" {
					lines = append(lines, field("Author:", fmt.Sprintf("%s <%s>", p.Commit.AuthorName, p.Commit.AuthorEmail)))
				}
			}
		default:
			lines = append(lines, field(sourceLabel(prov.Kind())+":", prov.Path()))
		}
	}

	lines = append(lines, field("Blob:", m.BlobID.Hex()))

	pattern := printable(m.Pattern)
	if m.NoCase {
		pattern += " (nocase)"
	}
	lines = append(lines, field("Pattern:", pattern))
	if m.SID != 0 {
		lines = append(lines, field("SID:", fmt.Sprint(m.SID)))
	}

	loc := m.Location
	if loc.Source.Start.Line > 0 {
		lines = append(lines, fmt.Sprintf("  %s %d:%d - %d:%d (bytes %d-%d)",
			fieldLabelStyle.Render("Location:"),
			loc.Source.Start.Line, loc.Source.Start.Column,
			loc.Source.End.Line, loc.Source.End.Column,
			loc.Offset.Start, loc.Offset.End))
	} else {
		lines = append(lines, fmt.Sprintf("  %s bytes %d-%d",
			fieldLabelStyle.Render("Location:"), loc.Offset.Start, loc.Offset.End))
	}

	lines = append(lines, "", "  "+fieldLabelStyle.Render("Snippet:"))

	snippetWidth := maxWidth - 6
	before := strings.TrimRight(string(m.Snippet.Before), "\n\r")
	after := strings.TrimLeft(string(m.Snippet.After), "\n\r")
	for _, line := range strings.Split(before, "\n") {
		if line != "" {
			lines = append(lines, "    "+snippetContextStyle.Render(truncateString(line, snippetWidth)))
		}
	}
	for _, line := range strings.Split(string(m.Snippet.Matching), "\n") {
		lines = append(lines, "    "+snippetMatchStyle.Render(truncateString(line, snippetWidth)))
	}
	for _, line := range strings.Split(after, "\n") {
		if line != "" {
			lines = append(lines, "    "+snippetContextStyle.Render(truncateString(line, snippetWidth)))
		}
	}

	return lines
}

// sourceLabel names a provenance kind for display.
func sourceLabel(kind string) string {
	switch kind {
	case "file":
		return "File"
	case "s3", "azure":
		return "Object"
	case "pcap":
		return "Packet"
	case "":
		return "Source"
	}
	return strings.ToUpper(kind[:1]) + kind[1:]
}

func (dp detailsPane) visibleRows() int {
	return max(1, dp.height-4)
}

func (dp *detailsPane) setSize(w, h int) {
	dp.width = w
	dp.height = h
}
