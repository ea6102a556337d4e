package explore

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type sortField int

const (
	sortByRuleName sortField = iota
	sortBySeverity
	sortByMatches
	sortByBlobs
	sortByContent
	sortFieldCount
)

var sortFieldNames = [sortFieldCount]string{
	"Rule Name", "Severity", "Matches", "Blobs", "Content",
}

// findingsPane is the findings table.
type findingsPane struct {
	rows    []*findingRow // filtered
	allRows []*findingRow
	cursor  int
	offset  int
	width   int
	height  int
	focused bool
	sortBy  sortField
	sortAsc bool
}

func newFindingsPane(rows []*findingRow) findingsPane {
	fp := findingsPane{
		allRows: rows,
		rows:    append([]*findingRow(nil), rows...),
		sortAsc: true,
	}
	fp.sort()
	return fp
}

func (fp *findingsPane) setFilteredRows(rows []*findingRow) {
	fp.rows = append([]*findingRow(nil), rows...)
	fp.sort()
	if fp.cursor >= len(fp.rows) {
		fp.cursor = max(0, len(fp.rows)-1)
	}
	fp.ensureVisible()
}

func (fp findingsPane) selectedFinding() *findingRow {
	if fp.cursor < 0 || fp.cursor >= len(fp.rows) {
		return nil
	}
	return fp.rows[fp.cursor]
}

func (fp findingsPane) Update(msg tea.Msg) (findingsPane, tea.Cmd) {
	if !fp.focused {
		return fp, nil
	}

	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case keyMatches(msg, defaultKeys.Up):
			if fp.cursor > 0 {
				fp.cursor--
				fp.ensureVisible()
			}
		case keyMatches(msg, defaultKeys.Down):
			if fp.cursor < len(fp.rows)-1 {
				fp.cursor++
				fp.ensureVisible()
			}
		case keyMatches(msg, defaultKeys.Home):
			fp.cursor = 0
			fp.offset = 0
		case keyMatches(msg, defaultKeys.End):
			fp.cursor = max(0, len(fp.rows)-1)
			fp.ensureVisible()
		case keyMatches(msg, defaultKeys.PageDown):
			fp.cursor = max(0, min(fp.cursor+fp.visibleRows(), len(fp.rows)-1))
			fp.ensureVisible()
		case keyMatches(msg, defaultKeys.PageUp):
			fp.cursor = max(fp.cursor-fp.visibleRows(), 0)
			fp.ensureVisible()
		case keyMatches(msg, defaultKeys.SortNext):
			fp.sortBy = (fp.sortBy + 1) % sortFieldCount
			fp.sort()
		case keyMatches(msg, defaultKeys.SortReverse):
			fp.sortAsc = !fp.sortAsc
			fp.sort()
		}
	}

	return fp, nil
}

// sort orders rows by the current field. Ties fall back to finding ID so
// the order is stable across redraws.
func (fp *findingsPane) sort() {
	var less func(a, b *findingRow) int
	switch fp.sortBy {
	case sortByRuleName:
		less = func(a, b *findingRow) int { return strings.Compare(a.RuleName, b.RuleName) }
	case sortBySeverity:
		less = func(a, b *findingRow) int { return severityRank(a.Severity) - severityRank(b.Severity) }
	case sortByMatches:
		less = func(a, b *findingRow) int { return a.MatchCount - b.MatchCount }
	case sortByBlobs:
		less = func(a, b *findingRow) int { return a.BlobCount - b.BlobCount }
	case sortByContent:
		less = func(a, b *findingRow) int { return bytes.Compare(a.Content, b.Content) }
	}
	sort.SliceStable(fp.rows, func(i, j int) bool {
		c := less(fp.rows[i], fp.rows[j])
		if c == 0 {
			return fp.rows[i].FindingID < fp.rows[j].FindingID
		}
		if fp.sortAsc {
			return c < 0
		}
		return c > 0
	})
}

func (fp findingsPane) View() string {
	if fp.width <= 0 || fp.height <= 0 {
		return ""
	}

	contentWidth := fp.width - 4
	colSeverity, colMatches, colBlobs := 9, 8, 6
	colContent := min(32, contentWidth/3)
	colRuleName := max(10, contentWidth-colContent-colSeverity-colMatches-colBlobs-5)

	var b strings.Builder

	sortIndicator := func(f sortField) string {
		if fp.sortBy != f {
			return ""
		}
		if fp.sortAsc {
			return " ^"
		}
		return " v"
	}

	header := fmt.Sprintf(" %-*s %-*s %-*s %*s %*s",
		colRuleName, "Rule Name"+sortIndicator(sortByRuleName),
		colContent, "Content"+sortIndicator(sortByContent),
		colSeverity, "Severity"+sortIndicator(sortBySeverity),
		colMatches, "Matches"+sortIndicator(sortByMatches),
		colBlobs, "Blobs"+sortIndicator(sortByBlobs),
	)
	b.WriteString(headerRowStyle.Width(contentWidth).Render(truncateString(header, contentWidth)))
	b.WriteString("\n")
	b.WriteString(strings.Repeat("─", max(0, contentWidth)))
	b.WriteString("\n")

	visibleEnd := min(fp.offset+fp.visibleRows(), len(fp.rows))
	for i := fp.offset; i < visibleEnd; i++ {
		row := fp.rows[i]

		// Pad before styling; fmt width counts escape bytes.
		severity := renderSeverity(row.Severity)
		severity += strings.Repeat(" ", max(0, colSeverity-lipgloss.Width(severity)))

		line := fmt.Sprintf(" %-*s %-*s %s %*d %*d",
			colRuleName, truncateString(row.RuleName, colRuleName),
			colContent, truncateString(printable(row.Content), colContent),
			severity,
			colMatches, row.MatchCount,
			colBlobs, row.BlobCount,
		)

		if i == fp.cursor && fp.focused {
			line = selectedRowStyle.Width(contentWidth).Render(stripAnsi(line))
		}

		b.WriteString(padRight(line, contentWidth))
		if i < visibleEnd-1 {
			b.WriteString("\n")
		}
	}

	for i := visibleEnd - fp.offset; i < fp.visibleRows(); i++ {
		b.WriteString(strings.Repeat(" ", max(0, contentWidth)))
		if i < fp.visibleRows()-1 {
			b.WriteString("\n")
		}
	}

	title := titleStyle.Render(fmt.Sprintf(" Findings (%d/%d) [sort: %s] ", len(fp.rows), len(fp.allRows), sortFieldNames[fp.sortBy]))

	borderStyle := inactiveBorderStyle
	if fp.focused {
		borderStyle = activeBorderStyle
	}
	content := borderStyle.
		Width(fp.width - 2).
		Height(fp.height - 3).
		Render(b.String())

	return lipgloss.JoinVertical(lipgloss.Left, title, content)
}

func (fp findingsPane) visibleRows() int {
	return max(1, fp.height-6) // title, border, header, separator
}

func (fp *findingsPane) ensureVisible() {
	if fp.cursor < fp.offset {
		fp.offset = fp.cursor
	}
	if fp.cursor >= fp.offset+fp.visibleRows() {
		fp.offset = fp.cursor - fp.visibleRows() + 1
	}
}

func (fp *findingsPane) setSize(w, h int) {
	fp.width = w
	fp.height = h
}
