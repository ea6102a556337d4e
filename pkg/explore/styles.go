package explore

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	colorPrimary   = lipgloss.Color("#e63948")
	colorSecondary = lipgloss.Color("10")
	colorMatch     = lipgloss.Color("#D4AF37")
	colorMuted     = lipgloss.Color("8")
	colorAccent    = lipgloss.Color("#11C3DB")
	colorHighlight = lipgloss.Color("15")
)

var (
	activeBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(colorPrimary)

	inactiveBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(colorMuted)
)

var titleStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(colorHighlight).
	Background(colorPrimary).
	Padding(0, 1)

var (
	selectedRowStyle = lipgloss.NewStyle().
				Background(lipgloss.Color("17")).
				Foreground(colorHighlight)

	headerRowStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorAccent)
)

var (
	snippetMatchStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(colorMatch)

	snippetContextStyle = lipgloss.NewStyle().
				Foreground(colorMuted)
)

var severityStyles = map[string]lipgloss.Style{
	"critical": lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
	"high":     lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
	"medium":   lipgloss.NewStyle().Foreground(colorMatch),
	"low":      lipgloss.NewStyle().Foreground(colorSecondary),
	"info":     lipgloss.NewStyle().Foreground(colorMuted),
}

var statusBarStyle = lipgloss.NewStyle().Foreground(colorMuted)

var (
	helpKeyStyle  = lipgloss.NewStyle().Foreground(colorAccent)
	helpDescStyle = lipgloss.NewStyle().Foreground(colorMuted)
)

var (
	facetLabelStyle    = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)
	facetSelectedStyle = lipgloss.NewStyle().Foreground(colorSecondary)
	facetCountStyle    = lipgloss.NewStyle().Foreground(colorMuted)
)

var (
	fieldLabelStyle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	fieldValueStyle = lipgloss.NewStyle().Foreground(colorHighlight)
)

var modalStyle = lipgloss.NewStyle().
	Border(lipgloss.DoubleBorder()).
	BorderForeground(colorPrimary).
	Padding(1, 2)

// renderSeverity returns a styled severity, "-" when unset.
func renderSeverity(severity string) string {
	if style, ok := severityStyles[strings.ToLower(severity)]; ok {
		return style.Render(severity)
	}
	if severity == "" {
		return snippetContextStyle.Render(noValue)
	}
	return severity
}

// severityRank orders severities for sorting; unknown ranks lowest.
func severityRank(severity string) int {
	switch strings.ToLower(severity) {
	case "critical":
		return 5
	case "high":
		return 4
	case "medium":
		return 3
	case "low":
		return 2
	case "info":
		return 1
	}
	return 0
}

func truncateString(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

func padRight(s string, width int) string {
	visLen := lipgloss.Width(s)
	if visLen >= width {
		return s
	}
	return s + strings.Repeat(" ", width-visLen)
}

// stripAnsi removes ANSI escape sequences for re-styling.
func stripAnsi(s string) string {
	var result strings.Builder
	inEscape := false
	for _, r := range s {
		if r == '\033' {
			inEscape = true
			continue
		}
		if inEscape {
			if (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') {
				inEscape = false
			}
			continue
		}
		result.WriteRune(r)
	}
	return result.String()
}

// printable renders matched bytes for a single-line cell.
func printable(b []byte) string {
	var sb strings.Builder
	for _, c := range b {
		switch {
		case c == '\n':
			sb.WriteString(`\n`)
		case c == '\t':
			sb.WriteString(`\t`)
		case c < 0x20 || c >= 0x7f:
			sb.WriteString(`\x`)
			sb.WriteByte("0123456789abcdef"[c>>4])
			sb.WriteByte("0123456789abcdef"[c&0xf])
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}
