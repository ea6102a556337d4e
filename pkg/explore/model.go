// Package explore is an interactive terminal browser for the findings of a
// scan database.
package explore

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/praetorian-inc/sieve/pkg/types"
)

type focusedPane int

const (
	paneFilters focusedPane = iota
	paneFindings
	paneDetails
)

type overlay int

const (
	overlayNone overlay = iota
	overlayHelp
	overlaySource
)

// pagerFinishedMsg is sent when an external pager process exits.
type pagerFinishedMsg struct{ err error }

// Model is the root Bubble Tea model.
type Model struct {
	data     *exploreData
	filters  filterPane
	findings findingsPane
	details  detailsPane

	focus         focusedPane
	activeOverlay overlay
	showFilters   bool

	overlayLines  []string
	overlayOffset int

	width  int
	height int
	err    error
}

// New loads the scan database at path.
func New(path string) (Model, error) {
	data, err := loadData(path)
	if err != nil {
		return Model{}, err
	}
	return newModel(data), nil
}

func newModel(data *exploreData) Model {
	m := Model{
		data:        data,
		filters:     newFilterPane(buildFacets(data.findings)),
		findings:    newFindingsPane(data.findings),
		showFilters: true,
	}
	m.setFocus(paneFindings)
	m.details.setFinding(m.findings.selectedFinding())
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.SetWindowTitle("sieve explore")
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		return m, nil

	case pagerFinishedMsg:
		m.err = msg.err
		return m, nil

	case tea.MouseMsg:
		if m.activeOverlay == overlayNone && msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft {
			m.handleMouseClick(msg.X, msg.Y)
		}
		return m, nil

	case tea.KeyMsg:
		if m.activeOverlay != overlayNone {
			m.updateOverlay(msg)
			return m, nil
		}

		switch {
		case keyMatches(msg, defaultKeys.ForceQuit), keyMatches(msg, defaultKeys.Quit):
			return m, tea.Quit
		case keyMatches(msg, defaultKeys.ToggleHelp):
			m.showOverlay(overlayHelp, helpText)
			return m, nil
		case keyMatches(msg, defaultKeys.ToggleFilters):
			m.showFilters = !m.showFilters
			if !m.showFilters && m.focus == paneFilters {
				m.setFocus(paneFindings)
			}
			m.layout()
			return m, nil
		case keyMatches(msg, defaultKeys.FocusFilters):
			if m.showFilters {
				m.setFocus(paneFilters)
			}
			return m, nil
		case keyMatches(msg, defaultKeys.NextPane):
			m.cycleFocus()
			return m, nil
		}

		// Letters double as filter toggles only in the filters pane.
		if m.focus != paneFilters {
			switch {
			case keyMatches(msg, defaultKeys.FocusFindings):
				m.setFocus(paneFindings)
				return m, nil
			case keyMatches(msg, defaultKeys.FocusDetails):
				m.setFocus(paneDetails)
				return m, nil
			case keyMatches(msg, defaultKeys.OpenSource):
				return m, m.openSource()
			}
		}

		var cmd tea.Cmd
		switch m.focus {
		case paneFilters:
			m.filters, cmd = m.filters.Update(msg)
			m.applyFilters()
		case paneFindings:
			prev := m.findings.selectedFinding()
			m.findings, cmd = m.findings.Update(msg)
			if f := m.findings.selectedFinding(); f != prev {
				m.details.setFinding(f)
			}
		case paneDetails:
			m.details, cmd = m.details.Update(msg)
		}
		return m, cmd
	}

	return m, nil
}

func (m *Model) showOverlay(o overlay, content string) {
	m.activeOverlay = o
	m.overlayLines = strings.Split(strings.TrimRight(content, "\n"), "\n")
	m.overlayOffset = 0
}

func (m *Model) updateOverlay(msg tea.KeyMsg) {
	closeKey := defaultKeys.ToggleHelp
	if m.activeOverlay == overlaySource {
		closeKey = defaultKeys.OpenSource
	}
	last := max(0, len(m.overlayLines)-1)
	switch {
	case keyMatches(msg, defaultKeys.Quit), keyMatches(msg, defaultKeys.ForceQuit),
		keyMatches(msg, closeKey), msg.String() == "esc":
		m.activeOverlay = overlayNone
	case keyMatches(msg, defaultKeys.Down):
		m.overlayOffset = min(m.overlayOffset+1, last)
	case keyMatches(msg, defaultKeys.Up):
		m.overlayOffset = max(0, m.overlayOffset-1)
	case keyMatches(msg, defaultKeys.PageDown):
		m.overlayOffset = min(m.overlayOffset+m.height/2, last)
	case keyMatches(msg, defaultKeys.PageUp):
		m.overlayOffset = max(0, m.overlayOffset-m.height/2)
	case keyMatches(msg, defaultKeys.Home):
		m.overlayOffset = 0
	}
}

// layout sizes the panes for the current window.
func (m *Model) layout() {
	contentHeight := m.height - 2
	findingsHeight := contentHeight * 40 / 100
	detailsHeight := contentHeight - findingsHeight

	dataWidth := m.width
	if m.showFilters {
		filtersWidth := m.filtersWidth()
		dataWidth -= filtersWidth
		m.filters.setSize(filtersWidth, contentHeight)
	}
	m.findings.setSize(dataWidth, findingsHeight)
	m.details.setSize(dataWidth, detailsHeight)
	m.findings.ensureVisible()
	m.filters.ensureVisible()
}

func (m Model) filtersWidth() int {
	return min(m.width*30/100, 50)
}

func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}
	if m.activeOverlay != overlayNone {
		return m.renderOverlay()
	}

	data := lipgloss.JoinVertical(lipgloss.Left, m.findings.View(), m.details.View())
	main := data
	if m.showFilters {
		main = lipgloss.JoinHorizontal(lipgloss.Top, m.filters.View(), data)
	}
	return lipgloss.JoinVertical(lipgloss.Left, main, m.renderStatusBar())
}

func (m Model) renderStatusBar() string {
	left := fmt.Sprintf(" %d findings | %d shown", len(m.data.findings), len(m.findings.rows))
	if m.err != nil {
		left += " | " + m.err.Error()
	}
	left = statusBarStyle.Render(left)

	var hints []string
	for _, h := range [][2]string{
		{"j/k", "nav"}, {"tab", "pane"}, {"h/l", "match"}, {"s/S", "sort"},
		{"o", "source"}, {"F7", "filters"}, {"?", "help"},
	} {
		hints = append(hints, helpKeyStyle.Render(h[0])+":"+helpDescStyle.Render(h[1]))
	}
	right := strings.Join(hints, "  ")

	gap := max(0, m.width-lipgloss.Width(left)-lipgloss.Width(right))
	return left + strings.Repeat(" ", gap) + right
}

func (m Model) renderOverlay() string {
	overlayWidth := m.width * 80 / 100
	overlayHeight := m.height * 80 / 100

	title := " Help (q to close) "
	if m.activeOverlay == overlaySource {
		title = " Source (q to close) "
	}

	height := max(1, overlayHeight-4)
	offset := min(m.overlayOffset, max(0, len(m.overlayLines)-1))
	end := min(offset+height, len(m.overlayLines))
	content := strings.Join(m.overlayLines[offset:end], "\n")

	box := modalStyle.
		Width(overlayWidth - 4).
		Height(overlayHeight - 2).
		Render(content)
	view := lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render(title), box)

	hPad := (m.width - lipgloss.Width(view)) / 2
	vPad := (m.height - lipgloss.Height(view)) / 2
	return strings.Repeat("\n", max(0, vPad)) +
		lipgloss.NewStyle().PaddingLeft(max(0, hPad)).Render(view)
}

func (m *Model) setFocus(p focusedPane) {
	m.filters.focused = p == paneFilters
	m.findings.focused = p == paneFindings
	m.details.focused = p == paneDetails
	m.focus = p
}

func (m *Model) cycleFocus() {
	next := (m.focus + 1) % 3
	if next == paneFilters && !m.showFilters {
		next = paneFindings
	}
	m.setFocus(next)
}

func (m *Model) handleMouseClick(x, y int) {
	contentHeight := m.height - 2
	findingsHeight := contentHeight * 40 / 100
	left := 0
	if m.showFilters {
		left = m.filtersWidth()
	}

	switch {
	case y >= contentHeight:
	case x < left:
		m.setFocus(paneFilters)
		idx := y - 2 + m.filters.offset // title, top border
		if y >= 2 && idx < len(m.filters.items) {
			m.filters.cursor = idx
			m.filters.toggleCurrent()
			m.applyFilters()
		}
	case y < findingsHeight:
		m.setFocus(paneFindings)
		idx := y - 4 + m.findings.offset // title, top border, header, separator
		if y >= 4 && idx < len(m.findings.rows) {
			m.findings.cursor = idx
			m.details.setFinding(m.findings.selectedFinding())
		}
	default:
		m.setFocus(paneDetails)
	}
}

func (m *Model) applyFilters() {
	var filtered []*findingRow
	for _, f := range m.data.findings {
		if m.filters.facets.matchesFinding(f) {
			filtered = append(filtered, f)
		}
	}
	prev := m.findings.selectedFinding()
	m.findings.setFilteredRows(filtered)
	m.filters.facets.updateCounts(m.data.findings)

	if f := m.findings.selectedFinding(); f != prev {
		m.details.setFinding(f)
	}
}

// openSource pages the file of a filesystem match, otherwise shows the
// snippet in an overlay.
func (m *Model) openSource() tea.Cmd {
	match := m.details.selectedMatch()
	if match == nil {
		return nil
	}

	for _, prov := range match.Provenance {
		if fp, ok := prov.(types.FileProvenance); ok {
			if _, err := os.Stat(fp.FilePath); err == nil {
				return openInPager(fp.FilePath, match.Location.Source.Start.Line)
			}
		}
	}

	var sb strings.Builder
	sb.Write(match.Snippet.Before)
	sb.Write(match.Snippet.Matching)
	sb.Write(match.Snippet.After)
	m.showOverlay(overlaySource, sb.String())
	return nil
}

func openInPager(filePath string, line int) tea.Cmd {
	pager := os.Getenv("PAGER")
	if pager == "" {
		pager = "less"
	}

	var args []string
	if line > 0 && pager == "less" {
		args = append(args, fmt.Sprintf("+%d", line))
	}
	args = append(args, filePath)

	return tea.ExecProcess(exec.Command(pager, args...), func(err error) tea.Msg {
		return pagerFinishedMsg{err: err}
	})
}

// Close releases the database.
func (m *Model) Close() error {
	if m.data != nil {
		return m.data.close()
	}
	return nil
}

const helpText = `Sieve Explore

NAVIGATION
  j/k or Up/Down    Move cursor
  h/l or Left/Right Previous/next match of a finding
  Ctrl+f/Ctrl+b     Page down/up
  g/G               Jump to top/bottom

FOCUS
  Tab               Next pane
  F1                Filters pane
  f                 Findings pane
  d                 Details pane
  F7                Show/hide filters pane

FILTERS
  x, Space, Enter   Toggle value or collapse facet
  Ctrl+r            Reset all filters

VIEWS
  s                 Cycle sort column
  S                 Reverse sort order
  o                 Open source ($PAGER for files, snippet otherwise)
  ?                 This help

QUIT
  q, Ctrl+c         Quit
`
