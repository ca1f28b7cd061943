package app

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	progressdto "reltone/internal/modules/progress/dto"
	"reltone/internal/ui/components"
	"reltone/internal/ui/theme"
	archivesview "reltone/internal/ui/views/archives"
	cycleview "reltone/internal/ui/views/cycle"
	historyview "reltone/internal/ui/views/history"
)

// ─── ports ───────────────────────────────────────────────────────────────────

type progressPort interface {
	Show(ctx context.Context) (progressdto.ProgressOutput, error)
	Next(ctx context.Context) (progressdto.NextBaseNoteOutput, error)
	Record(ctx context.Context, baseNote string, cents []*float64) (progressdto.RecordSessionOutput, error)
	NewCycle(ctx context.Context) (progressdto.NewCycleOutput, error)
	Reset(ctx context.Context) (progressdto.ProgressOutput, error)
	Archives(ctx context.Context) ([]progressdto.ArchiveOutput, error)
	History(ctx context.Context) ([]progressdto.SessionRecordOutput, error)
	Export(ctx context.Context, path string) (progressdto.ExportOutput, error)
}

// ─── tab index ───────────────────────────────────────────────────────────────

type tabID int

const (
	tabCycle tabID = iota
	tabHistory
	tabArchives
	tabCount
)

var tabLabels = [tabCount]string{"Cycle", "History", "Archives"}

// ─── async messages ──────────────────────────────────────────────────────────

type nextLoadedMsg struct {
	next progressdto.NextBaseNoteOutput
	err  error
}

type recordedMsg struct {
	out progressdto.RecordSessionOutput
	err error
}

type cycleStartedMsg struct {
	out progressdto.NewCycleOutput
	err error
}

type resetMsg struct {
	out progressdto.ProgressOutput
	err error
}

type exportedMsg struct {
	out progressdto.ExportOutput
	err error
}

// ─── key bindings ────────────────────────────────────────────────────────────

type keyMap struct {
	Tab     key.Binding
	Help    key.Binding
	Palette key.Binding
	Quit    key.Binding
	Next    key.Binding
	Refresh key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Tab:     key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next tab")),
		Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Palette: key.NewBinding(key.WithKeys(":"), key.WithHelp(":", "palette")),
		Quit:    key.NewBinding(key.WithKeys("ctrl+c", "q"), key.WithHelp("q", "quit")),
		Next:    key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "next base note")),
		Refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Tab, k.Help, k.Palette, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Tab, k.Next, k.Refresh},
		{k.Help, k.Palette, k.Quit},
	}
}

// ─── model ───────────────────────────────────────────────────────────────────

// Model is the root Bubble Tea model. It routes tabs, runs palette commands
// against the progress port and delegates rendering to the sub-views.
type Model struct {
	dataDir  string
	progress progressPort

	cycleView    cycleview.Model
	historyView  historyview.Model
	archivesView archivesview.Model

	activeTab tabID
	keys      keyMap
	help      help.Model
	showHelp  bool
	palette   components.Palette
	next      *progressdto.NextBaseNoteOutput
	status    string
	width     int
	height    int
}

func NewModel(dataDir string, progress progressPort) Model {
	return Model{
		dataDir:      dataDir,
		progress:     progress,
		cycleView:    cycleview.New(progress),
		historyView:  historyview.New(progress),
		archivesView: archivesview.New(progress),
		activeTab:    tabCycle,
		keys:         defaultKeys(),
		help:         help.New(),
		palette:      components.NewPalette(progressdto.ScaleDegreeNames()),
		status:       "ready",
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.cycleView.Init(),
		m.historyView.Init(),
		m.archivesView.Init(),
	)
}

// ─── update ──────────────────────────────────────────────────────────────────

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	if m.palette.Visible() {
		var cmd tea.Cmd
		m.palette, cmd = m.palette.Update(msg)
		return m, cmd
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.palette.SetWidth(min(m.width-4, 80))
		m.help.Width = m.width
		m.propagateSize()
		return m, nil

	case nextLoadedMsg:
		if msg.err != nil {
			m.status = "next: " + msg.err.Error()
			return m, nil
		}
		m.next = &msg.next
		m.status = fmt.Sprintf("session %d: sing from %s (%.2f Hz)", msg.next.SessionID, msg.next.BaseNote, msg.next.BaseFrequencyHz)
		return m, nil

	case recordedMsg:
		if msg.err != nil && msg.out.Session.SessionID == 0 {
			m.status = "record failed: " + msg.err.Error()
			return m, nil
		}
		m.next = nil
		s := msg.out.Session
		m.status = fmt.Sprintf("session %d on %s: %s %.0f%%", s.SessionID, s.BaseNote, s.Grade, s.AccuracyPercent)
		if msg.out.CycleCompleted {
			m.status += "  cycle completed: " + msg.out.Progress.OverallGrade
		}
		if !msg.out.Durable {
			m.status += "  (not saved)"
		}
		return m, m.reloadAll()

	case cycleStartedMsg:
		switch {
		case msg.err != nil:
			m.status = "new cycle: " + msg.err.Error()
		case !msg.out.Started:
			m.status = fmt.Sprintf("cycle not completed (%d/8)", msg.out.Progress.SessionsCompleted)
		default:
			m.next = nil
			m.status = "started cycle " + shortID(msg.out.Progress.CycleID)
		}
		return m, m.reloadAll()

	case resetMsg:
		if msg.err != nil {
			m.status = "reset: " + msg.err.Error()
			return m, nil
		}
		m.next = nil
		m.status = "reset: new cycle " + shortID(msg.out.CycleID)
		return m, m.reloadAll()

	case exportedMsg:
		if msg.err != nil {
			m.status = "export: " + msg.err.Error()
		} else {
			m.status = fmt.Sprintf("exported %d sessions to %s", msg.out.Sessions, msg.out.Path)
		}
		return m, nil

	case components.PaletteSubmitMsg:
		return m.executePalette(msg.Input)

	case components.PaletteCancelMsg:
		m.status = "ready"
		return m, nil

	case cycleview.ProgressLoadedMsg:
		var cmd tea.Cmd
		m.cycleView, cmd = m.cycleView.Update(msg)
		return m, cmd

	case historyview.LoadedMsg:
		var cmd tea.Cmd
		m.historyView, cmd = m.historyView.Update(msg)
		return m, cmd

	case archivesview.LoadedMsg:
		var cmd tea.Cmd
		m.archivesView, cmd = m.archivesView.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.showHelp {
			if msg.String() == "?" || msg.String() == "esc" {
				m.showHelp = false
			}
			return m, nil
		}

		if m.subViewFiltering() {
			break
		}

		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "tab":
			m.activeTab = (m.activeTab + 1) % tabCount
			return m, nil
		case "shift+tab":
			m.activeTab = (m.activeTab + tabCount - 1) % tabCount
			return m, nil
		case "?":
			m.showHelp = !m.showHelp
			return m, nil
		case ":":
			return m, m.palette.Open()
		case "n":
			return m, m.nextCmd()
		case "r":
			m.status = "refreshing"
			return m, m.reloadAll()
		}
	}

	var tabCmd tea.Cmd
	switch m.activeTab {
	case tabCycle:
		m.cycleView, tabCmd = m.cycleView.Update(msg)
	case tabHistory:
		m.historyView, tabCmd = m.historyView.Update(msg)
	case tabArchives:
		m.archivesView, tabCmd = m.archivesView.Update(msg)
	}
	cmds = append(cmds, tabCmd)

	return m, tea.Batch(cmds...)
}

// ─── view ────────────────────────────────────────────────────────────────────

func (m Model) View() string {
	tabBar := m.renderTabBar()
	statusBar := m.renderStatusBar()
	contentH := m.height - lipgloss.Height(tabBar) - lipgloss.Height(statusBar)
	if contentH < 1 {
		contentH = 1
	}

	var content string
	switch {
	case m.showHelp:
		content = lipgloss.NewStyle().Width(m.width).Height(contentH).
			Render(m.help.View(m.keys))
	case m.palette.Visible():
		content = lipgloss.Place(m.width, contentH,
			lipgloss.Center, lipgloss.Center, m.palette.View())
	default:
		content = m.activeView()
	}

	return lipgloss.JoinVertical(lipgloss.Left, tabBar, content, statusBar)
}

func (m Model) activeView() string {
	switch m.activeTab {
	case tabCycle:
		return m.cycleView.View()
	case tabHistory:
		return m.historyView.View()
	case tabArchives:
		return m.archivesView.View()
	}
	return ""
}

func (m Model) renderTabBar() string {
	parts := make([]string, tabCount)
	for i := tabID(0); i < tabCount; i++ {
		label := tabLabels[i]
		if i == m.activeTab {
			parts[i] = theme.Hot.Render(" " + label + " ")
		} else {
			parts[i] = theme.Muted.Render(" " + label + " ")
		}
	}
	sep := theme.Muted.Render(" │ ")
	bar := "reltone  " + strings.Join(parts, sep)
	return lipgloss.NewStyle().Background(theme.Mantle).Width(m.width).Render(bar) + "\n"
}

func (m Model) renderStatusBar() string {
	left := m.status
	if m.next != nil {
		left = theme.Hot.Render("♪ "+m.next.BaseNote) + "  " + left
	}
	right := theme.Muted.Render("?:help  tab:switch  n:next  :::palette  q:quit")
	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	bar := left + strings.Repeat(" ", gap) + right
	return "\n" + lipgloss.NewStyle().Background(theme.Mantle).Width(m.width).Render(bar)
}

// ─── palette execution ───────────────────────────────────────────────────────

func (m Model) executePalette(input string) (tea.Model, tea.Cmd) {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return m, nil
	}

	switch parts[0] {
	case "next":
		return m, m.nextCmd()

	case "record":
		cents, err := parseCents(parts[1:])
		if err != nil {
			m.status = err.Error()
			return m, nil
		}
		return m, m.recordCmd(cents)

	case "cycle:new":
		return m, m.newCycleCmd()

	case "cycle:reset":
		if len(parts) < 2 || parts[1] != "yes" {
			m.status = "reset discards the current cycle: cycle:reset yes"
			return m, nil
		}
		return m, m.resetCmd()

	case "export":
		if len(parts) < 2 {
			m.status = "usage: export <path.xlsx>"
			return m, nil
		}
		path := parts[1]
		if !filepath.IsAbs(path) {
			path = filepath.Join(m.dataDir, path)
		}
		return m, m.exportCmd(path)

	case "refresh":
		return m, m.reloadAll()

	default:
		m.status = "unknown command: " + parts[0]
	}
	return m, nil
}

// ─── helpers ─────────────────────────────────────────────────────────────────

func (m Model) subViewFiltering() bool {
	switch m.activeTab {
	case tabCycle:
		return m.cycleView.Filtering()
	case tabHistory:
		return m.historyView.Filtering()
	case tabArchives:
		return m.archivesView.Filtering()
	}
	return false
}

func (m *Model) propagateSize() {
	sz := tea.WindowSizeMsg{Width: m.width, Height: m.height - 3}
	m.cycleView, _ = m.cycleView.Update(sz)
	m.historyView, _ = m.historyView.Update(sz)
	m.archivesView, _ = m.archivesView.Update(sz)
}

func (m Model) reloadAll() tea.Cmd {
	return tea.Batch(m.cycleView.Reload(), m.historyView.Reload(), m.archivesView.Reload())
}

// parseCents reads one deviation per scale degree; "-" marks a note that was not measured.
func parseCents(fields []string) ([]*float64, error) {
	out := make([]*float64, 0, len(fields))
	for i, f := range fields {
		if f == "-" {
			out = append(out, nil)
			continue
		}
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid cents #%d: %q", i+1, f)
		}
		out = append(out, &v)
	}
	return out, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// ─── async commands ──────────────────────────────────────────────────────────

func (m Model) nextCmd() tea.Cmd {
	return func() tea.Msg {
		out, err := m.progress.Next(context.Background())
		return nextLoadedMsg{next: out, err: err}
	}
}

func (m Model) recordCmd(cents []*float64) tea.Cmd {
	base := ""
	if m.next != nil {
		base = m.next.BaseNote
	}
	return func() tea.Msg {
		out, err := m.progress.Record(context.Background(), base, cents)
		return recordedMsg{out: out, err: err}
	}
}

func (m Model) newCycleCmd() tea.Cmd {
	return func() tea.Msg {
		out, err := m.progress.NewCycle(context.Background())
		return cycleStartedMsg{out: out, err: err}
	}
}

func (m Model) resetCmd() tea.Cmd {
	return func() tea.Msg {
		out, err := m.progress.Reset(context.Background())
		return resetMsg{out: out, err: err}
	}
}

func (m Model) exportCmd(path string) tea.Cmd {
	return func() tea.Msg {
		out, err := m.progress.Export(context.Background(), path)
		return exportedMsg{out: out, err: err}
	}
}
