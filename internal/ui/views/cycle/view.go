package cycle

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	progressdto "reltone/internal/modules/progress/dto"
	"reltone/internal/ui/theme"
)

const sessionsPerCycle = 8

// ─── port ────────────────────────────────────────────────────────────────────

type ProgressPort interface {
	Show(ctx context.Context) (progressdto.ProgressOutput, error)
}

// ─── messages ────────────────────────────────────────────────────────────────

type ProgressLoadedMsg struct {
	Progress progressdto.ProgressOutput
	Err      error
}

// ─── list item ───────────────────────────────────────────────────────────────

type sessionItem struct {
	session progressdto.SessionOutput
}

func (i sessionItem) Title() string {
	return fmt.Sprintf("#%d  %s", i.session.SessionID, i.session.BaseNote)
}

func (i sessionItem) Description() string {
	return fmt.Sprintf("%s  %.0f%%  %.1f¢", i.session.Grade, i.session.AccuracyPercent, i.session.AverageErrorCents)
}

func (i sessionItem) FilterValue() string { return i.session.BaseNote }

// ─── model ───────────────────────────────────────────────────────────────────

type Model struct {
	port     ProgressPort
	list     list.Model
	progress progressdto.ProgressOutput
	detail   viewport.Model
	spinner  spinner.Model
	loading  bool
	err      error
	width    int
	height   int
}

func New(port ProgressPort) Model {
	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.Foreground(theme.Lavender).BorderForeground(theme.Lavender)
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.Foreground(theme.Sapphire).BorderForeground(theme.Lavender)

	l := list.New(nil, delegate, 0, 0)
	l.Title = "Sessions"
	l.Styles.Title = theme.Title
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(true)
	l.SetShowHelp(false)

	vp := viewport.New(0, 0)
	vp.Style = lipgloss.NewStyle().
		Background(theme.Mantle).
		Foreground(theme.Text).
		Padding(1)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.Lavender)

	return Model{port: port, list: l, detail: vp, spinner: sp, loading: true}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.Reload(), m.spinner.Tick)
}

// Reload fetches the current cycle again.
func (m Model) Reload() tea.Cmd {
	return func() tea.Msg {
		if m.port == nil {
			return ProgressLoadedMsg{Err: fmt.Errorf("progress adapter not configured")}
		}
		p, err := m.port.Show(context.Background())
		return ProgressLoadedMsg{Progress: p, Err: err}
	}
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()

	case ProgressLoadedMsg:
		m.loading = false
		m.err = msg.Err
		if msg.Err == nil {
			cmds = append(cmds, m.setProgress(msg.Progress))
		}
		m.detail.SetContent(m.renderDetail())

	case spinner.TickMsg:
		if m.loading {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	if !m.loading {
		prevIdx := m.list.Index()
		var lCmd tea.Cmd
		m.list, lCmd = m.list.Update(msg)
		cmds = append(cmds, lCmd)
		if m.list.Index() != prevIdx {
			m.detail.SetContent(m.renderDetail())
		}

		var vCmd tea.Cmd
		m.detail, vCmd = m.detail.Update(msg)
		cmds = append(cmds, vCmd)
	}

	return m, tea.Batch(cmds...)
}

func (m Model) View() string {
	if m.loading {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center,
			m.spinner.View()+" Loading progress…")
	}

	listW := m.width * 35 / 100
	detailW := m.width - listW

	listPane := lipgloss.NewStyle().
		Width(listW).
		Height(m.height).
		Render(m.list.View())

	detailPane := lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(theme.Surface1).
		Background(theme.Mantle).
		Width(detailW - 2).
		Height(m.height - 2).
		Render(m.detail.View())

	return lipgloss.JoinHorizontal(lipgloss.Top, listPane, detailPane)
}

// Progress returns the last loaded cycle.
func (m Model) Progress() progressdto.ProgressOutput {
	return m.progress
}

func (m Model) Filtering() bool {
	return m.list.FilterState() == list.Filtering
}

// ─── private ─────────────────────────────────────────────────────────────────

func (m *Model) setProgress(p progressdto.ProgressOutput) tea.Cmd {
	m.progress = p
	items := make([]list.Item, len(p.Sessions))
	for i, s := range p.Sessions {
		items[i] = sessionItem{session: s}
	}
	return m.list.SetItems(items)
}

func (m *Model) resize() {
	listW := m.width * 35 / 100
	detailW := m.width - listW
	m.list.SetSize(listW, m.height)
	m.detail.Width = detailW - 4
	m.detail.Height = m.height - 4
}

func (m Model) renderDetail() string {
	if m.err != nil {
		return theme.Warn.Render("progress unavailable: " + m.err.Error())
	}
	p := m.progress
	if p.CycleID == "" {
		return theme.Muted.Render("No cycle loaded")
	}
	var sb strings.Builder
	sb.WriteString(theme.Title.Render("Cycle "+shortID(p.CycleID)) + "  " + theme.Muted.Render(p.VoiceRange) + "\n\n")
	sb.WriteString(theme.Muted.Render("started:   ") + p.CreatedAt.Local().Format("2006-01-02 15:04") + "\n")
	sb.WriteString(theme.Muted.Render("sessions:  ") + progressBar(p.SessionsCompleted) + fmt.Sprintf(" %d/%d\n", p.SessionsCompleted, sessionsPerCycle))
	if p.IsCompleted {
		acc := "-"
		if p.OverallAccuracy != nil {
			acc = fmt.Sprintf("%.0f%%", *p.OverallAccuracy)
		}
		sb.WriteString(theme.Muted.Render("overall:   ") + theme.Grade(p.OverallGrade).Render(p.OverallGrade) + "  " + acc + "\n")
	} else if len(p.RemainingBaseNotes) > 0 {
		sb.WriteString(theme.Muted.Render("remaining: ") + strings.Join(p.RemainingBaseNotes, " ") + "\n")
	}
	if p.Health.Discarded {
		sb.WriteString("\n" + theme.Warn.Render("stored progress was discarded: "+p.Health.Reason) + "\n")
	} else if len(p.Health.Repaired) > 0 {
		sb.WriteString("\n" + theme.Hot.Render("repaired: "+strings.Join(p.Health.Repaired, ", ")) + "\n")
	}

	item, ok := m.list.SelectedItem().(sessionItem)
	if !ok {
		sb.WriteString("\n" + theme.Muted.Render("n: pick the next base note  :: palette"))
		return sb.String()
	}
	s := item.session
	sb.WriteString("\n" + theme.Title.Render(fmt.Sprintf("Session #%d on %s (%.2f Hz)", s.SessionID, s.BaseNote, s.BaseFrequencyHz)) + "\n")
	sb.WriteString(theme.Grade(s.Grade).Render(s.Grade) + fmt.Sprintf("  %.0f%%  avg %.1f¢\n\n", s.AccuracyPercent, s.AverageErrorCents))
	for _, n := range s.Notes {
		sb.WriteString(fmt.Sprintf("  %-3s %8.2f Hz  %s  %s\n", n.TargetNote, n.TargetFrequencyHz, centsText(n.Cents), theme.Grade(n.Grade).Render(n.Grade)))
	}
	return sb.String()
}

func progressBar(done int) string {
	if done > sessionsPerCycle {
		done = sessionsPerCycle
	}
	filled := lipgloss.NewStyle().Foreground(theme.Green).Render(strings.Repeat("■", done))
	return filled + theme.Muted.Render(strings.Repeat("□", sessionsPerCycle-done))
}

func centsText(c *float64) string {
	if c == nil {
		return "    --"
	}
	return fmt.Sprintf("%+5.0f¢", *c)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
