package history

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	progressdto "reltone/internal/modules/progress/dto"
	"reltone/internal/ui/theme"
)

type HistoryPort interface {
	History(ctx context.Context) ([]progressdto.SessionRecordOutput, error)
}

type LoadedMsg struct {
	Records []progressdto.SessionRecordOutput
	Err     error
}

type recordItem struct {
	record progressdto.SessionRecordOutput
}

func (i recordItem) Title() string {
	return fmt.Sprintf("%s  #%d %s", i.record.CompletedAt.Local().Format("2006-01-02 15:04"), i.record.SessionID, i.record.BaseNote)
}

func (i recordItem) Description() string {
	return fmt.Sprintf("%s  %.0f%%  %.1f¢  cycle %s", i.record.Grade, i.record.AccuracyPercent, i.record.AverageErrorCents, shortID(i.record.CycleID))
}

func (i recordItem) FilterValue() string { return i.record.BaseNote + " " + i.record.Grade }

// Model lists recorded sessions across every cycle, newest first.
type Model struct {
	port   HistoryPort
	list   list.Model
	err    error
	width  int
	height int
}

func New(port HistoryPort) Model {
	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.Foreground(theme.Lavender).BorderForeground(theme.Lavender)
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.Foreground(theme.Sapphire).BorderForeground(theme.Lavender)

	l := list.New(nil, delegate, 0, 0)
	l.Title = "History"
	l.Styles.Title = theme.Title
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)
	l.SetShowHelp(false)
	return Model{port: port, list: l}
}

func (m Model) Init() tea.Cmd {
	return m.Reload()
}

func (m Model) Reload() tea.Cmd {
	return func() tea.Msg {
		if m.port == nil {
			return LoadedMsg{Err: fmt.Errorf("history adapter not configured")}
		}
		records, err := m.port.History(context.Background())
		return LoadedMsg{Records: records, Err: err}
	}
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmds []tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.list.SetSize(m.width, m.height)

	case LoadedMsg:
		m.err = msg.Err
		if msg.Err != nil {
			return m, nil
		}
		items := make([]list.Item, 0, len(msg.Records))
		for i := len(msg.Records) - 1; i >= 0; i-- {
			items = append(items, recordItem{record: msg.Records[i]})
		}
		cmds = append(cmds, m.list.SetItems(items))
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m Model) View() string {
	if m.err != nil {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center,
			theme.Warn.Render("history unavailable: "+m.err.Error()))
	}
	return lipgloss.NewStyle().Width(m.width).Height(m.height).Render(m.list.View())
}

func (m Model) Filtering() bool {
	return m.list.FilterState() == list.Filtering
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
