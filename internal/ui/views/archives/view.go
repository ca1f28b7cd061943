package archives

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	progressdto "reltone/internal/modules/progress/dto"
	"reltone/internal/ui/theme"
)

type ArchivePort interface {
	Archives(ctx context.Context) ([]progressdto.ArchiveOutput, error)
}

type LoadedMsg struct {
	Archives []progressdto.ArchiveOutput
	Err      error
}

type archiveItem struct {
	archive progressdto.ArchiveOutput
}

func (i archiveItem) Title() string {
	grade := i.archive.OverallGrade
	if grade == "" {
		grade = "-"
	}
	return fmt.Sprintf("%s  %s", i.archive.ArchivedAt.Local().Format("2006-01-02"), grade)
}

func (i archiveItem) Description() string {
	acc := "-"
	if i.archive.OverallAccuracy != nil {
		acc = fmt.Sprintf("%.0f%%", *i.archive.OverallAccuracy)
	}
	return fmt.Sprintf("%s  %d sessions  %s", i.archive.VoiceRange, i.archive.Sessions, acc)
}

func (i archiveItem) FilterValue() string { return i.archive.OverallGrade + " " + i.archive.VoiceRange }

type Model struct {
	port   ArchivePort
	list   list.Model
	err    error
	width  int
	height int
}

func New(port ArchivePort) Model {
	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.Foreground(theme.Lavender).BorderForeground(theme.Lavender)
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.Foreground(theme.Sapphire).BorderForeground(theme.Lavender)

	l := list.New(nil, delegate, 0, 0)
	l.Title = "Archived cycles"
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
			return LoadedMsg{Err: fmt.Errorf("archive adapter not configured")}
		}
		archives, err := m.port.Archives(context.Background())
		return LoadedMsg{Archives: archives, Err: err}
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
		items := make([]list.Item, len(msg.Archives))
		for i, a := range msg.Archives {
			items[i] = archiveItem{archive: a}
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
			theme.Warn.Render("archives unavailable: "+m.err.Error()))
	}
	return lipgloss.NewStyle().Width(m.width).Height(m.height).Render(m.list.View())
}

func (m Model) Filtering() bool {
	return m.list.FilterState() == list.Filtering
}
