package components

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"reltone/internal/ui/theme"
)

// PaletteSubmitMsg is emitted when the user confirms a command.
type PaletteSubmitMsg struct{ Input string }

// PaletteCancelMsg is emitted when the user presses esc or declines a confirmation.
type PaletteCancelMsg struct{}

var (
	paletteStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(theme.Peach).
			Background(theme.Mantle).
			Foreground(theme.Text).
			Padding(0, 1)

	hintStyle = lipgloss.NewStyle().Foreground(theme.Subtext0)
	argStyle  = lipgloss.NewStyle().Foreground(theme.Teal)
)

type paletteCommand struct {
	name    string
	args    string
	desc    string
	confirm string
}

// paletteCommands must stay in sync with the switch in app/model.go executePalette.
var paletteCommands = []paletteCommand{
	{name: "next", desc: "draw the base note for the next session"},
	{name: "record", args: "<c1> ... <c8>", desc: "record cents per degree, - when not measured"},
	{name: "cycle:new", desc: "archive a completed cycle and start another"},
	{name: "cycle:reset", desc: "discard the current cycle", confirm: "discard the current cycle? y/n"},
	{name: "export", args: "<path.xlsx>", desc: "write sessions to a workbook"},
	{name: "refresh", desc: "reload every tab"},
}

// Palette is a command-palette overlay backed by bubbles/textinput. It
// guides the record arguments degree by degree and asks before destructive
// commands.
type Palette struct {
	input      textinput.Model
	visible    bool
	width      int
	degrees    []string
	confirming *paletteCommand
}

// NewPalette creates an inactive Palette. degrees names the values record expects.
func NewPalette(degrees []string) Palette {
	ti := textinput.New()
	ti.Placeholder = "type a command…"
	ti.CharLimit = 256
	return Palette{input: ti, degrees: degrees}
}

// Visible reports whether the palette is currently shown.
func (p Palette) Visible() bool { return p.visible }

// Open shows the palette, clears the input, and returns the focus command.
func (p *Palette) Open() tea.Cmd {
	p.visible = true
	p.confirming = nil
	p.input.SetValue("")
	return p.input.Focus()
}

// SetWidth sets the render width for the overlay.
func (p *Palette) SetWidth(w int) { p.width = w }

func (p *Palette) close() {
	p.visible = false
	p.confirming = nil
	p.input.Blur()
}

func (p Palette) Update(msg tea.Msg) (Palette, tea.Cmd) {
	if !p.visible {
		return p, nil
	}
	key, isKey := msg.(tea.KeyMsg)
	if p.confirming != nil {
		if !isKey {
			return p, nil
		}
		input := p.confirming.name + " yes"
		p.close()
		if key.String() == "y" {
			return p, func() tea.Msg { return PaletteSubmitMsg{Input: input} }
		}
		return p, func() tea.Msg { return PaletteCancelMsg{} }
	}
	if isKey {
		switch key.String() {
		case "esc":
			p.close()
			return p, func() tea.Msg { return PaletteCancelMsg{} }
		case "tab":
			if cmd, ok := p.soleMatch(); ok {
				p.input.SetValue(cmd.name + " ")
				p.input.CursorEnd()
			}
			return p, nil
		case "enter":
			val := strings.TrimSpace(p.input.Value())
			if cmd, ok := lookupCommand(val); ok && cmd.confirm != "" {
				p.confirming = &cmd
				p.input.Blur()
				return p, nil
			}
			p.close()
			return p, func() tea.Msg { return PaletteSubmitMsg{Input: val} }
		}
	}
	var cmd tea.Cmd
	p.input, cmd = p.input.Update(msg)
	return p, cmd
}

// lookupCommand matches input that is exactly a command name with no arguments.
func lookupCommand(input string) (paletteCommand, bool) {
	for _, c := range paletteCommands {
		if c.name == input {
			return c, true
		}
	}
	return paletteCommand{}, false
}

func (p Palette) matching() []paletteCommand {
	fields := strings.Fields(strings.ToLower(p.input.Value()))
	var out []paletteCommand
	for _, c := range paletteCommands {
		if len(fields) == 0 || strings.HasPrefix(c.name, fields[0]) {
			out = append(out, c)
		}
	}
	return out
}

func (p Palette) soleMatch() (paletteCommand, bool) {
	if strings.Contains(p.input.Value(), " ") {
		return paletteCommand{}, false
	}
	m := p.matching()
	if len(m) != 1 {
		return paletteCommand{}, false
	}
	return m[0], true
}

// recordGuide shows which degree each typed value lands on.
func (p Palette) recordGuide(values []string) string {
	var sb strings.Builder
	for i, name := range p.degrees {
		cell := name + " ·"
		switch {
		case i >= len(values):
		case values[i] == "-":
			cell = name + " -"
		default:
			if _, err := strconv.ParseFloat(values[i], 64); err != nil {
				cell = theme.Warn.Render(name + " " + values[i])
			} else {
				cell = argStyle.Render(name + " " + values[i])
			}
		}
		if i > 0 {
			sb.WriteString("  ")
		}
		sb.WriteString(cell)
	}
	status := fmt.Sprintf("%d/%d", min(len(values), len(p.degrees)), len(p.degrees))
	if len(values) > len(p.degrees) {
		status = theme.Warn.Render(fmt.Sprintf("%d values, %d expected", len(values), len(p.degrees)))
	}
	return sb.String() + "\n  " + status
}

func (p Palette) View() string {
	if !p.visible {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(theme.Title.Render("Command Palette") + "\n")

	if p.confirming != nil {
		sb.WriteString(theme.Warn.Render(p.confirming.confirm) + "\n")
	} else {
		sb.WriteString(": " + p.input.View() + "\n")
		fields := strings.Fields(p.input.Value())
		if len(fields) > 0 && fields[0] == "record" && len(p.degrees) > 0 {
			sb.WriteString("\n" + p.recordGuide(fields[1:]) + "\n")
		} else if matching := p.matching(); len(matching) > 0 {
			sb.WriteString("\n")
			for _, c := range matching {
				line := "  " + c.name
				if c.args != "" {
					line += " " + argStyle.Render(c.args)
				}
				sb.WriteString(line + hintStyle.Render("  "+c.desc) + "\n")
			}
		}
	}

	w := p.width
	if w < 20 {
		w = 64
	}
	return paletteStyle.Width(w - 2).Render(sb.String())
}
