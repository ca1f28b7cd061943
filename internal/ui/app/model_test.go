package app

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	progressdto "reltone/internal/modules/progress/dto"
	"reltone/internal/ui/components"
)

type fakeProgress struct {
	recordBase  string
	recordCents []*float64
	exportPath  string
	resets      int
}

func (f *fakeProgress) Show(context.Context) (progressdto.ProgressOutput, error) {
	return progressdto.ProgressOutput{CycleID: "cycle-1", VoiceRange: "medium"}, nil
}

func (f *fakeProgress) Next(context.Context) (progressdto.NextBaseNoteOutput, error) {
	return progressdto.NextBaseNoteOutput{SessionID: 1, BaseNote: "E4", BaseFrequencyHz: 329.63}, nil
}

func (f *fakeProgress) Record(_ context.Context, base string, cents []*float64) (progressdto.RecordSessionOutput, error) {
	f.recordBase = base
	f.recordCents = cents
	return progressdto.RecordSessionOutput{
		Session: progressdto.SessionOutput{SessionID: 1, BaseNote: "E4", Grade: "excellent", AccuracyPercent: 100},
		Durable: false,
	}, errors.New("not durable")
}

func (f *fakeProgress) NewCycle(context.Context) (progressdto.NewCycleOutput, error) {
	return progressdto.NewCycleOutput{Progress: progressdto.ProgressOutput{SessionsCompleted: 3}}, nil
}

func (f *fakeProgress) Reset(context.Context) (progressdto.ProgressOutput, error) {
	f.resets++
	return progressdto.ProgressOutput{CycleID: "cycle-2"}, nil
}

func (f *fakeProgress) Archives(context.Context) ([]progressdto.ArchiveOutput, error) {
	return nil, nil
}

func (f *fakeProgress) History(context.Context) ([]progressdto.SessionRecordOutput, error) {
	return nil, nil
}

func (f *fakeProgress) Export(_ context.Context, path string) (progressdto.ExportOutput, error) {
	f.exportPath = path
	return progressdto.ExportOutput{Path: path, Sessions: 4}, nil
}

// run feeds msg to the model and then the message produced by the returned command.
func run(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, cmd := m.Update(msg)
	m = next.(Model)
	if cmd == nil {
		return m
	}
	if out := cmd(); out != nil {
		if _, batch := out.(tea.BatchMsg); !batch {
			next, _ = m.Update(out)
			m = next.(Model)
		}
	}
	return m
}

func TestNextKeyShowsPendingBaseNote(t *testing.T) {
	t.Parallel()
	m := NewModel("/data", &fakeProgress{})
	m = run(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("n")})
	if m.next == nil || m.next.BaseNote != "E4" {
		t.Fatalf("expected pending base note E4, got %+v", m.next)
	}
	if !strings.Contains(m.status, "sing from E4") {
		t.Fatalf("unexpected status %q", m.status)
	}
}

func TestPaletteRecordUsesPendingBaseNote(t *testing.T) {
	t.Parallel()
	fake := &fakeProgress{}
	m := NewModel("/data", fake)
	m = run(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("n")})
	m = run(t, m, components.PaletteSubmitMsg{Input: "record 0 5 - 10 0 0 0 0"})
	if fake.recordBase != "E4" {
		t.Fatalf("expected record against E4, got %q", fake.recordBase)
	}
	if len(fake.recordCents) != 8 || fake.recordCents[2] != nil || *fake.recordCents[3] != 10 {
		t.Fatalf("unexpected cents %+v", fake.recordCents)
	}
	if !strings.Contains(m.status, "not saved") {
		t.Fatalf("expected unsaved marker in status, got %q", m.status)
	}
	if m.next != nil {
		t.Fatalf("expected pending note cleared after recording")
	}
}

func TestPaletteResetNeedsConfirmation(t *testing.T) {
	t.Parallel()
	fake := &fakeProgress{}
	m := NewModel("/data", fake)
	m = run(t, m, components.PaletteSubmitMsg{Input: "cycle:reset"})
	if fake.resets != 0 {
		t.Fatalf("reset ran without confirmation")
	}
	run(t, m, components.PaletteSubmitMsg{Input: "cycle:reset yes"})
	if fake.resets != 1 {
		t.Fatalf("expected one reset, got %d", fake.resets)
	}
}

func TestPaletteExportResolvesRelativePath(t *testing.T) {
	t.Parallel()
	fake := &fakeProgress{}
	m := NewModel("/data", fake)
	m = run(t, m, components.PaletteSubmitMsg{Input: "export out/progress.xlsx"})
	if fake.exportPath != "/data/out/progress.xlsx" {
		t.Fatalf("unexpected export path %q", fake.exportPath)
	}
	if !strings.Contains(m.status, "exported 4 sessions") {
		t.Fatalf("unexpected status %q", m.status)
	}
}

func TestNewCycleRefusedWhileIncomplete(t *testing.T) {
	t.Parallel()
	m := NewModel("/data", &fakeProgress{})
	next, cmd := m.Update(components.PaletteSubmitMsg{Input: "cycle:new"})
	m = next.(Model)
	next, _ = m.Update(cmd())
	m = next.(Model)
	if m.status != "cycle not completed (3/8)" {
		t.Fatalf("unexpected status %q", m.status)
	}
}
