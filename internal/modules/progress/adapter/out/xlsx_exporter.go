package out

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"reltone/internal/modules/progress/domain"
	progressout "reltone/internal/modules/progress/port/out"

	"github.com/xuri/excelize/v2"
)

const (
	historySheet = "Sessions"
	currentSheet = "Current cycle"
)

type XLSXExporter struct{}

func NewXLSXExporter() progressout.Exporter {
	return XLSXExporter{}
}

// Export writes every indexed session plus the per-note detail of the current cycle.
func (XLSXExporter) Export(ctx context.Context, path string, current domain.TrainingProgress, history []domain.SessionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", historySheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	header := []any{"Cycle", "Session", "Base note", "Grade", "Accuracy %", "Avg error (cents)", "Completed at"}
	if err := f.SetSheetRow(historySheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, r := range history {
		row := []any{r.CycleID, r.SessionID, r.BaseNote, string(r.Grade), r.AccuracyPercent, r.AverageErrorCents, r.CompletedAt.Format(time.RFC3339)}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(historySheet, cell, &row); err != nil {
			return fmt.Errorf("write session row: %w", err)
		}
	}

	if _, err := f.NewSheet(currentSheet); err != nil {
		return fmt.Errorf("add sheet: %w", err)
	}
	summary := [][]any{
		{"Cycle", current.CycleID},
		{"Voice range", string(current.VoiceRange)},
		{"Sessions", len(current.SessionHistory)},
		{"Completed", current.IsCompleted},
	}
	if current.OverallGrade != nil {
		summary = append(summary, []any{"Overall grade", string(*current.OverallGrade)})
	}
	if current.OverallAccuracy != nil {
		summary = append(summary, []any{"Overall accuracy %", *current.OverallAccuracy})
	}
	summary = append(summary, []any{}, []any{"Session", "Base note", "Target", "Target Hz", "Sung Hz", "Cents", "Grade"})
	for _, s := range current.SessionHistory {
		for _, n := range s.NoteResults {
			row := []any{s.SessionID, s.BaseNote, n.TargetNote, n.TargetFrequencyHz, "", "", string(n.Grade)}
			if n.UserFrequencyHz != nil {
				row[4] = *n.UserFrequencyHz
			}
			if n.Cents != nil {
				row[5] = *n.Cents
			}
			summary = append(summary, row)
		}
	}
	for i, row := range summary {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(currentSheet, cell, &row); err != nil {
			return fmt.Errorf("write current cycle row: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}
