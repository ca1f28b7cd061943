package in

import (
	"context"

	"reltone/internal/modules/progress/dto"
)

type Usecase interface {
	Show(ctx context.Context) (dto.ProgressOutput, error)
	NextBaseNote(ctx context.Context) (dto.NextBaseNoteOutput, error)
	RecordSession(ctx context.Context, input dto.RecordSessionInput) (dto.RecordSessionOutput, error)
	RecordFromCents(ctx context.Context, input dto.RecordFromCentsInput) (dto.RecordSessionOutput, error)
	StartNewCycle(ctx context.Context) (dto.NewCycleOutput, error)
	Reset(ctx context.Context) (dto.ProgressOutput, error)
	Archives(ctx context.Context) ([]dto.ArchiveOutput, error)
	History(ctx context.Context) ([]dto.SessionRecordOutput, error)
	Export(ctx context.Context, input dto.ExportInput) (dto.ExportOutput, error)
}
