package in

import (
	"context"

	progressdto "reltone/internal/modules/progress/dto"
	progressin "reltone/internal/modules/progress/port/in"
)

type CLIHandler struct {
	usecase progressin.Usecase
}

func NewCLIHandler(usecase progressin.Usecase) CLIHandler {
	return CLIHandler{usecase: usecase}
}

func (h CLIHandler) Show(ctx context.Context) (progressdto.ProgressOutput, error) {
	return h.usecase.Show(ctx)
}

func (h CLIHandler) Next(ctx context.Context) (progressdto.NextBaseNoteOutput, error) {
	return h.usecase.NextBaseNote(ctx)
}

func (h CLIHandler) Record(ctx context.Context, baseNote string, cents []*float64) (progressdto.RecordSessionOutput, error) {
	return h.usecase.RecordFromCents(ctx, progressdto.RecordFromCentsInput{BaseNote: baseNote, Cents: cents})
}

func (h CLIHandler) NewCycle(ctx context.Context) (progressdto.NewCycleOutput, error) {
	return h.usecase.StartNewCycle(ctx)
}

func (h CLIHandler) Reset(ctx context.Context) (progressdto.ProgressOutput, error) {
	return h.usecase.Reset(ctx)
}

func (h CLIHandler) Archives(ctx context.Context) ([]progressdto.ArchiveOutput, error) {
	return h.usecase.Archives(ctx)
}

func (h CLIHandler) History(ctx context.Context) ([]progressdto.SessionRecordOutput, error) {
	return h.usecase.History(ctx)
}

func (h CLIHandler) Export(ctx context.Context, path string) (progressdto.ExportOutput, error) {
	return h.usecase.Export(ctx, progressdto.ExportInput{Path: path})
}
