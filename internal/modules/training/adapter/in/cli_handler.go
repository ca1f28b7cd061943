package in

import (
	"context"

	pitchdto "reltone/internal/modules/pitch/dto"
	trainingdto "reltone/internal/modules/training/dto"
	trainingin "reltone/internal/modules/training/port/in"
)

type CLIHandler struct {
	usecase trainingin.Usecase
}

func NewCLIHandler(usecase trainingin.Usecase) CLIHandler {
	return CLIHandler{usecase: usecase}
}

func (h CLIHandler) Train(ctx context.Context, input string, onPlan func(trainingdto.SessionPlan), onNote func(trainingdto.NoteEvent), onReading func(pitchdto.Reading)) (trainingdto.RunSessionOutput, error) {
	return h.usecase.RunSession(ctx, trainingdto.RunSessionInput{Input: input, OnPlan: onPlan, OnNote: onNote, OnReading: onReading})
}
