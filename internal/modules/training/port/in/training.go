package in

import (
	"context"

	"reltone/internal/modules/training/dto"
)

type Usecase interface {
	RunSession(ctx context.Context, input dto.RunSessionInput) (dto.RunSessionOutput, error)
}
