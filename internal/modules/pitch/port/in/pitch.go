package in

import (
	"context"

	"reltone/internal/modules/pitch/dto"
)

type Usecase interface {
	OpenSession(ctx context.Context, input dto.OpenSessionInput) (dto.OpenSessionOutput, error)
	Listen(ctx context.Context, input dto.ListenInput) (dto.ListenOutput, error)
	ResetSession(ctx context.Context, sessionID uint32) error
	CloseSession(ctx context.Context, sessionID uint32) error
}
