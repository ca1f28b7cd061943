package in

import (
	"context"
	"time"

	pitchdto "reltone/internal/modules/pitch/dto"
	pitchin "reltone/internal/modules/pitch/port/in"
)

type CLIHandler struct {
	usecase pitchin.Usecase
}

func NewCLIHandler(usecase pitchin.Usecase) CLIHandler {
	return CLIHandler{usecase: usecase}
}

// Listen opens input, streams readings to onReading and closes the session when
// the window elapses, the input ends or ctx is cancelled.
func (h CLIHandler) Listen(ctx context.Context, input string, window time.Duration, onReading func(pitchdto.Reading)) (out pitchdto.ListenOutput, err error) {
	opened, err := h.usecase.OpenSession(ctx, pitchdto.OpenSessionInput{Input: input})
	if err != nil {
		return pitchdto.ListenOutput{}, err
	}
	defer func() {
		if closeErr := h.usecase.CloseSession(context.WithoutCancel(ctx), opened.SessionID); err == nil {
			err = closeErr
		}
	}()
	return h.usecase.Listen(ctx, pitchdto.ListenInput{SessionID: opened.SessionID, Window: window, OnReading: onReading})
}
