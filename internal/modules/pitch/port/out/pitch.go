package out

import (
	"context"

	"reltone/internal/modules/pitch/domain"
)

// Estimator is the pitch-estimation primitive. It returns a raw frequency and a clarity in [0,1].
type Estimator interface {
	Estimate(ctx context.Context, frame domain.Frame) (domain.PitchObservation, error)
}

// FrameSource yields fixed-size frames; Next returns io.EOF when the input is exhausted.
type FrameSource interface {
	Next(ctx context.Context) (domain.Frame, error)
	Close() error
}

type FrameSourceOpener interface {
	Open(ctx context.Context, input string) (FrameSource, error)
}
