package usecase_test

import (
	"context"
	"math"
	"testing"
	"time"

	pitchadapter "reltone/internal/modules/pitch/adapter/out"
	"reltone/internal/modules/pitch/domain"
	pitchdto "reltone/internal/modules/pitch/dto"
	pitchin "reltone/internal/modules/pitch/port/in"
	"reltone/internal/modules/pitch/service"
	"reltone/internal/modules/pitch/usecase"
)

func newInteractor(t *testing.T, recordings map[string][][]float64) *usecaseHarness {
	t.Helper()
	opener := pitchadapter.NewSliceSourceOpener(44100, time.Unix(0, 0))
	for name, frames := range recordings {
		opener.Add(name, frames)
	}
	uc := usecase.NewInteractor(opener, pitchadapter.NewNSDFEstimator(), usecase.Options{
		Tracker:      service.DefaultTrackerConfig(),
		TickInterval: time.Millisecond,
	})
	return &usecaseHarness{uc: uc}
}

type usecaseHarness struct {
	uc pitchin.Usecase
}

func TestInteractorListensUntilEndOfInput(t *testing.T) {
	t.Parallel()
	h := newInteractor(t, map[string][][]float64{
		"a4": pitchadapter.SineFrames(440, 0.5, 44100, 2048, 6),
	})
	ctx := context.Background()
	opened, err := h.uc.OpenSession(ctx, pitchdto.OpenSessionInput{Input: "a4"})
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	defer h.uc.CloseSession(ctx, opened.SessionID)

	streamed := 0
	out, err := h.uc.Listen(ctx, pitchdto.ListenInput{
		SessionID: opened.SessionID,
		OnReading: func(pitchdto.Reading) { streamed++ },
	})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	if !out.EndOfInput || out.Frames != 6 || streamed != 6 || len(out.Readings) != 6 {
		t.Fatalf("unexpected listen output: eoi=%v frames=%d streamed=%d readings=%d", out.EndOfInput, out.Frames, streamed, len(out.Readings))
	}
	last := out.Readings[len(out.Readings)-1]
	if !last.Voiced() || math.Abs(last.FrequencyHz-440) > 0.5 || last.Note != "A4" {
		t.Fatalf("unexpected reading: %+v", last)
	}
}

func TestInteractorStopsAtWindow(t *testing.T) {
	t.Parallel()
	h := newInteractor(t, map[string][][]float64{
		"long": pitchadapter.SineFrames(330, 0.5, 44100, 2048, 50),
	})
	ctx := context.Background()
	opened, err := h.uc.OpenSession(ctx, pitchdto.OpenSessionInput{Input: "long"})
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	defer h.uc.CloseSession(ctx, opened.SessionID)

	out, err := h.uc.Listen(ctx, pitchdto.ListenInput{SessionID: opened.SessionID, Window: 100 * time.Millisecond})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	if out.EndOfInput || out.Frames != 3 {
		t.Fatalf("expected 3 frames within window, got frames=%d eoi=%v", out.Frames, out.EndOfInput)
	}

	again, err := h.uc.Listen(ctx, pitchdto.ListenInput{SessionID: opened.SessionID, Window: 100 * time.Millisecond})
	if err != nil {
		t.Fatalf("second listen: %v", err)
	}
	if again.Frames != 3 {
		t.Fatalf("second window should continue the same input, got %d frames", again.Frames)
	}
}

func TestInteractorSilenceIsUnvoiced(t *testing.T) {
	t.Parallel()
	h := newInteractor(t, map[string][][]float64{"silence": pitchadapter.SilentFrames(2048, 4)})
	ctx := context.Background()
	opened, err := h.uc.OpenSession(ctx, pitchdto.OpenSessionInput{Input: "silence"})
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	out, err := h.uc.Listen(ctx, pitchdto.ListenInput{SessionID: opened.SessionID})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	for _, r := range out.Readings {
		if r.Voiced() {
			t.Fatalf("silence produced voiced reading: %+v", r)
		}
	}
	if err := h.uc.CloseSession(ctx, opened.SessionID); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := h.uc.ResetSession(ctx, opened.SessionID); err == nil {
		t.Fatalf("expected error for closed session")
	}
}

func TestInteractorUnknownInput(t *testing.T) {
	t.Parallel()
	h := newInteractor(t, nil)
	if _, err := h.uc.OpenSession(context.Background(), pitchdto.OpenSessionInput{Input: "nope"}); err == nil {
		t.Fatalf("expected open error")
	}
}

type blockingSource struct{}

func (blockingSource) Next(ctx context.Context) (domain.Frame, error) {
	<-ctx.Done()
	return domain.Frame{}, ctx.Err()
}

func (blockingSource) Close() error { return nil }

func TestListenerStopReturnsWithoutError(t *testing.T) {
	t.Parallel()
	tracker, err := service.NewTracker(service.DefaultTrackerConfig(), pitchadapter.NewNSDFEstimator(), nil)
	if err != nil {
		t.Fatalf("new tracker: %v", err)
	}
	listener := usecase.NewListener(tracker, blockingSource{}, time.Millisecond, nil)
	if err := listener.Start(context.Background(), 0, nil); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := listener.Start(context.Background(), 0, nil); err != usecase.ErrListenerRunning {
		t.Fatalf("expected running error, got %v", err)
	}
	listener.Stop()
	if _, err := listener.Wait(); err != nil {
		t.Fatalf("stopped listener returned error: %v", err)
	}
}

func TestListenerParentCancellationIsReported(t *testing.T) {
	t.Parallel()
	tracker, err := service.NewTracker(service.DefaultTrackerConfig(), pitchadapter.NewNSDFEstimator(), nil)
	if err != nil {
		t.Fatalf("new tracker: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	listener := usecase.NewListener(tracker, blockingSource{}, time.Millisecond, nil)
	if err := listener.Start(ctx, 0, nil); err != nil {
		t.Fatalf("start: %v", err)
	}
	cancel()
	if _, err := listener.Wait(); err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
