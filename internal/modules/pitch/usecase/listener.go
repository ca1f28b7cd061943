package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"reltone/internal/modules/pitch/domain"
	pitchout "reltone/internal/modules/pitch/port/out"
	"reltone/internal/modules/pitch/service"
)

var ErrListenerRunning = errors.New("listener already running")

type ListenResult struct {
	Frames     int
	Failed     int
	AudioTime  time.Duration
	EndOfInput bool
}

// Listener pulls one frame per tick from a source and runs it through a tracker.
// Start resets the tracker so every listening window begins with empty history.
type Listener struct {
	tracker  *service.Tracker
	source   pitchout.FrameSource
	interval time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	stopped bool
	result  ListenResult
	err     error
}

func NewListener(tracker *service.Tracker, source pitchout.FrameSource, interval time.Duration, logger *slog.Logger) *Listener {
	if interval <= 0 {
		interval = time.Second / 60
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Listener{tracker: tracker, source: source, interval: interval, logger: logger}
}

func (l *Listener) Start(ctx context.Context, window time.Duration, emit func(domain.Reading)) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.done != nil {
		select {
		case <-l.done:
		default:
			return ErrListenerRunning
		}
	}
	runCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.done = make(chan struct{})
	l.stopped = false
	l.result = ListenResult{}
	l.err = nil
	l.tracker.Reset()

	go l.run(runCtx, window, emit, l.done)
	return nil
}

// Stop cancels a running listen and waits for the loop to exit. A stopped
// listen reports no error.
func (l *Listener) Stop() {
	l.mu.Lock()
	cancel, done := l.cancel, l.done
	l.stopped = true
	l.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (l *Listener) Wait() (ListenResult, error) {
	l.mu.Lock()
	done := l.done
	l.mu.Unlock()
	if done == nil {
		return ListenResult{}, fmt.Errorf("listener not started")
	}
	<-done
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.result, l.err
}

func (l *Listener) run(ctx context.Context, window time.Duration, emit func(domain.Reading), done chan struct{}) {
	var result ListenResult
	err := l.loop(ctx, window, emit, &result)

	l.mu.Lock()
	if l.stopped && errors.Is(err, context.Canceled) {
		err = nil
	}
	l.result = result
	l.err = err
	l.cancel()
	l.mu.Unlock()
	close(done)
}

func (l *Listener) loop(ctx context.Context, window time.Duration, emit func(domain.Reading), result *ListenResult) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		frame, err := l.source.Next(ctx)
		if errors.Is(err, io.EOF) {
			result.EndOfInput = true
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read frame: %w", err)
		}

		reading, err := l.tracker.Process(ctx, frame)
		if err != nil {
			result.Failed++
			l.logger.Warn("frame dropped", slog.String("error", err.Error()))
		} else {
			result.Frames++
			if emit != nil {
				emit(reading)
			}
		}
		result.AudioTime += frameDuration(frame)
		if window > 0 && result.AudioTime >= window {
			return nil
		}
	}
}

func frameDuration(frame domain.Frame) time.Duration {
	if frame.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(frame.Samples)) * time.Second / time.Duration(frame.SampleRate)
}
