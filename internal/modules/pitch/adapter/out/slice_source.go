package out

import (
	"context"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"reltone/internal/modules/pitch/domain"
	pitchout "reltone/internal/modules/pitch/port/out"
)

// SliceSource replays in-memory frames. Timestamps advance by the frame duration
// from Start.
type SliceSource struct {
	frames [][]float64
	rate   int
	start  time.Time
	pos    int
}

func NewSliceSource(frames [][]float64, sampleRate int, start time.Time) *SliceSource {
	return &SliceSource{frames: frames, rate: sampleRate, start: start}
}

func (s *SliceSource) Next(ctx context.Context) (domain.Frame, error) {
	if err := ctx.Err(); err != nil {
		return domain.Frame{}, err
	}
	if s.pos >= len(s.frames) {
		return domain.Frame{}, io.EOF
	}
	samples := s.frames[s.pos]
	offset := time.Duration(0)
	if s.rate > 0 && len(samples) > 0 {
		offset = time.Duration(s.pos*len(samples)) * time.Second / time.Duration(s.rate)
	}
	s.pos++
	return domain.Frame{Samples: samples, SampleRate: s.rate, Timestamp: s.start.Add(offset)}, nil
}

func (s *SliceSource) Close() error {
	return nil
}

// SliceSourceOpener serves named in-memory recordings, mostly for tests.
type SliceSourceOpener struct {
	mu         sync.Mutex
	recordings map[string][][]float64
	sampleRate int
	start      time.Time
}

func NewSliceSourceOpener(sampleRate int, start time.Time) *SliceSourceOpener {
	return &SliceSourceOpener{recordings: map[string][][]float64{}, sampleRate: sampleRate, start: start}
}

func (o *SliceSourceOpener) Add(name string, frames [][]float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.recordings[name] = frames
}

func (o *SliceSourceOpener) Open(_ context.Context, input string) (pitchout.FrameSource, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	frames, ok := o.recordings[input]
	if !ok {
		return nil, fmt.Errorf("unknown recording: %s", input)
	}
	return NewSliceSource(frames, o.sampleRate, o.start), nil
}

// SineFrames renders count frames of a sine at hz with the given peak amplitude.
func SineFrames(hz, amplitude float64, sampleRate, frameSize, count int) [][]float64 {
	frames := make([][]float64, count)
	for f := range frames {
		samples := make([]float64, frameSize)
		for i := range samples {
			t := float64(f*frameSize+i) / float64(sampleRate)
			samples[i] = amplitude * math.Sin(2*math.Pi*hz*t)
		}
		frames[f] = samples
	}
	return frames
}

// SilentFrames renders count frames of zeros.
func SilentFrames(frameSize, count int) [][]float64 {
	frames := make([][]float64, count)
	for f := range frames {
		frames[f] = make([]float64, frameSize)
	}
	return frames
}
