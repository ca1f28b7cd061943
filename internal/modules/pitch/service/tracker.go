package service

import (
	"context"
	"fmt"
	"sync"

	"reltone/internal/modules/pitch/domain"
	pitchout "reltone/internal/modules/pitch/port/out"
	"reltone/internal/platform/metrics"
)

type TrackerConfig struct {
	Corrector          domain.CorrectorConfig
	NoiseThreshold     float64
	VolumeDivisor      float64
	StabilizerWindow   int
	StabilizerMaxShift float64
}

func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		Corrector:          domain.DefaultCorrectorConfig(),
		NoiseThreshold:     10,
		VolumeDivisor:      1,
		StabilizerWindow:   domain.DefaultStabilizerWindow,
		StabilizerMaxShift: domain.DefaultStabilizerMaxShift,
	}
}

// Tracker runs the pipeline for one listening session. Process and Reset are
// serialized so a reset never interleaves with a frame.
type Tracker struct {
	mu         sync.Mutex
	estimator  pitchout.Estimator
	volume     *domain.VolumeAnalyzer
	corrector  *domain.HarmonicCorrector
	stabilizer *domain.FrequencyStabilizer
	previousHz float64
	metrics    *metrics.Recorder
}

func NewTracker(cfg TrackerConfig, estimator pitchout.Estimator, recorder *metrics.Recorder) (*Tracker, error) {
	if estimator == nil {
		return nil, fmt.Errorf("pitch estimator is required")
	}
	corrector, err := domain.NewHarmonicCorrector(cfg.Corrector)
	if err != nil {
		return nil, err
	}
	return &Tracker{
		estimator:  estimator,
		volume:     domain.NewVolumeAnalyzer(cfg.VolumeDivisor, cfg.NoiseThreshold),
		corrector:  corrector,
		stabilizer: domain.NewFrequencyStabilizer(cfg.StabilizerWindow, cfg.StabilizerMaxShift),
		metrics:    recorder,
	}, nil
}

// Process turns one frame into a reading. On error the stabilizer history and
// the previous frequency are left as they were.
func (t *Tracker) Process(ctx context.Context, frame domain.Frame) (domain.Reading, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	loudness := t.volume.Analyze(frame.Samples)
	reading := domain.Reading{Timestamp: frame.Timestamp, State: domain.FrameUnvoiced, Loudness: loudness.Smoothed}
	if !loudness.Voiced {
		t.metrics.Frame(string(domain.FrameUnvoiced))
		return reading, nil
	}

	obs, err := t.estimator.Estimate(ctx, frame)
	if err != nil {
		return reading, fmt.Errorf("estimate pitch: %w", err)
	}
	if obs.Timestamp.IsZero() {
		obs.Timestamp = frame.Timestamp
	}
	reading.Observation = obs
	if !t.corrector.Accepts(obs) {
		reading.State = domain.FrameRejected
		t.metrics.Frame(string(domain.FrameRejected))
		return reading, nil
	}

	corrected, err := t.corrector.Correct(obs.RawFrequencyHz, t.previousHz)
	if err != nil {
		return reading, fmt.Errorf("correct pitch: %w", err)
	}
	stable := t.stabilizer.Stabilize(corrected.FrequencyHz)
	t.previousHz = stable

	reading.State = domain.FrameVoiced
	reading.Corrected = corrected
	reading.FrequencyHz = stable
	t.metrics.Frame(string(domain.FrameVoiced))
	t.metrics.Correction(string(corrected.Type))
	return reading, nil
}

// Reset clears loudness smoothing, stabilizer history and the previous frequency together.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.volume.Reset()
	t.stabilizer.Reset()
	t.previousHz = 0
}

func (t *Tracker) PreviousHz() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.previousHz
}
