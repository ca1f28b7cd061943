package domain

import "math"

const volumeSmoothing = 0.2

type Loudness struct {
	RMS      float64
	Peak     float64
	Level    float64
	Smoothed float64
	Voiced   bool
}

// VolumeAnalyzer keeps one smoothing accumulator per listening session.
type VolumeAnalyzer struct {
	divisor        float64
	noiseThreshold float64
	smoothed       float64
}

func NewVolumeAnalyzer(divisor, noiseThreshold float64) *VolumeAnalyzer {
	if divisor <= 0 {
		divisor = 1
	}
	return &VolumeAnalyzer{divisor: divisor, noiseThreshold: noiseThreshold}
}

func (v *VolumeAnalyzer) Analyze(samples []float64) Loudness {
	rms, peak := levels(samples)
	level := math.Max(rms*200, peak*100) / v.divisor
	level = math.Min(math.Max(level, 0), 100)
	v.smoothed += volumeSmoothing * (level - v.smoothed)
	return Loudness{
		RMS:      rms,
		Peak:     peak,
		Level:    level,
		Smoothed: v.smoothed,
		Voiced:   len(samples) > 0 && level >= v.noiseThreshold,
	}
}

func (v *VolumeAnalyzer) Reset() {
	v.smoothed = 0
}

func levels(samples []float64) (rms, peak float64) {
	if len(samples) == 0 {
		return 0, 0
	}
	var sum float64
	for _, s := range samples {
		sum += s * s
		if a := math.Abs(s); a > peak {
			peak = a
		}
	}
	return math.Sqrt(sum / float64(len(samples))), peak
}
