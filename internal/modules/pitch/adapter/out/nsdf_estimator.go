package out

import (
	"context"
	"fmt"

	"reltone/internal/modules/pitch/domain"
	pitchout "reltone/internal/modules/pitch/port/out"
)

const nsdfPeakCutoff = 0.93

// NSDFEstimator implements the McLeod pitch method over the normalized square
// difference function. Clarity is the height of the chosen NSDF peak.
type NSDFEstimator struct {
	cutoff float64
}

func NewNSDFEstimator() pitchout.Estimator {
	return &NSDFEstimator{cutoff: nsdfPeakCutoff}
}

func (e *NSDFEstimator) Estimate(ctx context.Context, frame domain.Frame) (domain.PitchObservation, error) {
	if err := ctx.Err(); err != nil {
		return domain.PitchObservation{}, err
	}
	if frame.SampleRate <= 0 {
		return domain.PitchObservation{}, fmt.Errorf("estimate pitch: sample rate %d", frame.SampleRate)
	}
	hz, clarity := e.estimate(frame.Samples, float64(frame.SampleRate))
	return domain.PitchObservation{RawFrequencyHz: hz, Clarity: clarity, Timestamp: frame.Timestamp}, nil
}

func (e *NSDFEstimator) estimate(x []float64, sampleRate float64) (float64, float64) {
	n := len(x)
	if n < 4 {
		return 0, 0
	}
	maxLag := n / 2
	nsdf := make([]float64, maxLag)
	for tau := 0; tau < maxLag; tau++ {
		var acf, m float64
		for j := 0; j+tau < n; j++ {
			acf += x[j] * x[j+tau]
			m += x[j]*x[j] + x[j+tau]*x[j+tau]
		}
		if m > 0 {
			nsdf[tau] = 2 * acf / m
		}
	}

	peaks := keyMaxima(nsdf)
	if len(peaks) == 0 {
		return 0, 0
	}
	highest := 0.0
	for _, p := range peaks {
		if nsdf[p] > highest {
			highest = nsdf[p]
		}
	}
	threshold := e.cutoff * highest
	for _, p := range peaks {
		if nsdf[p] < threshold {
			continue
		}
		lag, height := interpolate(nsdf, p)
		if lag <= 0 {
			return 0, 0
		}
		return sampleRate / lag, clampUnit(height)
	}
	return 0, 0
}

// keyMaxima returns the index of the highest value in each positive lobe after
// the first negative-going zero crossing.
func keyMaxima(nsdf []float64) []int {
	pos := 0
	for pos < len(nsdf) && nsdf[pos] > 0 {
		pos++
	}
	for pos < len(nsdf) && nsdf[pos] <= 0 {
		pos++
	}
	var out []int
	for pos < len(nsdf) {
		best := -1
		for pos < len(nsdf) && nsdf[pos] > 0 {
			if best < 0 || nsdf[pos] > nsdf[best] {
				best = pos
			}
			pos++
		}
		// a lobe cut off by the end of the buffer has no confirmed peak
		if best >= 0 && pos < len(nsdf) {
			out = append(out, best)
		}
		for pos < len(nsdf) && nsdf[pos] <= 0 {
			pos++
		}
	}
	return out
}

func interpolate(y []float64, i int) (float64, float64) {
	if i <= 0 || i >= len(y)-1 {
		return float64(i), y[i]
	}
	a, b, c := y[i-1], y[i], y[i+1]
	den := a - 2*b + c
	if den == 0 {
		return float64(i), b
	}
	shift := 0.5 * (a - c) / den
	return float64(i) + shift, b - 0.25*(a-c)*shift
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
