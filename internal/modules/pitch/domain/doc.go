// Package domain holds the per-frame pitch pipeline stages.
//
// A frame flows through three stages:
//
//   - VolumeAnalyzer gates quiet frames as unvoiced and keeps a smoothed loudness level
//   - HarmonicCorrector resolves octave and harmonic misdetections of the raw estimate
//   - FrequencyStabilizer bounds the corrected value around the median of recent values
//
// All stages are synchronous and allocation-light so they can run inside a frame tick.
// The stateful stages are owned by a single listening session and reset together.
package domain
