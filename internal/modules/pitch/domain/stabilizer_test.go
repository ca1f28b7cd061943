package domain_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"reltone/internal/modules/pitch/domain"
)

func TestStabilizerPassesThroughWithSingleSample(t *testing.T) {
	t.Parallel()
	s := domain.NewFrequencyStabilizer(5, 0.1)
	assert.Equal(t, 1000.0, s.Stabilize(1000))
	assert.Equal(t, 1, s.Len())
}

func TestStabilizerClampsOutliersToMedianBand(t *testing.T) {
	t.Parallel()
	s := domain.NewFrequencyStabilizer(5, 0.1)
	for _, hz := range []float64{440, 441, 439, 440} {
		s.Stabilize(hz)
	}
	out := s.Stabilize(880)
	// history 439,440,440,441,880 has median 440
	assert.InDelta(t, 484.0, out, 1e-9)

	out = s.Stabilize(300)
	// history 441,439,440,880,300 has median 440
	assert.InDelta(t, 396.0, out, 1e-9)
}

func TestStabilizerKeepsSmallMoves(t *testing.T) {
	t.Parallel()
	s := domain.NewFrequencyStabilizer(5, 0.1)
	s.Stabilize(440)
	assert.Equal(t, 460.0, s.Stabilize(460))
}

func TestStabilizerBoundOnceFull(t *testing.T) {
	t.Parallel()
	s := domain.NewFrequencyStabilizer(5, 0.1)
	inputs := []float64{220, 230, 900, 215, 1200, 110, 440, 445, 2000, 80, 330, 332, 331}
	for _, hz := range inputs {
		out := s.Stabilize(hz)
		if !s.Full() {
			continue
		}
		m := s.Median()
		assert.LessOrEqual(t, math.Abs(out-m), 0.1*m+1e-9, "input %.1f", hz)
	}
}

func TestStabilizerWindowIsBoundedAndResettable(t *testing.T) {
	t.Parallel()
	s := domain.NewFrequencyStabilizer(5, 0.1)
	for i := 0; i < 12; i++ {
		s.Stabilize(200 + float64(i))
	}
	assert.Equal(t, 5, s.Len())
	assert.Equal(t, 209.0, s.Median())
	s.Reset()
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, 700.0, s.Stabilize(700))
}

func TestMedianEvenAndOdd(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 0.0, domain.Median(nil))
	assert.Equal(t, 2.0, domain.Median([]float64{3, 1, 2}))
	assert.Equal(t, 2.5, domain.Median([]float64{4, 1, 3, 2}))
}
