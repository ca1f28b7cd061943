package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reltone/internal/modules/pitch/domain"
)

func newCorrector(t *testing.T) *domain.HarmonicCorrector {
	t.Helper()
	c, err := domain.NewHarmonicCorrector(domain.DefaultCorrectorConfig())
	require.NoError(t, err)
	return c
}

func TestCorrectOctaveErrorAgainstPrevious(t *testing.T) {
	t.Parallel()
	c := newCorrector(t)

	got, err := c.Correct(880, 440)
	require.NoError(t, err)
	assert.InDelta(t, 440.0, got.FrequencyHz, 1e-9)
	assert.Equal(t, domain.CorrectionHalf, got.Type)
	assert.Equal(t, 0.5, got.HarmonicRatio)
	assert.InDelta(t, 1.0, got.Confidence, 0.001)

	candidates := c.Candidates(880, 440)
	require.Len(t, candidates, 5)
	assert.InDelta(t, 0.6, candidates[0].Score, 0.001)
	assert.Greater(t, candidates[1].Score, candidates[0].Score)
}

func TestCorrectIsDeterministic(t *testing.T) {
	t.Parallel()
	c := newCorrector(t)
	inputs := []struct{ raw, prev float64 }{
		{880, 440}, {600, 300}, {150, 300}, {1500, 0}, {100, 200}, {2000, 0},
	}
	for _, in := range inputs {
		first, err := c.Correct(in.raw, in.prev)
		require.NoError(t, err)
		for i := 0; i < 10; i++ {
			again, err := c.Correct(in.raw, in.prev)
			require.NoError(t, err)
			assert.Equal(t, first, again)
		}
	}
}

func TestCorrectTieKeepsEarliestRatio(t *testing.T) {
	t.Parallel()
	c := newCorrector(t)

	// 261.63, 130.815 and 523.26 all score 0.8 with no history.
	got, err := c.Correct(261.63, 0)
	require.NoError(t, err)
	assert.Equal(t, domain.CorrectionNone, got.Type)
	assert.Equal(t, 261.63, got.FrequencyHz)

	// 1046.52 is just above the vocal range; half and quarter tie at 0.8.
	got, err = c.Correct(1046.52, 0)
	require.NoError(t, err)
	assert.Equal(t, domain.CorrectionHalf, got.Type)
	assert.Equal(t, 523.26, got.FrequencyHz)
}

func TestCorrectTable(t *testing.T) {
	t.Parallel()
	c := newCorrector(t)
	tests := []struct {
		name string
		raw  float64
		prev float64
		want domain.CorrectionType
		hz   float64
	}{
		{name: "octave above previous", raw: 600, prev: 300, want: domain.CorrectionHalf, hz: 300},
		{name: "sub-harmonic below previous", raw: 150, prev: 300, want: domain.CorrectionDouble, hz: 300},
		{name: "low rumble doubled", raw: 100, prev: 200, want: domain.CorrectionDouble, hz: 200},
		{name: "third harmonic without history", raw: 1500, prev: 0, want: domain.CorrectionTriple, hz: 500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Correct(tt.raw, tt.prev)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Type)
			assert.InDelta(t, tt.hz, got.FrequencyHz, 1e-9)
		})
	}
}

func TestCorrectRejectsInvalidFrequency(t *testing.T) {
	t.Parallel()
	c := newCorrector(t)
	_, err := c.Correct(0, 440)
	assert.ErrorIs(t, err, domain.ErrInvalidFrequency)
	_, err = c.Correct(-10, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidFrequency)
}

func TestAcceptsGatesClarityAndBand(t *testing.T) {
	t.Parallel()
	c := newCorrector(t)
	assert.True(t, c.Accepts(domain.PitchObservation{RawFrequencyHz: 440, Clarity: 0.95}))
	assert.False(t, c.Accepts(domain.PitchObservation{RawFrequencyHz: 440, Clarity: 0.8}))
	assert.False(t, c.Accepts(domain.PitchObservation{RawFrequencyHz: 40, Clarity: 0.99}))
	assert.False(t, c.Accepts(domain.PitchObservation{RawFrequencyHz: 2500, Clarity: 0.99}))
}

func TestCorrectorConfigValidate(t *testing.T) {
	t.Parallel()
	cfg := domain.DefaultCorrectorConfig()
	cfg.VocalMaxHz = cfg.VocalMinHz
	_, err := domain.NewHarmonicCorrector(cfg)
	assert.Error(t, err)
}
