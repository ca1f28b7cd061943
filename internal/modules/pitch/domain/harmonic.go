package domain

import (
	"fmt"
	"math"
)

const (
	vocalRangeWeight = 0.4
	continuityWeight = 0.4
	musicalWeight    = 0.2
	neutralScore     = 0.5
)

type harmonicCandidate struct {
	ratio float64
	kind  CorrectionType
}

// Order matters: on equal scores the earlier entry wins.
var harmonicCandidates = []harmonicCandidate{
	{ratio: 1.0, kind: CorrectionNone},
	{ratio: 0.5, kind: CorrectionHalf},
	{ratio: 1.0 / 3.0, kind: CorrectionTriple},
	{ratio: 0.25, kind: CorrectionQuarter},
	{ratio: 2.0, kind: CorrectionDouble},
}

type CorrectorConfig struct {
	ClarityThreshold float64
	MinHz            float64
	MaxHz            float64
	VocalMinHz       float64
	VocalMaxHz       float64
}

func DefaultCorrectorConfig() CorrectorConfig {
	return CorrectorConfig{
		ClarityThreshold: 0.8,
		MinHz:            50,
		MaxHz:            2000,
		VocalMinHz:       130.81,
		VocalMaxHz:       1046.50,
	}
}

func (c CorrectorConfig) Validate() error {
	if c.ClarityThreshold < 0 || c.ClarityThreshold > 1 {
		return fmt.Errorf("clarity threshold must be within [0,1], got %.3f", c.ClarityThreshold)
	}
	if c.MinHz <= 0 || c.MaxHz <= c.MinHz {
		return fmt.Errorf("plausible band is invalid: %.2f-%.2f", c.MinHz, c.MaxHz)
	}
	if c.VocalMinHz <= 0 || c.VocalMaxHz <= c.VocalMinHz {
		return fmt.Errorf("vocal range is invalid: %.2f-%.2f", c.VocalMinHz, c.VocalMaxHz)
	}
	return nil
}

type ScoredCandidate struct {
	FrequencyHz float64
	Ratio       float64
	Type        CorrectionType
	VocalRange  float64
	Continuity  float64
	Musical     float64
	Score       float64
}

type HarmonicCorrector struct {
	cfg CorrectorConfig
}

func NewHarmonicCorrector(cfg CorrectorConfig) (*HarmonicCorrector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &HarmonicCorrector{cfg: cfg}, nil
}

// Accepts reports whether an observation is reliable enough to correct.
func (h *HarmonicCorrector) Accepts(obs PitchObservation) bool {
	f := obs.RawFrequencyHz
	return obs.Clarity > h.cfg.ClarityThreshold && f >= h.cfg.MinHz && f <= h.cfg.MaxHz
}

func (h *HarmonicCorrector) Candidates(rawHz, previousHz float64) []ScoredCandidate {
	out := make([]ScoredCandidate, 0, len(harmonicCandidates))
	for _, c := range harmonicCandidates {
		f := rawHz * c.ratio
		sc := ScoredCandidate{
			FrequencyHz: f,
			Ratio:       c.ratio,
			Type:        c.kind,
			VocalRange:  h.vocalRangeScore(f),
			Continuity:  continuityScore(f, previousHz),
			Musical:     musicalScore(f),
		}
		sc.Score = vocalRangeWeight*sc.VocalRange + continuityWeight*sc.Continuity + musicalWeight*sc.Musical
		out = append(out, sc)
	}
	return out
}

// Correct picks the most plausible fundamental for rawHz given the previous stabilized frequency.
// previousHz is zero when there is no history.
func (h *HarmonicCorrector) Correct(rawHz, previousHz float64) (CorrectedPitch, error) {
	if !validFrequency(rawHz) {
		return CorrectedPitch{}, fmt.Errorf("%w: %v", ErrInvalidFrequency, rawHz)
	}
	if previousHz < 0 || math.IsNaN(previousHz) || math.IsInf(previousHz, 0) {
		previousHz = 0
	}
	scored := h.Candidates(rawHz, previousHz)
	best, err := selectCandidate(scored)
	if err != nil {
		return CorrectedPitch{}, err
	}
	winner := scored[best]
	return CorrectedPitch{
		FrequencyHz:   winner.FrequencyHz,
		HarmonicRatio: winner.Ratio,
		Type:          winner.Type,
		Confidence:    winner.Score,
	}, nil
}

// selectCandidate returns the index of the strictly highest score.
// A later candidate must beat the current best, so ties keep the earliest.
func selectCandidate(scored []ScoredCandidate) (int, error) {
	if len(scored) == 0 {
		return -1, ErrNoCandidates
	}
	best := 0
	for i := 1; i < len(scored); i++ {
		if scored[i].Score > scored[best].Score {
			best = i
		}
	}
	return best, nil
}

func (h *HarmonicCorrector) vocalRangeScore(f float64) float64 {
	if f >= h.cfg.VocalMinHz && f <= h.cfg.VocalMaxHz {
		return 1
	}
	return 0
}

func continuityScore(f, previousHz float64) float64 {
	if previousHz <= 0 {
		return neutralScore
	}
	return 1 - math.Min(math.Abs(f-previousHz)/previousHz, 1)
}

func musicalScore(f float64) float64 {
	semitones := 12 * math.Log2(f/ReferenceC4Hz)
	distance := math.Abs(semitones - math.Round(semitones))
	return math.Max(0, 1-distance/0.5)
}
