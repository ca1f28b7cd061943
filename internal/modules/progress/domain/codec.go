package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	evaluation "reltone/internal/modules/evaluation/domain"
)

func Encode(p TrainingProgress) ([]byte, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode progress: %w", err)
	}
	return raw, nil
}

// progressV1 predates voice ranges: every v1 cycle used the medium pool.
type progressV1 struct {
	Version          int                        `json:"version"`
	CreatedAt        time.Time                  `json:"createdAt"`
	LastUpdatedAt    time.Time                  `json:"lastUpdatedAt"`
	SessionHistory   []evaluation.SessionResult `json:"sessionHistory"`
	CurrentSessionID int                        `json:"currentSessionId"`
	IsCompleted      bool                       `json:"isCompleted"`
	UsedBaseNotes    []string                   `json:"usedBaseNotes"`
	OverallGrade     *evaluation.OverallGrade   `json:"overallGrade,omitempty"`
	OverallAccuracy  *float64                   `json:"overallAccuracy,omitempty"`
}

// Decode reads any supported schema version, migrates it to the current one and
// reports the version it found. Unknown fields are corruption, not extensions.
func Decode(raw []byte) (TrainingProgress, int, error) {
	var header struct {
		Version *int `json:"version"`
	}
	if err := json.Unmarshal(raw, &header); err != nil {
		return TrainingProgress{}, 0, fmt.Errorf("%w: %v", ErrInvalidProgress, err)
	}
	if header.Version == nil {
		return TrainingProgress{}, 0, fmt.Errorf("%w: version is missing", ErrInvalidProgress)
	}
	version := *header.Version
	switch version {
	case 1:
		var v1 progressV1
		if err := strictUnmarshal(raw, &v1); err != nil {
			return TrainingProgress{}, version, err
		}
		return migrateV1(v1), version, nil
	case SchemaVersion:
		var p TrainingProgress
		if err := strictUnmarshal(raw, &p); err != nil {
			return TrainingProgress{}, version, err
		}
		return p, version, nil
	default:
		return TrainingProgress{}, version, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}
}

func strictUnmarshal(raw []byte, dst any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProgress, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data", ErrInvalidProgress)
	}
	return nil
}

func migrateV1(v1 progressV1) TrainingProgress {
	p := TrainingProgress{
		Version:            SchemaVersion,
		CreatedAt:          v1.CreatedAt,
		LastUpdatedAt:      v1.LastUpdatedAt,
		SessionHistory:     v1.SessionHistory,
		CurrentSessionID:   v1.CurrentSessionID,
		IsCompleted:        v1.IsCompleted,
		AvailableBaseNotes: VoiceMedium.BaseNotes(),
		UsedBaseNotes:      v1.UsedBaseNotes,
		VoiceRange:         VoiceMedium,
		OverallGrade:       v1.OverallGrade,
		OverallAccuracy:    v1.OverallAccuracy,
	}
	if p.SessionHistory == nil {
		p.SessionHistory = []evaluation.SessionResult{}
	}
	if p.UsedBaseNotes == nil {
		p.UsedBaseNotes = []string{}
	}
	return p
}
