package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	evaluation "reltone/internal/modules/evaluation/domain"
	pitchdto "reltone/internal/modules/pitch/dto"
	pitchin "reltone/internal/modules/pitch/port/in"
	progressdto "reltone/internal/modules/progress/dto"
	progressin "reltone/internal/modules/progress/port/in"
	trainingdto "reltone/internal/modules/training/dto"
	trainingin "reltone/internal/modules/training/port/in"
	apperrors "reltone/internal/platform/errors"
)

const DefaultNoteWindow = 3 * time.Second

type Options struct {
	// NoteWindow is the audio time given to each scale degree.
	NoteWindow time.Duration
	Logger     *slog.Logger
}

// Coach runs one training session: it listens to each degree of the major
// scale above the session's base note in turn, judges it and records the
// session. A cancelled session records nothing.
type Coach struct {
	pitch    pitchin.Usecase
	progress progressin.Usecase
	opts     Options
}

func NewCoach(pitch pitchin.Usecase, progress progressin.Usecase, opts Options) trainingin.Usecase {
	if opts.NoteWindow <= 0 {
		opts.NoteWindow = DefaultNoteWindow
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Coach{pitch: pitch, progress: progress, opts: opts}
}

func (c *Coach) RunSession(ctx context.Context, input trainingdto.RunSessionInput) (out trainingdto.RunSessionOutput, err error) {
	current, err := c.progress.Show(ctx)
	if err != nil {
		return out, err
	}
	if current.IsCompleted {
		return out, fmt.Errorf("%w: start a new cycle first", apperrors.ErrCycleCompleted)
	}
	next, err := c.progress.NextBaseNote(ctx)
	if err != nil {
		return out, err
	}
	out.Plan = planFor(next)
	if input.OnPlan != nil {
		input.OnPlan(out.Plan)
	}

	opened, err := c.pitch.OpenSession(ctx, pitchdto.OpenSessionInput{Input: input.Input})
	if err != nil {
		return out, err
	}
	defer func() {
		if closeErr := c.pitch.CloseSession(context.WithoutCancel(ctx), opened.SessionID); closeErr != nil {
			c.opts.Logger.Warn("close listening session failed", slog.String("error", closeErr.Error()))
		}
	}()

	notes := make([]evaluation.NoteResult, 0, evaluation.NotesPerSession)
	for idx, degree := range evaluation.ScaleDegrees {
		var listened pitchdto.ListenOutput
		if !out.EndOfInput {
			listened, err = c.pitch.Listen(ctx, pitchdto.ListenInput{
				SessionID: opened.SessionID,
				Window:    c.opts.NoteWindow,
				OnReading: input.OnReading,
			})
			if err != nil {
				return out, fmt.Errorf("listen for %s: %w", degree.Name, err)
			}
			out.EndOfInput = listened.EndOfInput
		}

		voiced := voicedFrequencies(listened.Readings)
		note, judgeErr := evaluation.JudgeNote(degree, next.BaseFrequencyHz, voiced)
		if judgeErr != nil {
			return out, fmt.Errorf("judge %s: %w", degree.Name, judgeErr)
		}
		notes = append(notes, note)

		event := trainingdto.NoteEvent{
			Index:             idx,
			TargetNote:        note.TargetNote,
			TargetFrequencyHz: note.TargetFrequencyHz,
			SungFrequencyHz:   note.UserFrequencyHz,
			Cents:             note.Cents,
			Grade:             string(note.Grade),
			VoicedFrames:      len(voiced),
			Frames:            listened.Frames,
		}
		out.Notes = append(out.Notes, event)
		if input.OnNote != nil {
			input.OnNote(event)
		}
	}
	if out.EndOfInput {
		c.opts.Logger.Info("input ended before the scale was finished", slog.String("input", input.Input))
	}

	if err := ctx.Err(); err != nil {
		return out, err
	}
	out.Record, err = c.progress.RecordSession(ctx, progressdto.RecordSessionInput{BaseNote: next.BaseNote, Notes: notes})
	return out, err
}

func planFor(next progressdto.NextBaseNoteOutput) trainingdto.SessionPlan {
	plan := trainingdto.SessionPlan{
		SessionID:       next.SessionID,
		BaseNote:        next.BaseNote,
		BaseFrequencyHz: next.BaseFrequencyHz,
	}
	for _, degree := range evaluation.ScaleDegrees {
		plan.Targets = append(plan.Targets, trainingdto.Target{Name: degree.Name, FrequencyHz: degree.TargetFrequency(next.BaseFrequencyHz)})
	}
	return plan
}

func voicedFrequencies(readings []pitchdto.Reading) []float64 {
	out := make([]float64, 0, len(readings))
	for _, r := range readings {
		if r.Voiced() && r.FrequencyHz > 0 {
			out = append(out, r.FrequencyHz)
		}
	}
	return out
}
