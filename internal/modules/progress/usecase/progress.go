package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	evaluation "reltone/internal/modules/evaluation/domain"
	"reltone/internal/modules/progress/domain"
	progressdto "reltone/internal/modules/progress/dto"
	progressin "reltone/internal/modules/progress/port/in"
	progressout "reltone/internal/modules/progress/port/out"
	"reltone/internal/modules/progress/service"
	apperrors "reltone/internal/platform/errors"
	"reltone/internal/platform/tx"
)

type Dependencies struct {
	Store    *service.ProgressStore
	Index    progressout.SessionIndex
	Journal  progressout.Journal
	Exporter progressout.Exporter
	Tx       tx.Manager
	Logger   *slog.Logger
}

type Interactor struct {
	store    *service.ProgressStore
	index    progressout.SessionIndex
	journal  progressout.Journal
	exporter progressout.Exporter
	tx       tx.Manager
	logger   *slog.Logger
}

func NewInteractor(deps Dependencies) progressin.Usecase {
	if deps.Tx == nil {
		deps.Tx = tx.NoopManager{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Interactor{
		store:    deps.Store,
		index:    deps.Index,
		journal:  deps.Journal,
		exporter: deps.Exporter,
		tx:       deps.Tx,
		logger:   deps.Logger,
	}
}

func (i *Interactor) Show(ctx context.Context) (progressdto.ProgressOutput, error) {
	current, err := i.store.Current(ctx)
	if err != nil {
		return progressdto.ProgressOutput{}, err
	}
	return i.toProgressOutput(current), nil
}

func (i *Interactor) NextBaseNote(ctx context.Context) (progressdto.NextBaseNoteOutput, error) {
	current, err := i.store.Current(ctx)
	if err != nil {
		return progressdto.NextBaseNoteOutput{}, err
	}
	note, err := i.store.NextBaseNote(ctx)
	if err != nil {
		return progressdto.NextBaseNoteOutput{}, err
	}
	hz, err := domain.BaseFrequency(note)
	if err != nil {
		return progressdto.NextBaseNoteOutput{}, err
	}
	return progressdto.NextBaseNoteOutput{SessionID: current.CurrentSessionID, BaseNote: note, BaseFrequencyHz: hz}, nil
}

// RecordSession stores the session and its index row in one transaction. A
// result that could not be written is still returned, with Durable unset and an
// error wrapping apperrors.ErrNotDurable. The journal note is best effort.
func (i *Interactor) RecordSession(ctx context.Context, input progressdto.RecordSessionInput) (progressdto.RecordSessionOutput, error) {
	base, err := i.resolveBase(ctx, input.BaseNote)
	if err != nil {
		return progressdto.RecordSessionOutput{}, err
	}

	var (
		progress domain.TrainingProgress
		result   evaluation.SessionResult
	)
	err = i.tx.Within(ctx, func(txCtx context.Context) error {
		var recErr error
		progress, result, recErr = i.store.RecordSession(txCtx, base, input.Notes)
		if recErr != nil {
			return recErr
		}
		if i.index == nil {
			return nil
		}
		if err := i.index.UpsertSession(txCtx, domain.RecordOf(progress.CycleID, result)); err != nil {
			return fmt.Errorf("%w: index session: %w", apperrors.ErrNotDurable, err)
		}
		return nil
	})
	if err != nil && !errors.Is(err, apperrors.ErrNotDurable) {
		return progressdto.RecordSessionOutput{}, err
	}

	out := progressdto.RecordSessionOutput{
		Session:        toSessionOutput(result),
		Progress:       i.toProgressOutput(progress),
		CycleCompleted: progress.IsCompleted,
		Durable:        err == nil,
	}
	if err != nil {
		i.logger.Warn("session kept in memory only", slog.Int("session", result.SessionID), slog.String("error", err.Error()))
		return out, err
	}
	if i.journal != nil {
		path, journalErr := i.journal.RecordSession(ctx, progress, result)
		if journalErr != nil {
			i.logger.Warn("journal note not written", slog.String("error", journalErr.Error()))
		} else {
			out.JournalPath = path
		}
	}
	return out, nil
}

func (i *Interactor) RecordFromCents(ctx context.Context, input progressdto.RecordFromCentsInput) (progressdto.RecordSessionOutput, error) {
	if len(input.Cents) != evaluation.NotesPerSession {
		return progressdto.RecordSessionOutput{}, fmt.Errorf("%w: %w: got %d values", apperrors.ErrInvalidInput, evaluation.ErrWrongNoteCount, len(input.Cents))
	}
	base, err := i.resolveBase(ctx, input.BaseNote)
	if err != nil {
		return progressdto.RecordSessionOutput{}, err
	}
	baseHz, err := domain.BaseFrequency(base)
	if err != nil {
		return progressdto.RecordSessionOutput{}, fmt.Errorf("%w: %w", apperrors.ErrInvalidInput, err)
	}
	notes := make([]evaluation.NoteResult, 0, evaluation.NotesPerSession)
	for idx, cents := range input.Cents {
		note, err := evaluation.NewNoteResultFromCents(evaluation.ScaleDegrees[idx], baseHz, cents)
		if err != nil {
			return progressdto.RecordSessionOutput{}, fmt.Errorf("%w: %w", apperrors.ErrInvalidInput, err)
		}
		notes = append(notes, note)
	}
	return i.RecordSession(ctx, progressdto.RecordSessionInput{BaseNote: base, Notes: notes})
}

func (i *Interactor) StartNewCycle(ctx context.Context) (progressdto.NewCycleOutput, error) {
	var (
		progress domain.TrainingProgress
		started  bool
	)
	err := i.tx.Within(ctx, func(txCtx context.Context) error {
		var err error
		progress, started, err = i.store.StartNewCycleIfCompleted(txCtx)
		return err
	})
	if err != nil && !errors.Is(err, apperrors.ErrNotDurable) {
		return progressdto.NewCycleOutput{}, err
	}
	return progressdto.NewCycleOutput{Started: started, Progress: i.toProgressOutput(progress)}, err
}

func (i *Interactor) Reset(ctx context.Context) (progressdto.ProgressOutput, error) {
	var progress domain.TrainingProgress
	err := i.tx.Within(ctx, func(txCtx context.Context) error {
		var err error
		progress, err = i.store.Reset(txCtx)
		return err
	})
	if err != nil && !errors.Is(err, apperrors.ErrNotDurable) {
		return progressdto.ProgressOutput{}, err
	}
	i.logger.Info("progress reset", slog.String("cycle", progress.CycleID))
	return i.toProgressOutput(progress), err
}

func (i *Interactor) Archives(ctx context.Context) ([]progressdto.ArchiveOutput, error) {
	archives, err := i.store.Archives(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]progressdto.ArchiveOutput, 0, len(archives))
	for _, a := range archives {
		item := progressdto.ArchiveOutput{
			Key:             a.Key,
			ArchivedAt:      a.ArchivedAt,
			CycleID:         a.Progress.CycleID,
			VoiceRange:      string(a.Progress.VoiceRange),
			Sessions:        len(a.Progress.SessionHistory),
			OverallAccuracy: a.Progress.OverallAccuracy,
		}
		if a.Progress.OverallGrade != nil {
			item.OverallGrade = string(*a.Progress.OverallGrade)
		}
		out = append(out, item)
	}
	return out, nil
}

// History lists recorded sessions across cycles. Without an index only the
// current cycle is known.
func (i *Interactor) History(ctx context.Context) ([]progressdto.SessionRecordOutput, error) {
	records, err := i.records(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]progressdto.SessionRecordOutput, 0, len(records))
	for _, r := range records {
		out = append(out, progressdto.SessionRecordOutput{
			CycleID:           r.CycleID,
			SessionID:         r.SessionID,
			BaseNote:          r.BaseNote,
			Grade:             string(r.Grade),
			AccuracyPercent:   r.AccuracyPercent,
			AverageErrorCents: r.AverageErrorCents,
			CompletedAt:       r.CompletedAt,
		})
	}
	return out, nil
}

func (i *Interactor) Export(ctx context.Context, input progressdto.ExportInput) (progressdto.ExportOutput, error) {
	if input.Path == "" {
		return progressdto.ExportOutput{}, fmt.Errorf("%w: export path is required", apperrors.ErrInvalidInput)
	}
	if i.exporter == nil {
		return progressdto.ExportOutput{}, fmt.Errorf("exporter is not configured")
	}
	current, err := i.store.Current(ctx)
	if err != nil {
		return progressdto.ExportOutput{}, err
	}
	records, err := i.records(ctx)
	if err != nil {
		return progressdto.ExportOutput{}, err
	}
	if err := i.exporter.Export(ctx, input.Path, current, records); err != nil {
		return progressdto.ExportOutput{}, fmt.Errorf("export progress: %w", err)
	}
	return progressdto.ExportOutput{Path: input.Path, Sessions: len(records)}, nil
}

func (i *Interactor) records(ctx context.Context) ([]domain.SessionRecord, error) {
	if i.index != nil {
		return i.index.ListSessions(ctx)
	}
	current, err := i.store.Current(ctx)
	if err != nil {
		return nil, err
	}
	records := make([]domain.SessionRecord, 0, len(current.SessionHistory))
	for _, s := range current.SessionHistory {
		records = append(records, domain.RecordOf(current.CycleID, s))
	}
	return records, nil
}

func (i *Interactor) resolveBase(ctx context.Context, base string) (string, error) {
	if base != "" {
		return base, nil
	}
	return i.store.NextBaseNote(ctx)
}

func (i *Interactor) toProgressOutput(p domain.TrainingProgress) progressdto.ProgressOutput {
	report := i.store.LastLoadReport()
	out := progressdto.ProgressOutput{
		CycleID:            p.CycleID,
		VoiceRange:         string(p.VoiceRange),
		CreatedAt:          p.CreatedAt,
		LastUpdatedAt:      p.LastUpdatedAt,
		CurrentSessionID:   p.CurrentSessionID,
		SessionsCompleted:  len(p.SessionHistory),
		IsCompleted:        p.IsCompleted,
		UsedBaseNotes:      append([]string(nil), p.UsedBaseNotes...),
		RemainingBaseNotes: p.RemainingBaseNotes(),
		OverallAccuracy:    p.OverallAccuracy,
		Health: progressdto.HealthOutput{
			Found:       report.Found,
			FromVersion: report.FromVersion,
			Discarded:   report.Discarded,
			Reason:      report.Reason,
			CorruptKey:  report.CorruptKey,
		},
	}
	if p.OverallGrade != nil {
		out.OverallGrade = string(*p.OverallGrade)
	}
	for _, issue := range report.Repaired {
		out.Health.Repaired = append(out.Health.Repaired, string(issue))
	}
	for _, s := range p.SessionHistory {
		out.Sessions = append(out.Sessions, toSessionOutput(s))
	}
	return out
}

func toSessionOutput(s evaluation.SessionResult) progressdto.SessionOutput {
	out := progressdto.SessionOutput{
		SessionID:         s.SessionID,
		BaseNote:          s.BaseNote,
		BaseFrequencyHz:   s.BaseFrequencyHz,
		Grade:             string(s.Grade),
		AccuracyPercent:   s.AccuracyPercent,
		AverageErrorCents: s.AverageErrorCents,
		CompletedAt:       s.CompletedAt,
	}
	for _, n := range s.NoteResults {
		out.Notes = append(out.Notes, progressdto.NoteOutput{
			TargetNote:        n.TargetNote,
			TargetFrequencyHz: n.TargetFrequencyHz,
			UserFrequencyHz:   n.UserFrequencyHz,
			Cents:             n.Cents,
			Grade:             string(n.Grade),
		})
	}
	return out
}
