package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"reltone/internal/modules/pitch/domain"
	pitchdto "reltone/internal/modules/pitch/dto"
	pitchin "reltone/internal/modules/pitch/port/in"
	pitchout "reltone/internal/modules/pitch/port/out"
	"reltone/internal/modules/pitch/service"
	"reltone/internal/platform/metrics"
)

type Options struct {
	Tracker      service.TrackerConfig
	TickInterval time.Duration
	Metrics      *metrics.Recorder
	Logger       *slog.Logger
}

type Interactor struct {
	table     *service.TrackerTable
	opener    pitchout.FrameSourceOpener
	estimator pitchout.Estimator
	opts      Options
}

type openSession struct {
	source   pitchout.FrameSource
	listener *Listener
}

func NewInteractor(opener pitchout.FrameSourceOpener, estimator pitchout.Estimator, opts Options) pitchin.Usecase {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Interactor{table: service.NewTrackerTable(), opener: opener, estimator: estimator, opts: opts}
}

func (i *Interactor) OpenSession(ctx context.Context, input pitchdto.OpenSessionInput) (pitchdto.OpenSessionOutput, error) {
	tracker, err := service.NewTracker(i.opts.Tracker, i.estimator, i.opts.Metrics)
	if err != nil {
		return pitchdto.OpenSessionOutput{}, err
	}
	source, err := i.opener.Open(ctx, input.Input)
	if err != nil {
		return pitchdto.OpenSessionOutput{}, fmt.Errorf("open audio input: %w", err)
	}
	session := &openSession{
		source:   source,
		listener: NewListener(tracker, source, i.opts.TickInterval, i.opts.Logger),
	}
	id := i.table.Create(tracker, session)
	i.opts.Logger.Debug("listening session opened", slog.Uint64("session", uint64(id)), slog.String("input", input.Input))
	return pitchdto.OpenSessionOutput{SessionID: uint32(id)}, nil
}

func (i *Interactor) Listen(ctx context.Context, input pitchdto.ListenInput) (pitchdto.ListenOutput, error) {
	_, payload, err := i.table.Get(service.TrackerID(input.SessionID))
	if err != nil {
		return pitchdto.ListenOutput{}, err
	}
	session := payload.(*openSession)

	var readings []pitchdto.Reading
	emit := func(r domain.Reading) {
		out := toReadingDTO(r)
		readings = append(readings, out)
		if input.OnReading != nil {
			input.OnReading(out)
		}
	}
	if err := session.listener.Start(ctx, input.Window, emit); err != nil {
		return pitchdto.ListenOutput{}, err
	}
	result, err := session.listener.Wait()
	out := pitchdto.ListenOutput{
		Readings:   readings,
		Frames:     result.Frames,
		Failed:     result.Failed,
		AudioTime:  result.AudioTime,
		EndOfInput: result.EndOfInput,
	}
	return out, err
}

func (i *Interactor) ResetSession(_ context.Context, sessionID uint32) error {
	tracker, _, err := i.table.Get(service.TrackerID(sessionID))
	if err != nil {
		return err
	}
	tracker.Reset()
	return nil
}

func (i *Interactor) CloseSession(_ context.Context, sessionID uint32) error {
	payload, err := i.table.Remove(service.TrackerID(sessionID))
	if err != nil {
		return err
	}
	session := payload.(*openSession)
	session.listener.Stop()
	if err := session.source.Close(); err != nil {
		return fmt.Errorf("close audio input: %w", err)
	}
	return nil
}

func toReadingDTO(r domain.Reading) pitchdto.Reading {
	out := pitchdto.Reading{
		Timestamp:      r.Timestamp,
		State:          string(r.State),
		Loudness:       r.Loudness,
		RawFrequencyHz: r.Observation.RawFrequencyHz,
		Clarity:        r.Observation.Clarity,
		FrequencyHz:    r.FrequencyHz,
	}
	if r.Voiced() {
		out.Correction = string(r.Corrected.Type)
		if name, err := domain.NearestNote(r.FrequencyHz); err == nil {
			out.Note = name
		}
	}
	return out
}
