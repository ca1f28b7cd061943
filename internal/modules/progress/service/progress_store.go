package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"

	evaluation "reltone/internal/modules/evaluation/domain"
	"reltone/internal/modules/progress/domain"
	progressout "reltone/internal/modules/progress/port/out"
	"reltone/internal/platform/clock"
	apperrors "reltone/internal/platform/errors"
	"reltone/internal/platform/id"
	"reltone/internal/platform/metrics"
	"reltone/internal/platform/random"
)

type Options struct {
	VoiceRange  domain.VoiceRange
	ArchiveKeep int
	Clock       clock.Clock
	IDs         id.Generator
	Random      random.Source
	Logger      *slog.Logger
	Metrics     *metrics.Recorder
}

type LoadReport struct {
	Found       bool
	FromVersion int
	Repaired    []domain.Issue
	Discarded   bool
	Reason      string
	CorruptKey  string
}

// ProgressStore owns the current training cycle. It caches the loaded progress
// and writes it back at session and cycle boundaries only. Concurrent writers
// in other processes are not coordinated: the last write wins.
type ProgressStore struct {
	kv   progressout.KVStore
	opts Options

	mu         sync.Mutex
	current    *domain.TrainingProgress
	pending    string
	lastReport LoadReport
}

func NewProgressStore(kv progressout.KVStore, opts Options) *ProgressStore {
	if !opts.VoiceRange.Valid() {
		opts.VoiceRange = domain.VoiceMedium
	}
	if opts.Clock == nil {
		opts.Clock = clock.SystemClock{}
	}
	if opts.IDs == nil {
		opts.IDs = id.UUID{}
	}
	if opts.Random == nil {
		opts.Random = random.NewLocked(uint64(opts.Clock.Now().UnixNano()))
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &ProgressStore{kv: kv, opts: opts}
}

// Load reads, migrates, health-checks and repairs the stored progress. It
// returns nil when nothing usable was stored; the store then starts a fresh cycle.
func (s *ProgressStore) Load(ctx context.Context) (*domain.TrainingProgress, LoadReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	loaded, report, err := s.load(ctx)
	if err != nil {
		return nil, report, err
	}
	s.adopt(loaded)
	if loaded == nil {
		return nil, report, nil
	}
	out := loaded.Clone()
	return &out, report, nil
}

func (s *ProgressStore) LastLoadReport() LoadReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastReport
}

func (s *ProgressStore) Current(ctx context.Context) (domain.TrainingProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		return domain.TrainingProgress{}, err
	}
	return s.current.Clone(), nil
}

// Save stamps lastUpdatedAt and writes p as the current cycle.
func (s *ProgressStore) Save(ctx context.Context, p domain.TrainingProgress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := p.Clone()
	next.LastUpdatedAt = s.now()
	s.current = &next
	return s.save(ctx, next)
}

// AddSessionResult appends result to the current cycle and saves. When the
// write is not durable the in-memory cycle still advances and the returned
// error wraps apperrors.ErrNotDurable.
func (s *ProgressStore) AddSessionResult(ctx context.Context, result evaluation.SessionResult) (domain.TrainingProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		return domain.TrainingProgress{}, err
	}
	next := s.current.Clone()
	if err := next.AddSessionResult(result); err != nil {
		if errors.Is(err, domain.ErrCycleCompleted) {
			return next, fmt.Errorf("%w: %w", apperrors.ErrCycleCompleted, err)
		}
		return next, fmt.Errorf("%w: %w", apperrors.ErrInvalidInput, err)
	}
	next.LastUpdatedAt = s.now()
	s.current = &next
	s.pending = ""
	s.opts.Metrics.SessionRecorded(string(result.Grade))
	s.opts.Logger.Info("session recorded",
		slog.Int("session", result.SessionID),
		slog.String("base_note", result.BaseNote),
		slog.String("grade", string(result.Grade)),
		slog.Bool("cycle_completed", next.IsCompleted),
	)
	return next.Clone(), s.save(ctx, next)
}

// RecordSession grades notes as the current session over baseNote and adds it.
func (s *ProgressStore) RecordSession(ctx context.Context, baseNote string, notes []evaluation.NoteResult) (domain.TrainingProgress, evaluation.SessionResult, error) {
	baseHz, err := domain.BaseFrequency(baseNote)
	if err != nil {
		return domain.TrainingProgress{}, evaluation.SessionResult{}, fmt.Errorf("%w: %w", apperrors.ErrInvalidInput, err)
	}
	current, err := s.Current(ctx)
	if err != nil {
		return domain.TrainingProgress{}, evaluation.SessionResult{}, err
	}
	if current.IsCompleted {
		return current, evaluation.SessionResult{}, apperrors.ErrCycleCompleted
	}
	result, err := evaluation.NewSessionResult(current.CurrentSessionID, baseNote, baseHz, notes, s.now())
	if err != nil {
		return current, evaluation.SessionResult{}, fmt.Errorf("%w: %w", apperrors.ErrInvalidInput, err)
	}
	progress, err := s.AddSessionResult(ctx, result)
	return progress, result, err
}

// NextBaseNote picks the base note for the next session. The pick is stored
// under PendingKey and kept until a session is recorded, so repeated calls
// agree across processes.
func (s *ProgressStore) NextBaseNote(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		return "", err
	}
	if s.pending != "" {
		return s.pending, nil
	}
	if note, ok := s.storedPending(ctx); ok {
		s.pending = note
		return note, nil
	}
	s.pending = s.current.NextBaseNote(s.opts.Random)
	value := pendingValue(s.current.CycleID, s.current.CurrentSessionID, s.pending)
	if err := s.kv.Set(ctx, PendingKey, value); err != nil {
		s.opts.Logger.Warn("pending base note not saved", slog.String("error", err.Error()))
	}
	return s.pending, nil
}

// storedPending reads a pick made by an earlier process for the current
// session. A pick that is no longer a candidate is ignored.
func (s *ProgressStore) storedPending(ctx context.Context) (string, bool) {
	raw, found, err := s.kv.Get(ctx, PendingKey)
	if err != nil {
		s.opts.Logger.Warn("read pending base note failed", slog.String("error", err.Error()))
		return "", false
	}
	if !found {
		return "", false
	}
	note, ok := parsePending(raw, s.current.CycleID, s.current.CurrentSessionID)
	if !ok {
		return "", false
	}
	candidates := s.current.RemainingBaseNotes()
	if s.current.IsCompleted || len(candidates) == 0 {
		candidates = s.current.VoiceRange.BaseNotes()
	}
	return note, slices.Contains(candidates, note)
}

// StartNewCycleIfCompleted archives a completed cycle and replaces it with a
// fresh one. It reports whether a new cycle was started.
func (s *ProgressStore) StartNewCycleIfCompleted(ctx context.Context) (domain.TrainingProgress, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		return domain.TrainingProgress{}, false, err
	}
	if !s.current.IsCompleted || len(s.current.SessionHistory) != evaluation.MaxSessionsPerCycle {
		return s.current.Clone(), false, nil
	}

	raw, err := domain.Encode(*s.current)
	if err != nil {
		return s.current.Clone(), false, err
	}
	now := s.now()
	key := archiveKey(now)
	if err := s.writeWithRetry(ctx, key, string(raw)); err != nil {
		return s.current.Clone(), false, fmt.Errorf("archive cycle: %w", err)
	}
	s.opts.Logger.Info("cycle archived", slog.String("key", key), slog.String("cycle", s.current.CycleID))

	fresh := domain.New(s.opts.IDs.New(), s.opts.VoiceRange, now)
	s.current = &fresh
	s.pending = ""
	if err := s.pruneArchives(ctx); err != nil {
		s.opts.Logger.Warn("prune archives failed", slog.String("error", err.Error()))
	}
	return fresh.Clone(), true, s.save(ctx, fresh)
}

// Reset drops the stored cycle and its backup and starts over.
func (s *ProgressStore) Reset(ctx context.Context) (domain.TrainingProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range []string{ProgressKey, BackupKey, PendingKey} {
		if err := s.kv.Remove(ctx, key); err != nil {
			return domain.TrainingProgress{}, fmt.Errorf("remove %s: %w", key, err)
		}
	}
	fresh := domain.New(s.opts.IDs.New(), s.opts.VoiceRange, s.now())
	s.current = &fresh
	s.pending = ""
	return fresh.Clone(), s.save(ctx, fresh)
}

// Archives lists archived cycles, newest first.
func (s *ProgressStore) Archives(ctx context.Context) ([]domain.Archive, error) {
	keys, err := s.archiveKeys(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Archive, 0, len(keys))
	for i := len(keys) - 1; i >= 0; i-- {
		key := keys[i]
		raw, found, err := s.kv.Get(ctx, key.key)
		if err != nil {
			return nil, fmt.Errorf("read archive %s: %w", key.key, err)
		}
		if !found {
			continue
		}
		p, _, err := domain.Decode([]byte(raw))
		if err != nil {
			s.opts.Logger.Warn("skipping unreadable archive", slog.String("key", key.key), slog.String("error", err.Error()))
			continue
		}
		out = append(out, domain.Archive{Key: key.key, ArchivedAt: key.at, Progress: p})
	}
	return out, nil
}

func (s *ProgressStore) ensureLoaded(ctx context.Context) error {
	if s.current != nil {
		return nil
	}
	loaded, _, err := s.load(ctx)
	if err != nil {
		return err
	}
	s.adopt(loaded)
	return nil
}

func (s *ProgressStore) adopt(loaded *domain.TrainingProgress) {
	s.pending = ""
	if loaded != nil {
		s.current = loaded
		return
	}
	fresh := domain.New(s.opts.IDs.New(), s.opts.VoiceRange, s.now())
	s.current = &fresh
}

func (s *ProgressStore) load(ctx context.Context) (*domain.TrainingProgress, LoadReport, error) {
	var report LoadReport
	raw, found, err := s.kv.Get(ctx, ProgressKey)
	if err != nil {
		return nil, report, fmt.Errorf("read progress: %w", err)
	}
	if !found {
		s.lastReport = report
		return nil, report, nil
	}
	report.Found = true

	decoded, version, err := domain.Decode([]byte(raw))
	report.FromVersion = version
	if err != nil {
		return s.discard(ctx, raw, err.Error(), report)
	}
	repaired, health, err := domain.Repair(decoded)
	if err != nil {
		return s.discard(ctx, raw, err.Error(), report)
	}
	if err := repaired.Validate(); err != nil {
		return s.discard(ctx, raw, err.Error(), report)
	}

	dirty := version != domain.SchemaVersion || !health.Healthy()
	if repaired.CycleID == "" {
		repaired.CycleID = s.opts.IDs.New()
		dirty = true
	}
	if !health.Healthy() {
		report.Repaired = health.Issues
		s.opts.Metrics.Repair("repaired")
		s.opts.Logger.Warn("progress repaired", slog.Any("issues", health.Issues))
	}
	if dirty {
		repaired.LastUpdatedAt = s.now()
		if err := s.save(ctx, repaired); err != nil {
			s.opts.Logger.Warn("repaired progress not saved", slog.String("error", err.Error()))
		}
	}
	s.lastReport = report
	return &repaired, report, nil
}

// discard snapshots unusable progress under a corrupt key and removes it so
// the next load starts clean.
func (s *ProgressStore) discard(ctx context.Context, raw, reason string, report LoadReport) (*domain.TrainingProgress, LoadReport, error) {
	report.Discarded = true
	report.Reason = reason
	report.CorruptKey = corruptKey(s.now())
	if err := s.writeWithRetry(ctx, report.CorruptKey, raw); err != nil {
		s.opts.Logger.Warn("corrupt progress snapshot failed", slog.String("error", err.Error()))
		report.CorruptKey = ""
	}
	if err := s.kv.Remove(ctx, ProgressKey); err != nil {
		return nil, report, fmt.Errorf("remove discarded progress: %w", err)
	}
	s.opts.Metrics.Repair("discarded")
	s.opts.Logger.Warn("progress discarded", slog.String("reason", reason), slog.String("snapshot", report.CorruptKey))
	s.lastReport = report
	return nil, report, nil
}

func (s *ProgressStore) save(ctx context.Context, p domain.TrainingProgress) error {
	raw, err := domain.Encode(p)
	if err != nil {
		return err
	}
	dropped := false
	prev, found, err := s.kv.Get(ctx, ProgressKey)
	if err != nil {
		s.opts.Logger.Warn("read previous progress failed", slog.String("error", err.Error()))
	}
	if found && prev != string(raw) {
		if err := s.kv.Set(ctx, BackupKey, prev); err != nil {
			if !errors.Is(err, apperrors.ErrQuotaExceeded) {
				s.opts.Logger.Warn("progress backup failed", slog.String("error", err.Error()))
			} else {
				s.dropBackups(ctx)
				dropped = true
			}
		}
	}

	err = s.kv.Set(ctx, ProgressKey, string(raw))
	if err != nil && errors.Is(err, apperrors.ErrQuotaExceeded) && !dropped {
		s.dropBackups(ctx)
		err = s.kv.Set(ctx, ProgressKey, string(raw))
	}
	if err != nil {
		s.opts.Metrics.SaveFailure()
		s.opts.Logger.Warn("progress save failed", slog.String("error", err.Error()))
		return fmt.Errorf("%w: %w", apperrors.ErrNotDurable, err)
	}
	return nil
}

func (s *ProgressStore) writeWithRetry(ctx context.Context, key, value string) error {
	err := s.kv.Set(ctx, key, value)
	if err == nil || !errors.Is(err, apperrors.ErrQuotaExceeded) {
		return err
	}
	s.dropBackups(ctx)
	return s.kv.Set(ctx, key, value)
}

func (s *ProgressStore) dropBackups(ctx context.Context) {
	dropped := 0
	for _, prefix := range []string{BackupKey, CorruptKeyPrefix} {
		keys, err := s.kv.Keys(ctx, prefix)
		if err != nil {
			s.opts.Logger.Warn("list backups failed", slog.String("error", err.Error()))
			continue
		}
		for _, key := range keys {
			if err := s.kv.Remove(ctx, key); err != nil {
				s.opts.Logger.Warn("drop backup failed", slog.String("key", key), slog.String("error", err.Error()))
				continue
			}
			dropped++
		}
	}
	s.opts.Logger.Warn("dropped backups to free space", slog.Int("count", dropped))
}

type timedKey struct {
	key string
	at  time.Time
}

// archiveKeys returns archive keys oldest first.
func (s *ProgressStore) archiveKeys(ctx context.Context) ([]timedKey, error) {
	keys, err := s.kv.Keys(ctx, ArchiveKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("list archives: %w", err)
	}
	out := make([]timedKey, 0, len(keys))
	for _, key := range keys {
		at, ok := archiveTime(key)
		if !ok {
			continue
		}
		out = append(out, timedKey{key: key, at: at})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].at.Before(out[j].at) })
	return out, nil
}

func (s *ProgressStore) pruneArchives(ctx context.Context) error {
	if s.opts.ArchiveKeep <= 0 {
		return nil
	}
	keys, err := s.archiveKeys(ctx)
	if err != nil {
		return err
	}
	for len(keys) > s.opts.ArchiveKeep {
		if err := s.kv.Remove(ctx, keys[0].key); err != nil {
			return fmt.Errorf("remove archive %s: %w", keys[0].key, err)
		}
		keys = keys[1:]
	}
	return nil
}

func (s *ProgressStore) now() time.Time {
	return s.opts.Clock.Now().UTC()
}
