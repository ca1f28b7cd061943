package service_test

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"testing"
	"time"

	evaluation "reltone/internal/modules/evaluation/domain"
	progressadapter "reltone/internal/modules/progress/adapter/out"
	"reltone/internal/modules/progress/domain"
	"reltone/internal/modules/progress/service"
	"reltone/internal/platform/clock"
	apperrors "reltone/internal/platform/errors"
	"reltone/internal/platform/logging"
	"reltone/internal/platform/random"
)

type seqIDs struct {
	n int
}

func (s *seqIDs) New() string {
	s.n++
	return fmt.Sprintf("cycle-%d", s.n)
}

type firstPick struct{}

func (firstPick) IntN(int) int { return 0 }

func newStore(kv *progressadapter.MemoryKVStore, keep int) *service.ProgressStore {
	return newStoreWithRandom(kv, keep, firstPick{})
}

func newStoreWithRandom(kv *progressadapter.MemoryKVStore, keep int, src random.Source) *service.ProgressStore {
	return service.NewProgressStore(kv, service.Options{
		VoiceRange:  domain.VoiceMedium,
		ArchiveKeep: keep,
		Clock:       clock.NewStepping(time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC), time.Minute),
		IDs:         &seqIDs{},
		Random:      src,
		Logger:      logging.Discard(),
	})
}

func notes(t *testing.T, base string, cents float64) []evaluation.NoteResult {
	t.Helper()
	baseHz, err := domain.BaseFrequency(base)
	if err != nil {
		t.Fatalf("base frequency: %v", err)
	}
	out := make([]evaluation.NoteResult, 0, evaluation.NotesPerSession)
	for _, degree := range evaluation.ScaleDegrees {
		c := cents
		n, err := evaluation.NewNoteResultFromCents(degree, baseHz, &c)
		if err != nil {
			t.Fatalf("note: %v", err)
		}
		out = append(out, n)
	}
	return out
}

func recordSessions(t *testing.T, store *service.ProgressStore, count int) domain.TrainingProgress {
	t.Helper()
	ctx := context.Background()
	var p domain.TrainingProgress
	for i := 0; i < count; i++ {
		base, err := store.NextBaseNote(ctx)
		if err != nil {
			t.Fatalf("next base note: %v", err)
		}
		p, _, err = store.RecordSession(ctx, base, notes(t, base, 10))
		if err != nil {
			t.Fatalf("record session %d: %v", i+1, err)
		}
	}
	return p
}

func storedProgress(t *testing.T, kv *progressadapter.MemoryKVStore) domain.TrainingProgress {
	t.Helper()
	raw, found, err := kv.Get(context.Background(), service.ProgressKey)
	if err != nil || !found {
		t.Fatalf("stored progress missing: found=%v err=%v", found, err)
	}
	p, _, err := domain.Decode([]byte(raw))
	if err != nil {
		t.Fatalf("decode stored progress: %v", err)
	}
	return p
}

func TestLoadWithoutStoredProgressStartsFreshCycle(t *testing.T) {
	t.Parallel()
	store := newStore(progressadapter.NewMemoryKVStore(0), 0)
	loaded, report, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded != nil || report.Found {
		t.Fatalf("expected nothing stored, got %+v %+v", loaded, report)
	}
	current, err := store.Current(context.Background())
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if current.CycleID != "cycle-1" || current.CurrentSessionID != 1 || current.VoiceRange != domain.VoiceMedium {
		t.Fatalf("unexpected fresh cycle: %+v", current)
	}
}

func TestRecordSessionPersistsAndKeepsBackup(t *testing.T) {
	t.Parallel()
	kv := progressadapter.NewMemoryKVStore(0)
	store := newStore(kv, 0)
	recordSessions(t, store, 2)

	reopened := newStore(kv, 0)
	current, err := reopened.Current(context.Background())
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if len(current.SessionHistory) != 2 || current.CurrentSessionID != 3 {
		t.Fatalf("unexpected reloaded progress: sessions=%d id=%d", len(current.SessionHistory), current.CurrentSessionID)
	}
	if current.CycleID != "cycle-1" {
		t.Fatalf("cycle id changed on reload: %s", current.CycleID)
	}

	raw, found, _ := kv.Get(context.Background(), service.BackupKey)
	if !found {
		t.Fatalf("backup must hold the previous value")
	}
	backup, _, err := domain.Decode([]byte(raw))
	if err != nil {
		t.Fatalf("decode backup: %v", err)
	}
	if len(backup.SessionHistory) != 1 {
		t.Fatalf("backup should hold the one-session state, got %d", len(backup.SessionHistory))
	}
}

func TestNextBaseNoteIsStableUntilRecorded(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newStore(progressadapter.NewMemoryKVStore(0), 0)
	first, err := store.NextBaseNote(ctx)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	again, _ := store.NextBaseNote(ctx)
	if first != again || first != "A3" {
		t.Fatalf("pending pick changed: %s then %s", first, again)
	}
	if _, _, err := store.RecordSession(ctx, first, notes(t, first, 0)); err != nil {
		t.Fatalf("record: %v", err)
	}
	next, _ := store.NextBaseNote(ctx)
	if next != "A#3" {
		t.Fatalf("used note must leave the pool, got %s", next)
	}
}

func TestSaveDropsBackupsWhenQuotaIsHit(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	kv := progressadapter.NewMemoryKVStore(0)
	store := newStore(kv, 0)
	recordSessions(t, store, 1)

	stale := strings.Repeat("x", 50_000)
	if err := kv.Set(ctx, service.CorruptKeyPrefix+"1", stale); err != nil {
		t.Fatalf("seed corrupt snapshot: %v", err)
	}
	current, _, _ := kv.Get(ctx, service.ProgressKey)
	// room for the backup copy but not for the grown progress next to it
	kv.SetQuota(int64(len(stale) + 2*len(current) + 100))

	p := recordSessions(t, store, 1)
	if len(p.SessionHistory) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(p.SessionHistory))
	}
	if _, found, _ := kv.Get(ctx, service.CorruptKeyPrefix+"1"); found {
		t.Fatalf("corrupt snapshot should have been dropped")
	}
	if got := storedProgress(t, kv); len(got.SessionHistory) != 2 {
		t.Fatalf("stored progress not updated: %d sessions", len(got.SessionHistory))
	}
}

func TestSaveFailureKeepsInMemoryProgress(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	kv := progressadapter.NewMemoryKVStore(0)
	store := newStore(kv, 0)
	recordSessions(t, store, 1)
	kv.SetQuota(64)

	base, _ := store.NextBaseNote(ctx)
	p, result, err := store.RecordSession(ctx, base, notes(t, base, 10))
	if !errors.Is(err, apperrors.ErrNotDurable) {
		t.Fatalf("expected not durable error, got %v", err)
	}
	if result.SessionID != 2 || len(p.SessionHistory) != 2 {
		t.Fatalf("result must still be returned: %+v", result)
	}
	current, _ := store.Current(ctx)
	if len(current.SessionHistory) != 2 {
		t.Fatalf("in-memory progress must advance, got %d", len(current.SessionHistory))
	}
	if got := storedProgress(t, kv); len(got.SessionHistory) != 1 {
		t.Fatalf("stored progress must be the last durable state, got %d", len(got.SessionHistory))
	}
}

func TestLoadDiscardsCorruptProgress(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	kv := progressadapter.NewMemoryKVStore(0)
	if err := kv.Set(ctx, service.ProgressKey, `{"version":2,"sessionHistory":`); err != nil {
		t.Fatalf("seed: %v", err)
	}
	store := newStore(kv, 0)
	loaded, report, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded != nil || !report.Found || !report.Discarded {
		t.Fatalf("expected discard, got %+v", report)
	}
	if !strings.HasPrefix(report.CorruptKey, service.CorruptKeyPrefix) {
		t.Fatalf("corrupt snapshot key = %q", report.CorruptKey)
	}
	snapshot, found, _ := kv.Get(ctx, report.CorruptKey)
	if !found || snapshot != `{"version":2,"sessionHistory":` {
		t.Fatalf("snapshot must keep the raw value, got %q", snapshot)
	}
	if _, found, _ := kv.Get(ctx, service.ProgressKey); found {
		t.Fatalf("discarded progress must be removed")
	}
}

func TestLoadDiscardsReloadSignature(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	kv := progressadapter.NewMemoryKVStore(0)
	recordSessions(t, newStore(kv, 0), 3)

	p := storedProgress(t, kv)
	p.CurrentSessionID = 6
	raw, _ := domain.Encode(p)
	if err := kv.Set(ctx, service.ProgressKey, string(raw)); err != nil {
		t.Fatalf("seed: %v", err)
	}

	_, report, err := newStore(kv, 0).Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !report.Discarded || !strings.Contains(report.Reason, string(domain.IssueReloadSignature)) {
		t.Fatalf("expected reload signature discard, got %+v", report)
	}
}

func TestLoadRepairsAndSavesPrematureCompletion(t *testing.T) {
	t.Parallel()
	// 8 is what a completed cycle carries as its session id.
	for _, sessionID := range []int{6, 8} {
		t.Run(fmt.Sprintf("session id %d", sessionID), func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			kv := progressadapter.NewMemoryKVStore(0)
			recordSessions(t, newStore(kv, 0), 5)

			p := storedProgress(t, kv)
			p.IsCompleted = true
			p.CurrentSessionID = sessionID
			raw, _ := domain.Encode(p)
			if err := kv.Set(ctx, service.ProgressKey, string(raw)); err != nil {
				t.Fatalf("seed: %v", err)
			}

			loaded, report, err := newStore(kv, 0).Load(ctx)
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if report.Discarded {
				t.Fatalf("premature completion must be repaired, got discard: %s", report.Reason)
			}
			if loaded == nil || loaded.IsCompleted || loaded.CurrentSessionID != 6 || len(loaded.SessionHistory) != 5 {
				t.Fatalf("unexpected repaired progress: %+v", loaded)
			}
			if len(report.Repaired) != 1 || report.Repaired[0] != domain.IssueCompletionMismatch {
				t.Fatalf("unexpected repair report: %+v", report)
			}
			if storedProgress(t, kv).IsCompleted {
				t.Fatalf("repaired progress must be written back")
			}
		})
	}
}

func TestSaveThenLoadInFreshStoreKeepsProgress(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	kv := progressadapter.NewMemoryKVStore(0)
	store := newStore(kv, 0)
	p := recordSessions(t, store, 3)

	if err := store.Save(ctx, p); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, report, err := newStore(kv, 0).Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded == nil || len(report.Repaired) != 0 || report.Discarded {
		t.Fatalf("saved progress must load untouched: %+v", report)
	}

	loaded.LastUpdatedAt = p.LastUpdatedAt
	want, err := domain.Encode(p)
	if err != nil {
		t.Fatalf("encode saved: %v", err)
	}
	got, err := domain.Encode(*loaded)
	if err != nil {
		t.Fatalf("encode loaded: %v", err)
	}
	if string(got) != string(want) {
		t.Fatalf("loaded progress differs from saved\n got: %s\nwant: %s", got, want)
	}
}

func TestSeededCycleUsesEachBaseNoteOnce(t *testing.T) {
	t.Parallel()
	pool := domain.VoiceMedium.BaseNotes()
	for seed := uint64(1); seed <= 20; seed++ {
		store := newStoreWithRandom(progressadapter.NewMemoryKVStore(0), 0, random.NewLocked(seed))
		done := recordSessions(t, store, evaluation.MaxSessionsPerCycle)

		if !done.IsCompleted || done.OverallGrade == nil {
			t.Fatalf("seed %d: cycle should be complete: %+v", seed, done)
		}
		seen := map[string]bool{}
		for _, s := range done.SessionHistory {
			if seen[s.BaseNote] || !slices.Contains(pool, s.BaseNote) {
				t.Fatalf("seed %d: base note %s repeated or outside the range", seed, s.BaseNote)
			}
			seen[s.BaseNote] = true
		}
		if len(done.UsedBaseNotes) != evaluation.MaxSessionsPerCycle {
			t.Fatalf("seed %d: used notes = %v", seed, done.UsedBaseNotes)
		}

		fresh, started, err := store.StartNewCycleIfCompleted(context.Background())
		if err != nil || !started {
			t.Fatalf("seed %d: rotate: started=%v err=%v", seed, started, err)
		}
		if len(fresh.UsedBaseNotes) != 0 || fresh.CurrentSessionID != 1 {
			t.Fatalf("seed %d: fresh cycle carries state: %+v", seed, fresh)
		}
	}
}

func TestNextBaseNoteSurvivesNewProcess(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	kv := progressadapter.NewMemoryKVStore(0)
	recordSessions(t, newStore(kv, 0), 1)

	first, err := newStoreWithRandom(kv, 0, random.NewLocked(7)).NextBaseNote(ctx)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	for seed := uint64(100); seed < 105; seed++ {
		again, err := newStoreWithRandom(kv, 0, random.NewLocked(seed)).NextBaseNote(ctx)
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		if again != first {
			t.Fatalf("pending pick changed across stores: %s then %s", first, again)
		}
	}

	store := newStore(kv, 0)
	if _, _, err := store.RecordSession(ctx, first, notes(t, first, 0)); err != nil {
		t.Fatalf("record: %v", err)
	}
	next, _ := newStore(kv, 0).NextBaseNote(ctx)
	if next == first {
		t.Fatalf("a recorded pick must not be offered again: %s", next)
	}
}

func TestStalePendingPickIsIgnored(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	kv := progressadapter.NewMemoryKVStore(0)
	recordSessions(t, newStore(kv, 0), 1)
	// drawn for session 1, which is already recorded over A3
	if err := kv.Set(ctx, service.PendingKey, "cycle-1|1|A3"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	next, err := newStore(kv, 0).NextBaseNote(ctx)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if next != "A#3" {
		t.Fatalf("stale pick must be redrawn, got %s", next)
	}
}

func TestLoadMigratesVersionOne(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	kv := progressadapter.NewMemoryKVStore(0)
	v1 := `{"version":1,"createdAt":"2025-11-02T10:00:00Z","lastUpdatedAt":"2025-11-02T10:00:00Z","sessionHistory":[],"currentSessionId":1,"isCompleted":false,"usedBaseNotes":[]}`
	if err := kv.Set(ctx, service.ProgressKey, v1); err != nil {
		t.Fatalf("seed: %v", err)
	}

	loaded, report, err := newStore(kv, 0).Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if report.FromVersion != 1 || loaded == nil {
		t.Fatalf("unexpected report %+v", report)
	}
	if loaded.CycleID != "cycle-1" || loaded.VoiceRange != domain.VoiceMedium {
		t.Fatalf("migration incomplete: %+v", loaded)
	}
	if stored := storedProgress(t, kv); stored.Version != domain.SchemaVersion || stored.CycleID != "cycle-1" {
		t.Fatalf("migrated progress must be written back: %+v", stored)
	}
}

func TestStartNewCycleArchivesCompletedCycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	kv := progressadapter.NewMemoryKVStore(0)
	store := newStore(kv, 1)

	if _, started, err := store.StartNewCycleIfCompleted(ctx); err != nil || started {
		t.Fatalf("incomplete cycle must not roll over: started=%v err=%v", started, err)
	}

	done := recordSessions(t, store, 8)
	if !done.IsCompleted || done.OverallGrade == nil || *done.OverallGrade != evaluation.OverallS {
		t.Fatalf("cycle should be complete with grade S: %+v", done)
	}
	if _, _, err := store.RecordSession(ctx, "C4", notes(t, "C4", 0)); !errors.Is(err, apperrors.ErrCycleCompleted) {
		t.Fatalf("expected cycle completed error, got %v", err)
	}

	fresh, started, err := store.StartNewCycleIfCompleted(ctx)
	if err != nil || !started {
		t.Fatalf("new cycle: started=%v err=%v", started, err)
	}
	if fresh.CycleID != "cycle-2" || len(fresh.SessionHistory) != 0 || fresh.CurrentSessionID != 1 {
		t.Fatalf("unexpected fresh cycle: %+v", fresh)
	}

	recordSessions(t, store, 8)
	if _, _, err := store.StartNewCycleIfCompleted(ctx); err != nil {
		t.Fatalf("second rollover: %v", err)
	}
	archives, err := store.Archives(ctx)
	if err != nil {
		t.Fatalf("archives: %v", err)
	}
	if len(archives) != 1 || archives[0].Progress.CycleID != "cycle-2" {
		t.Fatalf("only the newest archive should be kept, got %d", len(archives))
	}
	if len(archives[0].Progress.SessionHistory) != evaluation.MaxSessionsPerCycle {
		t.Fatalf("archive must hold the full cycle")
	}
}

func TestResetStartsOver(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	kv := progressadapter.NewMemoryKVStore(0)
	store := newStore(kv, 0)
	recordSessions(t, store, 3)

	fresh, err := store.Reset(ctx)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if fresh.CycleID != "cycle-2" || len(fresh.SessionHistory) != 0 {
		t.Fatalf("unexpected reset progress: %+v", fresh)
	}
	if _, found, _ := kv.Get(ctx, service.BackupKey); found {
		t.Fatalf("reset must drop the backup")
	}
	if got := storedProgress(t, kv); got.CycleID != "cycle-2" {
		t.Fatalf("reset progress must be saved, got %s", got.CycleID)
	}
}
