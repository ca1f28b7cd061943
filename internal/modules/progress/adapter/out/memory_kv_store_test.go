package out_test

import (
	"context"
	"errors"
	"testing"

	progressadapter "reltone/internal/modules/progress/adapter/out"
	apperrors "reltone/internal/platform/errors"
)

func TestMemoryKVStoreQuota(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := progressadapter.NewMemoryKVStore(10)

	if err := store.Set(ctx, "a", "12345"); err != nil {
		t.Fatalf("set a: %v", err)
	}
	if err := store.Set(ctx, "b", "123456"); !errors.Is(err, apperrors.ErrQuotaExceeded) {
		t.Fatalf("expected quota error, got %v", err)
	}
	// overwriting a key only counts the new value
	if err := store.Set(ctx, "a", "1234567890"); err != nil {
		t.Fatalf("overwrite a: %v", err)
	}
	if err := store.Remove(ctx, "a"); err != nil {
		t.Fatalf("remove a: %v", err)
	}
	if err := store.Set(ctx, "b", "123456"); err != nil {
		t.Fatalf("set b after remove: %v", err)
	}

	store.SetQuota(0)
	if err := store.Set(ctx, "c", "a value well past the old quota"); err != nil {
		t.Fatalf("unlimited set: %v", err)
	}
}

func TestMemoryKVStoreKeysByPrefix(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := progressadapter.NewMemoryKVStore(0)
	for _, key := range []string{"reltone.archive.2", "reltone.progress", "reltone.archive.1"} {
		if err := store.Set(ctx, key, "{}"); err != nil {
			t.Fatalf("set %s: %v", key, err)
		}
	}
	keys, err := store.Keys(ctx, "reltone.archive.")
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	if len(keys) != 2 || keys[0] != "reltone.archive.1" || keys[1] != "reltone.archive.2" {
		t.Fatalf("unexpected keys: %v", keys)
	}
	if _, found, _ := store.Get(ctx, "missing"); found {
		t.Fatalf("missing key must not be found")
	}
}
