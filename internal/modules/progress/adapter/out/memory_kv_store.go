package out

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	progressout "reltone/internal/modules/progress/port/out"
	apperrors "reltone/internal/platform/errors"
)

// MemoryKVStore keeps values in a map. QuotaBytes caps the summed value sizes;
// zero means unlimited.
type MemoryKVStore struct {
	mu         sync.Mutex
	values     map[string]string
	quotaBytes int64
}

func NewMemoryKVStore(quotaBytes int64) *MemoryKVStore {
	return &MemoryKVStore{values: map[string]string{}, quotaBytes: quotaBytes}
}

var _ progressout.KVStore = (*MemoryKVStore)(nil)

func (m *MemoryKVStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryKVStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.quotaBytes > 0 {
		used := int64(0)
		for k, v := range m.values {
			if k != key {
				used += int64(len(v))
			}
		}
		if used+int64(len(value)) > m.quotaBytes {
			return fmt.Errorf("%w: %s needs %d bytes, %d of %d used", apperrors.ErrQuotaExceeded, key, len(value), used, m.quotaBytes)
		}
	}
	m.values[key] = value
	return nil
}

func (m *MemoryKVStore) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

func (m *MemoryKVStore) Keys(_ context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k := range m.values {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *MemoryKVStore) SetQuota(quotaBytes int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quotaBytes = quotaBytes
}
