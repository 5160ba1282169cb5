package repository

import (
	"context"
	"sync"
	"time"

	"github.com/borderland/pin-issuer/internal/domain"
)

type entryKey struct {
	namespace string
	key       string
}

type memoryEntryRepository struct {
	mu      sync.Mutex
	entries map[entryKey]domain.Entry
	now     func() time.Time
}

// NewMemoryEntryRepository returns a process-local implementation used in tests and development.
func NewMemoryEntryRepository(now func() time.Time) EntryRepository {
	if now == nil {
		now = time.Now
	}
	return &memoryEntryRepository{entries: make(map[entryKey]domain.Entry), now: now}
}

func (r *memoryEntryRepository) Put(_ context.Context, namespace, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	now := r.now().UTC()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[entryKey{namespace, key}] = domain.Entry{
		Namespace: namespace,
		Key:       key,
		Value:     append([]byte(nil), value...),
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	return nil
}

func (r *memoryEntryRepository) Get(_ context.Context, namespace, key string) (*domain.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[entryKey{namespace, key}]
	if !ok || !entry.VisibleAt(r.now()) {
		return nil, ErrEntryNotFound
	}
	entry.Value = append([]byte(nil), entry.Value...)
	return &entry, nil
}

func (r *memoryEntryRepository) Delete(_ context.Context, namespace, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, entryKey{namespace, key})
	return nil
}

func (r *memoryEntryRepository) SweepExpired(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	var removed int64
	for k, entry := range r.entries {
		if !entry.ExpiresAt.After(now) {
			delete(r.entries, k)
			removed++
		}
	}
	return removed, nil
}
