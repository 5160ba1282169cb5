package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/borderland/pin-issuer/internal/domain"
	"github.com/borderland/pin-issuer/internal/repository"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestSweepWorkerRunOnce(t *testing.T) {
	ctx := context.Background()
	clk := &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	entries := repository.NewMemoryEntryRepository(clk.Now)

	require.NoError(t, entries.Put(ctx, domain.NamespacePinCode, "alice@example.com", []byte("a"), time.Minute))
	require.NoError(t, entries.Put(ctx, domain.NamespaceChallenge, "c1", []byte("b"), time.Hour))

	w, err := NewSweepWorker(entries, "*/5 * * * *", zap.NewNop())
	require.NoError(t, err)

	deleted, err := w.RunOnce(ctx)
	require.NoError(t, err)
	require.Zero(t, deleted)

	clk.Advance(2 * time.Minute)
	deleted, err = w.RunOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), deleted)

	_, err = entries.Get(ctx, domain.NamespaceChallenge, "c1")
	require.NoError(t, err)
}

func TestSweepWorkerRejectsBadSchedule(t *testing.T) {
	_, err := NewSweepWorker(repository.NewMemoryEntryRepository(nil), "every five minutes", zap.NewNop())
	require.Error(t, err)

	_, err = NewSweepWorker(repository.NewMemoryEntryRepository(nil), "0 */5 * * * *", zap.NewNop())
	require.Error(t, err)
}

func TestSweepWorkerStartStop(t *testing.T) {
	w, err := NewSweepWorker(repository.NewMemoryEntryRepository(nil), "*/5 * * * *", zap.NewNop())
	require.NoError(t, err)
	w.Start(context.Background())
	w.Stop()
}
