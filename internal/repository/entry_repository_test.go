package repository

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/borderland/pin-issuer/internal/config"
	"github.com/borderland/pin-issuer/internal/domain"
	"github.com/borderland/pin-issuer/internal/persistence"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type repoFactory func(t *testing.T, now func() time.Time) EntryRepository

func entryRepoFactories() map[string]repoFactory {
	return map[string]repoFactory{
		"memory": func(t *testing.T, now func() time.Time) EntryRepository {
			return NewMemoryEntryRepository(now)
		},
		"sqlite": func(t *testing.T, now func() time.Time) EntryRepository {
			db, err := persistence.OpenSQLite(context.Background(),
				config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "entries.db")}, zap.NewNop())
			require.NoError(t, err)
			t.Cleanup(db.Close)
			return NewSQLiteEntryRepository(db.DB, now)
		},
		"postgres": func(t *testing.T, now func() time.Time) EntryRepository {
			pool := openTestPool(t)
			_, err := pool.Exec(context.Background(), `TRUNCATE auth_entries`)
			require.NoError(t, err)
			return NewEntryRepository(pool, now)
		},
	}
}

func openTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set, skipping postgres test")
	}
	ctx := context.Background()
	pg, err := persistence.NewPostgres(ctx, config.PostgresConfig{DSN: dsn}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(pg.Close)
	require.NoError(t, persistence.RunMigrations(ctx, pg.PoolHandle(), zap.NewNop()))
	return pg.PoolHandle()
}

func TestEntryRepositories(t *testing.T) {
	for name, factory := range entryRepoFactories() {
		factory := factory
		t.Run(name, func(t *testing.T) {
			t.Run("put then get within ttl", func(t *testing.T) {
				clock := newFakeClock()
				repo := factory(t, clock.Now)
				ctx := context.Background()

				require.NoError(t, repo.Put(ctx, domain.NamespacePinCode, "alice@example.com", []byte("v1"), 10*time.Minute))
				clock.Advance(9 * time.Minute)

				entry, err := repo.Get(ctx, domain.NamespacePinCode, "alice@example.com")
				require.NoError(t, err)
				require.Equal(t, []byte("v1"), entry.Value)
				require.Equal(t, domain.NamespacePinCode, entry.Namespace)
				require.Equal(t, "alice@example.com", entry.Key)
				require.True(t, entry.ExpiresAt.Equal(entry.CreatedAt.Add(10*time.Minute)))
			})

			t.Run("get after expiry without sweep", func(t *testing.T) {
				clock := newFakeClock()
				repo := factory(t, clock.Now)
				ctx := context.Background()

				require.NoError(t, repo.Put(ctx, domain.NamespacePinCode, "k", []byte("v"), time.Minute))
				clock.Advance(time.Minute)

				_, err := repo.Get(ctx, domain.NamespacePinCode, "k")
				require.ErrorIs(t, err, ErrEntryNotFound)
			})

			t.Run("keys are scoped by namespace", func(t *testing.T) {
				clock := newFakeClock()
				repo := factory(t, clock.Now)
				ctx := context.Background()

				require.NoError(t, repo.Put(ctx, domain.NamespacePinCode, "k", []byte("pin"), time.Minute))
				require.NoError(t, repo.Put(ctx, domain.NamespaceChallenge, "k", []byte("challenge"), time.Minute))

				pin, err := repo.Get(ctx, domain.NamespacePinCode, "k")
				require.NoError(t, err)
				require.Equal(t, []byte("pin"), pin.Value)
				challenge, err := repo.Get(ctx, domain.NamespaceChallenge, "k")
				require.NoError(t, err)
				require.Equal(t, []byte("challenge"), challenge.Value)
			})

			t.Run("upsert overwrites value and resets expiry", func(t *testing.T) {
				clock := newFakeClock()
				repo := factory(t, clock.Now)
				ctx := context.Background()

				require.NoError(t, repo.Put(ctx, domain.NamespacePinCode, "k", []byte("old"), time.Minute))
				clock.Advance(50 * time.Second)
				require.NoError(t, repo.Put(ctx, domain.NamespacePinCode, "k", []byte("new"), time.Minute))
				clock.Advance(50 * time.Second)

				entry, err := repo.Get(ctx, domain.NamespacePinCode, "k")
				require.NoError(t, err)
				require.Equal(t, []byte("new"), entry.Value)
			})

			t.Run("delete is idempotent", func(t *testing.T) {
				clock := newFakeClock()
				repo := factory(t, clock.Now)
				ctx := context.Background()

				require.NoError(t, repo.Delete(ctx, domain.NamespacePinCode, "missing"))
				require.NoError(t, repo.Put(ctx, domain.NamespacePinCode, "k", []byte("v"), time.Minute))
				require.NoError(t, repo.Delete(ctx, domain.NamespacePinCode, "k"))
				require.NoError(t, repo.Delete(ctx, domain.NamespacePinCode, "k"))

				_, err := repo.Get(ctx, domain.NamespacePinCode, "k")
				require.ErrorIs(t, err, ErrEntryNotFound)
			})

			t.Run("sweep removes only expired rows", func(t *testing.T) {
				clock := newFakeClock()
				repo := factory(t, clock.Now)
				ctx := context.Background()

				require.NoError(t, repo.Put(ctx, domain.NamespacePinCode, "short", []byte("v"), time.Minute))
				require.NoError(t, repo.Put(ctx, domain.NamespacePinCode, "refreshed", []byte("v"), time.Minute))
				require.NoError(t, repo.Put(ctx, domain.NamespaceRefreshToken, "long", []byte("v"), time.Hour))
				clock.Advance(30 * time.Second)
				require.NoError(t, repo.Put(ctx, domain.NamespacePinCode, "refreshed", []byte("v2"), time.Minute))
				clock.Advance(40 * time.Second)

				removed, err := repo.SweepExpired(ctx)
				require.NoError(t, err)
				require.Equal(t, int64(1), removed)

				entry, err := repo.Get(ctx, domain.NamespaceRefreshToken, "long")
				require.NoError(t, err)
				require.Equal(t, []byte("v"), entry.Value)
				refreshed, err := repo.Get(ctx, domain.NamespacePinCode, "refreshed")
				require.NoError(t, err)
				require.Equal(t, []byte("v2"), refreshed.Value)

				removed, err = repo.SweepExpired(ctx)
				require.NoError(t, err)
				require.Zero(t, removed)
			})

			t.Run("nil value is stored as empty", func(t *testing.T) {
				repo := factory(t, newFakeClock().Now)
				ctx := context.Background()

				require.NoError(t, repo.Put(ctx, domain.NamespaceChallenge, "k", nil, time.Minute))
				entry, err := repo.Get(ctx, domain.NamespaceChallenge, "k")
				require.NoError(t, err)
				require.Empty(t, entry.Value)
			})

			t.Run("rejects non-positive ttl", func(t *testing.T) {
				repo := factory(t, newFakeClock().Now)
				err := repo.Put(context.Background(), domain.NamespacePinCode, "k", []byte("v"), 0)
				require.ErrorIs(t, err, ErrInvalidTTL)
			})
		})
	}
}

func TestMemoryEntryRepositoryCopiesValues(t *testing.T) {
	repo := NewMemoryEntryRepository(newFakeClock().Now)
	ctx := context.Background()
	value := []byte("abc")
	require.NoError(t, repo.Put(ctx, domain.NamespacePinCode, "k", value, time.Minute))
	value[0] = 'x'

	entry, err := repo.Get(ctx, domain.NamespacePinCode, "k")
	require.NoError(t, err)
	require.Equal(t, []byte("abc"), entry.Value)
	entry.Value[0] = 'y'

	again, err := repo.Get(ctx, domain.NamespacePinCode, "k")
	require.NoError(t, err)
	require.Equal(t, []byte("abc"), again.Value)
}

func TestSQLiteEntryRepositoryUnavailable(t *testing.T) {
	db, err := persistence.OpenSQLite(context.Background(),
		config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "entries.db")}, zap.NewNop())
	require.NoError(t, err)
	repo := NewSQLiteEntryRepository(db.DB, nil)
	db.Close()

	err = repo.Put(context.Background(), domain.NamespacePinCode, "k", []byte("v"), time.Minute)
	require.ErrorIs(t, err, domain.ErrStoreUnavailable)
	_, err = repo.Get(context.Background(), domain.NamespacePinCode, "k")
	require.ErrorIs(t, err, domain.ErrStoreUnavailable)
}
