package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/borderland/pin-issuer/internal/domain"
)

var (
	// ErrEntryNotFound is returned for absent and for logically expired entries.
	ErrEntryNotFound = errors.New("entry not found")
	// ErrInvalidTTL is returned when an entry is written with a non-positive ttl.
	ErrInvalidTTL = errors.New("entry ttl must be positive")
)

// EntryRepository is a namespaced key/value store with per-entry expiry.
//
// Get is the authority on visibility: an entry whose expires_at is not after
// now is reported as ErrEntryNotFound whether or not a sweep has removed it.
type EntryRepository interface {
	Put(ctx context.Context, namespace, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, namespace, key string) (*domain.Entry, error)
	Delete(ctx context.Context, namespace, key string) error
	SweepExpired(ctx context.Context) (int64, error)
}

type entryRepository struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewEntryRepository returns a Postgres-backed implementation.
// The clock is passed to every statement so expiry never depends on the database clock.
func NewEntryRepository(pool *pgxpool.Pool, now func() time.Time) EntryRepository {
	if now == nil {
		now = time.Now
	}
	return &entryRepository{pool: pool, now: now}
}

func (r *entryRepository) Put(ctx context.Context, namespace, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	const query = `
        INSERT INTO auth_entries (namespace, key, value, expires_at, created_at)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (namespace, key) DO UPDATE
        SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at, created_at = EXCLUDED.created_at`

	now := r.now().UTC()
	if value == nil {
		value = []byte{}
	}
	if _, err := r.pool.Exec(ctx, query, namespace, key, value, now.Add(ttl), now); err != nil {
		return unavailable("put entry", err)
	}
	return nil
}

func (r *entryRepository) Get(ctx context.Context, namespace, key string) (*domain.Entry, error) {
	const query = `
        SELECT namespace, key, value, expires_at, created_at
        FROM auth_entries
        WHERE namespace=$1 AND key=$2 AND expires_at > $3`

	var entry domain.Entry
	if err := r.pool.QueryRow(ctx, query, namespace, key, r.now().UTC()).Scan(
		&entry.Namespace,
		&entry.Key,
		&entry.Value,
		&entry.ExpiresAt,
		&entry.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, unavailable("get entry", err)
	}
	return &entry, nil
}

func (r *entryRepository) Delete(ctx context.Context, namespace, key string) error {
	const query = `DELETE FROM auth_entries WHERE namespace=$1 AND key=$2`
	if _, err := r.pool.Exec(ctx, query, namespace, key); err != nil {
		return unavailable("delete entry", err)
	}
	return nil
}

func (r *entryRepository) SweepExpired(ctx context.Context) (int64, error) {
	const query = `DELETE FROM auth_entries WHERE expires_at <= $1`
	cmd, err := r.pool.Exec(ctx, query, r.now().UTC())
	if err != nil {
		return 0, unavailable("sweep entries", err)
	}
	return cmd.RowsAffected(), nil
}

// unavailable tags a backing store failure so callers can branch on domain.ErrStoreUnavailable.
func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStoreUnavailable, err)
}
