package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/borderland/pin-issuer/internal/domain"
)

// entryRow mirrors auth_entries in SQLite, where timestamps are unix milliseconds.
type entryRow struct {
	Namespace string `db:"namespace"`
	Key       string `db:"key"`
	Value     []byte `db:"value"`
	ExpiresAt int64  `db:"expires_at"`
	CreatedAt int64  `db:"created_at"`
}

func (r entryRow) toDomain() *domain.Entry {
	return &domain.Entry{
		Namespace: r.Namespace,
		Key:       r.Key,
		Value:     r.Value,
		ExpiresAt: time.UnixMilli(r.ExpiresAt).UTC(),
		CreatedAt: time.UnixMilli(r.CreatedAt).UTC(),
	}
}

type sqliteEntryRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewSQLiteEntryRepository returns a SQLite-backed implementation for single-node deployments.
func NewSQLiteEntryRepository(db *sqlx.DB, now func() time.Time) EntryRepository {
	if now == nil {
		now = time.Now
	}
	return &sqliteEntryRepository{db: db, now: now}
}

func (r *sqliteEntryRepository) Put(ctx context.Context, namespace, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	const query = `
        INSERT INTO auth_entries (namespace, key, value, expires_at, created_at)
        VALUES (?, ?, ?, ?, ?)
        ON CONFLICT (namespace, key) DO UPDATE
        SET value = excluded.value, expires_at = excluded.expires_at, created_at = excluded.created_at`

	now := r.now().UTC()
	if value == nil {
		value = []byte{}
	}
	if _, err := r.db.ExecContext(ctx, query, namespace, key, value, now.Add(ttl).UnixMilli(), now.UnixMilli()); err != nil {
		return unavailable("put entry", err)
	}
	return nil
}

func (r *sqliteEntryRepository) Get(ctx context.Context, namespace, key string) (*domain.Entry, error) {
	const query = `
        SELECT namespace, key, value, expires_at, created_at
        FROM auth_entries
        WHERE namespace = ? AND key = ? AND expires_at > ?`

	var row entryRow
	if err := r.db.GetContext(ctx, &row, query, namespace, key, r.now().UTC().UnixMilli()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, unavailable("get entry", err)
	}
	return row.toDomain(), nil
}

func (r *sqliteEntryRepository) Delete(ctx context.Context, namespace, key string) error {
	const query = `DELETE FROM auth_entries WHERE namespace = ? AND key = ?`
	if _, err := r.db.ExecContext(ctx, query, namespace, key); err != nil {
		return unavailable("delete entry", err)
	}
	return nil
}

func (r *sqliteEntryRepository) SweepExpired(ctx context.Context) (int64, error) {
	const query = `DELETE FROM auth_entries WHERE expires_at <= ?`
	res, err := r.db.ExecContext(ctx, query, r.now().UTC().UnixMilli())
	if err != nil {
		return 0, unavailable("sweep entries", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, unavailable("sweep entries", err)
	}
	return n, nil
}
