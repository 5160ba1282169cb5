package persistence

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/borderland/pin-issuer/internal/config"
)

func TestOpenSQLiteRequiresPath(t *testing.T) {
	_, err := OpenSQLite(context.Background(), config.SQLiteConfig{Path: " "}, zap.NewNop())
	require.Error(t, err)
}

func TestOpenSQLiteAppliesSchema(t *testing.T) {
	ctx := context.Background()
	db, err := OpenSQLite(ctx, config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "entries.db")}, zap.NewNop())
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Ping(ctx))
	var count int
	require.NoError(t, db.DB.GetContext(ctx, &count, `SELECT COUNT(*) FROM auth_entries`))
	require.Zero(t, count)
}

func TestMigrationFilesSorted(t *testing.T) {
	files, err := migrationFiles()
	require.NoError(t, err)
	require.Equal(t, []string{"0001_auth_entries.sql", "0002_identities.sql"}, files)
}

func TestNilHandlesAreSafe(t *testing.T) {
	var pg *Postgres
	require.Nil(t, pg.PoolHandle())
	require.Error(t, pg.Ping(context.Background()))
	pg.Close()

	var r *Redis
	require.Nil(t, r.Handle())
	require.Error(t, r.Ping(context.Background()))
	r.Close()

	var s *SQLite
	require.Error(t, s.Ping(context.Background()))
	s.Close()
}
