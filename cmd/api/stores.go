package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/borderland/pin-issuer/internal/api/http/handlers"
	"github.com/borderland/pin-issuer/internal/config"
	"github.com/borderland/pin-issuer/internal/persistence"
	"github.com/borderland/pin-issuer/internal/repository"
)

// stores holds every opened backend so they are closed together on shutdown.
type stores struct {
	postgres   *persistence.Postgres
	sqlite     *persistence.SQLite
	redis      *persistence.Redis
	entries    repository.EntryRepository
	identities repository.IdentityRepository
}

func openStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*stores, error) {
	st := &stores{}

	needPostgres := cfg.Store.Driver == config.StoreDriverPostgres || cfg.Identity.Source == config.IdentitySourcePostgres
	if needPostgres {
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		st.postgres = pg
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
				st.Close()
				return nil, fmt.Errorf("run migrations: %w", err)
			}
		}
	}

	switch cfg.Store.Driver {
	case config.StoreDriverPostgres:
		st.entries = repository.NewEntryRepository(st.postgres.PoolHandle(), nil)
	case config.StoreDriverSQLite:
		db, err := persistence.OpenSQLite(ctx, cfg.SQLite, logger)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		st.sqlite = db
		st.entries = repository.NewSQLiteEntryRepository(db.DB, nil)
	case config.StoreDriverMemory:
		logger.Warn("STORE_DRIVER=memory; entries are lost on restart and not shared between instances")
		st.entries = repository.NewMemoryEntryRepository(nil)
	default:
		st.Close()
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	switch cfg.Identity.Source {
	case config.IdentitySourcePostgres:
		st.identities = repository.NewIdentityRepository(st.postgres.PoolHandle())
	default:
		identities, err := repository.ParseAllowList(cfg.Identity.AllowList)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("parse IDENTITY_ALLOWLIST: %w", err)
		}
		logger.Info("static identity allow-list loaded", zap.Int("members", len(identities)))
		st.identities = repository.NewStaticIdentityRepository(identities)
	}

	st.redis = persistence.NewRedis(ctx, cfg.Redis, logger)
	return st, nil
}

// pingers lists the configured backends for readiness checks.
func (s *stores) pingers() map[string]handlers.Pinger {
	deps := map[string]handlers.Pinger{}
	if s.postgres != nil {
		deps["postgres"] = s.postgres
	}
	if s.sqlite != nil {
		deps["sqlite"] = s.sqlite
	}
	if s.redis != nil {
		deps["redis"] = s.redis
	}
	return deps
}

func (s *stores) Close() {
	s.redis.Close()
	s.sqlite.Close()
	s.postgres.Close()
}
