package main

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/borderland/pin-issuer/internal/api/http"
	"github.com/borderland/pin-issuer/internal/api/http/handlers"
	"github.com/borderland/pin-issuer/internal/auth"
	"github.com/borderland/pin-issuer/internal/config"
	"github.com/borderland/pin-issuer/internal/events"
	"github.com/borderland/pin-issuer/internal/observability"
	"github.com/borderland/pin-issuer/internal/persistence"
	"github.com/borderland/pin-issuer/internal/service"
	"github.com/borderland/pin-issuer/internal/worker"
)

func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logger, nil
}

func runServe(parent context.Context) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(contextOrBackground(parent), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	keys, generated, err := auth.LoadKeySet(cfg.Signing, cfg.App.IsDevelopment())
	if err != nil {
		return fmt.Errorf("load signing keys: %w", err)
	}
	if generated {
		logger.Warn("ISSUER_SIGNING_KEY not set; using an ephemeral key, tokens will not survive a restart",
			zap.String("kid", keys.ActiveID()))
	}
	signer := auth.NewSubjectSigner(keys, cfg.Issuer.URL, cfg.Issuer.AccessTokenTTL, time.Now)

	sender, err := newCodeSender(cfg, logger)
	if err != nil {
		return err
	}

	var throttle auth.Throttle
	if client := st.redis.Handle(); client != nil {
		throttle = auth.NewRedisThrottle(client, cfg.Auth.CodeCooldown)
	} else {
		throttle = auth.NewMemoryThrottle(10000, cfg.Auth.CodeCooldown)
	}

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	worker.StartAuditWorker(service.NewAuditService(dispatcher, logger))

	issuer := service.NewIssuerService(*cfg, service.IssuerDependencies{
		Entries:    st.entries,
		Identities: st.identities,
		Signer:     signer,
		Throttle:   throttle,
		Sender:     sender,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
	})

	sweeper, err := worker.NewSweepWorker(st.entries, cfg.Store.SweepSchedule, logger)
	if err != nil {
		return fmt.Errorf("schedule sweep: %w", err)
	}
	sweeper.Start(ctx)
	defer sweeper.Stop()

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout(), cfg.Auth.CodeCooldown)
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, st.pingers(), metrics),
		Auth:           handlers.NewAuthHandler(issuer),
		User:           handlers.NewUserHandler(issuer, logger),
		Discovery:      handlers.NewDiscoveryHandler(signer),
		AuthMiddleware: auth.NewBearerMiddleware(signer, logger),
		WorkspaceID:    cfg.Issuer.WorkspaceID,
	})

	listenErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening",
			zap.String("addr", cfg.App.Addr()),
			zap.String("issuer", cfg.Issuer.URL),
			zap.String("store", cfg.Store.Driver),
			zap.String("identities", cfg.Identity.Source))
		listenErr <- app.Listen(cfg.App.Addr())
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-listenErr:
		if err != nil {
			return fmt.Errorf("fiber listen: %w", err)
		}
	}
	return app.ShutdownWithTimeout(10 * time.Second)
}

func runMigrate(parent context.Context) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck
	ctx := contextOrBackground(parent)

	switch {
	case cfg.Postgres.DSN != "":
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pg.Close()
		return persistence.RunMigrations(ctx, pg.PoolHandle(), logger)
	case cfg.Store.Driver == config.StoreDriverSQLite:
		db, err := persistence.OpenSQLite(ctx, cfg.SQLite, logger)
		if err != nil {
			return fmt.Errorf("open sqlite: %w", err)
		}
		db.Close()
		return nil
	default:
		return fmt.Errorf("nothing to migrate for store driver %q", cfg.Store.Driver)
	}
}

func runSweep(parent context.Context) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck
	ctx := contextOrBackground(parent)

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	deleted, err := st.entries.SweepExpired(ctx)
	if err != nil {
		return fmt.Errorf("sweep: %w", err)
	}
	logger.Info("sweep finished", zap.Int64("deleted", deleted))
	return nil
}

func runKeygen(out io.Writer) error {
	key, err := auth.GenerateSigningKey()
	if err != nil {
		return err
	}
	pub := key.Public().(ed25519.PublicKey)
	_, err = fmt.Fprintf(out, "ISSUER_SIGNING_KEY=%s\nISSUER_SIGNING_KEY_ID=%s\n# public key for ISSUER_VERIFY_KEYS after rotation:\n# %s=%s\n",
		base64.StdEncoding.EncodeToString(key.Seed()),
		auth.KeyID(pub),
		auth.KeyID(pub),
		base64.StdEncoding.EncodeToString(pub),
	)
	return err
}

func newCodeSender(cfg *config.Config, logger *zap.Logger) (service.CodeSender, error) {
	if cfg.Mail.Host == "" {
		if !cfg.App.IsDevelopment() {
			logger.Warn("SMTP_HOST not set; sign-in codes are written to the log")
		}
		return service.NewLogCodeSender(logger), nil
	}
	sender, err := service.NewSMTPCodeSender(cfg.Mail, "")
	if err != nil {
		return nil, err
	}
	return sender, nil
}

func contextOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
