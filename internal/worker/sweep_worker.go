package worker

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/borderland/pin-issuer/internal/repository"
)

// SweepWorker removes expired entries on a cron schedule. Reads never depend
// on it; it only bounds table growth.
type SweepWorker struct {
	entries repository.EntryRepository
	logger  *zap.Logger
	cron    *cron.Cron
	running atomic.Bool
	ctx     context.Context
}

// NewSweepWorker creates a worker for a five-field cron schedule.
func NewSweepWorker(entries repository.EntryRepository, schedule string, logger *zap.Logger) (*SweepWorker, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	w := &SweepWorker{
		entries: entries,
		logger:  logger.With(zap.String("job", "sweep_expired_entries"), zap.String("spec", schedule)),
		cron:    cron.New(cron.WithParser(parser)),
	}
	if _, err := w.cron.AddFunc(schedule, w.tick); err != nil {
		return nil, err
	}
	return w, nil
}

// Start begins the schedule. ctx is handed to every run.
func (w *SweepWorker) Start(ctx context.Context) {
	w.ctx = ctx
	w.cron.Start()
	w.logger.Info("job scheduled")
}

// Stop halts the schedule and waits for a running sweep to finish.
func (w *SweepWorker) Stop() {
	<-w.cron.Stop().Done()
}

// RunOnce sweeps immediately.
func (w *SweepWorker) RunOnce(ctx context.Context) (int64, error) {
	return w.entries.SweepExpired(ctx)
}

func (w *SweepWorker) tick() {
	if !w.running.CompareAndSwap(false, true) {
		w.logger.Info("job skipped: still running")
		return
	}
	defer w.running.Store(false)

	ctx := w.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()
	deleted, err := w.RunOnce(ctx)
	elapsed := time.Since(start)
	if err != nil {
		w.logger.Error("job finished", zap.Error(err), zap.Duration("duration", elapsed))
		return
	}
	w.logger.Info("job finished", zap.Int64("deleted", deleted), zap.Duration("duration", elapsed))
}
