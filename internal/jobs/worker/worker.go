package worker

import (
	"context"
	"fmt"
	"os"
	"time"

	repos "github.com/yungbote/ontorelease/internal/data/repos/release"
	"github.com/yungbote/ontorelease/internal/platform/dbctx"
	"github.com/yungbote/ontorelease/internal/platform/envutil"
	"github.com/yungbote/ontorelease/internal/platform/logger"
)

type Config struct {
	Concurrency  int
	PollInterval time.Duration
	// StaleAfter is how long a claimed release may go without a heartbeat
	// before another worker takes it over.
	StaleAfter time.Duration
	// IDPrefix names this process's workers; hostname-pid when empty.
	IDPrefix string
}

func ConfigFromEnv() Config {
	return Config{
		Concurrency:  envutil.Int("WORKER_CONCURRENCY", 2),
		PollInterval: envutil.Duration("WORKER_POLL_INTERVAL", time.Second),
		StaleAfter:   envutil.Duration("WORKER_STALE_AFTER", 2*time.Minute),
		IDPrefix:     envutil.String("WORKER_ID", ""),
	}
}

type Worker struct {
	log      *logger.Logger
	releases repos.ReleaseRepo
	driver   *Driver
	cfg      Config
	prefix   string
}

func NewWorker(baseLog *logger.Logger, releases repos.ReleaseRepo, driver *Driver, cfg Config) *Worker {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 2 * time.Minute
	}
	prefix := cfg.IDPrefix
	if prefix == "" {
		host, _ := os.Hostname()
		if host == "" {
			host = "worker"
		}
		prefix = fmt.Sprintf("%s-%d", host, os.Getpid())
	}
	return &Worker{
		log:      baseLog.With("component", "ReleaseWorker"),
		releases: releases,
		driver:   driver,
		cfg:      cfg,
		prefix:   prefix,
	}
}

func (w *Worker) Start(ctx context.Context) {
	w.log.Info("Starting release worker pool", "concurrency", w.cfg.Concurrency)
	for i := 0; i < w.cfg.Concurrency; i++ {
		workerID := fmt.Sprintf("%s-%d", w.prefix, i+1)
		go w.runLoop(ctx, workerID)
	}
}

func (w *Worker) runLoop(ctx context.Context, workerID string) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("Worker loop stopped", "worker_id", workerID)
			return
		case <-ticker.C:
			w.claimAndRun(ctx, workerID)
		}
	}
}

// claimAndRun takes at most one runnable release and drives it. It reports
// whether a release was claimed.
func (w *Worker) claimAndRun(ctx context.Context, workerID string) bool {
	rel, err := w.releases.ClaimNextRunnable(dbctx.Context{Ctx: ctx}, workerID, w.cfg.StaleAfter)
	if err != nil {
		w.log.Warn("ClaimNextRunnable failed", "worker_id", workerID, "error", err)
		return false
	}
	if rel == nil {
		return false
	}
	w.log.Info("Release claimed", "worker_id", workerID, "release_id", rel.ID, "step", rel.Step)
	if err := w.driver.Execute(ctx, rel, workerID); err != nil {
		w.log.Warn("Release execution bookkeeping failed", "worker_id", workerID, "release_id", rel.ID, "error", err)
	}
	return true
}
