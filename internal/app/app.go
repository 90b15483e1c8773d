package app

import (
	"context"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yungbote/ontorelease/internal/data/db"
	"github.com/yungbote/ontorelease/internal/http"
	"github.com/yungbote/ontorelease/internal/observability"
	"github.com/yungbote/ontorelease/internal/platform/logger"
	"github.com/yungbote/ontorelease/internal/platform/redislock"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Router   *gin.Engine
	Cfg      Config
	Repos    Repos
	Clients  Clients
	Services Services

	dbService    *db.Service
	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
}

// NewLogger builds the process logger from LOG_MODE.
func NewLogger() (*logger.Logger, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	return logger.New(logMode)
}

func New(ctx context.Context, log *logger.Logger) (*App, error) {
	log.Info("Loading environment variables...")
	cfg := LoadConfig(log)

	observability.Init(log)
	otelShutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
		Version:     cfg.Version,
	})

	dbs, err := db.Open(cfg.DB, log)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	if err := db.AutoMigrateAll(dbs.DB()); err != nil {
		_ = dbs.Close()
		return nil, fmt.Errorf("automigrate: %w", err)
	}
	theDB := dbs.DB()

	clients, err := wireClients(ctx, log, cfg)
	if err != nil {
		_ = dbs.Close()
		return nil, err
	}

	reposet := wireRepos(theDB, log)
	serviceset, err := wireServices(log, cfg, reposet, clients)
	if err != nil {
		_ = clients.Close(ctx)
		_ = dbs.Close()
		return nil, err
	}
	handlerset := wireHandlers(log, theDB, serviceset)
	router := wireRouter(log, cfg, handlerset)

	return &App{
		Log:          log,
		DB:           theDB,
		Router:       router,
		Cfg:          cfg,
		Repos:        reposet,
		Clients:      clients,
		Services:     serviceset,
		dbService:    dbs,
		otelShutdown: otelShutdown,
	}, nil
}

// Start launches the background loops: the release worker pool, the event
// forwarder and the metrics collectors.
func (a *App) Start(ctx context.Context) {
	if a == nil || a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if a.Cfg.WorkerEnabled && a.Services.Worker != nil {
		a.Services.Worker.Start(ctx)
	} else {
		a.Log.Info("release worker disabled; this process only serves the API")
	}

	if bus := a.Clients.Redis.Bus; bus != nil {
		evLog := a.Log.With("component", "ReleaseEvents")
		if err := bus.StartForwarder(ctx, func(ev redislock.Event) {
			evLog.Debug("release event", "release_id", ev.ReleaseID, "state", ev.State, "step", ev.Step, "message", ev.Message)
		}); err != nil {
			a.Log.Warn("release event forwarder failed to start", "error", err)
		}
	}

	m := observability.Current()
	m.StartPostgresCollector(ctx, a.Log, a.DB)
	m.StartReleaseCollector(ctx, a.Log, a.DB)
}

// Run serves HTTP on the configured port until ctx is done.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Router == nil {
		return fmt.Errorf("app not initialized")
	}
	addr := ":" + a.Cfg.Port
	a.Log.Info("HTTP server listening", "addr", addr)
	return (&http.Server{Engine: a.Router}).Run(ctx, addr)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	ctx := context.Background()
	if err := a.Clients.Close(ctx); err != nil {
		a.Log.Warn("closing clients failed", "error", err)
	}
	if a.otelShutdown != nil {
		if err := a.otelShutdown(ctx); err != nil {
			a.Log.Warn("otel shutdown failed", "error", err)
		}
	}
	if a.dbService != nil {
		if err := a.dbService.Close(); err != nil {
			a.Log.Warn("closing database failed", "error", err)
		}
	}
	a.Log.Sync()
}
