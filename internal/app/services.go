package app

import (
	"fmt"

	"github.com/yungbote/ontorelease/internal/jobs/registry"
	"github.com/yungbote/ontorelease/internal/jobs/worker"
	"github.com/yungbote/ontorelease/internal/platform/logger"
	"github.com/yungbote/ontorelease/internal/services"
)

type Services struct {
	Registry *registry.Registry
	Driver   *worker.Driver
	Worker   *worker.Worker

	Release  services.ReleaseService
	Script   services.ScriptService
	Artifact services.ArtifactService
	Terms    services.TermSearchService
}

func wireServices(log *logger.Logger, cfg Config, reposet Repos, clients Clients) (Services, error) {
	log.Info("Wiring services...")

	reg, err := registry.Default()
	if err != nil {
		return Services{}, fmt.Errorf("init step registry: %w", err)
	}
	for _, p := range reg.Plugins() {
		log.Info("release plugin registered", "plugin", p.ID, "requires", p.Requires)
	}

	driver := worker.NewDriver(log, reposet.Release, reposet.Artifact, reg, clients.Runtime(cfg), clients.Redis.Bus, worker.DriverConfig{
		WorkRoot:       cfg.WorkDir,
		HeartbeatEvery: cfg.HeartbeatEvery,
	})
	scripts := services.NewScriptService(log, reposet.Script, reg, cfg.DefaultOwner)

	return Services{
		Registry: reg,
		Driver:   driver,
		Worker:   worker.NewWorker(log, reposet.Release, driver, cfg.Worker),
		Release:  services.NewReleaseService(log, reposet.Release, scripts, clients.Redis.Locker, clients.Redis.Bus, driver),
		Script:   scripts,
		Artifact: services.NewArtifactService(log, reposet.Release, reposet.Artifact),
		Terms:    services.NewTermSearchService(clients.Index),
	}, nil
}
