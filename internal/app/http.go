package app

import (
	"context"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yungbote/ontorelease/internal/http"
	httpH "github.com/yungbote/ontorelease/internal/http/handlers"
	"github.com/yungbote/ontorelease/internal/observability"
	"github.com/yungbote/ontorelease/internal/platform/logger"
)

type Handlers struct {
	Health   *httpH.HealthHandler
	Release  *httpH.ReleaseHandler
	Script   *httpH.ScriptHandler
	Term     *httpH.TermHandler
	Artifact *httpH.ArtifactHandler
}

func wireHandlers(log *logger.Logger, db *gorm.DB, services Services) Handlers {
	log.Info("Wiring handlers...")
	checks := map[string]httpH.Pinger{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	return Handlers{
		Health:   httpH.NewHealthHandler(checks),
		Release:  httpH.NewReleaseHandler(services.Release, services.Artifact),
		Script:   httpH.NewScriptHandler(services.Script),
		Term:     httpH.NewTermHandler(services.Terms),
		Artifact: httpH.NewArtifactHandler(services.Artifact),
	}
}

func wireRouter(log *logger.Logger, cfg Config, handlers Handlers) *gin.Engine {
	serviceName := ""
	if observability.TracingEnabled() {
		serviceName = cfg.ServiceName
	}
	return http.NewRouter(http.RouterConfig{
		Log:             log,
		Metrics:         observability.Current(),
		CORSOrigins:     cfg.CORSOrigins,
		ServiceName:     serviceName,
		HealthHandler:   handlers.Health,
		ReleaseHandler:  handlers.Release,
		ScriptHandler:   handlers.Script,
		TermHandler:     handlers.Term,
		ArtifactHandler: handlers.Artifact,
	})
}
