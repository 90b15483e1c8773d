package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/ontorelease/internal/http/handlers"
	httpMW "github.com/yungbote/ontorelease/internal/http/middleware"
	"github.com/yungbote/ontorelease/internal/observability"
	"github.com/yungbote/ontorelease/internal/platform/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	Metrics     *observability.Metrics
	CORSOrigins []string
	// ServiceName enables otelgin spans when non-empty.
	ServiceName string

	HealthHandler   *httpH.HealthHandler
	ReleaseHandler  *httpH.ReleaseHandler
	ScriptHandler   *httpH.ScriptHandler
	TermHandler     *httpH.TermHandler
	ArtifactHandler *httpH.ArtifactHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	api := r.Group("/api")
	{
		// Repositories
		repo := api.Group("/repositories/:repo")
		if cfg.ReleaseHandler != nil {
			repo.POST("/releases", cfg.ReleaseHandler.Start)
			repo.GET("/releases", cfg.ReleaseHandler.List)
		}
		if cfg.ScriptHandler != nil {
			repo.GET("/script", cfg.ScriptHandler.Get)
			repo.PUT("/script", cfg.ScriptHandler.Put)
		}
		if cfg.TermHandler != nil {
			repo.GET("/terms/search", cfg.TermHandler.Search)
		}

		// Releases
		if cfg.ReleaseHandler != nil {
			api.GET("/releases/:id", cfg.ReleaseHandler.Get)
			api.POST("/releases/:id/continue", cfg.ReleaseHandler.Continue)
			api.POST("/releases/:id/rerun", cfg.ReleaseHandler.Rerun)
			api.POST("/releases/:id/cancel", cfg.ReleaseHandler.Cancel)
			api.GET("/releases/:id/artifacts", cfg.ReleaseHandler.Artifacts)
		}

		// Artifacts
		if cfg.ArtifactHandler != nil {
			api.GET("/artifacts/:id/download", cfg.ArtifactHandler.Download)
		}
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"message": "route not found", "code": "not_found"}})
	})
	return r
}
