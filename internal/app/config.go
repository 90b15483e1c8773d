package app

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/yungbote/ontorelease/internal/data/db"
	"github.com/yungbote/ontorelease/internal/domain/term"
	"github.com/yungbote/ontorelease/internal/jobs/worker"
	"github.com/yungbote/ontorelease/internal/ontology"
	"github.com/yungbote/ontorelease/internal/platform/envutil"
	"github.com/yungbote/ontorelease/internal/platform/gcp"
	"github.com/yungbote/ontorelease/internal/platform/githost"
	"github.com/yungbote/ontorelease/internal/platform/logger"
	"github.com/yungbote/ontorelease/internal/platform/robot"
)

type Config struct {
	Port        string
	ServiceName string
	Environment string
	Version     string
	CORSOrigins []string

	// WorkDir holds one working directory per release.
	WorkDir        string
	HeartbeatEvery time.Duration
	WorkerEnabled  bool
	Worker         worker.Config

	DB      db.Config
	Storage gcp.StorageConfig
	// StorageErr is kept so a bad bucket setting only disables publishing.
	StorageErr error

	GitHub       githost.Config
	DefaultOwner string
	Robot        robot.Config
	Policy       ontology.Policy
}

func LoadConfig(log *logger.Logger) Config {
	storage, storageErr := gcp.StorageConfigFromEnv()
	if storageErr != nil {
		log.Warn("object storage config rejected; bucket publishing disabled", "error", storageErr)
	}
	cfg := Config{
		Port:        envutil.String("PORT", "8080"),
		ServiceName: envutil.String("OTEL_SERVICE_NAME", "ontorelease"),
		Environment: envutil.String("APP_ENV", "development"),
		Version:     envutil.String("APP_VERSION", "dev"),
		CORSOrigins: envutil.List("CORS_ALLOWED_ORIGINS", nil),

		WorkDir:        envutil.String("WORK_DIR", filepath.Join(os.TempDir(), "ontorelease")),
		HeartbeatEvery: envutil.Duration("WORKER_HEARTBEAT_INTERVAL", 20*time.Second),
		WorkerEnabled:  envutil.Bool("WORKER_ENABLED", true),
		Worker:         worker.ConfigFromEnv(),

		DB:         db.ConfigFromEnv(),
		Storage:    storage,
		StorageErr: storageErr,

		GitHub: githost.Config{
			BaseURL: envutil.String("GITHUB_API_URL", "https://api.github.com"),
			Token:   envutil.String("GITHUB_TOKEN", ""),
			Timeout: envutil.Duration("GITHUB_TIMEOUT", 30*time.Second),
		},
		DefaultOwner: envutil.String("GITHUB_OWNER", ""),
		Robot: robot.Config{
			Bin:      envutil.String("ROBOT_BIN", ""),
			JavaArgs: envutil.String("ROBOT_JAVA_ARGS", ""),
		},
		Policy: PolicyFromEnv(),
	}
	log.Info("configuration loaded",
		"port", cfg.Port,
		"db_driver", cfg.DB.Driver,
		"work_dir", cfg.WorkDir,
		"worker_enabled", cfg.WorkerEnabled,
		"github", cfg.GitHub.Token != "",
		"bucket", cfg.Storage.Bucket,
	)
	return cfg
}

// PolicyFromEnv reads CURATION_DISCARD and CURATION_IGNORE. Unset lists keep
// the defaults; an explicitly empty list clears them.
func PolicyFromEnv() ontology.Policy {
	p := ontology.DefaultPolicy()
	if _, ok := os.LookupEnv("CURATION_DISCARD"); ok {
		p.Discard = statusSet(envutil.List("CURATION_DISCARD", nil))
	}
	if _, ok := os.LookupEnv("CURATION_IGNORE"); ok {
		p.Ignore = statusSet(envutil.List("CURATION_IGNORE", nil))
	}
	return p
}

func statusSet(raw []string) term.StatusSet {
	var statuses []term.CurationStatus
	for _, r := range raw {
		if r = strings.TrimSpace(r); r != "" {
			statuses = append(statuses, term.ParseCurationStatus(r))
		}
	}
	return term.NewStatusSet(statuses...)
}
