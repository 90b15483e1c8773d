package app

import (
	"context"
	"errors"
	"fmt"
	"os/exec"

	"github.com/yungbote/ontorelease/internal/jobs/runtime"
	"github.com/yungbote/ontorelease/internal/platform/gcp"
	"github.com/yungbote/ontorelease/internal/platform/githost"
	"github.com/yungbote/ontorelease/internal/platform/logger"
	"github.com/yungbote/ontorelease/internal/platform/neo4jdb"
	"github.com/yungbote/ontorelease/internal/platform/redislock"
	"github.com/yungbote/ontorelease/internal/platform/robot"
	"github.com/yungbote/ontorelease/internal/platform/searchindex"
)

type Clients struct {
	Redis   *redislock.Setup
	GitHost githost.Client
	Robot   *robot.Tool
	Graph   *neo4jdb.Client
	Bucket  gcp.ArtifactBucket
	Index   *searchindex.Index
}

// Runtime exposes the clients to release steps. A missing client leaves the
// matching capability absent.
func (c Clients) Runtime(cfg Config) *runtime.Services {
	return &runtime.Services{
		GitHost: c.GitHost,
		Robot:   c.Robot,
		Graph:   c.Graph,
		Bucket:  c.Bucket,
		Index:   c.Index,
		Policy:  cfg.Policy,
	}
}

func (c Clients) Close(ctx context.Context) error {
	var errs []error
	if c.Graph != nil {
		errs = append(errs, c.Graph.Close(ctx))
	}
	if c.Redis != nil {
		errs = append(errs, c.Redis.Close())
	}
	return errors.Join(errs...)
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")

	// Redis
	rs, err := redislock.NewFromEnv(log)
	if err != nil {
		return Clients{}, fmt.Errorf("init redis: %w", err)
	}
	out := Clients{Redis: rs, Index: searchindex.New()}

	// GitHub
	if cfg.GitHub.Token != "" {
		out.GitHost = githost.New(cfg.GitHub, log)
	} else {
		log.Warn("GITHUB_TOKEN not set; source-control steps are unavailable")
	}

	// ROBOT
	bin := cfg.Robot.Bin
	if bin == "" {
		bin = "robot"
	}
	if _, err := exec.LookPath(bin); err == nil {
		out.Robot = robot.New(cfg.Robot, log)
	} else {
		log.Warn("ROBOT not found; build steps are unavailable", "bin", bin)
	}

	// Neo4j
	graph, err := neo4jdb.NewFromEnv(log)
	if err != nil {
		_ = out.Close(ctx)
		return Clients{}, fmt.Errorf("init neo4j: %w", err)
	}
	out.Graph = graph

	// Gcs
	if cfg.StorageErr == nil {
		bucket, err := gcp.NewArtifactBucket(ctx, log, cfg.Storage)
		if err != nil {
			_ = out.Close(ctx)
			return Clients{}, fmt.Errorf("init bucket client: %w", err)
		}
		out.Bucket = bucket
	}
	return out, nil
}
