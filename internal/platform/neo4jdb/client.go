package neo4jdb

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/yungbote/ontorelease/internal/platform/envutil"
	"github.com/yungbote/ontorelease/internal/platform/logger"
)

type Client struct {
	Driver   neo4j.DriverWithContext
	Database string
	log      *logger.Logger
}

// NewFromEnv returns nil, nil when NEO4J_URI is unset so the graph export
// step is simply unavailable.
func NewFromEnv(log *logger.Logger) (*Client, error) {
	if log == nil {
		return nil, fmt.Errorf("neo4jdb: logger required")
	}

	uri := envutil.String("NEO4J_URI", "")
	if uri == "" {
		return nil, nil
	}
	user := envutil.String("NEO4J_USER", "neo4j")
	password := envutil.String("NEO4J_PASSWORD", "")
	database := envutil.String("NEO4J_DATABASE", "")
	timeout := time.Duration(envutil.Int("NEO4J_TIMEOUT_SECONDS", 10)) * time.Second
	maxPool := envutil.Int("NEO4J_MAX_POOL_SIZE", 50)

	auth := neo4j.BasicAuth(user, password, "")
	driver, err := neo4j.NewDriverWithContext(uri, auth, func(cfg *neo4j.Config) {
		cfg.MaxConnectionPoolSize = maxPool
		cfg.SocketConnectTimeout = timeout
	})
	if err != nil {
		return nil, fmt.Errorf("neo4jdb: init driver: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("neo4jdb: verify connectivity: %w", err)
	}

	return &Client{
		Driver:   driver,
		Database: database,
		log:      log.With("client", "Neo4jDB"),
	}, nil
}

// Write runs fn in a managed write transaction on the configured database.
func (c *Client) Write(ctx context.Context, fn func(tx neo4j.ManagedTransaction) error) error {
	if c == nil || c.Driver == nil {
		return fmt.Errorf("neo4jdb: client not initialised")
	}
	session := c.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: c.Database,
	})
	defer session.Close(ctx)
	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return nil, fn(tx)
	})
	return err
}

func (c *Client) Close(ctx context.Context) error {
	if c == nil || c.Driver == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	err := c.Driver.Close(ctx)
	c.Driver = nil
	return err
}
