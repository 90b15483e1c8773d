package redislock

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/ontorelease/internal/platform/envutil"
	"github.com/yungbote/ontorelease/internal/platform/logger"
)

// Setup is what the app wires from the environment.
type Setup struct {
	Locker Locker
	Bus    Bus
	client *goredis.Client
}

func (s *Setup) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

// NewFromEnv connects to REDIS_ADDR when set; otherwise the lock and bus only
// span this process.
func NewFromEnv(log *logger.Logger) (*Setup, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr := envutil.String("REDIS_ADDR", "")
	if addr == "" {
		log.Info("REDIS_ADDR not set; using in-process release lock and event bus")
		return &Setup{Locker: NewLocalLocker(), Bus: NewLocalBus()}, nil
	}
	channel := envutil.String("REDIS_CHANNEL", "release-events")

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    envutil.String("REDIS_PASSWORD", ""),
		DialTimeout: 5 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Setup{
		Locker: NewRedisLocker(log, rdb),
		Bus:    NewRedisBus(log, rdb, channel),
		client: rdb,
	}, nil
}
