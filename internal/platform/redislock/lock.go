// Package redislock guards "one active release per repository" across
// processes and fans release events out over redis pub/sub. Without
// REDIS_ADDR both fall back to in-process implementations.
package redislock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/ontorelease/internal/platform/logger"
)

var ErrLocked = errors.New("redislock: already held")

// Lock is a held repository lock.
type Lock interface {
	Release(ctx context.Context) error
}

type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lock, error)
}

const keyPrefix = "ontorelease:lock:"

var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

type redisLocker struct {
	log *logger.Logger
	rdb goredis.UniversalClient
}

func NewRedisLocker(log *logger.Logger, rdb goredis.UniversalClient) Locker {
	return &redisLocker{log: log.With("service", "RedisLocker"), rdb: rdb}
}

func (l *redisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Lock, error) {
	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, keyPrefix+key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis setnx: %w", err)
	}
	if !ok {
		return nil, ErrLocked
	}
	return &redisLock{rdb: l.rdb, key: keyPrefix + key, token: token}, nil
}

type redisLock struct {
	rdb   goredis.UniversalClient
	key   string
	token string
}

func (l *redisLock) Release(ctx context.Context) error {
	return releaseScript.Run(ctx, l.rdb, []string{l.key}, l.token).Err()
}

type localLocker struct {
	mu   sync.Mutex
	held map[string]time.Time
}

func NewLocalLocker() Locker {
	return &localLocker{held: map[string]time.Time{}}
}

func (l *localLocker) Acquire(_ context.Context, key string, ttl time.Duration) (Lock, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if exp, ok := l.held[key]; ok && (ttl <= 0 || time.Now().Before(exp)) {
		return nil, ErrLocked
	}
	l.held[key] = time.Now().Add(ttl)
	return &localLock{owner: l, key: key}, nil
}

type localLock struct {
	owner *localLocker
	key   string
	once  sync.Once
}

func (l *localLock) Release(context.Context) error {
	l.once.Do(func() {
		l.owner.mu.Lock()
		delete(l.owner.held, l.key)
		l.owner.mu.Unlock()
	})
	return nil
}
