package redislock

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/ontorelease/internal/platform/logger"
)

// Event announces a release state change.
type Event struct {
	ReleaseID  string    `json:"release_id"`
	Repository string    `json:"repository"`
	State      string    `json:"state"`
	Step       int       `json:"step"`
	StepName   string    `json:"step_name,omitempty"`
	Message    string    `json:"message,omitempty"`
	At         time.Time `json:"at"`
}

type Bus interface {
	Publish(ctx context.Context, ev Event) error
	StartForwarder(ctx context.Context, onEvent func(Event)) error
}

type redisBus struct {
	log     *logger.Logger
	rdb     goredis.UniversalClient
	channel string
}

func NewRedisBus(log *logger.Logger, rdb goredis.UniversalClient, channel string) Bus {
	return &redisBus{log: log.With("service", "RedisReleaseBus"), rdb: rdb, channel: channel}
}

func (b *redisBus) Publish(ctx context.Context, ev Event) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

func (b *redisBus) StartForwarder(ctx context.Context, onEvent func(Event)) error {
	if onEvent == nil {
		return fmt.Errorf("onEvent callback required")
	}
	sub := b.rdb.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}
	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil {
					b.log.Warn("bad release event payload", "error", err)
					continue
				}
				onEvent(ev)
			}
		}
	}()
	return nil
}

type localBus struct {
	mu   sync.RWMutex
	subs []func(Event)
}

func NewLocalBus() Bus { return &localBus{} }

func (b *localBus) Publish(_ context.Context, ev Event) error {
	b.mu.RLock()
	subs := append([]func(Event){}, b.subs...)
	b.mu.RUnlock()
	for _, fn := range subs {
		fn(ev)
	}
	return nil
}

func (b *localBus) StartForwarder(ctx context.Context, onEvent func(Event)) error {
	if onEvent == nil {
		return fmt.Errorf("onEvent callback required")
	}
	b.mu.Lock()
	b.subs = append(b.subs, onEvent)
	idx := len(b.subs) - 1
	b.mu.Unlock()
	go func() {
		<-ctx.Done()
		b.mu.Lock()
		b.subs[idx] = func(Event) {}
		b.mu.Unlock()
	}()
	return nil
}
