package redislock

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLocalLockerExcludesSecondHolder(t *testing.T) {
	t.Parallel()
	l := NewLocalLocker()
	ctx := context.Background()
	first, err := l.Acquire(ctx, "bcio", time.Minute)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if _, err := l.Acquire(ctx, "bcio", time.Minute); !errors.Is(err, ErrLocked) {
		t.Fatalf("second Acquire err = %v", err)
	}
	if _, err := l.Acquire(ctx, "addicto", time.Minute); err != nil {
		t.Fatalf("other key blocked: %v", err)
	}
	_ = first.Release(ctx)
	if _, err := l.Acquire(ctx, "bcio", time.Minute); err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
}

func TestLocalLockerExpires(t *testing.T) {
	t.Parallel()
	l := NewLocalLocker()
	ctx := context.Background()
	if _, err := l.Acquire(ctx, "bcio", time.Millisecond); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, err := l.Acquire(ctx, "bcio", time.Minute); err != nil {
		t.Fatalf("expired lock still held: %v", err)
	}
}

func TestLocalBusDelivers(t *testing.T) {
	t.Parallel()
	b := NewLocalBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	got := make(chan Event, 1)
	if err := b.StartForwarder(ctx, func(ev Event) { got <- ev }); err != nil {
		t.Fatalf("StartForwarder: %v", err)
	}
	_ = b.Publish(ctx, Event{ReleaseID: "r1", State: "running"})
	select {
	case ev := <-got:
		if ev.ReleaseID != "r1" {
			t.Fatalf("unexpected event %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}
