package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestOrgRateLimiterAllow(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	rl := NewOrgRateLimiter(rdb, 2)
	now := time.Date(2026, 8, 21, 10, 0, 0, 0, time.UTC)

	allowed, used, _, err := rl.Allow(context.Background(), "org-1", now)
	if err != nil {
		t.Fatalf("allow#1: %v", err)
	}
	if !allowed || used != 1 {
		t.Fatalf("expected first call allowed with used=1, got allowed=%v used=%d", allowed, used)
	}

	allowed, used, _, err = rl.Allow(context.Background(), "org-1", now)
	if err != nil {
		t.Fatalf("allow#2: %v", err)
	}
	if !allowed || used != 2 {
		t.Fatalf("expected second call allowed with used=2, got allowed=%v used=%d", allowed, used)
	}

	allowed, used, _, err = rl.Allow(context.Background(), "org-1", now)
	if err != nil {
		t.Fatalf("allow#3: %v", err)
	}
	if allowed || used != 3 {
		t.Fatalf("expected third call denied with used=3, got allowed=%v used=%d", allowed, used)
	}

	// a second org gets its own window
	allowed, used, _, err = rl.Allow(context.Background(), "org-2", now)
	if err != nil {
		t.Fatalf("allow other org: %v", err)
	}
	if !allowed || used != 1 {
		t.Fatalf("expected fresh window for other org, got allowed=%v used=%d", allowed, used)
	}
}

func TestUpdateDeduplicator(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	d := NewUpdateDeduplicator(rdb, time.Minute)
	first, err := d.MarkFirst(context.Background(), "bot-1", 42)
	if err != nil {
		t.Fatalf("mark#1: %v", err)
	}
	if !first {
		t.Fatal("expected first mark to win")
	}
	second, err := d.MarkFirst(context.Background(), "bot-1", 42)
	if err != nil {
		t.Fatalf("mark#2: %v", err)
	}
	if second {
		t.Fatal("expected duplicate update to be dropped")
	}
	other, err := d.MarkFirst(context.Background(), "bot-2", 42)
	if err != nil {
		t.Fatalf("mark other bot: %v", err)
	}
	if !other {
		t.Fatal("expected same update id on another bot to pass")
	}
}
