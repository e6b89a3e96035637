package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var incrWithTTLScript = redis.NewScript(`
local c = redis.call("INCR", KEYS[1])
if c == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return c
`)

// OrgRateLimiter bounds API calls per organization inside hourly windows.
type OrgRateLimiter struct {
	redis *redis.Client
	limit int64
}

func NewOrgRateLimiter(rdb *redis.Client, limit int64) *OrgRateLimiter {
	return &OrgRateLimiter{redis: rdb, limit: limit}
}

func (r *OrgRateLimiter) Allow(ctx context.Context, orgID string, now time.Time) (allowed bool, used int64, resetAt time.Time, err error) {
	windowStart := now.UTC().Truncate(time.Hour)
	windowEnd := windowStart.Add(time.Hour)
	ttl := int64(windowEnd.Sub(now.UTC()).Seconds())
	if ttl < 1 {
		ttl = 1
	}

	key := fmt.Sprintf("botadmin:ratelimit:%s:%s", orgID, windowStart.Format("2006010215"))
	res, err := incrWithTTLScript.Run(ctx, r.redis, []string{key}, ttl).Int64()
	if err != nil {
		return false, 0, time.Time{}, fmt.Errorf("rate limit script: %w", err)
	}
	return res <= r.limit, res, windowEnd, nil
}

// UpdateDeduplicator drops telegram updates that were already handled by
// another bridge instance.
type UpdateDeduplicator struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewUpdateDeduplicator(rdb *redis.Client, ttl time.Duration) *UpdateDeduplicator {
	return &UpdateDeduplicator{redis: rdb, ttl: ttl}
}

func (d *UpdateDeduplicator) MarkFirst(ctx context.Context, botID string, updateID int64) (bool, error) {
	key := fmt.Sprintf("botadmin:update:%s:%d", botID, updateID)
	ok, err := d.redis.SetNX(ctx, key, "1", d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedupe setnx: %w", err)
	}
	return ok, nil
}
