package throttle

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisPrecheck is a distributed, best-effort fast-fail layer in front of
// the authoritative Postgres per-minute/per-day accounting. It never
// becomes the source of truth (no process may cache counters —
// Redis here is out-of-process and advisory, not authoritative); on any
// Redis error it fails open so a Redis outage never blocks dispatch.
type RedisPrecheck struct {
	client  *redis.Client
	script  *redis.Script
	buckets map[int64]bucketConfig
	mu      sync.RWMutex
}

type bucketConfig struct {
	capacity   int64
	refillRate float64
}

// NewRedisPrecheck constructs a precheck layer. A nil client disables the
// precheck; Allow then always returns true.
func NewRedisPrecheck(client *redis.Client) *RedisPrecheck {
	return &RedisPrecheck{
		client:  client,
		script:  redis.NewScript(luaTokenBucketScript),
		buckets: map[int64]bucketConfig{},
	}
}

const luaTokenBucketScript = `
local key = KEYS[1]
local capacity = tonumber(ARGV[1])
local refill_rate = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local cost = tonumber(ARGV[4])

local tokens = capacity
local last_refill = now

local data = redis.call("HMGET", key, "tokens", "last_refill")
if data[1] ~= false and data[1] ~= nil then
  tokens = tonumber(data[1])
end
if data[2] ~= false and data[2] ~= nil then
  last_refill = tonumber(data[2])
end
if last_refill == nil then
  last_refill = now
end

local delta = now - last_refill
if delta < 0 then
  delta = 0
end

tokens = math.min(capacity, tokens + delta * refill_rate)
last_refill = now

local allowed = 0
local retry_after = 0

if tokens >= cost then
  tokens = tokens - cost
  allowed = 1
else
  local shortage = cost - tokens
  if refill_rate > 0 then
    retry_after = shortage / refill_rate
  end
end

redis.call("HMSET", key, "tokens", tokens, "last_refill", last_refill)

return { allowed, tokens, last_refill, retry_after }
`

// SetBucket configures (or updates) the token bucket for a connector from
// its effective profile's requestsPerMinute. Safe for concurrent use.
func (p *RedisPrecheck) SetBucket(connectorID int64, requestsPerMinute int) {
	if p == nil || requestsPerMinute <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.buckets[connectorID] = bucketConfig{
		capacity:   int64(requestsPerMinute),
		refillRate: float64(requestsPerMinute) / 60.0,
	}
}

// Allow runs the token-bucket precheck for connectorID. It always returns
// true on a disabled precheck, an unconfigured bucket, or a Redis error.
func (p *RedisPrecheck) Allow(ctx context.Context, connectorID int64) (bool, time.Duration) {
	if p == nil || p.client == nil {
		return true, 0
	}
	p.mu.RLock()
	cfg, ok := p.buckets[connectorID]
	p.mu.RUnlock()
	if !ok || cfg.capacity <= 0 || cfg.refillRate <= 0 {
		return true, 0
	}

	now := time.Now()
	nowSec := float64(now.UnixNano()) / 1e9
	key := fmt.Sprintf("throttle-precheck:%d", connectorID)

	res, err := p.script.Run(ctx, p.client, []string{key}, cfg.capacity, cfg.refillRate, nowSec, 1).Result()
	if err != nil {
		slog.Warn("throttle precheck script error, failing open", slog.Int64("connector_id", connectorID), slog.Any("error", err))
		return true, 0
	}

	vals, ok := res.([]interface{})
	if !ok || len(vals) < 4 {
		slog.Warn("throttle precheck unexpected script result, failing open", slog.Int64("connector_id", connectorID))
		return true, 0
	}

	allowed := toInt64(vals[0]) == 1
	retryAfterSec := toFloat64(vals[3])
	return allowed, time.Duration(retryAfterSec * float64(time.Second))
}

func toInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	default:
		return 0
	}
}

func toFloat64(v interface{}) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int64:
		return float64(t)
	case int:
		return float64(t)
	default:
		return math.NaN()
	}
}
