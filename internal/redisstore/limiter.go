package redisstore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jonathan/portfolio-pipeline/internal/ratelimit"
)

// admitScript runs the block check, purge, burst check, quota check and record atomically.
// Timestamps are unix milliseconds. It returns {allowed, reset_ms, n} where n is the retry delay
// in milliseconds when denied and the remaining quota when allowed.
var admitScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local burst_limit = tonumber(ARGV[3])
local burst_window = tonumber(ARGV[4])
local max_requests = tonumber(ARGV[5])

local blocked = tonumber(redis.call('GET', KEYS[2]) or '0')
if blocked > now then
  return {0, blocked, blocked - now}
end

redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', now - window)

if burst_limit > 0 then
  local recent = redis.call('ZCOUNT', KEYS[1], '(' .. (now - burst_window), '+inf')
  if recent >= burst_limit then
    local until_ms = now + burst_window
    redis.call('SET', KEYS[2], until_ms, 'PX', burst_window)
    return {0, until_ms, burst_window}
  end
end

local count = redis.call('ZCARD', KEYS[1])
if count >= max_requests then
  local reset = now + window
  local oldest = redis.call('ZRANGE', KEYS[1], 0, 0, 'WITHSCORES')
  if #oldest > 0 then
    reset = tonumber(oldest[2]) + window
  end
  return {0, reset, reset - now + 1000}
end

redis.call('ZADD', KEYS[1], now, ARGV[6])
redis.call('PEXPIRE', KEYS[1], window)
local oldest = redis.call('ZRANGE', KEYS[1], 0, 0, 'WITHSCORES')
return {1, tonumber(oldest[2]) + window, max_requests - count - 1}
`)

// LimiterStore implements ratelimit.Store on Redis sorted sets.
type LimiterStore struct {
	c *Client
}

var _ ratelimit.Store = (*LimiterStore)(nil)

// NewLimiterStore creates a Redis-backed rate limit store.
func NewLimiterStore(c *Client) *LimiterStore {
	return &LimiterStore{c: c}
}

// Admit implements ratelimit.Store.
func (s *LimiterStore) Admit(ctx context.Context, id string, now time.Time, p ratelimit.Policy) (ratelimit.Decision, error) {
	nowMs := now.UnixMilli()
	member := strconv.FormatInt(nowMs, 10) + "-" + uuid.NewString()

	res, err := admitScript.Run(ctx, s.c.rdb,
		[]string{s.c.requestsKey(id), s.c.blockKey(id)},
		nowMs, p.Window.Milliseconds(), p.BurstLimit, p.BurstWindow.Milliseconds(), p.MaxRequests, member,
	).Int64Slice()
	if err != nil {
		return ratelimit.Decision{}, fmt.Errorf("rate limit script failed: %w", err)
	}
	return decisionFromScript(res, now)
}

func decisionFromScript(res []int64, now time.Time) (ratelimit.Decision, error) {
	if len(res) != 3 {
		return ratelimit.Decision{}, fmt.Errorf("unexpected rate limit script result: %v", res)
	}
	reset := time.UnixMilli(res[1])
	if res[0] == 1 {
		return ratelimit.Decision{Allowed: true, Remaining: int(res[2]), ResetTime: reset}, nil
	}
	return ratelimit.Decision{
		Allowed:    false,
		ResetTime:  reset,
		RetryAfter: time.Duration(res[2]) * time.Millisecond,
	}, nil
}

// Block implements ratelimit.Store.
func (s *LimiterStore) Block(ctx context.Context, id string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return s.c.rdb.Del(ctx, s.c.blockKey(id)).Err()
	}
	if err := s.c.rdb.Set(ctx, s.c.blockKey(id), until.UnixMilli(), ttl).Err(); err != nil {
		return fmt.Errorf("failed to set block: %w", err)
	}
	return nil
}

// BlockedUntil implements ratelimit.Store.
func (s *LimiterStore) BlockedUntil(ctx context.Context, id string, now time.Time) (time.Time, bool, error) {
	ms, err := s.c.rdb.Get(ctx, s.c.blockKey(id)).Int64()
	if err == redis.Nil {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to get block: %w", err)
	}
	until := time.UnixMilli(ms)
	if !until.After(now) {
		return time.Time{}, false, nil
	}
	return until, true, nil
}

// Reset implements ratelimit.Store.
func (s *LimiterStore) Reset(ctx context.Context, id string) error {
	if err := s.c.rdb.Del(ctx, s.c.requestsKey(id), s.c.blockKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to reset %s: %w", id, err)
	}
	return nil
}

// ClearAll implements ratelimit.Store.
func (s *LimiterStore) ClearAll(ctx context.Context) error {
	iter := s.c.rdb.Scan(ctx, 0, s.c.rateLimitPattern(), 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan rate limit keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := s.c.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to clear rate limit keys: %w", err)
	}
	return nil
}
