package redisstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jonathan/portfolio-pipeline/internal/sanitize"
)

// seenScript purges fingerprints older than the window, then reports whether the fingerprint is
// still present, recording it when it is not.
var seenScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', now - window)
if redis.call('ZSCORE', KEYS[1], ARGV[3]) then
  return 1
end
redis.call('ZADD', KEYS[1], now, ARGV[3])
redis.call('PEXPIRE', KEYS[1], window)
return 0
`)

// History implements sanitize.HistoryStore with one sorted set per client.
type History struct {
	c *Client
}

var _ sanitize.HistoryStore = (*History)(nil)

// NewHistory creates a Redis-backed submission history.
func NewHistory(c *Client) *History {
	return &History{c: c}
}

// SeenOrRecord implements sanitize.HistoryStore.
func (h *History) SeenOrRecord(ctx context.Context, clientID, fingerprint string, now time.Time, window time.Duration) (bool, error) {
	seen, err := seenScript.Run(ctx, h.c.rdb,
		[]string{h.c.historyKey(clientID)},
		now.UnixMilli(), window.Milliseconds(), fingerprint,
	).Int()
	if err != nil {
		return false, fmt.Errorf("submission history script failed: %w", err)
	}
	return seen == 1, nil
}

// Len returns the number of fingerprints held for clientID, including expired ones not yet purged
func (h *History) Len(ctx context.Context, clientID string) (int, error) {
	n, err := h.c.rdb.ZCard(ctx, h.c.historyKey(clientID)).Result()
	if err != nil {
		return 0, fmt.Errorf("zcard failed: %w", err)
	}
	return int(n), nil
}
