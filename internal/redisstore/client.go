// Package redisstore keeps rate limit windows and submission history in Redis so that several
// server replicas share them.
package redisstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key written by this package
const DefaultPrefix = "portfolio"

// Client wraps a Redis connection.
type Client struct {
	rdb    redis.UniversalClient
	prefix string
}

// Config holds Redis connection configuration.
type Config struct {
	URL      string
	Password string
	Prefix   string
}

// NewClient connects to Redis and verifies the connection.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewFromRedis(rdb, cfg.Prefix), nil
}

// NewFromRedis wraps an existing client. An empty prefix uses DefaultPrefix.
func NewFromRedis(rdb redis.UniversalClient, prefix string) *Client {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Client{rdb: rdb, prefix: prefix}
}

// Ping verifies the connection
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Key helpers
func (c *Client) requestsKey(id string) string {
	return fmt.Sprintf("%s:ratelimit:requests:%s", c.prefix, id)
}

func (c *Client) blockKey(id string) string {
	return fmt.Sprintf("%s:ratelimit:block:%s", c.prefix, id)
}

func (c *Client) rateLimitPattern() string {
	return fmt.Sprintf("%s:ratelimit:*", c.prefix)
}

func (c *Client) historyKey(clientID string) string {
	return fmt.Sprintf("%s:history:%s", c.prefix, clientID)
}
