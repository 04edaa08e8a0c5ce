// Package ratelimit provides per-client sliding-window rate limiting with a secondary burst window.
package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/lthibault/jitterbug/v2"
)

// Policy is the set of window parameters a Store enforces
type Policy struct {
	MaxRequests int
	Window      time.Duration
	BurstLimit  int
	BurstWindow time.Duration
}

// Decision contains the outcome of a rate limit check.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetTime  time.Time
	RetryAfter time.Duration
}

// Store holds per-identifier request history. Admit must perform the block check, purge, burst
// check, quota check and record as one atomic step.
type Store interface {
	Admit(ctx context.Context, id string, now time.Time, p Policy) (Decision, error)
	Block(ctx context.Context, id string, until time.Time) error
	BlockedUntil(ctx context.Context, id string, now time.Time) (time.Time, bool, error)
	Reset(ctx context.Context, id string) error
	ClearAll(ctx context.Context) error
}

// sweeper is implemented by stores that keep idle state in process memory
type sweeper interface {
	Sweep(now time.Time, idle time.Duration) int
}

// Limiter admits or denies requests per client identifier.
type Limiter struct {
	config *Config
	store  Store
	logger *slog.Logger
	now    func() time.Time

	cleanupTicker *jitterbug.Ticker
	cleanupStop   chan struct{}
	stopOnce      sync.Once
}

// NewLimiter creates a new rate limiter. A nil config uses DefaultConfig and a nil store keeps
// state in memory.
func NewLimiter(config *Config, store Store, logger *slog.Logger) *Limiter {
	if config == nil {
		config = DefaultConfig()
	}
	if store == nil {
		store = NewMemoryStore()
	}
	if logger == nil {
		logger = slog.Default()
	}

	limiter := &Limiter{
		config: config,
		store:  store,
		logger: logger,
		now:    time.Now,
	}

	// Start cleanup goroutine for in-memory stores
	if _, ok := store.(sweeper); ok && config.Enabled && config.CleanupInterval > 0 {
		limiter.cleanupTicker = jitterbug.New(config.CleanupInterval, &jitterbug.Norm{Stdev: config.CleanupInterval / 20})
		limiter.cleanupStop = make(chan struct{})
		go limiter.cleanup(limiter.cleanupTicker.C, limiter.cleanupStop)
	}

	return limiter
}

// Config returns the limiter configuration
func (l *Limiter) Config() *Config {
	return l.config
}

// Check decides whether a request from id is admitted, recording it when it is. Store failures
// admit the request and are logged.
func (l *Limiter) Check(ctx context.Context, id string) Decision {
	if !l.config.Enabled || l.config.Whitelist[id] {
		return Decision{Allowed: true}
	}

	if l.config.Blacklist[id] {
		return Decision{Allowed: false, Limit: l.config.MaxRequests}
	}

	now := l.now()
	decision, err := l.store.Admit(ctx, id, now, l.config.policy())
	if err != nil {
		l.logger.Warn("rate limit store unavailable, admitting request", "client", id, "error", err)
		return Decision{Allowed: true, Limit: l.config.MaxRequests, Remaining: l.config.MaxRequests}
	}
	decision.Limit = l.config.MaxRequests
	if !decision.Allowed {
		l.logger.Info("rate limit exceeded",
			"client", id,
			"retry_after", decision.RetryAfter,
			"reset", decision.ResetTime.Format(time.RFC3339))
	}
	return decision
}

// Block denies every request from id for duration d.
func (l *Limiter) Block(ctx context.Context, id string, d time.Duration) error {
	return l.store.Block(ctx, id, l.now().Add(d))
}

// IsBlocked reports whether id is under an active temporary block.
func (l *Limiter) IsBlocked(ctx context.Context, id string) (bool, error) {
	_, blocked, err := l.store.BlockedUntil(ctx, id, l.now())
	return blocked, err
}

// Reset clears the history and any block for id.
func (l *Limiter) Reset(ctx context.Context, id string) error {
	return l.store.Reset(ctx, id)
}

// ClearAll clears the history and blocks of every identifier.
func (l *Limiter) ClearAll(ctx context.Context) error {
	return l.store.ClearAll(ctx)
}

// cleanup removes idle identifiers to prevent memory leaks.
func (l *Limiter) cleanup(tick <-chan time.Time, stop <-chan struct{}) {
	s := l.store.(sweeper)
	for {
		select {
		case <-tick:
			if n := s.Sweep(l.now(), l.config.Window); n > 0 {
				l.logger.Debug("swept idle rate limit entries", "count", n)
			}
		case <-stop:
			return
		}
	}
}

// Stop stops the cleanup goroutine.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() {
		if l.cleanupTicker != nil {
			l.cleanupTicker.Stop()
		}
		if l.cleanupStop != nil {
			close(l.cleanupStop)
		}
	})
}
