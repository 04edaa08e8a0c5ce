package recovery

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"math/rand/v2"
	"reflect"
	"time"
)

// Strategy selects how the delay between attempts grows
type Strategy string

// Backoff strategies
const (
	StrategyFixed       Strategy = "fixed"
	StrategyExponential Strategy = "exponential"
	StrategyJittered    Strategy = "jittered"
)

// Config controls retry behavior for one kind of operation
type Config struct {
	MaxRetries     int
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	Strategy       Strategy
	JitterFraction float64
	// AttemptTimeout bounds a single attempt when positive
	AttemptTimeout time.Duration
	// RetryableErrors are always retried while attempts remain, matched with errors.Is or, for
	// pointer-to-struct targets, errors.As.
	RetryableErrors []error
}

// OCRConfig is tuned for text extraction calls
func OCRConfig() Config {
	return Config{
		MaxRetries: 2,
		BaseDelay:  1 * time.Second,
		MaxDelay:   10 * time.Second,
		Strategy:   StrategyExponential,
	}
}

// AIConfig is tuned for LLM analysis calls
func AIConfig() Config {
	return Config{
		MaxRetries:     3,
		BaseDelay:      2 * time.Second,
		MaxDelay:       30 * time.Second,
		Strategy:       StrategyJittered,
		JitterFraction: 0.1,
	}
}

// DBConfig is tuned for persistence calls
func DBConfig() Config {
	return Config{
		MaxRetries: 2,
		BaseDelay:  500 * time.Millisecond,
		MaxDelay:   5 * time.Second,
		Strategy:   StrategyFixed,
	}
}

// RetryEvent describes a failed attempt that will be retried
type RetryEvent struct {
	Operation string
	Attempt   int
	Delay     time.Duration
	Err       error
	Category  Category
}

// Fallback supplies a substitute value once every attempt has failed. Factory, when set, is called
// lazily and only on exhaustion; otherwise Value is used.
type Fallback[T any] struct {
	Value   T
	Factory func() T
}

func (f *Fallback[T]) resolve() T {
	if f.Factory != nil {
		return f.Factory()
	}
	return f.Value
}

// Outcome is the immutable result of Execute
type Outcome[T any] struct {
	Success      bool
	Value        T
	Attempts     int
	TotalDelay   time.Duration
	LastError    error
	Category     Category
	UsedFallback bool
}

// Handler retries operations according to a Config
type Handler struct {
	name   string
	cfg    Config
	logger *slog.Logger

	// OnRetry is invoked synchronously before each backoff wait
	OnRetry func(RetryEvent)

	sleep  func(ctx context.Context, d time.Duration) error
	jitter func() float64
}

// NewHandler creates a Handler. name identifies the operation in logs and retry events.
func NewHandler(name string, cfg Config, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.Strategy == "" {
		cfg.Strategy = StrategyExponential
	}
	return &Handler{
		name:   name,
		cfg:    cfg,
		logger: logger,
		sleep:  sleepContext,
		jitter: rand.Float64,
	}
}

// Name returns the operation name
func (h *Handler) Name() string {
	return h.name
}

// Config returns the handler configuration
func (h *Handler) Config() Config {
	return h.cfg
}

// ShouldRetry reports whether attempt (0-indexed) may be followed by another one after err.
// Unknown errors get a single retry.
func (h *Handler) ShouldRetry(err error, attempt int) bool {
	if err == nil || attempt >= h.cfg.MaxRetries {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if h.allowlisted(err) {
		return true
	}
	switch Classify(err) {
	case CategoryTransient, CategoryRateLimited:
		return true
	case CategoryUnknown:
		return attempt == 0
	default:
		return false
	}
}

func (h *Handler) allowlisted(err error) bool {
	for _, target := range h.cfg.RetryableErrors {
		if target == nil {
			continue
		}
		if errors.Is(err, target) {
			return true
		}
		if isTypedTarget(target) {
			ptr := reflect.New(reflect.TypeOf(target))
			if errors.As(err, ptr.Interface()) {
				return true
			}
		}
	}
	return false
}

// isTypedTarget reports whether target is a pointer to a package-defined error struct, which then
// matches any error of the same type. Sentinels made with errors.New match by identity only.
func isTypedTarget(target error) bool {
	t := reflect.TypeOf(target)
	if t.Kind() != reflect.Pointer || t.Elem().Kind() != reflect.Struct {
		return false
	}
	pkg := t.Elem().PkgPath()
	return pkg != "errors" && pkg != "fmt"
}

// Delay returns the wait after the given 0-indexed attempt, capped at MaxDelay
func (h *Handler) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	base := float64(h.cfg.BaseDelay)
	var d float64
	switch h.cfg.Strategy {
	case StrategyFixed:
		d = base
	case StrategyJittered:
		exp := base * math.Pow(2, float64(attempt))
		d = exp + h.jitter()*h.cfg.JitterFraction*exp
	default:
		d = base * math.Pow(2, float64(attempt))
	}
	if h.cfg.MaxDelay > 0 && d > float64(h.cfg.MaxDelay) {
		return h.cfg.MaxDelay
	}
	if math.IsInf(d, 0) || d > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

// Execute runs op until it succeeds, a non-retryable error occurs, retries are exhausted, or ctx
// is done. On failure a non-nil fb turns the outcome into a successful fallback.
func Execute[T any](ctx context.Context, h *Handler, op func(context.Context) (T, error), fb *Fallback[T]) Outcome[T] {
	var (
		lastErr    error
		totalDelay time.Duration
		attempts   int
	)

	for {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}

		value, err := runAttempt(ctx, h.cfg.AttemptTimeout, op)
		attempts++
		if err == nil {
			return Outcome[T]{
				Success:    true,
				Value:      value,
				Attempts:   attempts,
				TotalDelay: totalDelay,
			}
		}
		lastErr = err

		if !h.ShouldRetry(err, attempts-1) {
			break
		}

		delay := h.Delay(attempts - 1)
		category := Classify(err)
		h.logger.Warn("retrying after failure",
			"operation", h.name,
			"attempt", attempts,
			"delay", delay,
			"category", category,
			"error", err)
		if h.OnRetry != nil {
			h.OnRetry(RetryEvent{Operation: h.name, Attempt: attempts - 1, Delay: delay, Err: err, Category: category})
		}

		if err := h.sleep(ctx, delay); err != nil {
			lastErr = err
			break
		}
		totalDelay += delay
	}

	out := Outcome[T]{
		Attempts:   attempts,
		TotalDelay: totalDelay,
		LastError:  lastErr,
		Category:   Classify(lastErr),
	}
	if fb != nil {
		h.logger.Warn("using fallback after failed attempts",
			"operation", h.name,
			"attempts", attempts,
			"category", out.Category,
			"error", lastErr)
		out.Success = true
		out.UsedFallback = true
		out.Value = fb.resolve()
	}
	return out
}

func runAttempt[T any](ctx context.Context, timeout time.Duration, op func(context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return op(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return op(attemptCtx)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
