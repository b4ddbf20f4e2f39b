// Package cache keeps the recent blockhash and priority-fee percentile warm so
// that transactions can be built without a network round trip.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rovshanmuradov/pump-sniper/internal/clock"
	"go.uber.org/zap"
)

// ErrStale is returned when the cached value is missing or older than its
// maximum age. Transactions must not be built on it.
var ErrStale = errors.New("cached value is stale")

// Config holds refresh cadence and staleness thresholds.
type Config struct {
	BlockhashInterval time.Duration
	BlockhashMaxAge   time.Duration
	FeeInterval       time.Duration
	FeeMaxAge         time.Duration
	// FeePercentile of recent prioritization fees, 0..100.
	FeePercentile int
	// MinCUPrice and MaxCUPrice clamp the percentile (micro-lamports per CU).
	MinCUPrice uint64
	MaxCUPrice uint64
	// BootstrapTries bounds the initial fetch retries.
	BootstrapTries uint
}

// DefaultConfig returns the standard refresh policy.
func DefaultConfig() Config {
	return Config{
		BlockhashInterval: 400 * time.Millisecond,
		BlockhashMaxAge:   5 * time.Second,
		FeeInterval:       3 * time.Second,
		FeeMaxAge:         15 * time.Second,
		FeePercentile:     75,
		MinCUPrice:        10_000,
		MaxCUPrice:        5_000_000,
		BootstrapTries:    5,
	}
}

// Value is a periodically refreshed value with a fetch timestamp.
type Value[T any] struct {
	name     string
	fetch    func(ctx context.Context) (T, error)
	interval time.Duration
	maxAge   time.Duration
	tries    uint
	clk      clock.Clock
	logger   *zap.Logger

	mu        sync.RWMutex
	value     T
	fetchedAt time.Time
	failures  uint64
}

func newValue[T any](name string, fetch func(ctx context.Context) (T, error), interval, maxAge time.Duration, tries uint, clk clock.Clock, logger *zap.Logger) *Value[T] {
	if tries == 0 {
		tries = 1
	}
	return &Value[T]{
		name:     name,
		fetch:    fetch,
		interval: interval,
		maxAge:   maxAge,
		tries:    tries,
		clk:      clk,
		logger:   logger.Named(name + "-cache"),
	}
}

// Get returns the cached value, or ErrStale if it is missing or too old.
func (v *Value[T]) Get() (T, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	var zero T
	if v.fetchedAt.IsZero() {
		return zero, fmt.Errorf("%s: %w: never fetched", v.name, ErrStale)
	}
	if age := v.clk.Now().Sub(v.fetchedAt); age > v.maxAge {
		return zero, fmt.Errorf("%s: %w: age %s > %s", v.name, ErrStale, age.Round(time.Millisecond), v.maxAge)
	}
	return v.value, nil
}

// Age returns how old the cached value is; -1 if it was never fetched.
func (v *Value[T]) Age() time.Duration {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.fetchedAt.IsZero() {
		return -1
	}
	return v.clk.Now().Sub(v.fetchedAt)
}

// Failures returns the number of failed refreshes so far.
func (v *Value[T]) Failures() uint64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.failures
}

// Set stores a value as freshly fetched.
func (v *Value[T]) Set(val T) {
	v.mu.Lock()
	v.value = val
	v.fetchedAt = v.clk.Now()
	v.mu.Unlock()
}

// Refresh fetches once and stores the result. On error the previous value is
// kept and will eventually age out.
func (v *Value[T]) Refresh(ctx context.Context) error {
	val, err := v.fetch(ctx)
	if err != nil {
		v.mu.Lock()
		v.failures++
		v.mu.Unlock()
		return fmt.Errorf("refresh %s: %w", v.name, err)
	}
	v.Set(val)
	return nil
}

// Bootstrap performs the initial fetch with exponential backoff.
func (v *Value[T]) Bootstrap(ctx context.Context) error {
	notify := func(err error, d time.Duration) {
		v.logger.Warn("Initial fetch failed, retrying",
			zap.Error(err),
			zap.Duration("retry_in", d))
	}
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, v.Refresh(ctx)
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(v.tries),
		backoff.WithNotify(notify))
	return err
}

// Run refreshes the value every interval until ctx is done.
func (v *Value[T]) Run(ctx context.Context) error {
	if err := v.Bootstrap(ctx); err != nil {
		v.logger.Error("Bootstrap failed, continuing with periodic refresh", zap.Error(err))
	}

	ticker := time.NewTicker(v.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := v.Refresh(ctx); err != nil && ctx.Err() == nil {
				v.logger.Debug("Refresh failed", zap.Error(err))
			}
		}
	}
}
