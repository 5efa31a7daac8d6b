// Package symbols keeps the process-wide set of tradable instrument identifiers.
package symbols

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jpillora/backoff"

	"futuresProxy/internal/metrics"
	"futuresProxy/internal/ports"
)

// set is an immutable snapshot; it is never written after construction.
type set map[string]struct{}

// Validator answers IsValid from the latest catalog snapshot. Lookups are
// lock-free; Load and Refresh swap in a new snapshot atomically.
type Validator struct {
	catalog  ports.SymbolCatalog
	logger   ports.Logger
	metrics  *metrics.Metrics
	attempts int
	backoff  *backoff.Backoff

	snapshot atomic.Pointer[set]
	loadOnce sync.Once
	loadErr  error
	refresh  sync.Mutex
}

// Config holds configuration for the validator.
type Config struct {
	Catalog  ports.SymbolCatalog
	Logger   ports.Logger
	Metrics  *metrics.Metrics // optional
	Attempts int              // catalog fetch attempts during Load, default 3
	MinDelay time.Duration    // first retry delay, default 500ms
	MaxDelay time.Duration    // retry delay cap, default 5s
}

// NewValidator returns a validator with an empty set; every lookup fails
// until Load succeeds.
func NewValidator(cfg Config) (*Validator, error) {
	if cfg.Catalog == nil || cfg.Logger == nil {
		return nil, fmt.Errorf("catalog and logger are required for symbol validator")
	}
	attempts := cfg.Attempts
	if attempts <= 0 {
		attempts = 3
	}
	minDelay := cfg.MinDelay
	if minDelay <= 0 {
		minDelay = 500 * time.Millisecond
	}
	maxDelay := cfg.MaxDelay
	if maxDelay < minDelay {
		maxDelay = 10 * minDelay
	}

	v := &Validator{
		catalog:  cfg.Catalog,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		attempts: attempts,
		backoff:  &backoff.Backoff{Min: minDelay, Max: maxDelay, Factor: 2, Jitter: true},
	}
	empty := set{}
	v.snapshot.Store(&empty)
	return v, nil
}

// NewStatic returns a validator preloaded with symbols. Useful for tools and tests.
func NewStatic(symbols ...string) *Validator {
	v := &Validator{}
	s := make(set, len(symbols))
	for _, sym := range symbols {
		s[sym] = struct{}{}
	}
	v.snapshot.Store(&s)
	v.loadOnce.Do(func() {})
	return v
}

// Load populates the set from the catalog, retrying with backoff. It runs at
// most once; later calls return the first call's result. On failure the set
// stays empty and the validator fails closed.
func (v *Validator) Load(ctx context.Context) error {
	v.loadOnce.Do(func() {
		v.loadErr = v.loadWithRetry(ctx)
	})
	return v.loadErr
}

func (v *Validator) loadWithRetry(ctx context.Context) error {
	v.refresh.Lock()
	defer v.refresh.Unlock()
	v.backoff.Reset()

	var lastErr error
retry:
	for attempt := 1; attempt <= v.attempts; attempt++ {
		symbols, err := v.catalog.ListSymbols(ctx)
		if err == nil {
			v.store(ctx, symbols)
			return nil
		}
		lastErr = err
		if attempt == v.attempts {
			break
		}

		delay := v.backoff.Duration()
		v.logger.Warn(ctx, "Symbol catalog fetch failed, retrying", map[string]interface{}{"attempt": attempt, "maxAttempts": v.attempts, "delay": delay.String(), "error": err})
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			lastErr = errors.Join(lastErr, ctx.Err())
			break retry
		}
	}

	v.logger.Error(ctx, lastErr, "Symbol catalog unavailable, every symbol will be treated as invalid", map[string]interface{}{"attempts": v.attempts})
	return fmt.Errorf("loading symbol catalog: %w", lastErr)
}

// Refresh replaces the set with a fresh catalog snapshot. A failed refresh
// keeps the current set.
func (v *Validator) Refresh(ctx context.Context) (int, error) {
	if v.catalog == nil {
		return v.Len(), errors.New("static symbol set cannot be refreshed")
	}
	v.refresh.Lock()
	defer v.refresh.Unlock()

	symbols, err := v.catalog.ListSymbols(ctx)
	if err != nil {
		v.logger.Error(ctx, err, "Symbol catalog refresh failed, keeping previous set", map[string]interface{}{"size": v.Len()})
		return v.Len(), fmt.Errorf("refreshing symbol catalog: %w", err)
	}
	return v.store(ctx, symbols), nil
}

func (v *Validator) store(ctx context.Context, symbols []string) int {
	s := make(set, len(symbols))
	for _, sym := range symbols {
		s[sym] = struct{}{}
	}
	v.snapshot.Store(&s)
	v.metrics.SetValidSymbols(len(s))
	v.logger.Info(ctx, "Symbol set loaded", map[string]interface{}{"size": len(s)})
	return len(s)
}

// IsValid reports whether symbol is in the current set.
func (v *Validator) IsValid(symbol string) bool {
	_, ok := (*v.snapshot.Load())[symbol]
	return ok
}

// Len returns the size of the current set.
func (v *Validator) Len() int {
	return len(*v.snapshot.Load())
}
