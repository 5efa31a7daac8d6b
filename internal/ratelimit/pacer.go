// Package ratelimit paces consecutive calls to the exchange.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"futuresProxy/internal/ports"
)

// DefaultInterval keeps per-symbol lookups well below the exchange's request weight ceiling.
const DefaultInterval = 150 * time.Millisecond

// Modes accepted by New.
const (
	ModeFixed       = "fixed"
	ModeTokenBucket = "token_bucket"
)

// Fixed sleeps for the same duration before every call.
type Fixed struct {
	delay time.Duration
}

// NewFixed returns a pacer that always waits d.
func NewFixed(d time.Duration) *Fixed {
	return &Fixed{delay: d}
}

// Wait sleeps for the configured delay or until ctx is done.
func (f *Fixed) Wait(ctx context.Context) error {
	if f.delay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(f.delay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TokenBucket admits at most one call per interval. The first call is not
// delayed, every later one is spaced at least interval after the previous.
type TokenBucket struct {
	limiter *rate.Limiter
}

// NewTokenBucket returns a pacer with burst 1 refilled every interval.
func NewTokenBucket(interval time.Duration) *TokenBucket {
	if interval <= 0 {
		return &TokenBucket{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &TokenBucket{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// Wait blocks until a token is available.
func (b *TokenBucket) Wait(ctx context.Context) error {
	return b.limiter.Wait(ctx)
}

// Nop never waits.
type Nop struct{}

func NewNop() Nop { return Nop{} }

func (Nop) Wait(ctx context.Context) error { return ctx.Err() }

// New builds the pacer selected by mode.
func New(mode string, interval time.Duration) (ports.Pacer, error) {
	switch mode {
	case "", ModeFixed:
		return NewFixed(interval), nil
	case ModeTokenBucket:
		return NewTokenBucket(interval), nil
	default:
		return nil, fmt.Errorf("unknown pacing mode %q", mode)
	}
}
