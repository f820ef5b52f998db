// Package pacing spaces probe requests to hit a target per-minute rate.
package pacing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"sonde/internal/core"
)

// Pacer blocks between consecutive probes. Wait returns early with the
// context error when the run is cancelled.
type Pacer interface {
	Wait(ctx context.Context) error
}

// Pacing modes selectable from the CLI.
const (
	ModeFixed  = "fixed"
	ModeSmooth = "smooth"
)

// New builds the pacer for one scenario's request rate.
func New(mode string, requestsPerMinute int, clock core.Clock) (Pacer, error) {
	switch mode {
	case ModeFixed:
		return NewFixedInterval(requestsPerMinute, clock), nil
	case ModeSmooth:
		return NewTokenBucket(requestsPerMinute), nil
	default:
		return nil, fmt.Errorf("unknown pacing mode %q", mode)
	}
}

// FixedInterval sleeps a constant 60s/rate between probes, the classic
// fixed-rate polling loop. Sleeping goes through the clock so tests can run
// scenarios in virtual time.
type FixedInterval struct {
	interval time.Duration
	clock    core.Clock
}

func NewFixedInterval(requestsPerMinute int, clock core.Clock) *FixedInterval {
	if requestsPerMinute < 1 {
		requestsPerMinute = 1
	}
	return &FixedInterval{
		interval: time.Minute / time.Duration(requestsPerMinute),
		clock:    clock,
	}
}

// Interval returns the pause between consecutive probes.
func (f *FixedInterval) Interval() time.Duration { return f.interval }

func (f *FixedInterval) Wait(ctx context.Context) error {
	return f.clock.Sleep(ctx, f.interval)
}

// TokenBucket paces probes with a token bucket, smoothing out the scheduling
// jitter the fixed sleep accumulates on slow responses.
type TokenBucket struct {
	limiter *rate.Limiter
	mu      sync.RWMutex
}

func NewTokenBucket(requestsPerMinute int) *TokenBucket {
	return &TokenBucket{
		limiter: rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), 1),
	}
}

func (t *TokenBucket) Wait(ctx context.Context) error {
	t.mu.RLock()
	limiter := t.limiter
	limit := limiter.Limit()
	t.mu.RUnlock()

	// A zero rate means no pacing at all
	if limit == 0 {
		return nil
	}
	return limiter.Wait(ctx)
}

// SetRate retargets the pacer to a new per-minute rate.
func (t *TokenBucket) SetRate(requestsPerMinute int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.limiter.SetLimit(rate.Limit(float64(requestsPerMinute) / 60.0))
}
