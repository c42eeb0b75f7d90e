package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/Wikid82/bookingshield/internal/models"
)

// BlockStatus is the answer of a BlockRegistry lookup.
type BlockStatus struct {
	Blocked   bool
	Permanent bool
	Until     *time.Time // nil when permanent
	Reason    string
}

// BlockRegistry reports IP-wide blocks.
type BlockRegistry interface {
	IsBlocked(ctx context.Context, identifier string) (BlockStatus, error)
}

// AuditLog receives security events. Record must not fail the caller; write
// errors are the implementation's to report.
type AuditLog interface {
	Record(ctx context.Context, event models.SecurityEvent)
}

// Limiter composes the block registry, counter store, escalation policy and
// audit log into CheckLimit.
type Limiter struct {
	counters CounterStore
	blocks   BlockRegistry
	audit    AuditLog
	now      func() time.Time
}

// Option customises a Limiter.
type Option func(*Limiter)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// NewLimiter wires a Limiter.
func NewLimiter(counters CounterStore, blocks BlockRegistry, audit AuditLog, opts ...Option) *Limiter {
	l := &Limiter{
		counters: counters,
		blocks:   blocks,
		audit:    audit,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// CheckLimit decides whether a request from identifier against cfg.Endpoint
// (narrowed by the optional secondaryKey) may proceed. Blocked and exceeded
// are ordinary results; the returned error is reserved for store failures.
func (l *Limiter) CheckLimit(ctx context.Context, identifier string, cfg Config, secondaryKey string) (Result, error) {
	now := l.now().UTC()
	key := NewKey(identifier, cfg.Endpoint, secondaryKey)

	status, err := l.blocks.IsBlocked(ctx, key.Identifier)
	if err != nil {
		return Result{}, fmt.Errorf("check block registry: %w", err)
	}
	if status.Blocked {
		l.record(ctx, blockedAttemptEvent(key, cfg, status))
		return registryBlockedResult(cfg, status, now), nil
	}

	counter, err := l.counters.IncrementAndCheck(ctx, key, cfg.Window(), now)
	if err != nil {
		return Result{}, fmt.Errorf("increment counter: %w", err)
	}
	if counter.Blocked {
		return counterBlockedResult(cfg, counter, now), nil
	}

	d := Decide(counter, cfg, now)
	if d.Allowed {
		return Result{
			Allowed:         true,
			Limit:           cfg.MaxRequests,
			Remaining:       d.Remaining,
			ResetAt:         d.ResetAt,
			RequiresCaptcha: d.RequiresCaptcha,
			TotalBlocks:     d.TotalBlocks,
		}, nil
	}

	reason := fmt.Sprintf("exceeded %d requests in %ds", cfg.MaxRequests, cfg.WindowSeconds)
	applied, err := l.counters.ApplyBlock(ctx, key, counter.TotalBlocks, *d.BlockUntil, reason)
	if err != nil {
		return Result{}, fmt.Errorf("apply block: %w", err)
	}
	if !applied {
		current, err := l.counters.Get(ctx, key)
		if err != nil {
			return Result{}, fmt.Errorf("reload counter: %w", err)
		}
		if current != nil && blockActive(current.BlockedUntil, now) {
			return counterBlockedResult(cfg, *current, now), nil
		}
	}

	l.record(ctx, exceededEvent(key, cfg, counter, d))
	retry := secondsUntil(*d.BlockUntil, now)
	return Result{
		Allowed:         false,
		Limit:           cfg.MaxRequests,
		Remaining:       0,
		ResetAt:         *d.BlockUntil,
		RetryAfter:      &retry,
		RequiresCaptcha: d.RequiresCaptcha,
		TotalBlocks:     d.TotalBlocks,
		Reason:          ReasonRateLimited,
	}, nil
}

func (l *Limiter) record(ctx context.Context, ev models.SecurityEvent) {
	if l.audit == nil {
		return
	}
	l.audit.Record(ctx, ev)
}

func registryBlockedResult(cfg Config, status BlockStatus, now time.Time) Result {
	res := Result{
		Allowed:   false,
		Limit:     cfg.MaxRequests,
		Remaining: 0,
		Reason:    ReasonIPBlocked,
	}
	if status.Permanent || status.Until == nil {
		retry := PermanentRetryAfter
		res.RetryAfter = &retry
		res.ResetAt = PermanentResetAt
		res.Permanent = true
		return res
	}
	retry := secondsUntil(*status.Until, now)
	res.RetryAfter = &retry
	res.ResetAt = status.Until.UTC()
	return res
}

func counterBlockedResult(cfg Config, c Counter, now time.Time) Result {
	until := now
	if c.BlockedUntil != nil {
		until = *c.BlockedUntil
	}
	retry := secondsUntil(until, now)
	return Result{
		Allowed:         false,
		Limit:           cfg.MaxRequests,
		Remaining:       0,
		ResetAt:         until,
		RetryAfter:      &retry,
		RequiresCaptcha: RequiresCaptcha(cfg, c.TotalBlocks),
		TotalBlocks:     c.TotalBlocks,
		Reason:          ReasonBlocked,
	}
}

// secondsUntil rounds up so clients never retry early.
func secondsUntil(t, now time.Time) int {
	d := t.Sub(now)
	if d <= 0 {
		return 0
	}
	secs := int(d / time.Second)
	if d%time.Second != 0 {
		secs++
	}
	return secs
}
