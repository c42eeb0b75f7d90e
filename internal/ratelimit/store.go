package ratelimit

import (
	"context"
	"time"
)

// CounterStore persists fixed-window counters. Implementations must make
// IncrementAndCheck a single atomic operation per key; a read followed by a
// separate write under-counts under concurrent load.
type CounterStore interface {
	// IncrementAndCheck starts a new window when the previous one has fully
	// elapsed, otherwise increments the count. While the bucket's own block is
	// active the counter is left untouched and Counter.Blocked is set. A stale
	// block expiry is cleared.
	IncrementAndCheck(ctx context.Context, key Key, window time.Duration, now time.Time) (Counter, error)

	// ApplyBlock records a block on the bucket if its lifetime block count
	// still equals expectedTotalBlocks. It returns false when another request
	// escalated the bucket first.
	ApplyBlock(ctx context.Context, key Key, expectedTotalBlocks int, until time.Time, reason string) (bool, error)

	// Get returns the bucket state, or nil when the bucket does not exist.
	Get(ctx context.Context, key Key) (*Counter, error)
}

func blockActive(blockedUntil *time.Time, now time.Time) bool {
	return blockedUntil != nil && blockedUntil.After(now)
}
