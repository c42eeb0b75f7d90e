package ratelimit

import (
	"time"
)

// maxBackoffDoublings caps the exponential multiplier at 2^5 = 32x.
const maxBackoffDoublings = 5

// Counter is the state of one bucket after a call to CounterStore.IncrementAndCheck.
type Counter struct {
	Key          Key        `json:"key"`
	Count        int        `json:"count"`
	WindowStart  time.Time  `json:"window_start"`
	BlockedUntil *time.Time `json:"blocked_until,omitempty"`
	TotalBlocks  int        `json:"total_blocks"`
	// Blocked is set when the bucket's own block was still active, in which
	// case the count was not incremented.
	Blocked bool   `json:"blocked"`
	Reason  string `json:"reason,omitempty"`
}

// Decision is the outcome of Decide.
type Decision struct {
	Allowed         bool
	Remaining       int
	ResetAt         time.Time
	BlockUntil      *time.Time
	BlockDuration   time.Duration
	TotalBlocks     int
	RequiresCaptcha bool
}

// BackoffDuration returns base * 2^min(totalBlocks-1, 5).
func BackoffDuration(base time.Duration, totalBlocks int) time.Duration {
	if totalBlocks < 1 {
		totalBlocks = 1
	}
	shift := totalBlocks - 1
	if shift > maxBackoffDoublings {
		shift = maxBackoffDoublings
	}
	return base * time.Duration(1<<shift)
}

// RequiresCaptcha reports whether totalBlocks has reached the configured threshold.
func RequiresCaptcha(cfg Config, totalBlocks int) bool {
	return cfg.CaptchaThreshold != nil && totalBlocks >= *cfg.CaptchaThreshold
}

// Decide applies the escalation policy to a freshly incremented counter. It
// is a pure function of its inputs.
func Decide(c Counter, cfg Config, now time.Time) Decision {
	resetAt := c.WindowStart.Add(cfg.Window())

	if c.Count <= cfg.MaxRequests {
		return Decision{
			Allowed:         true,
			Remaining:       cfg.MaxRequests - c.Count,
			ResetAt:         resetAt,
			TotalBlocks:     c.TotalBlocks,
			RequiresCaptcha: RequiresCaptcha(cfg, c.TotalBlocks),
		}
	}

	total := c.TotalBlocks + 1
	duration := BackoffDuration(cfg.BlockDuration(), total)
	until := now.Add(duration)
	return Decision{
		Allowed:         false,
		Remaining:       0,
		ResetAt:         until,
		BlockUntil:      &until,
		BlockDuration:   duration,
		TotalBlocks:     total,
		RequiresCaptcha: RequiresCaptcha(cfg, total),
	}
}
