// Package ratelimit implements the fixed-window counter, escalating blocks and
// the orchestration that every public booking endpoint passes through before
// its business logic runs.
package ratelimit

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidConfig is returned by Config.Validate.
var ErrInvalidConfig = errors.New("invalid rate limit config")

// Config holds the limits for a single protected endpoint.
type Config struct {
	Endpoint             string `json:"endpoint"`
	MaxRequests          int    `json:"max_requests"`
	WindowSeconds        int    `json:"window_seconds"`
	BlockDurationSeconds int    `json:"block_duration_seconds"`
	// CaptchaThreshold is the number of lifetime blocks after which CAPTCHA is
	// required. Nil disables CAPTCHA escalation.
	CaptchaThreshold *int `json:"captcha_threshold,omitempty"`
}

// Validate checks the invariants of a Config. Invalid configs are a startup
// error, never a per-request one.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return fmt.Errorf("%w: endpoint is required", ErrInvalidConfig)
	}
	if c.MaxRequests < 1 {
		return fmt.Errorf("%w: %s: max requests must be >= 1", ErrInvalidConfig, c.Endpoint)
	}
	if c.WindowSeconds < 1 {
		return fmt.Errorf("%w: %s: window seconds must be >= 1", ErrInvalidConfig, c.Endpoint)
	}
	if c.BlockDurationSeconds < 1 {
		return fmt.Errorf("%w: %s: block duration seconds must be >= 1", ErrInvalidConfig, c.Endpoint)
	}
	if c.CaptchaThreshold != nil && *c.CaptchaThreshold < 1 {
		return fmt.Errorf("%w: %s: captcha threshold must be >= 1", ErrInvalidConfig, c.Endpoint)
	}
	return nil
}

// Window returns the counting window length.
func (c Config) Window() time.Duration {
	return time.Duration(c.WindowSeconds) * time.Second
}

// BlockDuration returns the base block duration before backoff scaling.
func (c Config) BlockDuration() time.Duration {
	return time.Duration(c.BlockDurationSeconds) * time.Second
}

// Threshold is a small helper for building configs with a CAPTCHA threshold.
func Threshold(n int) *int {
	return &n
}
