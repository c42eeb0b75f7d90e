package ratelimit

import (
	"fmt"
	"strconv"
	"time"
)

// PermanentRetryAfter is the RetryAfter sentinel for blocks that never expire.
const PermanentRetryAfter = -1

// PermanentResetAt is reported as the reset time of a permanent block.
var PermanentResetAt = time.Date(9999, time.December, 31, 23, 59, 59, 0, time.UTC)

// Result reasons.
const (
	ReasonRateLimited = "rate_limit_exceeded"
	ReasonBlocked     = "blocked"
	ReasonIPBlocked   = "ip_blocked"
	ReasonDegraded    = "store_unavailable"
)

// Response header names.
const (
	HeaderLimit           = "X-RateLimit-Limit"
	HeaderRemaining       = "X-RateLimit-Remaining"
	HeaderReset           = "X-RateLimit-Reset"
	HeaderRetryAfter      = "Retry-After"
	HeaderRequiresCaptcha = "X-Requires-Captcha"
)

// Result is returned for every CheckLimit call.
type Result struct {
	Allowed         bool      `json:"allowed"`
	Limit           int       `json:"limit"`
	Remaining       int       `json:"remaining"`
	ResetAt         time.Time `json:"reset_at"`
	RetryAfter      *int      `json:"retry_after,omitempty"` // -1 when permanent
	RequiresCaptcha bool      `json:"requires_captcha"`
	TotalBlocks     int       `json:"total_blocks"`
	Permanent       bool      `json:"permanent,omitempty"`
	Reason          string    `json:"reason,omitempty"`
	// Degraded marks a result produced without consulting the store.
	Degraded bool `json:"degraded,omitempty"`
}

// DegradedResult admits a request when the store could not be reached.
func DegradedResult(cfg Config, now time.Time) Result {
	return Result{
		Allowed:   true,
		Limit:     cfg.MaxRequests,
		Remaining: cfg.MaxRequests,
		ResetAt:   now.UTC().Add(cfg.Window()),
		Reason:    ReasonDegraded,
		Degraded:  true,
	}
}

// Headers returns the response headers for the result. Retry-After is only
// present for a non-negative RetryAfter.
func (r Result) Headers() map[string]string {
	h := map[string]string{
		HeaderLimit:     strconv.Itoa(r.Limit),
		HeaderRemaining: strconv.Itoa(r.Remaining),
		HeaderReset:     r.ResetAt.UTC().Format(time.RFC3339),
	}
	if !r.Allowed && r.RetryAfter != nil && *r.RetryAfter >= 0 {
		h[HeaderRetryAfter] = strconv.Itoa(*r.RetryAfter)
	}
	if r.RequiresCaptcha {
		h[HeaderRequiresCaptcha] = "true"
	}
	return h
}

// TooManyRequestsBody is the JSON body of a 429 response.
type TooManyRequestsBody struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter *int   `json:"retryAfter"`
	ResetAt    string `json:"resetAt"`
}

// Body builds the 429 body for a denied result.
func (r Result) Body() TooManyRequestsBody {
	return TooManyRequestsBody{
		Error:      "Too many requests",
		Message:    r.Message(),
		RetryAfter: r.RetryAfter,
		ResetAt:    r.ResetAt.UTC().Format(time.RFC3339),
	}
}

// Message is the human readable explanation shown to the client.
func (r Result) Message() string {
	switch {
	case r.Permanent:
		return "Access from your network has been blocked. Please contact support if you believe this is a mistake."
	case r.RequiresCaptcha:
		return "Too many requests. Please complete the CAPTCHA verification before trying again."
	case r.RetryAfter != nil && *r.RetryAfter > 0:
		return fmt.Sprintf("Too many requests. Please try again in %d seconds.", *r.RetryAfter)
	default:
		return "Too many requests. Please try again later."
	}
}
