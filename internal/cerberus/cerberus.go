// Package cerberus guards public handlers with the rate limiter and maps its
// results onto HTTP responses.
package cerberus

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Wikid82/bookingshield/internal/config"
	"github.com/Wikid82/bookingshield/internal/logger"
	"github.com/Wikid82/bookingshield/internal/metrics"
	"github.com/Wikid82/bookingshield/internal/ratelimit"
	"github.com/Wikid82/bookingshield/internal/util"
)

// ResultKey is the gin context key holding the ratelimit.Result of an admitted request.
const ResultKey = "ratelimit.result"

// failClosedRetryAfter is sent with 503 responses under the fail-closed policy.
const failClosedRetryAfter = 30

var (
	// ErrStoreUnavailable is returned by Check when the store failed under the fail-closed policy.
	ErrStoreUnavailable = errors.New("rate limit store unavailable")
	// ErrUnknownEndpoint is returned by CheckEndpoint for names with no configured limits.
	ErrUnknownEndpoint = errors.New("unknown rate limit endpoint")
)

// Checker is satisfied by *ratelimit.Limiter.
type Checker interface {
	CheckLimit(ctx context.Context, identifier string, cfg ratelimit.Config, secondaryKey string) (ratelimit.Result, error)
}

// SecondaryKeyFunc extracts the resource key that narrows a bucket, such as a
// calendar slug. Returning "" uses the endpoint-wide bucket.
type SecondaryKeyFunc func(c *gin.Context) string

// Cerberus applies per-endpoint limits and the store failure policy.
type Cerberus struct {
	limiter   Checker
	endpoints map[string]ratelimit.Config
	policy    config.FailurePolicy
	now       func() time.Time
}

// New creates a new Cerberus instance.
func New(limiter Checker, endpoints map[string]ratelimit.Config, policy config.FailurePolicy) *Cerberus {
	if policy == "" {
		policy = config.FailOpen
	}
	return &Cerberus{
		limiter:   limiter,
		endpoints: endpoints,
		policy:    policy,
		now:       time.Now,
	}
}

// Endpoint returns the configured limits for name.
func (c *Cerberus) Endpoint(name string) (ratelimit.Config, bool) {
	ep, ok := c.endpoints[name]
	return ep, ok
}

// Endpoints returns the configured limits keyed by endpoint name.
func (c *Cerberus) Endpoints() map[string]ratelimit.Config {
	return c.endpoints
}

// CheckEndpoint looks up the named endpoint and runs Check against it.
func (c *Cerberus) CheckEndpoint(ctx context.Context, endpoint, identifier, secondaryKey string) (ratelimit.Result, error) {
	ep, ok := c.endpoints[strings.TrimSpace(endpoint)]
	if !ok {
		return ratelimit.Result{}, ErrUnknownEndpoint
	}
	return c.Check(ctx, identifier, ep, secondaryKey)
}

// Check runs the limiter for one request. Store errors are logged and
// resolved by the failure policy: fail-open returns a degraded allowed result,
// fail-closed returns ErrStoreUnavailable.
func (c *Cerberus) Check(ctx context.Context, identifier string, ep ratelimit.Config, secondaryKey string) (ratelimit.Result, error) {
	res, err := c.limiter.CheckLimit(ctx, identifier, ep, secondaryKey)
	if err != nil {
		metrics.IncStoreError(ep.Endpoint)
		logger.Log().WithFields(map[string]interface{}{
			"source":   "ratelimit",
			"endpoint": ep.Endpoint,
			"client":   util.SanitizeForLog(identifier),
			"policy":   c.policy,
		}).WithError(err).Error("rate limit store failure")

		if c.policy == config.FailClosed {
			metrics.IncCheck(ep.Endpoint, metrics.OutcomeRejected)
			return ratelimit.Result{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		metrics.IncCheck(ep.Endpoint, metrics.OutcomeDegraded)
		return ratelimit.DegradedResult(ep, c.now()), nil
	}

	switch {
	case res.Allowed:
		metrics.IncCheck(ep.Endpoint, metrics.OutcomeAllowed)
	case res.Reason == ratelimit.ReasonRateLimited:
		metrics.IncCheck(ep.Endpoint, metrics.OutcomeLimited)
	default:
		metrics.IncCheck(ep.Endpoint, metrics.OutcomeBlocked)
	}

	if !res.Allowed {
		logger.Log().WithFields(map[string]interface{}{
			"source":       "ratelimit",
			"decision":     res.Reason,
			"endpoint":     ep.Endpoint,
			"client":       util.SanitizeForLog(identifier),
			"secondary":    util.SanitizeForLog(secondaryKey),
			"total_blocks": res.TotalBlocks,
			"captcha":      res.RequiresCaptcha,
		}).Warn("rate limit denied request")
	}
	return res, nil
}

// Guard returns a Gin middleware enforcing the named endpoint's limits. It
// panics when the endpoint is not configured, which is a wiring error.
func (c *Cerberus) Guard(endpoint string, secondary SecondaryKeyFunc) gin.HandlerFunc {
	ep, ok := c.endpoints[endpoint]
	if !ok {
		panic(fmt.Sprintf("cerberus: no rate limit configured for endpoint %q", endpoint))
	}

	return func(ctx *gin.Context) {
		secondaryKey := ""
		if secondary != nil {
			secondaryKey = secondary(ctx)
		}

		res, err := c.Check(ctx.Request.Context(), ratelimit.ClientIdentifier(ctx.Request), ep, secondaryKey)
		if err != nil {
			RejectUnavailable(ctx)
			return
		}

		WriteHeaders(ctx, res)
		if !res.Allowed {
			ctx.AbortWithStatusJSON(http.StatusTooManyRequests, res.Body())
			return
		}
		ctx.Set(ResultKey, res)
		ctx.Next()
	}
}

// WriteHeaders sets the X-RateLimit-*, Retry-After and X-Requires-Captcha headers.
func WriteHeaders(ctx *gin.Context, res ratelimit.Result) {
	for k, v := range res.Headers() {
		ctx.Header(k, v)
	}
}

// RejectUnavailable writes the fail-closed 503 response.
func RejectUnavailable(ctx *gin.Context) {
	ctx.Header(ratelimit.HeaderRetryAfter, fmt.Sprint(failClosedRetryAfter))
	ctx.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
		"error":   "Service temporarily unavailable",
		"message": "Please try again shortly.",
	})
}

// FromParam uses a path parameter as the secondary key.
func FromParam(name string) SecondaryKeyFunc {
	return func(c *gin.Context) string { return strings.TrimSpace(c.Param(name)) }
}

// FromQuery uses a query parameter as the secondary key.
func FromQuery(name string) SecondaryKeyFunc {
	return func(c *gin.Context) string { return strings.TrimSpace(c.Query(name)) }
}
