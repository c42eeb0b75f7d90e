package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Wikid82/bookingshield/internal/ratelimit"
	"github.com/Wikid82/bookingshield/internal/util"
)

// RequestLogger logs one line per request along with the request_id. The
// client field is the same identifier the rate limiter buckets on.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)

		entry := GetRequestLogger(c).WithFields(map[string]interface{}{
			"status":  c.Writer.Status(),
			"method":  c.Request.Method,
			"path":    SanitizePath(c.Request.URL.Path),
			"latency": latency.String(),
			"client":  util.SanitizeForLog(ratelimit.ClientIdentifier(c.Request)),
		})
		if c.Writer.Status() >= 500 {
			entry.Error("handled request")
			return
		}
		entry.Info("handled request")
	}
}
