package server

import (
	"math"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/repairdesk/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/repairdesk/internal/observability/metrics"
	"go.uber.org/zap"
)

// IntakeRateLimit limits form submissions per client IP as resolved by gin,
// so X-Forwarded-For only counts when the peer is a trusted proxy. A limiter
// failure lets the request through.
func (s *Server) IntakeRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.limiter == nil || !s.limiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		result, err := s.limiter.AllowIP(ctx, c.ClientIP())
		if err != nil {
			logger.FromContext(ctx).Warn("intake rate limit check failed",
				zap.String("backend", s.limiter.Backend()),
				zap.Error(err),
			)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(max(result.Remaining, 0)))

		if !result.Allowed {
			logger.FromContext(ctx).Warn("intake rate limit exceeded",
				zap.String("backend", s.limiter.Backend()),
				zap.Duration("retry_after", result.RetryAfter),
			)
			s.obsMetrics.RecordSubmission(ctx, obsmetrics.OutcomeLimited, "rate_limited")

			c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(result.RetryAfter)))
			AbortWithError(c, ErrRateLimited)
			return
		}

		c.Next()
	}
}

func retryAfterSeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}
