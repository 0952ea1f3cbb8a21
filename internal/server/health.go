package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/repairdesk/internal/observability/logger"
	"go.uber.org/zap"
)

// Healthz answers liveness probes. With ?verbose=1 it also checks that the
// store answers and reports which optional integrations are active.
func (s *Server) Healthz(c *gin.Context) {
	if c.Query("verbose") == "" {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}

	ctx := c.Request.Context()
	count, err := s.requestRepo.Count(ctx, s.db)
	if err != nil {
		logger.FromContext(ctx).Warn("healthz store check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"requests":   count,
		"notifier":   s.cfg.Telegram.Configured(),
		"rate_limit": s.limiter.Backend(),
	})
}
