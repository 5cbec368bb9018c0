package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/responder/pkg/version"
)

const (
	healthStatusHealthy   = "healthy"
	healthStatusDegraded  = "degraded"
	healthStatusUnhealthy = "unhealthy"
)

// healthHandler handles GET /health.
// Only the responder's own components are checked; chat, VCS and log
// backends are excluded.
func (s *Server) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	resp := &HealthResponse{
		Status:  healthStatusHealthy,
		Version: version.GitCommit,
		Checks:  make(map[string]HealthCheck),
	}

	dbHealth, err := s.dbHealth(ctx)
	resp.Database = dbHealth
	if err != nil {
		resp.Status = healthStatusUnhealthy
		resp.Checks["database"] = HealthCheck{Status: healthStatusUnhealthy, Message: err.Error()}
	} else {
		resp.Checks["database"] = HealthCheck{Status: healthStatusHealthy}
	}

	if s.workerPool != nil {
		poolHealth := s.workerPool.Health(ctx)
		resp.WorkerPool = poolHealth
		if poolHealth != nil && !poolHealth.IsHealthy {
			if resp.Status == healthStatusHealthy {
				resp.Status = healthStatusDegraded
			}
			msg := healthStatusUnhealthy
			if poolHealth.DBError != "" {
				msg = poolHealth.DBError
			}
			resp.Checks["worker_pool"] = HealthCheck{Status: healthStatusDegraded, Message: msg}
		} else {
			resp.Checks["worker_pool"] = HealthCheck{Status: healthStatusHealthy}
		}
	}

	code := http.StatusOK
	if resp.Status != healthStatusHealthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, resp)
}
