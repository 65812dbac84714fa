package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/dirscrape/models"
	"github.com/use-agent/dirscrape/pipeline"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// ProgressSource exposes the live run snapshot. *pipeline.Runner satisfies it.
type ProgressSource interface {
	Progress() pipeline.Progress
}

// Health returns a handler for GET /api/v1/health.
func Health(src ProgressSource, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		run := src.Progress().Status
		status := "healthy"
		if run == pipeline.StatusAborted {
			status = "degraded"
		}
		c.JSON(http.StatusOK, models.HealthResponse{
			Status:    status,
			Uptime:    time.Since(startTime).Round(time.Second).String(),
			RunStatus: string(run),
			Version:   Version,
		})
	}
}

// Status returns a handler for GET /api/v1/status.
func Status(src ProgressSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, src.Progress())
	}
}
