package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/use-agent/dirscrape/api/handler"
	"github.com/use-agent/dirscrape/api/middleware"
	"github.com/use-agent/dirscrape/config"
	"github.com/use-agent/dirscrape/metrics"
)

// NewRouter creates the status server.
//
// Middleware chain:
//
//	Global:     Recovery → Logger
//	Protected:  Auth (if keys configured) → RateLimit
//
// Health stays outside auth so probes always work.
func NewRouter(src handler.ProgressSource, m *metrics.Metrics, cfg config.StatusConfig, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/api/v1")
	v1.GET("/health", handler.Health(src, startTime))

	protected := r.Group("")
	protected.Use(middleware.Auth(cfg.APIKeys))
	protected.Use(middleware.RateLimit(cfg.RequestsPerSecond, cfg.Burst))

	protected.GET("/api/v1/status", handler.Status(src))
	if m != nil {
		protected.GET("/metrics", gin.WrapH(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))
	}

	return r
}
