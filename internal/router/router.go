package router

import (
	"time"

	"eventpos/internal/config"
	"eventpos/internal/handler"
	"eventpos/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Deps are the health checks and registry the ops engine reports on.
type Deps struct {
	DB       handler.DBPinger
	Redis    handler.RedisPinger
	Mailer   handler.BreakerReporter
	Gatherer prometheus.Gatherer
}

// New returns the ops Gin engine: health and metrics only. The engine's
// operations are consumed in-process; there is no business HTTP surface.
func New(cfg *config.Config, d Deps) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(600, time.Minute))

	r.GET("/health", handler.Health(d.DB, d.Redis, d.Mailer))
	r.GET("/metrics", handler.Metrics(d.Gatherer))

	return r
}
