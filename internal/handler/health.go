package handler

import (
	"context"
	"net/http"
	"time"

	"eventpos/internal/infra"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// DBPinger is satisfied by *sql.DB.
type DBPinger interface {
	PingContext(ctx context.Context) error
}

// RedisPinger is satisfied by *redis.Client.
type RedisPinger interface {
	Ping(ctx context.Context) *redis.StatusCmd
}

// BreakerReporter is satisfied by *infra.Mailer.
type BreakerReporter interface {
	Enabled() bool
	BreakerState() infra.CBState
}

// Health returns a JSON health check response.
// DB and Redis decide the status code; the mailer breaker is reported only,
// since alerts and reports are best-effort.
func Health(db DBPinger, rdb RedisPinger, mailer BreakerReporter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		dbStatus := "connected"
		if db == nil || db.PingContext(ctx) != nil {
			dbStatus = "error"
		}

		redisStatus := "connected"
		if rdb == nil || rdb.Ping(ctx).Err() != nil {
			redisStatus = "error"
		}

		mailerStatus := "disabled"
		if mailer != nil && mailer.Enabled() {
			mailerStatus = mailer.BreakerState().String()
		}

		status := http.StatusOK
		if dbStatus != "connected" || redisStatus != "connected" {
			status = http.StatusServiceUnavailable
		}

		c.JSON(status, gin.H{
			"ok":     status == http.StatusOK,
			"db":     dbStatus,
			"redis":  redisStatus,
			"mailer": mailerStatus,
		})
	}
}
