package worker

// replay_cron.go
// Background goroutine that periodically moves dead-lettered mail jobs back
// onto their queues once the SMTP circuit breaker is no longer open.

import (
	"context"
	"time"

	"eventpos/internal/infra"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	replayTickInterval = 10 * time.Minute
	maxReplays         = 3
)

// ReplayCronConfig holds all dependencies for the replay goroutine.
type ReplayCronConfig struct {
	RDB      *redis.Client
	CB       *infra.CircuitBreaker
	Queues   []string
	Interval time.Duration
}

// StartReplayCron ticks every Interval (10m by default) and replays the DLQ
// of every queue. It respects the context for graceful shutdown.
func StartReplayCron(ctx context.Context, cfg ReplayCronConfig) {
	interval := cfg.Interval
	if interval <= 0 {
		interval = replayTickInterval
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		log.Info().Msg("replay_cron: started")

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("replay_cron: shutting down")
				return
			case <-ticker.C:
				replayAll(ctx, cfg)
			}
		}
	}()
}

func replayAll(ctx context.Context, cfg ReplayCronConfig) {
	// If CB is open, skip entirely: the jobs would only fail again
	if cfg.CB != nil && cfg.CB.State() == infra.CBOpen {
		log.Debug().Msg("replay_cron: circuit breaker is open, skipping tick")
		return
	}
	for _, q := range cfg.Queues {
		n, err := ReplayDLQ(ctx, cfg.RDB, q, maxReplays)
		if err != nil {
			log.Error().Err(err).Str("queue", q).Msg("replay_cron: replay failed")
			continue
		}
		if n > 0 {
			log.Info().Int("count", n).Str("queue", q).Msg("replay_cron: jobs replayed")
		}
	}
}
