package middleware

import (
	"net/http"
	"sync"
	"time"

	"eventpos/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// rateEntry tracks request counts per IP within a fixed window.
type rateEntry struct {
	count     int
	windowEnd time.Time
}

type rateLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	entries map[string]*rateEntry
	now     func() time.Time
}

// RateLimiter caps requests per client IP per window. The ops port is
// scraped and health-checked, so the default limit is generous.
func RateLimiter(limit int, window time.Duration) gin.HandlerFunc {
	return newRateLimiter(limit, window, time.Now).handle
}

func newRateLimiter(limit int, window time.Duration, now func() time.Time) *rateLimiter {
	return &rateLimiter{limit: limit, window: window, entries: make(map[string]*rateEntry), now: now}
}

func (l *rateLimiter) handle(c *gin.Context) {
	retryAt, ok := l.allow(c.ClientIP())
	if !ok {
		c.Header("Retry-After", retryAt.UTC().Format(http.TimeFormat))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, apierror.New("too many requests"))
		return
	}
	c.Next()
}

func (l *rateLimiter) allow(ip string) (time.Time, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if len(l.entries) > 1024 {
		l.purge(now)
	}
	entry, exists := l.entries[ip]
	if !exists || now.After(entry.windowEnd) {
		entry = &rateEntry{windowEnd: now.Add(l.window)}
		l.entries[ip] = entry
	}
	entry.count++
	return entry.windowEnd, entry.count <= l.limit
}

// purge drops expired windows. Caller holds mu.
func (l *rateLimiter) purge(now time.Time) {
	purged := 0
	for ip, entry := range l.entries {
		if now.After(entry.windowEnd) {
			delete(l.entries, ip)
			purged++
		}
	}
	if purged > 0 {
		log.Debug().Int("purged", purged).Msg("rate limiter: expired entries removed")
	}
}
