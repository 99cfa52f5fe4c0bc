package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"engdocs-qa-platform/internal/config"
	"engdocs-qa-platform/utils"
)

// RateLimiter limits requests per IP + endpoint using Redis counters.
// When Redis is unavailable it falls back to a process-local token
// bucket instead of failing open entirely.
type RateLimiter struct {
	rdb      *redis.Client
	limit    int
	window   time.Duration
	fallback *rate.Limiter
}

func NewRateLimiter(rdb *redis.Client, cfg *config.Config) *RateLimiter {
	window := time.Duration(cfg.RateLimitWindow) * time.Second
	perSecond := rate.Limit(float64(cfg.RateLimitReqs) / window.Seconds())
	return &RateLimiter{
		rdb:      rdb,
		limit:    cfg.RateLimitReqs,
		window:   window,
		fallback: rate.NewLimiter(perSecond, cfg.RateLimitReqs),
	}
}

func (r *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.FullPath() == "/health" || c.FullPath() == "/ready" {
			c.Next()
			return
		}

		key := "ratelimit:" + c.ClientIP() + ":" + c.FullPath()
		ctx := context.Background()

		count, err := r.rdb.Incr(ctx, key).Result()
		if err != nil {
			// Redis down: process-local bucket keeps a ceiling in place.
			if !r.fallback.Allow() {
				r.reject(c, 0)
				return
			}
			c.Next()
			return
		}
		if count == 1 {
			r.rdb.Expire(ctx, key, r.window)
		}

		if count > int64(r.limit) {
			r.reject(c, 0)
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(r.limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(r.limit-int(count)))
		c.Next()
	}
}

func (r *RateLimiter) reject(c *gin.Context, remaining int) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(r.limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(r.window).Unix(), 10))

	utils.RespondWithError(c, http.StatusTooManyRequests,
		"rate_limit_exceeded",
		"Too many requests. Please try again later.",
		gin.H{
			"retry_after": int(r.window.Seconds()),
			"limit":       r.limit,
		})
	c.Abort()
}
