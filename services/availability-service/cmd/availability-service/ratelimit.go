package main

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/md-rashed-zaman/meetbook/libs/config"
	"github.com/md-rashed-zaman/meetbook/libs/httpx"
	"github.com/redis/go-redis/v9"
)

type rateLimiter struct {
	Middleware httpx.Middleware
	// Ready is nil when no shared store backs the limiter.
	Ready func(context.Context) error
	close func()
}

func (r rateLimiter) Close() {
	if r.close != nil {
		r.close()
	}
}

// newRateLimiter guards the public availability endpoint. REDIS_URL selects the shared
// fixed-window limiter; without it each instance counts on its own.
func newRateLimiter(logger *slog.Logger) rateLimiter {
	limitPerMinute := config.Int("RATE_LIMIT_PER_MINUTE", 120)
	if limitPerMinute <= 0 {
		limitPerMinute = 120
	}
	opts := httpx.RateLimitOptions{
		Scope:    "availability",
		FailOpen: config.Bool("RATE_LIMIT_FAIL_OPEN", true),
		Logger:   logger,
	}

	redisURL := strings.TrimSpace(config.String("REDIS_URL", ""))
	if redisURL == "" {
		logger.Info("rate limiting enabled (in-memory)", "per_minute", limitPerMinute)
		return rateLimiter{Middleware: httpx.RateLimit(httpx.NewMemoryLimiter(limitPerMinute, time.Minute), opts)}
	}

	redisOpts, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Error("invalid REDIS_URL; falling back to in-memory rate limiting", "err", err)
		return rateLimiter{Middleware: httpx.RateLimit(httpx.NewMemoryLimiter(limitPerMinute, time.Minute), opts)}
	}
	rdb := redis.NewClient(redisOpts)
	limiter := httpx.NewRedisLimiter(rdb, limitPerMinute, time.Minute, config.String("RATE_LIMIT_PREFIX", "rl"))
	logger.Info("rate limiting enabled (redis)", "per_minute", limitPerMinute, "redis_addr", redisOpts.Addr)
	return rateLimiter{
		Middleware: httpx.RateLimit(limiter, opts),
		Ready: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		},
		close: func() { _ = rdb.Close() },
	}
}
