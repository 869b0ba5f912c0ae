// Package ratelimit implements a fixed-window request limiter on redis.
package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	apperrors "github.com/ticketbooth-services/common/errors"
	"github.com/ticketbooth-services/common/logger"
)

// NewRedisClient parses a redis:// URL, falling back to treating it as a
// plain host:port address.
func NewRedisClient(url string) *redis.Client {
	opt, err := redis.ParseURL(url)
	if err != nil {
		opt = &redis.Options{Addr: url}
	}
	opt.PoolSize = 20
	opt.MinIdleConns = 2
	opt.DialTimeout = 5 * time.Second
	opt.ReadTimeout = 3 * time.Second
	opt.WriteTimeout = 3 * time.Second
	return redis.NewClient(opt)
}

// Limiter allows at most limit hits per key per window.
type Limiter struct {
	redis  redis.Cmdable
	limit  int
	window time.Duration
	prefix string
	log    *logger.Logger
}

func NewLimiter(client redis.Cmdable, prefix string, limit int, window time.Duration, log *logger.Logger) *Limiter {
	return &Limiter{
		redis:  client,
		limit:  limit,
		window: window,
		prefix: prefix,
		log:    log.With("component", "ratelimit"),
	}
}

func (l *Limiter) key(id string) string {
	return fmt.Sprintf("ratelimit:%s:%s", l.prefix, id)
}

// Allow records a hit for id. Redis failures fail open and are returned
// alongside allowed=true.
func (l *Limiter) Allow(ctx context.Context, id string) (bool, error) {
	key := l.key(id)

	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return true, fmt.Errorf("incr %s: %w", key, err)
	}
	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.window).Err(); err != nil {
			return true, fmt.Errorf("expire %s: %w", key, err)
		}
	}
	return count <= int64(l.limit), nil
}

// Middleware limits requests per client IP.
func (l *Limiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			allowed, err := l.Allow(c.Request().Context(), c.RealIP())
			if err != nil {
				l.log.Warn("rate limiter unavailable, allowing request", "error", err)
			}
			if !allowed {
				return c.JSON(http.StatusTooManyRequests, apperrors.RateLimited().ToJSON())
			}
			return next(c)
		}
	}
}
