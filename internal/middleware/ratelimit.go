package middleware

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"support-chat/internal/observability"
)

// Limiter decides whether one more request for key fits in the window.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, time.Duration, error)
}

// RedisLimiter is a fixed-window counter shared by every instance.
type RedisLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

// NewRedisLimiter creates a limiter allowing limit requests per window.
func NewRedisLimiter(client *redis.Client, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, limit: limit, window: window}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	redisKey := fmt.Sprintf("ratelimit:%s", key)

	count, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, 0, err
	}
	if count == 1 {
		l.client.Expire(ctx, redisKey, l.window)
	}
	if count <= int64(l.limit) {
		return true, 0, nil
	}

	ttl, err := l.client.TTL(ctx, redisKey).Result()
	if err != nil {
		return false, 0, err
	}
	if ttl < 0 {
		// counter lost its expiry; restart the window
		l.client.Expire(ctx, redisKey, l.window)
		ttl = l.window
	}
	return false, ttl, nil
}

// LocalLimiter is the in-process fallback used when Redis is not configured.
type LocalLimiter struct {
	mu     sync.Mutex
	counts *cache.Cache
	limit  int
	window time.Duration
}

// NewLocalLimiter creates a limiter allowing limit requests per window.
func NewLocalLimiter(limit int, window time.Duration) *LocalLimiter {
	return &LocalLimiter{
		counts: cache.New(window, 2*window),
		limit:  limit,
		window: window,
	}
}

func (l *LocalLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.counts.Add(key, 1, l.window); err == nil {
		return l.limit >= 1, l.window, nil
	}
	count, err := l.counts.IncrementInt(key, 1)
	if err != nil {
		l.counts.Set(key, 1, l.window)
		return l.limit >= 1, l.window, nil
	}
	if count <= l.limit {
		return true, 0, nil
	}
	_, expires, _ := l.counts.GetWithExpiration(key)
	return false, time.Until(expires), nil
}

// RateLimit rejects clients that exceed the limiter, keyed by gin's
// ClientIP so forwarding headers count only from trusted proxies. Limiter
// failures let the request through.
func RateLimit(limiter Limiter, logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}

		key := "visitor:" + c.ClientIP()
		allowed, retryAfter, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			logger.Warn().Err(err).Str("key", key).Msg("rate limiter unavailable")
			c.Next()
			return
		}
		if !allowed {
			route := c.FullPath()
			if route == "" {
				route = c.Request.URL.Path
			}
			observability.IncRateLimited(route)
			seconds := int(math.Ceil(retryAfter.Seconds()))
			if seconds < 1 {
				seconds = 1
			}
			c.Header("Retry-After", strconv.Itoa(seconds))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
