package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"hidden_mines/internal/logger"

	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"
)

var redisClient *redis.Client

// InitRedisRateLimiter initializes a shared Redis client used by the middleware.
// If the server cannot be reached redisClient stays nil and the limiters
// fail open.
func InitRedisRateLimiter(addr, password string, db int) {
	if addr == "" {
		return
	}
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unavailable, rate limiting disabled", "addr", addr, "error", err)
		_ = client.Close()
		return
	}
	redisClient = client
	logger.Info("redis rate limiter enabled", "addr", addr)
}

// RedisClient returns the shared client, nil when rate limiting is off.
func RedisClient() *redis.Client {
	return redisClient
}

// CloseRedis releases the shared client.
func CloseRedis() {
	if redisClient != nil {
		_ = redisClient.Close()
		redisClient = nil
	}
}

// hit counts one request in the fixed window of key.
func hit(ctx context.Context, key string, window time.Duration) (int64, error) {
	val, err := redisClient.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if val == 1 {
		redisClient.Expire(ctx, key, window)
	}
	return val, nil
}

// RedisRateLimit implements a fixed-window rate limiter per client IP.
// key format: rl:<window_seconds>:<ip>
func RedisRateLimit(maxRequests int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if redisClient == nil {
			c.Next()
			return
		}

		key := "rl:" + strconv.FormatInt(int64(window.Seconds()), 10) + ":" + c.ClientIP()
		val, err := hit(c.Request.Context(), key, window)
		if err != nil {
			c.Header("X-RateLimit-Error", "redis-error")
			c.Next()
			return
		}

		if val > int64(maxRequests) {
			RLBlocked.WithLabelValues(c.FullPath()).Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}

		RLRequests.WithLabelValues(c.FullPath()).Inc()
		c.Next()
	}
}
