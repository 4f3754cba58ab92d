package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// ActorRateLimit limits requests per authenticated actor rather than per IP.
// Requires JWT to run first.
func ActorRateLimit(scope string, maxRequests int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if redisClient == nil {
			c.Next()
			return
		}

		actor, ok := Actor(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		key := "actor_rl:" + scope + ":" + actor.Hex() + ":" + strconv.FormatInt(int64(window.Seconds()), 10)
		val, err := hit(c.Request.Context(), key, window)
		if err != nil {
			c.Header("X-ActorRateLimit-Error", "redis-error")
			c.Next()
			return
		}

		c.Header("X-ActorRateLimit-Limit", strconv.Itoa(maxRequests))
		c.Header("X-ActorRateLimit-Remaining", strconv.FormatInt(max(0, int64(maxRequests)-val), 10))

		if val > int64(maxRequests) {
			RLBlocked.WithLabelValues("actor:" + scope).Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded for " + scope,
				"retry_after": int(window.Seconds()),
			})
			return
		}

		RLRequests.WithLabelValues("actor:" + scope).Inc()
		c.Next()
	}
}
