package middleware

import (
	"net/http"
	"strings"

	"hidden_mines/internal/domain"
	"hidden_mines/internal/service"

	"github.com/gin-gonic/gin"
)

const actorKey = "actor"

// JWT requires a bearer token and stores the actor in the context.
func JWT() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}

		actor, err := service.ParseJWT(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(actorKey, actor)
		c.Next()
	}
}

// Actor returns the actor stored by JWT.
func Actor(c *gin.Context) (domain.Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return domain.Actor{}, false
	}
	actor, ok := v.(domain.Actor)
	return actor, ok
}
