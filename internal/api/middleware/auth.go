package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/fabricio9061-glitch/Mi-cartera-inmobiliaria/internal/auth"
)

// ContextKeyActor holds the key for the request's auth.Actor in Gin context.
const ContextKeyActor = "actor"

// AuthMiddleware resolves the bearer token into an actor. Requests without an
// Authorization header continue as the anonymous visitor; a present but invalid
// token is rejected.
func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.Set(ContextKeyActor, auth.Anonymous())
			c.Next()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header format must be Bearer {token}"})
			return
		}

		claims, err := auth.ParseToken(parts[1], jwtSecret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": fmt.Sprintf("Invalid or expired token: %v", err)})
			return
		}
		actor, err := auth.ActorFromClaims(claims)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": fmt.Sprintf("Invalid token claims: %v", err)})
			return
		}

		c.Set(ContextKeyActor, actor)
		c.Next()
	}
}

// RequireActor rejects anonymous requests. Assumes AuthMiddleware runs first.
func RequireActor() gin.HandlerFunc {
	return func(c *gin.Context) {
		if ActorFromContext(c).IsAnonymous() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}
		c.Next()
	}
}

// ActorFromContext returns the actor set by AuthMiddleware, or the anonymous visitor.
func ActorFromContext(c *gin.Context) auth.Actor {
	if v, ok := c.Get(ContextKeyActor); ok {
		if actor, ok := v.(auth.Actor); ok {
			return actor
		}
	}
	return auth.Anonymous()
}
