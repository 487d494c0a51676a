package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabricio9061-glitch/Mi-cartera-inmobiliaria/internal/api/middleware"
	"github.com/fabricio9061-glitch/Mi-cartera-inmobiliaria/internal/auth"
	"github.com/fabricio9061-glitch/Mi-cartera-inmobiliaria/internal/utils"
)

const testSecret = "test-secret"

func setupAuthEngine() (*gin.Engine, *auth.Actor) {
	gin.SetMode(gin.TestMode)
	var seen auth.Actor
	r := gin.New()
	r.Use(middleware.AuthMiddleware(testSecret))
	r.GET("/open", func(c *gin.Context) {
		seen = middleware.ActorFromContext(c)
		c.Status(http.StatusOK)
	})
	r.POST("/closed", middleware.RequireActor(), func(c *gin.Context) {
		seen = middleware.ActorFromContext(c)
		c.Status(http.StatusOK)
	})
	return r, &seen
}

func request(r http.Handler, method, path, authHeader string) int {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(method, path, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	r.ServeHTTP(w, req)
	return w.Code
}

func TestAuthMiddleware_AnonymousReads(t *testing.T) {
	router, seen := setupAuthEngine()

	assert.Equal(t, http.StatusOK, request(router, http.MethodGet, "/open", ""))
	assert.True(t, seen.IsAnonymous())
	assert.Equal(t, http.StatusUnauthorized, request(router, http.MethodPost, "/closed", ""))
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	router, seen := setupAuthEngine()
	userID := utils.NewSixID()
	token, err := auth.SignTestToken(auth.Actor{UserID: userID, IsAdmin: true, Name: "Ana"}, testSecret, time.Hour)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, request(router, http.MethodPost, "/closed", "Bearer "+token))
	assert.Equal(t, userID, seen.UserID)
	assert.True(t, seen.IsAdmin)
	assert.Equal(t, "Ana", seen.Name)
}

func TestAuthMiddleware_RejectsBadTokens(t *testing.T) {
	router, _ := setupAuthEngine()
	expired, err := auth.SignTestToken(auth.Actor{UserID: utils.NewSixID()}, testSecret, -time.Minute)
	require.NoError(t, err)
	foreign, err := auth.SignTestToken(auth.Actor{UserID: utils.NewSixID()}, "other-secret", time.Hour)
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, request(router, http.MethodGet, "/open", "Token abc"))
	assert.Equal(t, http.StatusUnauthorized, request(router, http.MethodGet, "/open", "Bearer "+expired))
	assert.Equal(t, http.StatusUnauthorized, request(router, http.MethodGet, "/open", "Bearer "+foreign))
}
