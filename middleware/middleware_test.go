package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"purescan-service/database"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func authRouter(service *database.AuthService) *gin.Engine {
	router := gin.New()
	router.Use(AuthMiddleware(service))
	router.GET("/whoami", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetString("user_id")})
	})
	return router
}

func TestAuthMiddlewareAcceptsValidBearerToken(t *testing.T) {
	service := database.NewAuthService(nil, "test-secret", time.Hour)
	token, err := service.GenerateToken("user-1")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	authRouter(service).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "user-1")
}

func TestAuthMiddlewareRejectsBadHeaders(t *testing.T) {
	service := database.NewAuthService(nil, "test-secret", time.Hour)
	router := authRouter(service)

	cases := map[string]string{
		"missing header": "",
		"wrong scheme":   "Basic abc123",
		"garbage token":  "Bearer not-a-jwt",
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestRateLimiterAllowsUpToLimit(t *testing.T) {
	limiter := NewRateLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		assert.True(t, limiter.Allow("1.2.3.4"), "request %d should pass", i+1)
	}
	assert.False(t, limiter.Allow("1.2.3.4"), "request over the limit must be rejected")

	// Other keys are tracked independently.
	assert.True(t, limiter.Allow("5.6.7.8"))
}
