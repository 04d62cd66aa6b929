package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/invoiced/backend/internal/infrastructure/auth"
	"github.com/invoiced/backend/internal/infrastructure/config"
	"github.com/invoiced/backend/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestJWTService() *auth.JWTService {
	return auth.NewJWTService(config.JWTConfig{Secret: "test-secret-key-at-least-32-chars", Issuer: "invoiced"})
}

func newJWTRouter(cfg JWTMiddlewareConfig) (*gin.Engine, **auth.Claims) {
	var seen *auth.Claims
	router := gin.New()
	router.Use(JWTAuthMiddlewareWithConfig(cfg))
	handler := func(c *gin.Context) {
		seen = GetJWTClaims(c)
		c.Status(http.StatusOK)
	}
	router.GET("/api/v1/invoices", handler)
	router.GET("/health", handler)
	return router, &seen
}

func TestJWTMiddleware_ValidToken(t *testing.T) {
	svc := newTestJWTService()
	router, seen := newJWTRouter(DefaultJWTConfig(svc))
	token, err := svc.GenerateAccessToken(7, "alice", time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/invoices", nil)
	req.Header.Set(AuthHeaderKey, BearerPrefix+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, *seen)
	assert.Equal(t, int64(7), (*seen).TenantID)
}

func TestJWTMiddleware_Rejections(t *testing.T) {
	svc := newTestJWTService()
	expiredToken, err := svc.GenerateAccessToken(7, "alice", -time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		code   string
	}{
		{"missing header", "", dto.ErrCodeUnauthorized},
		{"not bearer", "Basic abc", dto.ErrCodeTokenInvalid},
		{"garbage token", BearerPrefix + "abc.def.ghi", dto.ErrCodeTokenInvalid},
		{"expired token", BearerPrefix + expiredToken, dto.ErrCodeTokenExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _ := newJWTRouter(DefaultJWTConfig(svc))
			req := httptest.NewRequest(http.MethodGet, "/api/v1/invoices", nil)
			if tt.header != "" {
				req.Header.Set(AuthHeaderKey, tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Contains(t, w.Body.String(), tt.code)
		})
	}
}

func TestJWTMiddleware_SkipPaths(t *testing.T) {
	router, _ := newJWTRouter(DefaultJWTConfig(newTestJWTService()))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestJWTMiddleware_Optional(t *testing.T) {
	cfg := DefaultJWTConfig(newTestJWTService())
	cfg.Optional = true
	router, seen := newJWTRouter(cfg)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/invoices", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, *seen)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/invoices", nil)
	req.Header.Set(AuthHeaderKey, BearerPrefix+"abc.def.ghi")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code, "an invalid token is never ignored")
}
