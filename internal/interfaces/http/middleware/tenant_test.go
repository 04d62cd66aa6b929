package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/invoiced/backend/internal/domain/shared"
	"github.com/invoiced/backend/internal/domain/tenancy"
	"github.com/invoiced/backend/internal/infrastructure/event"
	"github.com/invoiced/backend/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, events...)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

// newTenantRouter mounts a handler that records the current tenant and
// publishes one event through the request spool
func newTenantRouter(t *testing.T, cfg TenantMiddlewareConfig, jwtCfg *JWTMiddlewareConfig, status int) (*gin.Engine, func() shared.TenantID) {
	t.Helper()
	var (
		mu   sync.Mutex
		seen shared.TenantID
	)
	router := gin.New()
	if jwtCfg != nil {
		router.Use(JWTAuthMiddlewareWithConfig(*jwtCfg))
	}
	router.Use(TenantMiddlewareWithConfig(cfg))
	router.POST("/api/v1/invoices", func(c *gin.Context) {
		ctx := c.Request.Context()
		current, _ := tenancy.CurrentTenant(ctx)
		mu.Lock()
		seen = current
		mu.Unlock()
		pub := event.NewRequestPublisher(cfg.Events)
		e := shared.NewBaseDomainEvent("InvoiceCreated", "invoice", uuid.New(), current)
		assert.NoError(t, pub.Publish(ctx, &e))
		c.Status(status)
	})
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	return router, func() shared.TenantID {
		mu.Lock()
		defer mu.Unlock()
		return seen
	}
}

func TestTenantMiddleware_JWTClaim(t *testing.T) {
	svc := newTestJWTService()
	jwtCfg := DefaultJWTConfig(svc)
	jwtCfg.Optional = true
	pub := &recordingPublisher{}
	router, seen := newTenantRouter(t, TenantMiddlewareConfig{Events: pub}, &jwtCfg, http.StatusCreated)

	token, err := svc.GenerateAccessToken(11, "alice", time.Minute)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/invoices", nil)
	req.Header.Set(AuthHeaderKey, BearerPrefix+token)
	req.Header.Set(TenantHeaderKey, "99")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, shared.TenantID(11), seen(), "the token wins over the header")
	assert.Equal(t, 1, pub.count(), "events are published after a successful request")
}

func TestTenantMiddleware_Header(t *testing.T) {
	tests := []struct {
		name           string
		headerEnabled  bool
		header         string
		expectedStatus int
		expectedTenant shared.TenantID
	}{
		{"header accepted", true, "42", http.StatusCreated, 42},
		{"header disabled", false, "42", http.StatusBadRequest, 0},
		{"missing header", true, "", http.StatusBadRequest, 0},
		{"not a number", true, "acme", http.StatusBadRequest, 0},
		{"zero tenant", true, "0", http.StatusBadRequest, 0},
		{"negative tenant", true, "-3", http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := TenantMiddlewareConfig{HeaderEnabled: tt.headerEnabled, Events: &recordingPublisher{}}
			router, seen := newTenantRouter(t, cfg, nil, http.StatusCreated)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/invoices", nil)
			if tt.header != "" {
				req.Header.Set(TenantHeaderKey, tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, tt.expectedTenant, seen())
			if tt.expectedStatus == http.StatusBadRequest {
				assert.Contains(t, w.Body.String(), dto.ErrCodeTenantRequired)
			}
		})
	}
}

func TestTenantMiddleware_DiscardsEventsOnFailure(t *testing.T) {
	pub := &recordingPublisher{}
	router, _ := newTenantRouter(t, TenantMiddlewareConfig{HeaderEnabled: true, Events: pub}, nil, http.StatusConflict)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/invoices", nil)
	req.Header.Set(TenantHeaderKey, "5")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Zero(t, pub.count())
}

func TestTenantMiddleware_PublishFailureKeepsResponse(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("bus down")}
	router, _ := newTenantRouter(t, TenantMiddlewareConfig{HeaderEnabled: true, Events: pub}, nil, http.StatusCreated)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/invoices", nil)
	req.Header.Set(TenantHeaderKey, "5")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestTenantMiddleware_SkipPaths(t *testing.T) {
	cfg := TenantMiddlewareConfig{SkipPaths: []string{"/health"}, Events: &recordingPublisher{}}
	router, _ := newTenantRouter(t, cfg, nil, http.StatusCreated)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTenantMiddleware_RequestsAreIsolated(t *testing.T) {
	pub := &recordingPublisher{}
	router, _ := newTenantRouter(t, TenantMiddlewareConfig{HeaderEnabled: true, Events: pub}, nil, http.StatusCreated)

	var wg sync.WaitGroup
	for i := 1; i <= 20; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodPost, "/api/v1/invoices", nil)
			req.Header.Set(TenantHeaderKey, strconv.Itoa(id))
			router.ServeHTTP(httptest.NewRecorder(), req)
		}(i)
	}
	wg.Wait()

	pub.mu.Lock()
	defer pub.mu.Unlock()
	seen := make(map[shared.TenantID]int)
	for _, e := range pub.events {
		seen[e.TenantID()]++
	}
	assert.Len(t, seen, 20)
	for id, n := range seen {
		assert.Equal(t, 1, n, "tenant %d", id)
	}
}
