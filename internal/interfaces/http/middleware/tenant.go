package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/invoiced/backend/internal/domain/shared"
	"github.com/invoiced/backend/internal/domain/tenancy"
	"github.com/invoiced/backend/internal/infrastructure/event"
	"github.com/invoiced/backend/internal/infrastructure/logger"
	"github.com/invoiced/backend/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

// TenantHeaderKey carries the tenant when header identification is enabled
const TenantHeaderKey = "X-Tenant-ID"

// TenantMiddlewareConfig holds configuration for tenant middleware
type TenantMiddlewareConfig struct {
	// HeaderEnabled accepts X-Tenant-ID when no token identified the tenant.
	// Development only.
	HeaderEnabled bool
	// SkipPaths are paths that don't require tenant context (e.g., health check)
	SkipPaths []string
	// Events receives the request's domain events once the request succeeded
	Events shared.EventPublisher
	// Logger for middleware logging
	Logger *zap.Logger
}

// TenantMiddlewareWithConfig establishes the request's tenant context.
//
// The tenant comes from the JWT claims, or from X-Tenant-ID when
// HeaderEnabled. Each request gets its own tenancy.Context with an event
// spool registered as flusher. Queued events are published when the
// handler answered with a non-error status and discarded otherwise.
func TenantMiddlewareWithConfig(cfg TenantMiddlewareConfig) gin.HandlerFunc {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		if skipPath(c.Request.URL.Path, cfg.SkipPaths) {
			c.Next()
			return
		}

		tenantID, method, ok := extractTenant(c, cfg.HeaderEnabled)
		if !ok {
			c.AbortWithStatusJSON(http.StatusBadRequest,
				dto.NewErrorResponse(dto.ErrCodeTenantRequired, "Tenant identification required"))
			return
		}

		ctx := c.Request.Context()
		spool := event.NewSpool(cfg.Events, cfg.Logger)
		tc := tenancy.NewContext(spool)
		ctx = tenancy.WithContext(ctx, tc)
		ctx = event.WithSpool(ctx, spool)
		if err := tc.Set(ctx, tenantID); err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError,
				dto.NewErrorResponse(dto.ErrCodeInternal, "An unexpected error occurred"))
			return
		}
		c.Request = c.Request.WithContext(ctx)

		cfg.Logger.Debug("Tenant identified",
			zap.Int64("tenant_id", int64(tenantID)),
			zap.String("method", method),
		)

		c.Next()

		if c.Writer.Status() >= http.StatusBadRequest || len(c.Errors) > 0 {
			spool.Discard()
			return
		}
		if err := spool.FlushAll(ctx); err != nil {
			logger.L(ctx).Error("Failed to publish request events", zap.Error(err))
		}
	}
}

// extractTenant reads the tenant from the JWT claims, then from the header
func extractTenant(c *gin.Context, headerEnabled bool) (shared.TenantID, string, bool) {
	if claims := GetJWTClaims(c); claims != nil {
		return claims.Tenant(), "jwt", true
	}
	if !headerEnabled {
		return 0, "", false
	}
	raw := c.GetHeader(TenantHeaderKey)
	if raw == "" {
		return 0, "", false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, "", false
	}
	return shared.TenantID(id), "header", true
}
