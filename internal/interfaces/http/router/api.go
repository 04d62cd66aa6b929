package router

import (
	"github.com/gin-gonic/gin"
	billingapp "github.com/invoiced/backend/internal/application/billing"
	"github.com/invoiced/backend/internal/domain/shared"
	"github.com/invoiced/backend/internal/infrastructure/config"
	"github.com/invoiced/backend/internal/infrastructure/logger"
	"github.com/invoiced/backend/internal/interfaces/http/handler"
	"github.com/invoiced/backend/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

// Dependencies holds the collaborators of the HTTP API
type Dependencies struct {
	Billing *billingapp.Service
	Tokens  middleware.TokenValidator
	// Events receives the domain events of successful requests
	Events  shared.EventPublisher
	Checks  map[string]handler.Pinger
	HTTP    config.HTTPConfig
	Tracing middleware.TracingConfig
	Version string
	Logger  *zap.Logger
}

// NewEngine builds the gin engine serving the API
func NewEngine(deps Dependencies) (*gin.Engine, error) {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(deps.HTTP.TrustedProxies); err != nil {
		return nil, err
	}
	tracing := deps.Tracing
	tracing.SkipPaths = append(tracing.SkipPaths, "/health")
	engine.Use(
		middleware.Tracing(tracing),
		middleware.SpanErrorMarker(),
		logger.GinMiddleware(log),
		logger.Recovery(log),
	)
	if deps.HTTP.MaxBodySize > 0 {
		engine.Use(middleware.BodyLimit(deps.HTTP.MaxBodySize))
	}

	system := handler.NewSystemHandler(deps.Version, deps.Checks)
	engine.GET("/health", system.Health)

	billing := handler.NewBillingHandler(deps.Billing)
	numbering := handler.NewNumberingHandler(deps.Billing)

	customers := NewResource("customers", "/customers").
		POST("", billing.CreateCustomer).
		GET("", billing.ListCustomers).
		GET("/:id", billing.GetCustomer).
		GET("/:id/tax-id", billing.RevealTaxID)

	invoices := NewResource("invoices", "/invoices").
		POST("", billing.CreateInvoice).
		GET("", billing.ListInvoices).
		GET("/:id", billing.GetInvoice).
		POST("/:id/issue", billing.IssueInvoice).
		POST("/:id/credit-notes", billing.CreateCreditNote)

	estimates := NewResource("estimates", "/estimates").
		POST("", billing.CreateEstimate).
		POST("/:id/convert", billing.ConvertEstimate)

	sequences := NewResource("numbering", "/numbering").
		GET("/:type/next", numbering.Next).
		PUT("/:type/template", numbering.SetTemplate)

	jwtCfg := middleware.DefaultJWTConfig(deps.Tokens)
	jwtCfg.Optional = deps.HTTP.AllowTenantHeader
	jwtCfg.Logger = log

	api := NewRouter(engine).
		Register(customers).
		Register(invoices).
		Register(estimates).
		Register(sequences)
	err := api.Setup(
		middleware.JWTAuthMiddlewareWithConfig(jwtCfg),
		middleware.TenantMiddlewareWithConfig(middleware.TenantMiddlewareConfig{
			HeaderEnabled: deps.HTTP.AllowTenantHeader,
			Events:        deps.Events,
			Logger:        log,
		}),
		middleware.TracingAttributeInjector(),
	)
	if err != nil {
		return nil, err
	}
	log.Debug("API routes mounted", zap.Strings("routes", api.Routes()))

	return engine, nil
}
