// Package billing implements the document use cases: customers, invoices,
// credit notes and estimates. Every create runs through a lifecycle pipeline
// that stamps the tenant, validates, assigns the document number and
// publishes the resulting events.
package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/invoiced/backend/internal/application/lifecycle"
	"github.com/invoiced/backend/internal/domain/billing"
	"github.com/invoiced/backend/internal/domain/numbering"
	"github.com/invoiced/backend/internal/domain/shared"
	"github.com/invoiced/backend/internal/domain/shared/valueobject"
	"github.com/invoiced/backend/internal/domain/tenancy"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Repositories groups the document repositories
type Repositories struct {
	Customers   billing.CustomerRepository
	Invoices    billing.InvoiceRepository
	CreditNotes billing.CreditNoteRepository
	Estimates   billing.EstimateRepository
}

// PipelineConfig holds the collaborators of the create pipelines
type PipelineConfig struct {
	Guard          lifecycle.TenantGuard
	Numbering      *numbering.Generator
	Events         shared.EventPublisher
	MaxAutoRetries int
	Logger         *zap.Logger
}

// document is a numbered, event-raising aggregate
type document interface {
	shared.Numbered
	shared.AggregateRoot
}

func buildPipeline[T document](cfg PipelineConfig) *lifecycle.Pipeline[T] {
	return lifecycle.NewPipeline[T]().
		Use(lifecycle.TenantStage[T](cfg.Guard)).
		Use(lifecycle.ValidationStage[T](billing.Validate)).
		Use(lifecycle.NumberingStage[T](cfg.Numbering, cfg.Logger)).
		Use(lifecycle.EventStage[T](cfg.Events, cfg.Logger)).
		WithMaxRetries(cfg.MaxAutoRetries).
		WithLogger(cfg.Logger).
		Build()
}

// Service handles billing document operations for the current tenant
type Service struct {
	repos  Repositories
	sealer *valueobject.SecretSealer
	gen    *numbering.Generator
	events shared.EventPublisher
	now    func() time.Time

	customerPipeline   *lifecycle.Pipeline[*billing.Customer]
	invoicePipeline    *lifecycle.Pipeline[*billing.Invoice]
	creditNotePipeline *lifecycle.Pipeline[*billing.CreditNote]
	estimatePipeline   *lifecycle.Pipeline[*billing.Estimate]
}

// NewService creates a new billing Service
func NewService(repos Repositories, sealer *valueobject.SecretSealer, cfg PipelineConfig) *Service {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Service{
		repos:              repos,
		sealer:             sealer,
		gen:                cfg.Numbering,
		events:             cfg.Events,
		now:                time.Now,
		customerPipeline:   buildPipeline[*billing.Customer](cfg),
		invoicePipeline:    buildPipeline[*billing.Invoice](cfg),
		creditNotePipeline: buildPipeline[*billing.CreditNote](cfg),
		estimatePipeline:   buildPipeline[*billing.Estimate](cfg),
	}
}

// CreateCustomer creates a customer. The tax id is sealed before it reaches
// the entity.
func (s *Service) CreateCustomer(ctx context.Context, req CreateCustomerRequest) (*CustomerResponse, error) {
	customer := billing.NewCustomer(0, req.Number, req.Name, req.Email, req.Currency)
	if req.TaxID != "" {
		sealed, err := s.sealer.Seal(req.TaxID)
		if err != nil {
			return nil, fmt.Errorf("seal tax id: %w", err)
		}
		customer.TaxID = sealed
	}

	if err := s.customerPipeline.Create(ctx, customer, s.repos.Customers.Create); err != nil {
		return nil, err
	}
	resp := ToCustomerResponse(customer)
	return &resp, nil
}

// GetCustomer returns a customer of the current tenant
func (s *Service) GetCustomer(ctx context.Context, id uuid.UUID) (*CustomerResponse, error) {
	c, err := s.repos.Customers.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToCustomerResponse(c)
	return &resp, nil
}

// ListCustomers returns a page of customers
func (s *Service) ListCustomers(ctx context.Context, limit, offset int) ([]CustomerResponse, error) {
	list, err := s.repos.Customers.List(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	out := make([]CustomerResponse, len(list))
	for i, c := range list {
		out[i] = ToCustomerResponse(c)
	}
	return out, nil
}

// RevealTaxID opens the sealed tax id of a customer
func (s *Service) RevealTaxID(ctx context.Context, id uuid.UUID) (string, error) {
	c, err := s.repos.Customers.FindByID(ctx, id)
	if err != nil {
		return "", err
	}
	if c.TaxID.IsEmpty() {
		return "", nil
	}
	return s.sealer.Open(c.TaxID)
}

// CreateInvoice creates an invoice for a customer of the current tenant.
// The currency defaults to the customer's. With Issue set the invoice is
// issued right away.
func (s *Service) CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (*InvoiceResponse, error) {
	customer, err := s.repos.Customers.FindByID(ctx, req.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("customer %s: %w", req.CustomerID, err)
	}
	currency := req.Currency
	if currency == "" {
		currency = customer.Currency
	}

	inv := billing.NewInvoice(0, req.Number, customer.ID, currency, req.IssueDate, req.DueDate, toLines(req.Lines))
	if err := s.invoicePipeline.Create(ctx, inv, s.repos.Invoices.Create); err != nil {
		return nil, err
	}
	if req.Issue {
		// Issued only once numbered so the event carries the final number
		if err := s.issue(ctx, inv); err != nil {
			return nil, err
		}
	}
	resp := ToInvoiceResponse(inv)
	return &resp, nil
}

// IssueInvoice moves a draft invoice to issued
func (s *Service) IssueInvoice(ctx context.Context, id uuid.UUID) (*InvoiceResponse, error) {
	inv, err := s.repos.Invoices.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.issue(ctx, inv); err != nil {
		return nil, err
	}
	resp := ToInvoiceResponse(inv)
	return &resp, nil
}

func (s *Service) issue(ctx context.Context, inv *billing.Invoice) error {
	if err := inv.Issue(); err != nil {
		return err
	}
	if err := s.repos.Invoices.Update(ctx, inv); err != nil {
		return err
	}
	if err := s.events.Publish(ctx, inv.GetDomainEvents()...); err != nil {
		return err
	}
	inv.ClearDomainEvents()
	return nil
}

// GetInvoice returns an invoice of the current tenant
func (s *Service) GetInvoice(ctx context.Context, id uuid.UUID) (*InvoiceResponse, error) {
	inv, err := s.repos.Invoices.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToInvoiceResponse(inv)
	return &resp, nil
}

// ListInvoices returns a page of invoices
func (s *Service) ListInvoices(ctx context.Context, limit, offset int) ([]InvoiceResponse, error) {
	list, err := s.repos.Invoices.List(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	out := make([]InvoiceResponse, len(list))
	for i, inv := range list {
		out[i] = ToInvoiceResponse(inv)
	}
	return out, nil
}

// CreateCreditNote credits an issued invoice. The credit notes of an
// invoice may not exceed its total.
func (s *Service) CreateCreditNote(ctx context.Context, invoiceID uuid.UUID, req CreateCreditNoteRequest) (*CreditNoteResponse, error) {
	inv, err := s.repos.Invoices.FindByID(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("invoice %s: %w", invoiceID, err)
	}
	existing, err := s.repos.CreditNotes.FindByInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	credited := decimal.Zero
	for _, cn := range existing {
		credited = credited.Add(cn.Amount)
	}
	if credited.Add(req.Amount).GreaterThan(inv.Total) {
		return nil, shared.NewDomainError("INVALID_INPUT",
			fmt.Sprintf("Credit notes would exceed the invoice total of %s", inv.Total.StringFixed(2)))
	}

	cn, err := billing.NewCreditNote(inv, req.Number, req.Amount, req.Reason)
	if err != nil {
		return nil, err
	}
	if err := s.creditNotePipeline.Create(ctx, cn, s.repos.CreditNotes.Create); err != nil {
		return nil, err
	}
	resp := ToCreditNoteResponse(cn)
	return &resp, nil
}

// CreateEstimate creates an estimate for a customer of the current tenant
func (s *Service) CreateEstimate(ctx context.Context, req CreateEstimateRequest) (*EstimateResponse, error) {
	customer, err := s.repos.Customers.FindByID(ctx, req.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("customer %s: %w", req.CustomerID, err)
	}
	currency := req.Currency
	if currency == "" {
		currency = customer.Currency
	}

	est := billing.NewEstimate(0, req.Number, customer.ID, currency, req.ExpiresAt, toLines(req.Lines))
	if err := s.estimatePipeline.Create(ctx, est, s.repos.Estimates.Create); err != nil {
		return nil, err
	}
	resp := ToEstimateResponse(est)
	return &resp, nil
}

// ConvertEstimate creates a draft invoice from an estimate. The invoice is
// numbered from the invoice sequence and due after paymentTerms.
func (s *Service) ConvertEstimate(ctx context.Context, estimateID uuid.UUID, paymentTerms time.Duration) (*InvoiceResponse, error) {
	est, err := s.repos.Estimates.FindByID(ctx, estimateID)
	if err != nil {
		return nil, err
	}
	issue := s.now().UTC().Truncate(24 * time.Hour)
	inv := est.ToInvoice(issue, issue.Add(paymentTerms))

	if err := s.invoicePipeline.Create(ctx, inv, s.repos.Invoices.Create); err != nil {
		return nil, err
	}
	resp := ToInvoiceResponse(inv)
	return &resp, nil
}

// PreviewNumber renders the next number of a sequence of the current
// tenant without reserving it
func (s *Service) PreviewNumber(ctx context.Context, objectType string) (*NumberPreviewResponse, error) {
	ot, err := numbering.ParseObjectType(objectType)
	if err != nil {
		return nil, err
	}
	tenantID, ok := tenancy.CurrentTenant(ctx)
	if !ok {
		return nil, shared.ErrTenantContextMissing
	}
	next, err := s.gen.For(tenantID, ot).NextNumberFormatted(ctx, false)
	if err != nil {
		return nil, err
	}
	return &NumberPreviewResponse{ObjectType: string(ot), Next: next}, nil
}

// SetNumberTemplate changes the number template of a sequence of the
// current tenant
func (s *Service) SetNumberTemplate(ctx context.Context, objectType, template string) error {
	ot, err := numbering.ParseObjectType(objectType)
	if err != nil {
		return err
	}
	tenantID, ok := tenancy.CurrentTenant(ctx)
	if !ok {
		return shared.ErrTenantContextMissing
	}
	if err := s.gen.For(tenantID, ot).SetTemplate(ctx, template); err != nil {
		if errors.Is(err, numbering.ErrInvalidTemplate) {
			return shared.NewDomainError("INVALID_INPUT", err.Error())
		}
		return err
	}
	return nil
}
