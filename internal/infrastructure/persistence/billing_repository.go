package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/invoiced/backend/internal/domain/billing"
	"github.com/invoiced/backend/internal/domain/shared"
	"github.com/invoiced/backend/internal/infrastructure/persistence/models"
	"github.com/invoiced/backend/internal/infrastructure/persistence/tenant"
	"gorm.io/gorm"
)

// translateWriteError maps unique violations to domain errors. A violation
// of numberConstraint, or of an unnamed constraint on a driver that does not
// report names, means the document number is taken.
func translateWriteError(err error, numberConstraint string) error {
	v, ok := AsUniqueViolation(err)
	if !ok {
		return err
	}
	if v.Constraint == "" || v.Constraint == numberConstraint {
		return fmt.Errorf("%w: %w", shared.ErrNumberTaken, v)
	}
	return fmt.Errorf("%w: %w", shared.ErrAlreadyExists, v)
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return shared.ErrNotFound
	}
	return err
}

// clampPage applies the default page size
func clampPage(limit, offset int) (int, int) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// GormCustomerRepository implements billing.CustomerRepository using GORM
type GormCustomerRepository struct {
	db    *gorm.DB
	guard *tenant.Guard
}

// NewGormCustomerRepository creates a new GormCustomerRepository
func NewGormCustomerRepository(db *gorm.DB, guard *tenant.Guard) *GormCustomerRepository {
	return &GormCustomerRepository{db: db, guard: guard}
}

// Create inserts a customer
func (r *GormCustomerRepository) Create(ctx context.Context, c *billing.Customer) error {
	model := models.CustomerModelFromDomain(c)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return translateWriteError(err, models.CustomerNumberConstraint)
	}
	c.TenantID = model.TenantID
	return nil
}

// FindByID finds a customer of the current tenant by its ID
func (r *GormCustomerRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Customer, error) {
	db, err := r.guard.ScopedQuery(ctx, r.db)
	if err != nil {
		return nil, err
	}
	var model models.CustomerModel
	if err := db.Where("id = ?", id).Take(&model).Error; err != nil {
		return nil, notFound(err)
	}
	return model.ToDomain(), nil
}

// FindByNumber finds a customer of the current tenant by its number
func (r *GormCustomerRepository) FindByNumber(ctx context.Context, number string) (*billing.Customer, error) {
	db, err := r.guard.ScopedQuery(ctx, r.db)
	if err != nil {
		return nil, err
	}
	var model models.CustomerModel
	if err := db.Where("number = ?", number).Take(&model).Error; err != nil {
		return nil, notFound(err)
	}
	return model.ToDomain(), nil
}

// List returns a page of customers ordered by number
func (r *GormCustomerRepository) List(ctx context.Context, limit, offset int) ([]*billing.Customer, error) {
	db, err := r.guard.ScopedQuery(ctx, r.db)
	if err != nil {
		return nil, err
	}
	limit, offset = clampPage(limit, offset)
	var rows []models.CustomerModel
	if err := db.Order("number").Limit(limit).Offset(offset).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*billing.Customer, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}

// GormInvoiceRepository implements billing.InvoiceRepository using GORM
type GormInvoiceRepository struct {
	db    *gorm.DB
	guard *tenant.Guard
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository
func NewGormInvoiceRepository(db *gorm.DB, guard *tenant.Guard) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db, guard: guard}
}

// Create inserts an invoice
func (r *GormInvoiceRepository) Create(ctx context.Context, inv *billing.Invoice) error {
	model := models.InvoiceModelFromDomain(inv)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return translateWriteError(err, models.InvoiceNumberConstraint)
	}
	inv.TenantID = model.TenantID
	return nil
}

// Update saves status changes of an invoice of the current tenant
func (r *GormInvoiceRepository) Update(ctx context.Context, inv *billing.Invoice) error {
	db, err := r.guard.ScopedQuery(ctx, r.db)
	if err != nil {
		return err
	}
	model := models.InvoiceModelFromDomain(inv)
	result := db.Model(&models.InvoiceModel{}).
		Where("id = ?", inv.ID).
		Updates(map[string]any{
			"status":     model.Status,
			"due_date":   model.DueDate,
			"updated_at": model.UpdatedAt,
		})
	if result.Error != nil {
		return translateWriteError(result.Error, models.InvoiceNumberConstraint)
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// FindByID finds an invoice of the current tenant by its ID
func (r *GormInvoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Invoice, error) {
	db, err := r.guard.ScopedQuery(ctx, r.db)
	if err != nil {
		return nil, err
	}
	var model models.InvoiceModel
	if err := db.Where("id = ?", id).Take(&model).Error; err != nil {
		return nil, notFound(err)
	}
	return model.ToDomain(), nil
}

// FindByNumber finds an invoice of the current tenant by its number
func (r *GormInvoiceRepository) FindByNumber(ctx context.Context, number string) (*billing.Invoice, error) {
	db, err := r.guard.ScopedQuery(ctx, r.db)
	if err != nil {
		return nil, err
	}
	var model models.InvoiceModel
	if err := db.Where("number = ?", number).Take(&model).Error; err != nil {
		return nil, notFound(err)
	}
	return model.ToDomain(), nil
}

// List returns a page of invoices, newest issue date first
func (r *GormInvoiceRepository) List(ctx context.Context, limit, offset int) ([]*billing.Invoice, error) {
	db, err := r.guard.ScopedQuery(ctx, r.db)
	if err != nil {
		return nil, err
	}
	limit, offset = clampPage(limit, offset)
	var rows []models.InvoiceModel
	if err := db.Order("issue_date DESC, number DESC").Limit(limit).Offset(offset).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*billing.Invoice, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}

// GormCreditNoteRepository implements billing.CreditNoteRepository using GORM
type GormCreditNoteRepository struct {
	db    *gorm.DB
	guard *tenant.Guard
}

// NewGormCreditNoteRepository creates a new GormCreditNoteRepository
func NewGormCreditNoteRepository(db *gorm.DB, guard *tenant.Guard) *GormCreditNoteRepository {
	return &GormCreditNoteRepository{db: db, guard: guard}
}

// Create inserts a credit note
func (r *GormCreditNoteRepository) Create(ctx context.Context, cn *billing.CreditNote) error {
	model := models.CreditNoteModelFromDomain(cn)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return translateWriteError(err, models.CreditNoteNumberConstraint)
	}
	cn.TenantID = model.TenantID
	return nil
}

// FindByInvoice lists the credit notes issued against an invoice
func (r *GormCreditNoteRepository) FindByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]*billing.CreditNote, error) {
	db, err := r.guard.ScopedQuery(ctx, r.db)
	if err != nil {
		return nil, err
	}
	var rows []models.CreditNoteModel
	if err := db.Where("invoice_id = ?", invoiceID).Order("number").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*billing.CreditNote, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}

// GormEstimateRepository implements billing.EstimateRepository using GORM
type GormEstimateRepository struct {
	db    *gorm.DB
	guard *tenant.Guard
}

// NewGormEstimateRepository creates a new GormEstimateRepository
func NewGormEstimateRepository(db *gorm.DB, guard *tenant.Guard) *GormEstimateRepository {
	return &GormEstimateRepository{db: db, guard: guard}
}

// Create inserts an estimate
func (r *GormEstimateRepository) Create(ctx context.Context, e *billing.Estimate) error {
	model := models.EstimateModelFromDomain(e)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return translateWriteError(err, models.EstimateNumberConstraint)
	}
	e.TenantID = model.TenantID
	return nil
}

// FindByID finds an estimate of the current tenant by its ID
func (r *GormEstimateRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Estimate, error) {
	db, err := r.guard.ScopedQuery(ctx, r.db)
	if err != nil {
		return nil, err
	}
	var model models.EstimateModel
	if err := db.Where("id = ?", id).Take(&model).Error; err != nil {
		return nil, notFound(err)
	}
	return model.ToDomain(), nil
}

var (
	_ billing.CustomerRepository   = (*GormCustomerRepository)(nil)
	_ billing.InvoiceRepository    = (*GormInvoiceRepository)(nil)
	_ billing.CreditNoteRepository = (*GormCreditNoteRepository)(nil)
	_ billing.EstimateRepository   = (*GormEstimateRepository)(nil)
)
