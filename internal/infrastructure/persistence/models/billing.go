package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/invoiced/backend/internal/domain/billing"
	"github.com/invoiced/backend/internal/domain/numbering"
	"github.com/invoiced/backend/internal/domain/shared"
	"github.com/invoiced/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// Unique constraints guarding document numbers. The names are shared with
// the SQL migrations.
const (
	CustomerNumberConstraint   = "uq_customers_tenant_number"
	InvoiceNumberConstraint    = "uq_invoices_tenant_number"
	CreditNoteNumberConstraint = "uq_credit_notes_tenant_number"
	EstimateNumberConstraint   = "uq_estimates_tenant_number"
)

// DocumentTable describes the table holding the documents of one object type
type DocumentTable struct {
	Name             string
	NumberConstraint string
}

// DocumentTables maps each numbered object type to its table
var DocumentTables = map[numbering.ObjectType]DocumentTable{
	numbering.ObjectTypeCustomer:   {Name: "customers", NumberConstraint: CustomerNumberConstraint},
	numbering.ObjectTypeInvoice:    {Name: "invoices", NumberConstraint: InvoiceNumberConstraint},
	numbering.ObjectTypeCreditNote: {Name: "credit_notes", NumberConstraint: CreditNoteNumberConstraint},
	numbering.ObjectTypeEstimate:   {Name: "estimates", NumberConstraint: EstimateNumberConstraint},
}

// LineModel is the stored form of a document line
type LineModel struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// Lines is stored as a JSON column
type Lines []LineModel

// Value implements driver.Valuer
func (l Lines) Value() (driver.Value, error) {
	if l == nil {
		l = Lines{}
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (l *Lines) Scan(value any) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*l = nil
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("cannot scan %T into Lines", value)
	}
	return json.Unmarshal(raw, l)
}

func linesFromDomain(lines []billing.Line) Lines {
	out := make(Lines, len(lines))
	for i, l := range lines {
		out[i] = LineModel{Description: l.Description, Quantity: l.Quantity, UnitPrice: l.UnitPrice}
	}
	return out
}

func (l Lines) toDomain() []billing.Line {
	out := make([]billing.Line, len(l))
	for i, m := range l {
		out[i] = billing.Line{Description: m.Description, Quantity: m.Quantity, UnitPrice: m.UnitPrice}
	}
	return out
}

// CustomerModel is the persistence model for the Customer domain entity.
type CustomerModel struct {
	BaseModel
	TenantID shared.TenantID          `gorm:"not null;uniqueIndex:uq_customers_tenant_number,priority:1"`
	Number   string                   `gorm:"type:varchar(50);not null;uniqueIndex:uq_customers_tenant_number,priority:2"`
	Name     string                   `gorm:"type:varchar(200);not null"`
	Email    string                   `gorm:"type:varchar(200)"`
	Currency string                   `gorm:"type:char(3);not null"`
	TaxID    valueobject.SecretString `gorm:"type:text"`
}

// GetTenantID implements shared.TenantOwned
func (m *CustomerModel) GetTenantID() shared.TenantID { return m.TenantID }

// SetTenantID implements shared.TenantOwned
func (m *CustomerModel) SetTenantID(id shared.TenantID) { m.TenantID = id }

// TableName returns the table name for GORM
func (CustomerModel) TableName() string {
	return "customers"
}

// CustomerModelFromDomain creates a persistence model from a domain Customer
func CustomerModelFromDomain(c *billing.Customer) *CustomerModel {
	m := &CustomerModel{
		Number:   c.Number,
		Name:     c.Name,
		Email:    c.Email,
		Currency: c.Currency,
		TaxID:    c.TaxID,
	}
	m.fromDomain(c.BaseEntity)
	m.TenantID = c.TenantID
	return m
}

// ToDomain converts the persistence model to a domain Customer
func (m *CustomerModel) ToDomain() *billing.Customer {
	c := &billing.Customer{
		Name:     m.Name,
		Email:    m.Email,
		Currency: m.Currency,
		TaxID:    m.TaxID,
	}
	c.TenantAggregateRoot = m.tenantRoot(m.TenantID)
	c.Number = m.Number
	return c
}

// InvoiceModel is the persistence model for the Invoice domain entity.
type InvoiceModel struct {
	BaseModel
	TenantID   shared.TenantID       `gorm:"not null;uniqueIndex:uq_invoices_tenant_number,priority:1"`
	Number     string                `gorm:"type:varchar(50);not null;uniqueIndex:uq_invoices_tenant_number,priority:2"`
	CustomerID uuid.UUID             `gorm:"type:uuid;not null;index"`
	Currency   string                `gorm:"type:char(3);not null"`
	Status     billing.InvoiceStatus `gorm:"type:varchar(20);not null"`
	IssueDate  time.Time             `gorm:"not null"`
	DueDate    time.Time             `gorm:"not null"`
	Lines      Lines                 `gorm:"type:jsonb;not null"`
	Total      decimal.Decimal       `gorm:"type:decimal(18,2);not null"`
}

// GetTenantID implements shared.TenantOwned
func (m *InvoiceModel) GetTenantID() shared.TenantID { return m.TenantID }

// SetTenantID implements shared.TenantOwned
func (m *InvoiceModel) SetTenantID(id shared.TenantID) { m.TenantID = id }

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}

// InvoiceModelFromDomain creates a persistence model from a domain Invoice
func InvoiceModelFromDomain(inv *billing.Invoice) *InvoiceModel {
	m := &InvoiceModel{
		Number:     inv.Number,
		CustomerID: inv.CustomerID,
		Currency:   inv.Currency,
		Status:     inv.Status,
		IssueDate:  inv.IssueDate,
		DueDate:    inv.DueDate,
		Lines:      linesFromDomain(inv.Lines),
		Total:      inv.Total,
	}
	m.fromDomain(inv.BaseEntity)
	m.TenantID = inv.TenantID
	return m
}

// ToDomain converts the persistence model to a domain Invoice
func (m *InvoiceModel) ToDomain() *billing.Invoice {
	inv := &billing.Invoice{
		CustomerID: m.CustomerID,
		Currency:   m.Currency,
		Status:     m.Status,
		IssueDate:  m.IssueDate,
		DueDate:    m.DueDate,
		Lines:      m.Lines.toDomain(),
		Total:      m.Total,
	}
	inv.TenantAggregateRoot = m.tenantRoot(m.TenantID)
	inv.Number = m.Number
	return inv
}

// CreditNoteModel is the persistence model for the CreditNote domain entity.
type CreditNoteModel struct {
	BaseModel
	TenantID  shared.TenantID `gorm:"not null;uniqueIndex:uq_credit_notes_tenant_number,priority:1"`
	Number    string          `gorm:"type:varchar(50);not null;uniqueIndex:uq_credit_notes_tenant_number,priority:2"`
	InvoiceID uuid.UUID       `gorm:"type:uuid;not null;index"`
	Amount    decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	Reason    string          `gorm:"type:text;not null"`
}

// GetTenantID implements shared.TenantOwned
func (m *CreditNoteModel) GetTenantID() shared.TenantID { return m.TenantID }

// SetTenantID implements shared.TenantOwned
func (m *CreditNoteModel) SetTenantID(id shared.TenantID) { m.TenantID = id }

// TableName returns the table name for GORM
func (CreditNoteModel) TableName() string {
	return "credit_notes"
}

// CreditNoteModelFromDomain creates a persistence model from a domain CreditNote
func CreditNoteModelFromDomain(cn *billing.CreditNote) *CreditNoteModel {
	m := &CreditNoteModel{
		Number:    cn.Number,
		InvoiceID: cn.InvoiceID,
		Amount:    cn.Amount,
		Reason:    cn.Reason,
	}
	m.fromDomain(cn.BaseEntity)
	m.TenantID = cn.TenantID
	return m
}

// ToDomain converts the persistence model to a domain CreditNote
func (m *CreditNoteModel) ToDomain() *billing.CreditNote {
	cn := &billing.CreditNote{
		InvoiceID: m.InvoiceID,
		Amount:    m.Amount,
		Reason:    m.Reason,
	}
	cn.TenantAggregateRoot = m.tenantRoot(m.TenantID)
	cn.Number = m.Number
	return cn
}

// EstimateModel is the persistence model for the Estimate domain entity.
type EstimateModel struct {
	BaseModel
	TenantID   shared.TenantID `gorm:"not null;uniqueIndex:uq_estimates_tenant_number,priority:1"`
	Number     string          `gorm:"type:varchar(50);not null;uniqueIndex:uq_estimates_tenant_number,priority:2"`
	CustomerID uuid.UUID       `gorm:"type:uuid;not null;index"`
	Currency   string          `gorm:"type:char(3);not null"`
	ExpiresAt  time.Time       `gorm:"not null"`
	Lines      Lines           `gorm:"type:jsonb;not null"`
	Total      decimal.Decimal `gorm:"type:decimal(18,2);not null"`
}

// GetTenantID implements shared.TenantOwned
func (m *EstimateModel) GetTenantID() shared.TenantID { return m.TenantID }

// SetTenantID implements shared.TenantOwned
func (m *EstimateModel) SetTenantID(id shared.TenantID) { m.TenantID = id }

// TableName returns the table name for GORM
func (EstimateModel) TableName() string {
	return "estimates"
}

// EstimateModelFromDomain creates a persistence model from a domain Estimate
func EstimateModelFromDomain(e *billing.Estimate) *EstimateModel {
	m := &EstimateModel{
		Number:     e.Number,
		CustomerID: e.CustomerID,
		Currency:   e.Currency,
		ExpiresAt:  e.ExpiresAt,
		Lines:      linesFromDomain(e.Lines),
		Total:      e.Total,
	}
	m.fromDomain(e.BaseEntity)
	m.TenantID = e.TenantID
	return m
}

// ToDomain converts the persistence model to a domain Estimate
func (m *EstimateModel) ToDomain() *billing.Estimate {
	e := &billing.Estimate{
		CustomerID: m.CustomerID,
		Currency:   m.Currency,
		ExpiresAt:  m.ExpiresAt,
		Lines:      m.Lines.toDomain(),
		Total:      m.Total,
	}
	e.TenantAggregateRoot = m.tenantRoot(m.TenantID)
	e.Number = m.Number
	return e
}

// SequenceModel is the persisted counter of one (tenant, object type) sequence
type SequenceModel struct {
	TenantID   shared.TenantID `gorm:"primaryKey;autoIncrement:false"`
	ObjectType string          `gorm:"primaryKey;type:varchar(32)"`
	Next       int64           `gorm:"not null"`
	Template   string          `gorm:"type:varchar(64);not null"`
	UpdatedAt  time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SequenceModel) TableName() string {
	return "numbering_sequences"
}

// GetTenantID implements shared.TenantOwned
func (m *SequenceModel) GetTenantID() shared.TenantID { return m.TenantID }

// SetTenantID implements shared.TenantOwned
func (m *SequenceModel) SetTenantID(id shared.TenantID) { m.TenantID = id }
