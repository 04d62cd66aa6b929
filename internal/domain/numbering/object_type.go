package numbering

import (
	"fmt"

	"github.com/invoiced/backend/internal/domain/shared"
)

// ObjectType is a category of business document with its own per-tenant sequence
type ObjectType string

const (
	ObjectTypeInvoice    ObjectType = "invoice"
	ObjectTypeCustomer   ObjectType = "customer"
	ObjectTypeCreditNote ObjectType = "credit_note"
	ObjectTypeEstimate   ObjectType = "estimate"
)

var defaultTemplates = map[ObjectType]string{
	ObjectTypeInvoice:    "INV-%05d",
	ObjectTypeCustomer:   "CUST-%05d",
	ObjectTypeCreditNote: "CN-%05d",
	ObjectTypeEstimate:   "EST-%05d",
}

// IsValid reports whether t is a known object type
func (t ObjectType) IsValid() bool {
	_, ok := defaultTemplates[t]
	return ok
}

// DefaultTemplate returns the template used before a tenant customizes it
func (t ObjectType) DefaultTemplate() string {
	if tpl, ok := defaultTemplates[t]; ok {
		return tpl
	}
	return "%d"
}

// ParseObjectType converts a string to a known ObjectType
func ParseObjectType(s string) (ObjectType, error) {
	t := ObjectType(s)
	if !t.IsValid() {
		return "", shared.NewDomainError("INVALID_INPUT", fmt.Sprintf("unknown object type %q", s))
	}
	return t, nil
}

// Key identifies one sequence: a tenant and an object type
type Key struct {
	TenantID   shared.TenantID
	ObjectType ObjectType
}

// NewKey creates a sequence key
func NewKey(tenantID shared.TenantID, objectType ObjectType) Key {
	return Key{TenantID: tenantID, ObjectType: objectType}
}

// LockKey returns the distributed lock key guarding this sequence's counter
func (k Key) LockKey() string {
	return fmt.Sprintf("numbering:%d:%s", k.TenantID, k.ObjectType)
}

// String implements fmt.Stringer
func (k Key) String() string {
	return fmt.Sprintf("%d/%s", k.TenantID, k.ObjectType)
}
