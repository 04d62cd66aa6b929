package shared

import (
	"errors"
	"fmt"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrNotFound      = NewDomainError("NOT_FOUND", "Resource not found")
	ErrAlreadyExists = NewDomainError("ALREADY_EXISTS", "Resource already exists")
	ErrInvalidInput  = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrInvalidState  = NewDomainError("INVALID_STATE", "Operation not allowed in current state")
)

// Tenant isolation errors. These signal a broken caller contract and are never retried.
var (
	ErrTenantMismatch       = NewDomainError("TENANT_MISMATCH", "Entity belongs to a different tenant than the current context")
	ErrTenantRequired       = NewDomainError("TENANT_REQUIRED", "No tenant could be determined for the entity")
	ErrTenantContextMissing = NewDomainError("TENANT_CONTEXT_MISSING", "Scoped query requires a current tenant")
)

// Numbering errors
var (
	// ErrNumberingUnavailable is returned when the sequence lock could not be
	// acquired in time. The whole operation may be retried.
	ErrNumberingUnavailable = NewDomainError("NUMBERING_UNAVAILABLE", "Document numbering is temporarily unavailable")
	// ErrDuplicateNumber is the sentinel matched by every DuplicateNumberError.
	ErrDuplicateNumber = NewDomainError("DUPLICATE_NUMBER", "Document number is already in use")
	// ErrNumberTaken is wrapped by repositories when an insert hits the
	// (tenant, number) unique constraint of a document table.
	ErrNumberTaken = NewDomainError("NUMBER_TAKEN", "Document number already exists for this tenant")
)

// DuplicateNumberError reports that a rendered document number collided with
// an existing one for the same tenant and object type.
type DuplicateNumberError struct {
	ObjectType   string
	Number       string
	UserSupplied bool
	Err          error
}

// NewDuplicateNumberError creates a DuplicateNumberError wrapping the persistence cause
func NewDuplicateNumberError(objectType, number string, userSupplied bool, cause error) *DuplicateNumberError {
	return &DuplicateNumberError{
		ObjectType:   objectType,
		Number:       number,
		UserSupplied: userSupplied,
		Err:          cause,
	}
}

// Error implements the error interface
func (e *DuplicateNumberError) Error() string {
	return fmt.Sprintf("%s number %q is already in use", e.ObjectType, e.Number)
}

// Unwrap exposes the persistence cause
func (e *DuplicateNumberError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrDuplicateNumber) hold for every DuplicateNumberError
func (e *DuplicateNumberError) Is(target error) bool {
	return target == ErrDuplicateNumber
}

// Retriable reports whether the save may be retried with a freshly reserved
// number. User-supplied numbers are surfaced to the user instead.
func (e *DuplicateNumberError) Retriable() bool {
	return !e.UserSupplied
}

// IsRetriable reports whether err is a transient numbering condition the
// caller may retry
func IsRetriable(err error) bool {
	if errors.Is(err, ErrNumberingUnavailable) {
		return true
	}
	var dup *DuplicateNumberError
	if errors.As(err, &dup) {
		return dup.Retriable()
	}
	return false
}
