package billing

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/invoiced/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validator returns the shared validator with the billing rules registered
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		// Amounts are compared as numbers so gt/gte/lte work on them
		v.RegisterCustomTypeFunc(func(field reflect.Value) any {
			if d, ok := field.Interface().(decimal.Decimal); ok {
				f, _ := d.Float64()
				return f
			}
			return nil
		}, decimal.Decimal{})
		validate = v
	})
	return validate
}

// Validate checks entity against its struct tags. Failures match
// shared.ErrInvalidInput.
func Validate(entity any) error {
	if err := Validator().Struct(entity); err != nil {
		return &ValidationError{Err: err}
	}
	return nil
}

// ValidationError carries field-level validation failures
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Is matches shared.ErrInvalidInput
func (e *ValidationError) Is(target error) bool {
	return target == shared.ErrInvalidInput
}

// Fields returns the failing field names and tags
func (e *ValidationError) Fields() map[string]string {
	fields := make(map[string]string)
	var verrs validator.ValidationErrors
	if errors.As(e.Err, &verrs) {
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
	}
	return fields
}
