package services

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/schoolledger/ledger-api/internal/models"
	"github.com/shopspring/decimal"
)

// Validator wraps go-playground/validator with the rules shared by services
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a validator that reports JSON field names and
// compares decimal amounts numerically.
func NewValidator() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	return &Validator{validate: v}
}

// Struct validates s and converts failures into a *ValidationError
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &ValidationError{Message: err.Error()}
	}

	details := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		details[fe.Field()] = describeFieldError(fe)
	}
	return &ValidationError{Message: "invalid input", Fields: details}
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if":
		return "is required"
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "len":
		return fmt.Sprintf("must be exactly %s characters", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	}
	return fmt.Sprintf("failed on the '%s' rule", fe.Tag())
}

// parseDate accepts YYYY-MM-DD or an RFC 3339 timestamp and returns the
// calendar date in UTC. Nil or blank input means today.
func parseDate(raw *string, now time.Time) (time.Time, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		y, m, d := now.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	}
	value := strings.TrimSpace(*raw)
	if t, err := time.Parse(models.DateLayout, value); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, &ValidationError{
			Message: "invalid input",
			Fields:  map[string]string{"date": "must be a date in YYYY-MM-DD format"},
		}
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
}
