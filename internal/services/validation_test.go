package services

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidator_DecimalRules(t *testing.T) {
	v := NewValidator()

	type payload struct {
		Amount decimal.Decimal `json:"amount" validate:"gt=0"`
	}

	assert.NoError(t, v.Struct(payload{Amount: dec("0.01")}))

	err := v.Struct(payload{Amount: dec("0")})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "must be greater than 0", verr.Fields["amount"])
	assert.ErrorIs(t, err, ErrValidation)
}

func TestValidationError_Message(t *testing.T) {
	err := &ValidationError{Message: "invalid input", Fields: map[string]string{"b": "is required", "a": "must be at least 0"}}
	assert.Equal(t, "invalid input (a: must be at least 0; b: is required)", err.Error())
}

func TestParseDate(t *testing.T) {
	now := time.Date(2026, 3, 14, 23, 59, 0, 0, time.UTC)

	got, err := parseDate(nil, now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC), got)

	got, err = parseDate(ptr("2025-12-31"), now)
	require.NoError(t, err)
	assert.Equal(t, "2025-12-31", got.Format("2006-01-02"))

	got, err = parseDate(ptr("2026-01-02T10:00:00Z"), now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC), got)

	_, err = parseDate(ptr("02/01/2026"), now)
	assert.ErrorIs(t, err, ErrValidation)
}
