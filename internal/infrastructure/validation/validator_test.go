package validation

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/overviewcreative/happyplacev2-sub013/internal/domain/integration"
)

func dec(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func testProfile() *integration.EntityTypeProfile {
	return integration.MustEntityTypeProfile("agent", "Agents", nil,
		integration.WithValidationRules(map[string]integration.ValidationRule{
			"email":            {Required: true, Type: integration.RuleTypeEmail, MaxLength: 20},
			"website":          {Type: integration.RuleTypeURL},
			"phone":            {Type: integration.RuleTypePhone},
			"years_experience": {Type: integration.RuleTypeInteger, Min: dec(0), Max: dec(70)},
			"license_number":   {Pattern: `^[A-Z]{2}-\d{4,}$`, MaxLength: 12},
			"bio":              {MaxLength: 5},
		}))
}

func TestFieldValidator_ValidateField(t *testing.T) {
	v := NewFieldValidator()
	p := testProfile()

	tests := []struct {
		name     string
		field    string
		value    any
		wantCode string
	}{
		{"unknown field passes", "nickname", "", ""},
		{"required empty", "email", "", integration.ValidationCodeRequired},
		{"required nil", "email", nil, integration.ValidationCodeRequired},
		{"required whitespace", "email", "   ", integration.ValidationCodeRequired},
		{"valid email", "email", "jane@example.com", ""},
		{"invalid email", "email", "not-an-email", integration.ValidationCodeInvalidEmail},
		{"optional empty passes", "website", "", ""},
		{"valid url", "website", "https://example.com/agents/jane", ""},
		{"invalid url", "website", "example dot com", integration.ValidationCodeInvalidURL},
		{"valid phone", "phone", "(555) 123-4567", ""},
		{"phone with letters", "phone", "555-CALL-NOW", integration.ValidationCodeInvalidPhone},
		{"phone too short", "phone", "12-34", integration.ValidationCodeInvalidPhone},
		{"integer float", "years_experience", 12.0, ""},
		{"integer string", "years_experience", "12", ""},
		{"non integer", "years_experience", 12.5, integration.ValidationCodeInvalidInteger},
		{"below minimum", "years_experience", -1, integration.ValidationCodeBelowMinimum},
		{"above maximum", "years_experience", 71, integration.ValidationCodeAboveMaximum},
		{"pattern match", "license_number", "CA-12345", ""},
		{"pattern mismatch", "license_number", "12345", integration.ValidationCodePattern},
		{"too long", "bio", "abcdef", integration.ValidationCodeTooLong},
		{"multibyte length", "bio", "ñandú", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verr := v.ValidateField(p, tt.field, tt.value)
			if tt.wantCode == "" {
				assert.Nil(t, verr)
				return
			}
			require.NotNil(t, verr)
			assert.Equal(t, tt.wantCode, verr.Code)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestFieldValidator_RequiredShortCircuits(t *testing.T) {
	v := NewFieldValidator()
	rule := integration.ValidationRule{
		Required:  true,
		Type:      integration.RuleTypeInteger,
		Min:       dec(1),
		Pattern:   `^\d+$`,
		MaxLength: 1,
	}

	verr := v.Check("bedrooms", "", rule)
	require.NotNil(t, verr)
	assert.Equal(t, integration.ValidationCodeRequired, verr.Code)
}

func TestFieldValidator_Order(t *testing.T) {
	v := NewFieldValidator()

	// type is checked before range
	verr := v.Check("email", "x", integration.ValidationRule{Type: integration.RuleTypeEmail, Min: dec(1)})
	require.NotNil(t, verr)
	assert.Equal(t, integration.ValidationCodeInvalidEmail, verr.Code)

	// range is checked before pattern
	verr = v.Check("n", 0, integration.ValidationRule{Min: dec(1), Pattern: `^x$`})
	require.NotNil(t, verr)
	assert.Equal(t, integration.ValidationCodeBelowMinimum, verr.Code)

	// pattern is checked before length
	verr = v.Check("n", "abcdef", integration.ValidationRule{Pattern: `^\d+$`, MaxLength: 2})
	require.NotNil(t, verr)
	assert.Equal(t, integration.ValidationCodePattern, verr.Code)

	// range on a non-number
	verr = v.Check("price", "cheap", integration.ValidationRule{Min: dec(0)})
	require.NotNil(t, verr)
	assert.Equal(t, integration.ValidationCodeNotANumber, verr.Code)
}

func TestFieldValidator_NilProfile(t *testing.T) {
	assert.Nil(t, NewFieldValidator().ValidateField(nil, "email", ""))
}
