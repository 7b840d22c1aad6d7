// Package validation evaluates the declarative field rules of an entity type
// profile against values about to be written into the local store.
package validation

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/overviewcreative/happyplacev2-sub013/internal/domain/integration"
)

var phonePattern = regexp.MustCompile(`^\+?[\d\s().\-]+$`)

// FieldValidator implements integration.FieldValidator.
// Rule order: required (short-circuits) -> type -> range -> pattern -> length.
type FieldValidator struct {
	validate *validator.Validate
	patterns sync.Map // pattern string -> *regexp.Regexp
}

// NewFieldValidator creates a new field validator
func NewFieldValidator() *FieldValidator {
	return &FieldValidator{validate: validator.New()}
}

var _ integration.FieldValidator = (*FieldValidator)(nil)

// ValidateField checks one value against the rule of field. Fields without a
// rule always pass.
func (v *FieldValidator) ValidateField(profile *integration.EntityTypeProfile, field string, value any) *integration.ValidationError {
	if profile == nil {
		return nil
	}
	rule, ok := profile.Rule(field)
	if !ok {
		return nil
	}
	return v.Check(field, value, rule)
}

// Check evaluates a rule directly
func (v *FieldValidator) Check(field string, value any, rule integration.ValidationRule) *integration.ValidationError {
	if isEmpty(value) {
		if rule.Required {
			return newError(field, integration.ValidationCodeRequired, fmt.Sprintf("field '%s' is required", field), "")
		}
		return nil
	}

	text := stringValue(value)

	// Type
	switch rule.Type {
	case integration.RuleTypeEmail:
		if v.validate.Var(text, "required,email") != nil {
			return newError(field, integration.ValidationCodeInvalidEmail, "invalid email address", text)
		}
	case integration.RuleTypeURL:
		if v.validate.Var(text, "required,http_url") != nil {
			return newError(field, integration.ValidationCodeInvalidURL, "invalid URL", text)
		}
	case integration.RuleTypePhone:
		if !isPhone(text) {
			return newError(field, integration.ValidationCodeInvalidPhone, "invalid phone number", text)
		}
	case integration.RuleTypeInteger:
		if !isInteger(value) {
			return newError(field, integration.ValidationCodeInvalidInteger, "expected an integer", text)
		}
	}

	// Range
	if rule.Min != nil || rule.Max != nil {
		d, ok := decimalValue(value)
		if !ok {
			return newError(field, integration.ValidationCodeNotANumber, "expected a number", text)
		}
		if rule.Min != nil && d.LessThan(*rule.Min) {
			return newError(field, integration.ValidationCodeBelowMinimum,
				fmt.Sprintf("value must be at least %s", rule.Min.String()), text)
		}
		if rule.Max != nil && d.GreaterThan(*rule.Max) {
			return newError(field, integration.ValidationCodeAboveMaximum,
				fmt.Sprintf("value must be at most %s", rule.Max.String()), text)
		}
	}

	// Pattern
	if rule.Pattern != "" {
		re, err := v.compile(rule.Pattern)
		if err != nil || !re.MatchString(text) {
			return newError(field, integration.ValidationCodePattern,
				fmt.Sprintf("value does not match pattern '%s'", rule.Pattern), text)
		}
	}

	// Length
	if rule.MaxLength > 0 && utf8.RuneCountInString(text) > rule.MaxLength {
		return newError(field, integration.ValidationCodeTooLong,
			fmt.Sprintf("length must be at most %d", rule.MaxLength), "")
	}

	return nil
}

func (v *FieldValidator) compile(pattern string) (*regexp.Regexp, error) {
	if re, ok := v.patterns.Load(pattern); ok {
		return re.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	v.patterns.Store(pattern, re)
	return re, nil
}

func newError(field, code, message, value string) *integration.ValidationError {
	return &integration.ValidationError{Field: field, Code: code, Message: message, Value: value}
}

// ---------------------------------------------------------------------------
// value helpers
// ---------------------------------------------------------------------------

func isEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []any:
		return len(v) == 0
	case []string:
		return len(v) == 0
	case map[string]any:
		return len(v) == 0
	}
	return false
}

func stringValue(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case []string:
		return strings.Join(v, ", ")
	default:
		return fmt.Sprint(v)
	}
}

func decimalValue(value any) (decimal.Decimal, bool) {
	switch v := value.(type) {
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat(v), true
	case float32:
		return decimal.NewFromFloat32(v), true
	case int:
		return decimal.NewFromInt(int64(v)), true
	case int64:
		return decimal.NewFromInt(v), true
	case decimal.Decimal:
		return v, true
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(v))
		return d, err == nil
	}
	return decimal.Zero, false
}

func isInteger(value any) bool {
	d, ok := decimalValue(value)
	return ok && d.IsInteger()
}

func isPhone(s string) bool {
	if !phonePattern.MatchString(s) {
		return false
	}
	digits := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	return digits >= 7 && digits <= 15
}
