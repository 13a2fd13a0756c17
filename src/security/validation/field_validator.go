// backend/src/security/validation/field_validator.go
package validation

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

var ErrValidationFailed = fmt.Errorf("validation failed")

const (
	MaxAccountNameLength = 50
	MaxDescriptionLength = 200
	MaxCategoryLength    = 100
	MaxMerchantLength    = 100
)

// ValidateStringNotEmpty checks if a string is not empty after trimming.
func ValidateStringNotEmpty(s, fieldName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s cannot be empty", ErrValidationFailed, fieldName)
	}
	return nil
}

// ValidateStringMaxLength checks if a string's UTF-8 character count is within max bounds.
func ValidateStringMaxLength(s string, maxLength int, fieldName string) error {
	if utf8.RuneCountInString(s) > maxLength {
		return fmt.Errorf("%w: %s exceeds maximum length of %d characters", ErrValidationFailed, fieldName, maxLength)
	}
	return nil
}

// ValidatePositiveAmount checks that an amount is a finite number greater than zero.
func ValidatePositiveAmount(amount float64, fieldName string) error {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return fmt.Errorf("%w: %s must be a finite number", ErrValidationFailed, fieldName)
	}
	if amount <= 0 {
		return fmt.Errorf("%w: %s must be greater than zero", ErrValidationFailed, fieldName)
	}
	return nil
}

// ValidateNonNegativeAmount checks that an amount is a finite number of at least zero.
func ValidateNonNegativeAmount(amount float64, fieldName string) error {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return fmt.Errorf("%w: %s must be a finite number", ErrValidationFailed, fieldName)
	}
	if amount < 0 {
		return fmt.Errorf("%w: %s cannot be negative", ErrValidationFailed, fieldName)
	}
	return nil
}

// ValidateEnum checks that a value is one of the allowed values.
// The comparison is done on the value as given; callers normalize casing first.
func ValidateEnum(value, fieldName string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("%w: %s ('%s') must be one of [%s]", ErrValidationFailed, fieldName, value, strings.Join(allowed, ", "))
}

// ValidatePercentage checks that a value lies within [0, 100].
func ValidatePercentage(value float64, fieldName string) error {
	if value < 0 || value > 100 {
		return fmt.Errorf("%w: %s must be between 0 and 100", ErrValidationFailed, fieldName)
	}
	return nil
}

// ParseAmountString parses a decimal amount string, rejecting non-finite values.
func ParseAmountString(s, fieldName string) (float64, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0, fmt.Errorf("%w: %s cannot be empty", ErrValidationFailed, fieldName)
	}
	value, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s ('%s') is not a valid number", ErrValidationFailed, fieldName, s)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("%w: %s must be a finite number", ErrValidationFailed, fieldName)
	}
	return value, nil
}
