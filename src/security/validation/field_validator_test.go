package validation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePositiveAmount(t *testing.T) {
	assert.NoError(t, ValidatePositiveAmount(0.01, "amount"))
	assert.ErrorIs(t, ValidatePositiveAmount(0, "amount"), ErrValidationFailed)
	assert.ErrorIs(t, ValidatePositiveAmount(-5, "amount"), ErrValidationFailed)
	assert.ErrorIs(t, ValidatePositiveAmount(math.NaN(), "amount"), ErrValidationFailed)
	assert.ErrorIs(t, ValidatePositiveAmount(math.Inf(1), "amount"), ErrValidationFailed)
}

func TestValidateNonNegativeAmount(t *testing.T) {
	assert.NoError(t, ValidateNonNegativeAmount(0, "amount"))
	assert.ErrorIs(t, ValidateNonNegativeAmount(-0.01, "amount"), ErrValidationFailed)
}

func TestValidateStringMaxLengthCountsRunes(t *testing.T) {
	assert.NoError(t, ValidateStringMaxLength("héllo", 5, "name"))
	assert.ErrorIs(t, ValidateStringMaxLength("héllo!", 5, "name"), ErrValidationFailed)
}

func TestValidateEnum(t *testing.T) {
	assert.NoError(t, ValidateEnum("EXPENSE", "type", "INCOME", "EXPENSE"))
	err := ValidateEnum("expense", "type", "INCOME", "EXPENSE")
	assert.ErrorIs(t, err, ErrValidationFailed)
}

func TestValidatePercentage(t *testing.T) {
	assert.NoError(t, ValidatePercentage(0, "threshold"))
	assert.NoError(t, ValidatePercentage(100, "threshold"))
	assert.ErrorIs(t, ValidatePercentage(100.1, "threshold"), ErrValidationFailed)
	assert.ErrorIs(t, ValidatePercentage(-1, "threshold"), ErrValidationFailed)
}

func TestParseAmountString(t *testing.T) {
	value, err := ParseAmountString(" 19.90 ", "amount")
	require.NoError(t, err)
	assert.Equal(t, 19.90, value)

	_, err = ParseAmountString("", "amount")
	assert.ErrorIs(t, err, ErrValidationFailed)
	_, err = ParseAmountString("abc", "amount")
	assert.ErrorIs(t, err, ErrValidationFailed)
	_, err = ParseAmountString("NaN", "amount")
	assert.ErrorIs(t, err, ErrValidationFailed)
}

func TestNormalizeFreeText(t *testing.T) {
	assert.Equal(t, "Coffee beans", NormalizeFreeText("  <b>Coffee</b> beans \x00 "))
	// Script element content is dropped entirely, not just the tags.
	assert.Equal(t, "", NormalizeFreeText("<script>alert('x')</script>"))
}
