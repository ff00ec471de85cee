package validators

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_Validator_Check(t *testing.T) {
	v := NewValidator()
	assert.False(t, v.HasErrors())

	v.Check(true, "currency", "currency is required")
	assert.False(t, v.HasErrors())

	v.Check(false, "currency", "currency is required")
	v.Check(false, "amount", "amount must be positive")
	assert.True(t, v.HasErrors())
	assert.Equal(t, map[string]any{
		"currency": "currency is required",
		"amount":   "amount must be positive",
	}, v.Errors)
}

func Test_Validator_CheckError(t *testing.T) {
	t.Run("nil error adds nothing", func(t *testing.T) {
		v := NewValidator()
		v.CheckError(nil, "iban", "")
		assert.False(t, v.HasErrors())
	})

	t.Run("uses the error message when none is given", func(t *testing.T) {
		v := NewValidator()
		v.CheckError(fmt.Errorf("invalid check digits"), "iban", "")
		assert.Equal(t, map[string]any{"iban": "invalid check digits"}, v.Errors)
	})

	t.Run("explicit message wins", func(t *testing.T) {
		v := NewValidator()
		v.CheckError(fmt.Errorf("invalid check digits"), "iban", "iban is not valid")
		assert.Equal(t, map[string]any{"iban": "iban is not valid"}, v.Errors)
	})
}
