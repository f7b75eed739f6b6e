package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kartis/internal/apperrors"
)

func TestNewConfirmationCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		code, err := NewConfirmationCode()
		require.NoError(t, err)
		assert.Len(t, code, 6)
		for _, r := range code {
			assert.Contains(t, confirmationAlphabet, string(r))
		}
		seen[code] = true
	}
	// 100 draws from a 32^6 space colliding down to a handful would mean a
	// broken generator.
	assert.Greater(t, len(seen), 90)
}

func TestValidateRequiredFields(t *testing.T) {
	required := []string{"full_name", "class"}

	err := validateRequiredFields(required, map[string]string{
		"full_name": "Dana Levi",
		"class":     "7B",
	})
	assert.NoError(t, err)

	err = validateRequiredFields(required, map[string]string{"full_name": "Dana Levi"})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	// Empty values count as missing.
	err = validateRequiredFields(required, map[string]string{
		"full_name": "Dana Levi",
		"class":     "",
	})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	assert.NoError(t, validateRequiredFields(nil, nil))
}
