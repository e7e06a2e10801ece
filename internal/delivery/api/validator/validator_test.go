package validator

import (
	"testing"

	domainerrors "showup/internal/domain/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Email    string `json:"email" validate:"required,email"`
	Platform string `json:"platform" validate:"omitempty,oneof=ios android web"`
}

func TestCustomValidator_Validate(t *testing.T) {
	v := New()

	require.NoError(t, v.Validate(&sample{Email: "a@b.co", Platform: "ios"}))

	err := v.Validate(&sample{})
	require.ErrorIs(t, err, domainerrors.ErrValidationFailed)
	assert.Equal(t, "email is required", err.Error())

	err = v.Validate(&sample{Email: "a@b.co", Platform: "symbian"})
	require.ErrorIs(t, err, domainerrors.ErrValidationFailed)
	assert.Equal(t, "platform must be one of ios, android, web", err.Error())
}
