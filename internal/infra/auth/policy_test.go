package auth

import (
	"testing"

	"showup/config"
	domainerrors "showup/internal/domain/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPolicy() *credentialPolicy {
	return NewCredentialPolicy(&config.Config{}).(*credentialPolicy)
}

func TestValidatePassword(t *testing.T) {
	policy := newTestPolicy()

	tests := []struct {
		password string
		wantMsg  string
	}{
		{password: "short1", wantMsg: "Password must be at least 8 characters"},
		{password: "alllowercase1", wantMsg: "Password must contain at least one uppercase letter"},
		{password: "ALLUPPERCASE1", wantMsg: "Password must contain at least one lowercase letter"},
		{password: "NoDigitsHere", wantMsg: "Password must contain at least one number"},
		{password: "Valid1Pass"},
	}

	for _, tt := range tests {
		t.Run(tt.password, func(t *testing.T) {
			err := policy.ValidatePassword(tt.password)
			if tt.wantMsg == "" {
				assert.NoError(t, err)

				return
			}

			var appErr domainerrors.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, "VALIDATION_FAILED", appErr.ErrorCode())
			assert.Equal(t, tt.wantMsg, appErr.Message())
		})
	}
}

func TestValidatePassword_RejectsOverlong(t *testing.T) {
	policy := newTestPolicy()

	err := policy.ValidatePassword("Aa1" + string(make([]byte, 80)))
	assert.Error(t, err)
}

func TestValidateEmail(t *testing.T) {
	policy := newTestPolicy()

	tests := []struct {
		email string
		valid bool
	}{
		{email: "user@example.com", valid: true},
		{email: "first.last+tag@sub.example.co", valid: true},
		{email: "user@@bad", valid: false},
		{email: "no-at-sign", valid: false},
		{email: "user@nodot", valid: false},
		{email: "spa ce@example.com", valid: false},
		{email: "", valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			err := policy.ValidateEmail(tt.email)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
			assert.Equal(t, tt.valid, IsValidEmail(tt.email))
		})
	}
}
