package auth

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"showup/config"
	domainerrors "showup/internal/domain/errors"
	"showup/internal/domain/service"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// credentialPolicy enforces the registration password and email rules.
type credentialPolicy struct {
	rules *config.PasswordStrengthConfig
}

// NewCredentialPolicy builds the policy from config, falling back to defaults.
func NewCredentialPolicy(cfg *config.Config) service.CredentialPolicy {
	rules := cfg.PasswordStrength
	if rules == nil {
		rules = config.DefaultPasswordStrength()
	}

	return &credentialPolicy{rules: rules}
}

// ValidatePassword returns the first failing rule as a validation error.
func (p *credentialPolicy) ValidatePassword(password string) error {
	if len(password) < p.rules.MinLength {
		return domainerrors.NewValidationError("Password must be at least " + strconv.Itoa(p.rules.MinLength) + " characters")
	}
	if p.rules.MaxLength > 0 && len(password) > p.rules.MaxLength {
		return domainerrors.NewValidationError("Password must be at most " + strconv.Itoa(p.rules.MaxLength) + " characters")
	}
	if p.rules.RequireUppercase && !strings.ContainsFunc(password, unicode.IsUpper) {
		return domainerrors.NewValidationError("Password must contain at least one uppercase letter")
	}
	if p.rules.RequireLowercase && !strings.ContainsFunc(password, unicode.IsLower) {
		return domainerrors.NewValidationError("Password must contain at least one lowercase letter")
	}
	if p.rules.RequireNumbers && !strings.ContainsFunc(password, unicode.IsDigit) {
		return domainerrors.NewValidationError("Password must contain at least one number")
	}

	return nil
}

// ValidateEmail checks the conventional local@domain.tld shape.
func (p *credentialPolicy) ValidateEmail(email string) error {
	if !emailPattern.MatchString(email) {
		return domainerrors.NewValidationError("Invalid email address")
	}

	return nil
}

// IsValidEmail reports whether email has the local@domain.tld shape.
func IsValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}
