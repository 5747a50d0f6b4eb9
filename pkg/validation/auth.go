package validation

import (
	"errors"
	"fmt"
)

const (
	maxUsernameLength = 50
	// bcrypt ignores input past 72 bytes
	maxPasswordBytes = 72
)

// AuthRequestValidator validates authentication-related requests
type AuthRequestValidator struct{}

// NewAuthRequestValidator creates a new AuthRequestValidator
func NewAuthRequestValidator() *AuthRequestValidator {
	return &AuthRequestValidator{}
}

// ValidateLoginRequest validates a login request
func (v *AuthRequestValidator) ValidateLoginRequest(username, password string) error {
	if username == "" {
		return errors.New("username cannot be empty")
	}
	if len(username) > maxUsernameLength {
		return fmt.Errorf("username must be at most %d characters long, got %d", maxUsernameLength, len(username))
	}

	if password == "" {
		return errors.New("password cannot be empty")
	}
	if len(password) > maxPasswordBytes {
		return fmt.Errorf("password must be at most %d bytes long", maxPasswordBytes)
	}

	return nil
}
