package account

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/baxperience/baxperience/internal/trip"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

var (
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	codePattern  = regexp.MustCompile(`^\d{6}$`)
)

// FieldError is a form validation failure.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Message
}

// UserMessage returns the message shown next to the field.
func (e *FieldError) UserMessage() string {
	return e.Message
}

// ValidateEmail checks the email format.
func ValidateEmail(email string) error {
	if email == "" {
		return &FieldError{Field: "email", Message: "Email is required"}
	}
	if !emailPattern.MatchString(email) {
		return &FieldError{Field: "email", Message: "Please enter a valid email address"}
	}
	return nil
}

// ValidateCode checks a 6-digit verification code.
func ValidateCode(code string) error {
	if code == "" {
		return &FieldError{Field: "code", Message: "Verification code is required"}
	}
	if !codePattern.MatchString(code) {
		return &FieldError{Field: "code", Message: "Please enter a valid 6-digit code"}
	}
	return nil
}

// ValidatePassword requires MinPasswordLength characters with at least one
// uppercase letter, one lowercase letter and one digit.
func ValidatePassword(password string) error {
	if password == "" {
		return &FieldError{Field: "password", Message: "Password is required"}
	}
	if len(password) < MinPasswordLength {
		return &FieldError{Field: "password", Message: fmt.Sprintf("Password must be at least %d characters long", MinPasswordLength)}
	}

	var upper, lower, digit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !upper || !lower || !digit {
		return &FieldError{Field: "password", Message: "Password must contain at least one uppercase letter, one lowercase letter, and one number"}
	}
	return nil
}

// ValidatePasswordConfirmation checks that confirm repeats password.
func ValidatePasswordConfirmation(password, confirm string) error {
	if confirm == "" {
		return &FieldError{Field: "confirmPassword", Message: "Please confirm your password"}
	}
	if password != confirm {
		return &FieldError{Field: "confirmPassword", Message: "Passwords do not match"}
	}
	return nil
}

// ValidatePreferences accepts only slugs from the preference catalog.
// Numeric IDs from older clients are rejected.
func ValidatePreferences(prefs []string) error {
	for _, p := range prefs {
		p = strings.TrimSpace(p)
		if _, err := strconv.Atoi(p); err == nil {
			return &FieldError{Field: "preferencias", Message: fmt.Sprintf("Numeric preference %q is not supported; use a preference name", p)}
		}
		if !trip.IsKnownPreference(p) {
			return &FieldError{Field: "preferencias", Message: fmt.Sprintf("Unknown preference %q", p)}
		}
	}
	return nil
}
