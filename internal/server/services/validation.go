package services

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode"

	"github.com/dmitrijs2005/gophstore/internal/common"
)

const (
	minPasswordLen = 6
	// bcrypt ignores input past 72 bytes.
	maxPasswordBytes = 72
	maxNameLen       = 100
	maxProductName   = 200
	maxDescription   = 2000
)

// ValidationError describes one rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return common.ErrorValidation }

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

func validateEmail(email string) error {
	if email == "" {
		return invalid("email", "is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return invalid("email", "is not a valid address")
	}
	return nil
}

func validatePassword(field, password string) error {
	switch {
	case len(password) < minPasswordLen:
		return invalid(field, fmt.Sprintf("must be at least %d characters", minPasswordLen))
	case len(password) > maxPasswordBytes:
		return invalid(field, fmt.Sprintf("must be at most %d bytes", maxPasswordBytes))
	case !strings.ContainsFunc(password, unicode.IsDigit) || !strings.ContainsFunc(password, unicode.IsLetter):
		return invalid(field, "must contain a letter and a digit")
	}
	return nil
}

func validateName(field, v string) error {
	if len([]rune(v)) > maxNameLen {
		return invalid(field, fmt.Sprintf("must be at most %d characters", maxNameLen))
	}
	return nil
}
