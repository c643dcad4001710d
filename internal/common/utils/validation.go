package utils

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/hirosato/checklist-portal/backend/internal/domain/errors"
)

var (
	// EmailRegex validates email addresses
	EmailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
)

const (
	minYear = 2000
	maxYear = 2100
)

// ValidateEmail validates an email address
func ValidateEmail(email string) error {
	if !EmailRegex.MatchString(email) {
		return errors.NewValidationError("invalid email format")
	}
	return nil
}

// ValidateYear validates a fiscal year
func ValidateYear(year int) error {
	if year < minYear || year > maxYear {
		return errors.NewValidationError(fmt.Sprintf("year must be between %d and %d", minYear, maxYear))
	}
	return nil
}

// ValidateMonth validates a calendar month
func ValidateMonth(month int) error {
	if month < 1 || month > 12 {
		return errors.NewValidationError("month must be between 1 and 12")
	}
	return nil
}

// ValidateRequiredString validates that a string is not empty
func ValidateRequiredString(value, fieldName string) error {
	if strings.TrimSpace(value) == "" {
		return errors.NewValidationError(fieldName + " is required")
	}
	return nil
}
