package validator

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

// Regex patterns
var (
	// Email pattern - RFC 5322 simplified
	EmailPattern = regexp.MustCompile(`^[a-zA-Z0-9_+&*-]+(?:\.[a-zA-Z0-9_+&*-]+)*@(?:[a-zA-Z0-9-]+\.)+[a-zA-Z]{2,24}$`)

	// Phone pattern: optional leading +, then digits with common separators
	PhonePattern = regexp.MustCompile(`^\+?[0-9(][0-9 ().-]{5,22}[0-9]$`)

	// Person name: Unicode letters, spaces, dots, hyphens, apostrophes
	PersonNamePattern = regexp.MustCompile(`^[\p{L}\p{M} .'-]+$`)
)

const maxNameLength = 100

// IsValidEmail validates email format
func IsValidEmail(email string) bool {
	if email == "" {
		return false
	}
	return EmailPattern.MatchString(email)
}

// IsValidPhone accepts international numbers with 7 to 15 digits.
func IsValidPhone(phone string) bool {
	trimmed := strings.TrimSpace(phone)
	if !PhonePattern.MatchString(trimmed) {
		return false
	}
	digits := 0
	for _, r := range trimmed {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	return digits >= 7 && digits <= 15
}

// IsValidPersonName validates a first, last or holder name.
func IsValidPersonName(name string) bool {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" || utf8.RuneCountInString(trimmed) > maxNameLength {
		return false
	}
	return PersonNamePattern.MatchString(trimmed)
}

// GetEmailError returns user-friendly error message for email
func GetEmailError(email string) string {
	trimmed := strings.TrimSpace(email)
	if trimmed == "" {
		return "Email is required"
	}
	if !IsValidEmail(trimmed) {
		return "Email is invalid. Example: user@example.com"
	}
	return ""
}

// GetPhoneError returns user-friendly error message for phone
func GetPhoneError(phone string) string {
	trimmed := strings.TrimSpace(phone)
	if trimmed == "" {
		return "Phone number is required"
	}
	if !IsValidPhone(trimmed) {
		return "Phone number is invalid. Use 7 to 15 digits, optionally starting with +"
	}
	return ""
}

// GetNameError returns user-friendly error message for a name field
func GetNameError(field, name string) string {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return field + " is required"
	}
	if utf8.RuneCountInString(trimmed) > maxNameLength {
		return field + " must be at most 100 characters"
	}
	if !IsValidPersonName(trimmed) {
		return field + " may only contain letters, spaces, dots, hyphens and apostrophes"
	}
	return ""
}

// GetScheduleError checks that an event window is well formed.
func GetScheduleError(start, end time.Time) string {
	if start.IsZero() || end.IsZero() {
		return "Start and end time are required"
	}
	if !end.After(start) {
		return "End time must be after start time"
	}
	return ""
}
