package validator

import (
	"testing"
	"time"
)

func TestIsValidEmail(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		expected bool
	}{
		{"Valid email", "user@example.org", true},
		{"Valid with +", "user+tag@example.com", true},
		{"Long TLD", "door@venue.photography", true},
		{"Invalid - no @", "userexample.com", false},
		{"Invalid - no domain", "user@", false},
		{"Empty string", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsValidEmail(tt.email)
			if got != tt.expected {
				t.Errorf("IsValidEmail(%q) = %v, want %v", tt.email, got, tt.expected)
			}
		})
	}
}

func TestIsValidPhone(t *testing.T) {
	tests := []struct {
		name     string
		phone    string
		expected bool
	}{
		{"E.164", "+15555550100", true},
		{"With separators", "(555) 555-0100", true},
		{"Dotted", "555.555.0100", true},
		{"Local short", "5550100", true},
		{"Too short", "55501", false},
		{"Too many digits", "+1234567890123456", false},
		{"Letters", "555-CALL-NOW", false},
		{"Empty string", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsValidPhone(tt.phone)
			if got != tt.expected {
				t.Errorf("IsValidPhone(%q) = %v, want %v", tt.phone, got, tt.expected)
			}
		})
	}
}

func TestIsValidPersonName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected bool
	}{
		{"Simple", "Ada", true},
		{"Accented", "Zoë", true},
		{"Hyphen and apostrophe", "O'Neil-Smith", true},
		{"Single letter", "J", true},
		{"Digits", "R2D2", false},
		{"Blank", "   ", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsValidPersonName(tt.input)
			if got != tt.expected {
				t.Errorf("IsValidPersonName(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestGetNameError(t *testing.T) {
	if msg := GetNameError("First name", ""); msg != "First name is required" {
		t.Errorf("unexpected message %q", msg)
	}
	if msg := GetNameError("First name", "Grace"); msg != "" {
		t.Errorf("expected no error, got %q", msg)
	}
}

func TestGetScheduleError(t *testing.T) {
	start := time.Date(2026, 5, 1, 18, 0, 0, 0, time.UTC)

	if msg := GetScheduleError(start, start.Add(time.Hour)); msg != "" {
		t.Errorf("expected valid window, got %q", msg)
	}
	if msg := GetScheduleError(start, start); msg == "" {
		t.Error("expected error for zero-length window")
	}
	if msg := GetScheduleError(time.Time{}, start); msg == "" {
		t.Error("expected error for missing start")
	}
}
