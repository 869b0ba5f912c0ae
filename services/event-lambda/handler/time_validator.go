package handler

import (
	"fmt"
	"strings"
	"time"
)

// TimeValidationError represents a time validation error
type TimeValidationError struct {
	Field   string
	Message string
}

func (e *TimeValidationError) Error() string {
	return e.Message
}

// Scheduling bounds for events submitted by admins.
const (
	clockSkew       = 5 * time.Minute
	minEventLength  = 15 * time.Minute
	maxEventLength  = 14 * 24 * time.Hour
	maxScheduleDays = 730
)

// ValidateEventTime checks a new or moved event window against now.
//
// Rules:
// 1. Start time must not be in the past (5 minute allowance for clock skew)
// 2. End time must be after start time
// 3. Event must last at least 15 minutes
// 4. Event must not last more than 14 days
// 5. Event must start within two years
func ValidateEventTime(startTime, endTime, now time.Time) error {
	if startTime.Before(now.Add(-clockSkew)) {
		return &TimeValidationError{Field: "startAt", Message: "Start time cannot be in the past"}
	}
	return checkWindowBounds(startTime, endTime, now)
}

// ValidateEventEndChange checks a window whose start is already stored and
// whose end alone moves. The start may have passed, but the new end may not.
func ValidateEventEndChange(startTime, endTime, now time.Time) error {
	if endTime.Before(now.Add(-clockSkew)) {
		return &TimeValidationError{Field: "endAt", Message: "End time cannot be in the past"}
	}
	return checkWindowBounds(startTime, endTime, now)
}

func checkWindowBounds(startTime, endTime, now time.Time) error {
	if !endTime.After(startTime) {
		return &TimeValidationError{Field: "endAt", Message: "End time must be after start time"}
	}

	duration := endTime.Sub(startTime)
	if duration < minEventLength {
		return &TimeValidationError{Field: "endAt", Message: "Event must last at least 15 minutes"}
	}
	if duration > maxEventLength {
		return &TimeValidationError{Field: "endAt", Message: "Event cannot last more than 14 days"}
	}

	if startTime.After(now.AddDate(0, 0, maxScheduleDays)) {
		return &TimeValidationError{Field: "startAt", Message: "Event cannot be scheduled more than two years ahead"}
	}

	return nil
}

var eventTimeLayouts = []string{
	time.RFC3339,          // "2006-01-02T15:04:05Z07:00"
	"2006-01-02T15:04:05", // ISO8601 without zone
	"2006-01-02T15:04",    // datetime-local from HTML input
	"2006-01-02 15:04:05", // SQL datetime
	"2006-01-02 15:04",
}

// ParseEventTime parses time string in either ISO8601 or SQL datetime format.
// Values without a zone are read as UTC.
func ParseEventTime(timeStr string) (time.Time, error) {
	timeStr = strings.TrimSpace(timeStr)
	for _, layout := range eventTimeLayouts {
		if t, err := time.Parse(layout, timeStr); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time format: %s", timeStr)
}
