package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"
	"time"
)

// ErrorCode represents application-specific error codes
type ErrorCode string

const (
	// Authentication errors (1xxx)
	ErrCodeUnauthorized ErrorCode = "E1001"
	ErrCodeTokenExpired ErrorCode = "E1003"
	ErrCodeInvalidToken ErrorCode = "E1004"
	ErrCodeAccessDenied ErrorCode = "E1005"

	// Validation errors (2xxx)
	ErrCodeValidation   ErrorCode = "E2001"
	ErrCodeInvalidInput ErrorCode = "E2002"
	ErrCodeMissingField ErrorCode = "E2003"

	// Resource errors (3xxx)
	ErrCodeNotFound            ErrorCode = "E3001"
	ErrCodeConflict            ErrorCode = "E3003"
	ErrCodeSaleLocked          ErrorCode = "E3004"
	ErrCodeAlreadyCheckedIn    ErrorCode = "E3005"
	ErrCodeAlreadyRedeemed     ErrorCode = "E3006"
	ErrCodeHolderCountMismatch ErrorCode = "E3007"

	// Business logic errors (4xxx)
	ErrCodeEventEnded            ErrorCode = "E4003"
	ErrCodeInsufficientInventory ErrorCode = "E4004"
	ErrCodeNoItemOnTicket        ErrorCode = "E4010"
	ErrCodePriceMismatch         ErrorCode = "E4011"
	ErrCodeRateLimited           ErrorCode = "E4290"

	// Internal errors (9xxx)
	ErrCodeInternal ErrorCode = "E9001"
	ErrCodeDatabase ErrorCode = "E9002"
)

// AppError represents an application error with context
type AppError struct {
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"message"`
	Details    string                 `json:"details,omitempty"`
	HTTPStatus int                    `json:"-"`
	Cause      error                  `json:"-"`
	Stack      string                 `json:"-"`
	Fields     map[string]interface{} `json:"fields,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetails adds additional details to the error
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// WithField adds a field to the error
func (e *AppError) WithField(key string, value interface{}) *AppError {
	if e.Fields == nil {
		e.Fields = make(map[string]interface{})
	}
	e.Fields[key] = value
	return e
}

// WithCause wraps an underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Cause = err
	return e
}

// IsServerError reports whether the error maps to a 5xx status.
func (e *AppError) IsServerError() bool {
	return e.HTTPStatus >= http.StatusInternalServerError
}

// ToJSON converts error to JSON response format. Server errors never
// expose their details or fields.
func (e *AppError) ToJSON() map[string]interface{} {
	result := map[string]interface{}{
		"success": false,
		"status":  "error",
		"code":    e.Code,
		"error":   e.Message,
	}
	if e.IsServerError() {
		result["error"] = "Internal server error"
		return result
	}
	if e.Details != "" {
		result["details"] = e.Details
	}
	if len(e.Fields) > 0 {
		result["fields"] = e.Fields
	}
	return result
}

// ============================================================
// Error constructors
// ============================================================

// New creates a new AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: getHTTPStatus(code),
		Stack:      captureStack(2),
	}
}

// Wrap wraps an existing error with AppError
func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: getHTTPStatus(code),
		Cause:      err,
		Stack:      captureStack(2),
	}
}

// ============================================================
// Predefined error constructors
// ============================================================

// Authentication errors
func Unauthorized(message string) *AppError {
	return New(ErrCodeUnauthorized, message)
}

func TokenExpired() *AppError {
	return New(ErrCodeTokenExpired, "Session has expired")
}

func InvalidToken() *AppError {
	return New(ErrCodeInvalidToken, "Invalid token")
}

func AccessDenied() *AppError {
	return New(ErrCodeAccessDenied, "You do not have access to this resource")
}

// Validation errors
func ValidationError(message string) *AppError {
	return New(ErrCodeValidation, message)
}

func InvalidInput(field, message string) *AppError {
	return New(ErrCodeInvalidInput, message).WithField("field", field)
}

func MissingField(field string) *AppError {
	return New(ErrCodeMissingField, fmt.Sprintf("%s is required", field)).WithField("field", field)
}

// Resource errors
func NotFound(resource string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource))
}

func TicketTypeNotFound(ticketTypeID int64) *AppError {
	return NotFound("Ticket type").WithField("ticketTypeId", ticketTypeID)
}

func Conflict(message string) *AppError {
	return New(ErrCodeConflict, message)
}

func SaleLocked(message string) *AppError {
	return New(ErrCodeSaleLocked, message)
}

func AlreadyCheckedIn(at time.Time) *AppError {
	return New(ErrCodeAlreadyCheckedIn, "Ticket already checked in").
		WithField("checkedInAt", at.UTC().Format(time.RFC3339))
}

func AlreadyRedeemed(at time.Time) *AppError {
	return New(ErrCodeAlreadyRedeemed, "Item already collected").
		WithField("itemCollectedAt", at.UTC().Format(time.RFC3339))
}

func HolderCountMismatch(ticketType string, want, got int) *AppError {
	return New(ErrCodeHolderCountMismatch,
		fmt.Sprintf("%s requires %d ticket holder(s), got %d", ticketType, want, got)).
		WithField("ticketType", ticketType).
		WithField("expected", want).
		WithField("received", got)
}

// Business logic errors
func EventEnded() *AppError {
	return New(ErrCodeEventEnded, "Event has already ended")
}

func InsufficientInventory(ticketType string, remaining int) *AppError {
	return New(ErrCodeInsufficientInventory,
		fmt.Sprintf("Only %d %s ticket(s) remaining", remaining, ticketType)).
		WithField("ticketType", ticketType).
		WithField("remaining", remaining)
}

func NoItemOnTicket() *AppError {
	return New(ErrCodeNoItemOnTicket, "This ticket does not include an item")
}

func PriceMismatch(expected string) *AppError {
	return New(ErrCodePriceMismatch, "Cart total does not match current prices").
		WithField("expectedTotal", expected)
}

func RateLimited() *AppError {
	return New(ErrCodeRateLimited, "Too many requests, please try again later")
}

func DatabaseError(err error) *AppError {
	return Wrap(err, ErrCodeDatabase, "Database error")
}

// ============================================================
// Helper functions
// ============================================================

func getHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeUnauthorized, ErrCodeTokenExpired, ErrCodeInvalidToken:
		return http.StatusUnauthorized
	case ErrCodeAccessDenied:
		return http.StatusForbidden
	case ErrCodeValidation, ErrCodeInvalidInput, ErrCodeMissingField:
		return http.StatusBadRequest
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeConflict, ErrCodeSaleLocked, ErrCodeAlreadyCheckedIn, ErrCodeAlreadyRedeemed,
		ErrCodeHolderCountMismatch, ErrCodeInsufficientInventory:
		return http.StatusConflict
	case ErrCodeEventEnded, ErrCodeNoItemOnTicket, ErrCodePriceMismatch:
		return http.StatusUnprocessableEntity
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func captureStack(skip int) string {
	var pcs [32]uintptr
	n := runtime.Callers(skip+1, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])

	var sb strings.Builder
	for {
		frame, more := frames.Next()
		if strings.Contains(frame.File, "runtime/") {
			if !more {
				break
			}
			continue
		}
		sb.WriteString(fmt.Sprintf("%s\n\t%s:%d\n", frame.Function, frame.File, frame.Line))
		if !more {
			break
		}
	}
	return sb.String()
}

// AsAppError finds the first AppError in the chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsCode reports whether err carries the given code
func IsCode(err error, code ErrorCode) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Code == code
}

// ToAppError converts any error to AppError
func ToAppError(err error) *AppError {
	if appErr, ok := AsAppError(err); ok {
		return appErr
	}
	return Wrap(err, ErrCodeInternal, err.Error())
}
