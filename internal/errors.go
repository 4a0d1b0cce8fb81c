package internal

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "VALIDATION_ERROR"
	ErrorTypeNotFound     ErrorType = "NOT_FOUND"
	ErrorTypeUnauthorized ErrorType = "UNAUTHORIZED"
	ErrorTypeForbidden    ErrorType = "FORBIDDEN"
	ErrorTypeConflict     ErrorType = "CONFLICT"
	ErrorTypeInternal     ErrorType = "INTERNAL_ERROR"
)

type ErrorCode string

const (
	ErrCodeValidationFailed       ErrorCode = "VALIDATION_FAILED"
	ErrCodeInvalidRange           ErrorCode = "INVALID_RANGE"
	ErrCodeDateConflict           ErrorCode = "DATE_CONFLICT"
	ErrCodeInsufficientNotice     ErrorCode = "INSUFFICIENT_NOTICE"
	ErrCodeInsufficientBalance    ErrorCode = "INSUFFICIENT_BALANCE"
	ErrCodeBalanceExceeded        ErrorCode = "BALANCE_EXCEEDED"
	ErrCodePolicyNotFound         ErrorCode = "POLICY_NOT_FOUND"
	ErrCodeInsufficientAuthority  ErrorCode = "INSUFFICIENT_AUTHORITY"
	ErrCodeConcurrentModification ErrorCode = "CONCURRENT_MODIFICATION"
	ErrCodeRequestLocked          ErrorCode = "REQUEST_LOCKED"
	ErrCodeRequestNotFound        ErrorCode = "REQUEST_NOT_FOUND"
	ErrCodeEmployeeNotFound       ErrorCode = "EMPLOYEE_NOT_FOUND"
	ErrCodeBalanceNotFound        ErrorCode = "BALANCE_NOT_FOUND"

	ErrCodeInvalidCredentials ErrorCode = "INVALID_CREDENTIALS"
	ErrCodeEmployeeInactive   ErrorCode = "EMPLOYEE_INACTIVE"
	ErrCodeInvalidToken       ErrorCode = "INVALID_TOKEN"
	ErrCodeTokenExpired       ErrorCode = "TOKEN_EXPIRED"
)

type AppError struct {
	Type       ErrorType   `json:"type"`
	Code       ErrorCode   `json:"code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
	StatusCode int         `json:"-"`
	Cause      error       `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

func (e *AppError) WithDetails(details interface{}) *AppError {
	e.Details = details
	return e
}

func NewValidationError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func NewNotFoundError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}

func NewUnauthorizedError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeUnauthorized,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

func NewForbiddenError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeForbidden,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusForbidden,
	}
}

func NewConflictError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeConflict,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

func NewInternalError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

func IsAppError(err error) (*AppError, bool) {
	if appErr, ok := err.(*AppError); ok {
		return appErr, true
	}
	return nil, false
}

func (e *AppError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type    ErrorType   `json:"type"`
		Code    ErrorCode   `json:"code"`
		Message string      `json:"message"`
		Details interface{} `json:"details,omitempty"`
	}{
		Type:    e.Type,
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	})
}

// Structured domain errors. Every error carries enough context for the caller
// to render a precise message; the transport layer maps each to an AppError.

// InvalidRangeError reports a date range that cannot be expanded into any
// working day, or one whose end precedes its start.
type InvalidRangeError struct {
	StartDate time.Time
	EndDate   time.Time
	Reason    string
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid leave range %s..%s: %s",
		e.StartDate.Format("2006-01-02"), e.EndDate.Format("2006-01-02"), e.Reason)
}

// DateConflictError reports an overlap with an existing non-rejected leave day.
type DateConflictError struct {
	EmployeeID     int64
	Date           time.Time
	ExistingStatus string
	ExistingType   string
}

func (e *DateConflictError) Error() string {
	return fmt.Sprintf("employee %d already has a %s %s leave day on %s",
		e.EmployeeID, e.ExistingStatus, e.ExistingType, e.Date.Format("2006-01-02"))
}

// InsufficientNoticeError reports a request filed closer to its start date
// than the applicable leave rule allows.
type InsufficientNoticeError struct {
	RequiredDays int
	GivenDays    int
	StartDate    time.Time
}

func (e *InsufficientNoticeError) Error() string {
	return fmt.Sprintf("leave starting %s requires %d days notice, got %d",
		e.StartDate.Format("2006-01-02"), e.RequiredDays, e.GivenDays)
}

// PolicyNotFoundError means no policy row is effective for the role and leave
// type; the leave type is treated as disabled for that role.
type PolicyNotFoundError struct {
	Role      string
	LeaveType string
	AsOf      time.Time
}

func (e *PolicyNotFoundError) Error() string {
	return fmt.Sprintf("no %s leave policy for role %s as of %s",
		e.LeaveType, e.Role, e.AsOf.Format("2006-01-02"))
}

// InsufficientBalanceError reports a reservation that would overdraw the
// employee's balance, counting outstanding pending days.
type InsufficientBalanceError struct {
	EmployeeID int64
	LeaveType  string
	Available  decimal.Decimal
	Requested  decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("employee %d has %s %s available, requested %s",
		e.EmployeeID, e.Available, e.LeaveType, e.Requested)
}

// BalanceExceededError reports a commit whose post-condition would break the
// balance floor/ceiling invariant.
type BalanceExceededError struct {
	EmployeeID int64
	LeaveType  string
	Resulting  decimal.Decimal
	Limit      decimal.Decimal
}

func (e *BalanceExceededError) Error() string {
	return fmt.Sprintf("committing would move employee %d %s balance to %s (limit %s)",
		e.EmployeeID, e.LeaveType, e.Resulting, e.Limit)
}

// InsufficientAuthorityError reports an approver trying to override a decision
// made higher up the hierarchy.
type InsufficientAuthorityError struct {
	RequestID     int64
	ActorRole     string
	DecidedByRole string
}

func (e *InsufficientAuthorityError) Error() string {
	return fmt.Sprintf("role %s cannot override a decision by %s on request %d",
		e.ActorRole, e.DecidedByRole, e.RequestID)
}

// ConcurrentModificationError reports a lost optimistic-state race; retrying
// once after re-reading current state is safe.
type ConcurrentModificationError struct {
	Entity string
	ID     int64
}

func (e *ConcurrentModificationError) Error() string {
	return fmt.Sprintf("%s %d was modified concurrently", e.Entity, e.ID)
}

// RequestLockedError reports an edit or delete attempted after an approver
// already touched the request, or after the request left the pending state.
type RequestLockedError struct {
	RequestID     int64
	Status        string
	DecidedByRole string
}

func (e *RequestLockedError) Error() string {
	if e.DecidedByRole != "" {
		return fmt.Sprintf("request %d is locked: already handled by %s", e.RequestID, e.DecidedByRole)
	}
	return fmt.Sprintf("request %d is locked: status %s", e.RequestID, e.Status)
}

var (
	ErrRequestNotFound  = NewNotFoundError("leave request not found", ErrCodeRequestNotFound)
	ErrEmployeeNotFound = NewNotFoundError("employee not found", ErrCodeEmployeeNotFound)
	ErrBalanceNotFound  = NewNotFoundError("leave balance not found", ErrCodeBalanceNotFound)

	ErrInvalidCredentials = NewUnauthorizedError("invalid email or password", ErrCodeInvalidCredentials)
	ErrEmployeeInactive   = NewForbiddenError("employee account is inactive", ErrCodeEmployeeInactive)
	ErrInvalidToken       = NewUnauthorizedError("invalid token", ErrCodeInvalidToken)
	ErrTokenExpired       = NewUnauthorizedError("token has expired", ErrCodeTokenExpired)
)
