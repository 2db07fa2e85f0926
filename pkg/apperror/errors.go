package apperror

import (
	"fmt"
	"net/http"
)

// Reason categories reported to callers of a declined conversion.
const (
	ReasonInsufficientFunds  = "insufficient_funds"
	ReasonVenueUnavailable   = "venue_unavailable"
	ReasonExecutionFailed    = "execution_failed"
	ReasonAccountNotFound    = "account_not_found"
	ReasonInvalidRequest     = "invalid_request"
	ReasonSerialization      = "serialization_failure"
	ReasonDeliveryFailure    = "delivery_failure"
	ReasonInvalidTransition  = "invalid_transition"
	ReasonInternal           = "internal"
	ReasonUnauthorized       = "unauthorized"
	ReasonRateLimitExceeded  = "rate_limited"
	ReasonResourceNotFound   = "not_found"
	ReasonDuplicateOperation = "duplicate"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	Reason     string `json:"reason,omitempty"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches any *AppError carrying the same code, so callers can write
// errors.Is(err, apperror.ErrInsufficientFunds()).
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// WithReason sets the caller-facing reason category.
func (e *AppError) WithReason(reason string) *AppError {
	e.Reason = reason
	return e
}

// ---- Accounts (ACC) ----

func ErrAccountNotFound() *AppError {
	return New("ACC_001", "Account not found", http.StatusNotFound).WithReason(ReasonAccountNotFound)
}

func ErrAccountExists() *AppError {
	return New("ACC_002", "Account already exists", http.StatusConflict).WithReason(ReasonDuplicateOperation)
}

// ---- Conversion (CNV) ----

func ErrInsufficientFunds() *AppError {
	return New("CNV_001", "Insufficient balance for conversion", http.StatusUnprocessableEntity).
		WithReason(ReasonInsufficientFunds)
}

func ErrUnsupportedCurrency(currency string) *AppError {
	return New("CNV_002", fmt.Sprintf("Unsupported currency: %s", currency), http.StatusBadRequest).
		WithReason(ReasonInvalidRequest)
}

// ---- Venue (VEN) ----

func ErrQuoteUnavailable(err error) *AppError {
	return Wrap("VEN_001", "Quote unavailable from venue", http.StatusServiceUnavailable, err).
		WithReason(ReasonVenueUnavailable)
}

func ErrTradeExecutionFailed(err error) *AppError {
	return Wrap("VEN_002", "Trade execution failed at venue", http.StatusBadGateway, err).
		WithReason(ReasonExecutionFailed)
}

// ---- Events (EVT) ----

func ErrSerializationFailure(err error) *AppError {
	return Wrap("EVT_001", "Event could not be encoded", http.StatusInternalServerError, err).
		WithReason(ReasonSerialization)
}

// ErrDeliveryFailure is used by the outbox publisher only; the original
// business write has already committed when delivery is attempted.
func ErrDeliveryFailure(err error) *AppError {
	return Wrap("EVT_002", "Event stream delivery failed", http.StatusServiceUnavailable, err).
		WithReason(ReasonDeliveryFailure)
}

// ---- Payments (PAY) ----

func ErrInvalidAmount() *AppError {
	return New("PAY_002", "Invalid amount", http.StatusBadRequest).WithReason(ReasonInvalidRequest)
}

func ErrInvalidStatusTransition(from, to string) *AppError {
	return New("PAY_003", fmt.Sprintf("Cannot move payment from %s to %s", from, to), http.StatusConflict).
		WithReason(ReasonInvalidTransition)
}

// ErrPaymentFinal is returned when a payment has no further transitions.
func ErrPaymentFinal(status string) *AppError {
	return New("PAY_003", fmt.Sprintf("Payment is %s and can no longer change", status), http.StatusConflict).
		WithReason(ReasonInvalidTransition)
}

func ErrNotFound(entity string) *AppError {
	return New("PAY_004", fmt.Sprintf("%s not found", entity), http.StatusNotFound).
		WithReason(ReasonResourceNotFound)
}

// ---- Authentication (AUTH) ----

func ErrInvalidToken() *AppError {
	return New("AUTH_003", "Invalid or expired token", http.StatusUnauthorized).WithReason(ReasonUnauthorized)
}

func ErrForbidden() *AppError {
	return New("AUTH_005", "Token subject does not own this resource", http.StatusForbidden).
		WithReason(ReasonUnauthorized)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests).WithReason(ReasonRateLimitExceeded)
}

// ---- System & Infrastructure (SYS) ----

func ErrDatabaseError(err error) *AppError {
	return Wrap("SYS_001", "Internal database error", http.StatusInternalServerError, err).WithReason(ReasonInternal)
}

func ErrLockTimeout(err error) *AppError {
	return Wrap("SYS_002", "Lock acquisition timeout", http.StatusServiceUnavailable, err).WithReason(ReasonInternal)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err).WithReason(ReasonInternal)
}

// Validation returns a VAL_001 validation error.
func Validation(message string) *AppError {
	return New("VAL_001", message, http.StatusBadRequest).WithReason(ReasonInvalidRequest)
}
