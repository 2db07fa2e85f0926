package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name:     "without wrapped error",
			appErr:   New("CNV_001", "Insufficient funds", http.StatusUnprocessableEntity),
			expected: "[CNV_001] Insufficient funds",
		},
		{
			name:     "with wrapped error",
			appErr:   Wrap("SYS_001", "DB error", http.StatusInternalServerError, fmt.Errorf("connection refused")),
			expected: "[SYS_001] DB error: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.appErr.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	inner := fmt.Errorf("inner error")
	appErr := Wrap("SYS_001", "wrapped", http.StatusInternalServerError, inner)

	assert.True(t, errors.Is(appErr, inner))
}

func TestAppError_IsNilUnwrap(t *testing.T) {
	appErr := New("CNV_001", "test", http.StatusBadRequest)
	assert.Nil(t, appErr.Unwrap())
}

func TestAppError_IsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("convert: %w", ErrInsufficientFunds())

	assert.True(t, errors.Is(err, ErrInsufficientFunds()))
	assert.False(t, errors.Is(err, ErrAccountNotFound()))
}

func TestConversionErrors(t *testing.T) {
	venueErr := errors.New("dial tcp: timeout")

	tests := []struct {
		name       string
		err        *AppError
		code       string
		httpStatus int
		reason     string
	}{
		{"AccountNotFound", ErrAccountNotFound(), "ACC_001", 404, ReasonAccountNotFound},
		{"AccountExists", ErrAccountExists(), "ACC_002", 409, ReasonDuplicateOperation},
		{"InsufficientFunds", ErrInsufficientFunds(), "CNV_001", 422, ReasonInsufficientFunds},
		{"UnsupportedCurrency", ErrUnsupportedCurrency("XYZ"), "CNV_002", 400, ReasonInvalidRequest},
		{"QuoteUnavailable", ErrQuoteUnavailable(venueErr), "VEN_001", 503, ReasonVenueUnavailable},
		{"TradeExecutionFailed", ErrTradeExecutionFailed(venueErr), "VEN_002", 502, ReasonExecutionFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.httpStatus, tt.err.HTTPStatus)
			assert.Equal(t, tt.reason, tt.err.Reason)
		})
	}
}

func TestEventErrors(t *testing.T) {
	inner := fmt.Errorf("json: unsupported value")

	serErr := ErrSerializationFailure(inner)
	assert.Equal(t, "EVT_001", serErr.Code)
	assert.Equal(t, 500, serErr.HTTPStatus)
	assert.True(t, errors.Is(serErr, inner))

	delErr := ErrDeliveryFailure(inner)
	assert.Equal(t, "EVT_002", delErr.Code)
	assert.Equal(t, ReasonDeliveryFailure, delErr.Reason)
}

func TestPaymentErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		code       string
		httpStatus int
	}{
		{"InvalidAmount", ErrInvalidAmount(), "PAY_002", 400},
		{"InvalidTransition", ErrInvalidStatusTransition("COMPLETED", "PENDING"), "PAY_003", 409},
		{"PaymentFinal", ErrPaymentFinal("FAILED"), "PAY_003", 409},
		{"NotFound", ErrNotFound("Payment"), "PAY_004", 404},
		{"Validation", Validation("bad"), "VAL_001", 400},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.httpStatus, tt.err.HTTPStatus)
		})
	}
}

func TestSystemErrors(t *testing.T) {
	inner := fmt.Errorf("pg: connection closed")
	dbErr := ErrDatabaseError(inner)
	assert.Equal(t, "SYS_001", dbErr.Code)
	assert.Equal(t, 500, dbErr.HTTPStatus)
	assert.True(t, errors.Is(dbErr, inner))

	lockErr := ErrLockTimeout(inner)
	assert.Equal(t, "SYS_002", lockErr.Code)
	assert.Equal(t, 503, lockErr.HTTPStatus)

	internal := InternalError(inner)
	assert.Equal(t, "SYS_001", internal.Code)
	assert.Equal(t, ReasonInternal, internal.Reason)
}

func TestAuthAndRateLimitErrors(t *testing.T) {
	assert.Equal(t, 401, ErrInvalidToken().HTTPStatus)
	assert.Equal(t, 403, ErrForbidden().HTTPStatus)

	err := ErrRateLimitExceeded()
	assert.Equal(t, "RATE_001", err.Code)
	assert.Equal(t, 429, err.HTTPStatus)
}

func TestNotFoundEntity(t *testing.T) {
	err := ErrNotFound("Payment")
	assert.Contains(t, err.Message, "Payment")
	assert.Equal(t, "PAY_004", err.Code)
}
