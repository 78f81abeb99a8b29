// Package errors provides the structured error type returned by every service.
// Handlers translate an AppError into {"error":{"code","message"}} and log the
// wrapped internal error, so clients never see store or provider details.
package errors

import (
	"errors"
	"net/http"
)

// AppError represents a structured application error with an error code,
// human-readable message, HTTP status code, and optional internal error.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string { return e.Message }

// Unwrap returns the internal error for use with errors.Is/As.
func (e *AppError) Unwrap() error { return e.Internal }

// Is reports whether target is an AppError with the same code, so wrapped
// copies of a sentinel still match it.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Wrap creates a new AppError with the same code/message/status but wraps an internal error.
func Wrap(sentinel *AppError, internal error) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		StatusCode: sentinel.StatusCode,
		Internal:   internal,
	}
}

// WithMessage creates a new AppError with a custom message.
func WithMessage(sentinel *AppError, message string) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    message,
		StatusCode: sentinel.StatusCode,
		Internal:   sentinel.Internal,
	}
}

// CodeOf returns the code of err if it is an AppError, or INTERNAL_ERROR otherwise.
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternalServer.Code
}

// Authentication & authorization errors.
var (
	ErrUnauthorized       = &AppError{Code: "UNAUTHORIZED", Message: "Authentication required", StatusCode: http.StatusUnauthorized}
	ErrInvalidCredentials = &AppError{Code: "INVALID_CREDENTIALS", Message: "Invalid email or password", StatusCode: http.StatusUnauthorized}
	ErrAccountLocked      = &AppError{Code: "ACCOUNT_LOCKED", Message: "Account is temporarily locked", StatusCode: http.StatusLocked}
)

// General errors.
var (
	ErrInvalidInput   = &AppError{Code: "INVALID_INPUT", Message: "Invalid input", StatusCode: http.StatusBadRequest}
	ErrStoreConflict  = &AppError{Code: "STORE_CONFLICT", Message: "The resource was modified concurrently, please retry", StatusCode: http.StatusConflict}
	ErrInternalServer = &AppError{Code: "INTERNAL_ERROR", Message: "An internal error occurred", StatusCode: http.StatusInternalServerError}
)

// User and profile errors.
var (
	ErrUserNotFound    = &AppError{Code: "USER_NOT_FOUND", Message: "User not found", StatusCode: http.StatusNotFound}
	ErrDuplicateEmail  = &AppError{Code: "DUPLICATE_EMAIL", Message: "A user with this email already exists", StatusCode: http.StatusConflict}
	ErrProfileNotFound = &AppError{Code: "PROFILE_NOT_FOUND", Message: "Profile not found", StatusCode: http.StatusNotFound}
)

// Video identity errors.
var (
	ErrInvalidURL          = &AppError{Code: "INVALID_URL", Message: "The video URL could not be parsed", StatusCode: http.StatusBadRequest}
	ErrUnsupportedPlatform = &AppError{Code: "UNSUPPORTED_PLATFORM", Message: "Only TikTok and Instagram videos are supported", StatusCode: http.StatusBadRequest}
	ErrVideoNotFound       = &AppError{Code: "VIDEO_NOT_FOUND", Message: "Video not found", StatusCode: http.StatusNotFound}
)

// Engagement stats errors.
var (
	ErrStatsFetchFailed = &AppError{Code: "STATS_FETCH_FAILED", Message: "Failed to fetch video statistics", StatusCode: http.StatusBadGateway}
	ErrStatsUnavailable = &AppError{Code: "STATS_UNAVAILABLE", Message: "No valid statistics found for this video", StatusCode: http.StatusNotFound}
	ErrStatsRateLimited = &AppError{Code: "STATS_RATE_LIMITED", Message: "Too many statistics requests, please retry later", StatusCode: http.StatusTooManyRequests}
)

// Investment errors.
var (
	ErrInvalidAmount         = &AppError{Code: "INVALID_AMOUNT", Message: "Amount must be a positive whole number of shares", StatusCode: http.StatusBadRequest}
	ErrInvalidPrice          = &AppError{Code: "INVALID_PRICE", Message: "This video has no engagement to price shares from", StatusCode: http.StatusUnprocessableEntity}
	ErrInsufficientInventory = &AppError{Code: "INSUFFICIENT_INVENTORY", Message: "Not enough shares available", StatusCode: http.StatusConflict}
	ErrInsufficientBalance   = &AppError{Code: "INSUFFICIENT_BALANCE", Message: "Insufficient balance", StatusCode: http.StatusPaymentRequired}
	ErrInvestmentNotFound    = &AppError{Code: "INVESTMENT_NOT_FOUND", Message: "Investment not found", StatusCode: http.StatusNotFound}
)
