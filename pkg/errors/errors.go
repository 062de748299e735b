package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError represents an application-level error with HTTP status code
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Detail     string `json:"detail,omitempty"`
	StatusCode int    `json:"-"`

	cause error
}

func (e *AppError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches any AppError carrying the same code, so predefined values work
// as sentinels with errors.Is even after Wrap or WithDetail.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Unwrap returns the underlying cause, if any
func (e *AppError) Unwrap() error {
	return e.cause
}

// WithDetail returns a copy of the error with the given detail
func (e *AppError) WithDetail(detail string) *AppError {
	cp := *e
	cp.Detail = detail
	return &cp
}

// Wrap returns a copy of the error that carries cause as detail and unwrap target
func (e *AppError) Wrap(cause error) *AppError {
	cp := *e
	cp.cause = cause
	if cause != nil && cp.Detail == "" {
		cp.Detail = cause.Error()
	}
	return &cp
}

// Common error codes
const (
	ErrCodeNotFound            = "not_found"
	ErrCodeBadRequest          = "bad_request"
	ErrCodeConflict            = "conflict"
	ErrCodeRateLimited         = "rate_limited"
	ErrCodeInternalError       = "internal_error"
	ErrCodeInvalidSignature    = "invalid_signature"
	ErrCodeEntropyUnavailable  = "entropy_unavailable"
	ErrCodeSigningCancelled    = "signing_cancelled"
	ErrCodeUnsupportedSigner   = "unsupported_signer_type"
	ErrCodeSignerFailed        = "signer_failed"
	ErrCodeBackendTimeout      = "backend_timeout"
	ErrCodeOwnerKeyNotFound    = "owner_key_not_found"
	ErrCodeStorageFailure      = "storage_failure"
	ErrCodeHandshakeInProgress = "handshake_in_progress"
	ErrCodeHandshakeFinished   = "handshake_finished"
	ErrCodeConnectionNotFound  = "connection_not_found"
	ErrCodeInvalidPairingCode  = "invalid_pairing_code"
	ErrCodeNoOwnerKeys         = "no_owner_keys"
	ErrCodeNoPairableKeys      = "no_pairable_keys"
	ErrCodeSessionUnavailable  = "session_unavailable"
	ErrCodeSignRequestNotFound = "sign_request_not_found"
)

// Predefined errors
var (
	ErrNotFound = &AppError{
		Code:       ErrCodeNotFound,
		Message:    "Resource not found",
		StatusCode: http.StatusNotFound,
	}

	ErrBadRequest = &AppError{
		Code:       ErrCodeBadRequest,
		Message:    "Invalid request parameters",
		StatusCode: http.StatusBadRequest,
	}

	ErrInternalError = &AppError{
		Code:       ErrCodeInternalError,
		Message:    "Internal server error",
		StatusCode: http.StatusInternalServerError,
	}

	ErrConflict = &AppError{
		Code:       ErrCodeConflict,
		Message:    "Request conflict",
		StatusCode: http.StatusConflict,
	}

	ErrRateLimited = &AppError{
		Code:       ErrCodeRateLimited,
		Message:    "Too many requests",
		StatusCode: http.StatusTooManyRequests,
	}

	ErrEntropyUnavailable = &AppError{
		Code:       ErrCodeEntropyUnavailable,
		Message:    "Failed to generate the delegate key",
		StatusCode: http.StatusInternalServerError,
	}

	ErrSigningCancelled = &AppError{
		Code:       ErrCodeSigningCancelled,
		Message:    "Signing was cancelled",
		StatusCode: http.StatusConflict,
	}

	ErrUnsupportedSignerType = &AppError{
		Code:       ErrCodeUnsupportedSigner,
		Message:    "Owner key type can not sign the delegate message",
		StatusCode: http.StatusUnprocessableEntity,
	}

	ErrBackendTimeout = &AppError{
		Code:       ErrCodeBackendTimeout,
		Message:    "Delegate registration timed out",
		StatusCode: http.StatusGatewayTimeout,
	}

	ErrOwnerKeyNotFound = &AppError{
		Code:       ErrCodeOwnerKeyNotFound,
		Message:    "Owner key not found for the delegate",
		StatusCode: http.StatusNotFound,
	}

	ErrStorageFailure = &AppError{
		Code:       ErrCodeStorageFailure,
		Message:    "Failed to store the delegate key",
		StatusCode: http.StatusInternalServerError,
	}

	ErrHandshakeInProgress = &AppError{
		Code:       ErrCodeHandshakeInProgress,
		Message:    "A delegate key registration is already running for this owner",
		StatusCode: http.StatusConflict,
	}

	ErrHandshakeFinished = &AppError{
		Code:       ErrCodeHandshakeFinished,
		Message:    "Delegate key registration already finished",
		StatusCode: http.StatusConflict,
	}

	ErrConnectionNotFound = &AppError{
		Code:       ErrCodeConnectionNotFound,
		Message:    "Connection not found",
		StatusCode: http.StatusNotFound,
	}

	ErrInvalidPairingCode = &AppError{
		Code:       ErrCodeInvalidPairingCode,
		Message:    "Invalid WalletConnect code",
		StatusCode: http.StatusBadRequest,
	}

	ErrNoOwnerKeys = &AppError{
		Code:       ErrCodeNoOwnerKeys,
		Message:    "Please import an owner key to pair with desktop",
		StatusCode: http.StatusUnprocessableEntity,
	}

	ErrNoPairableKeys = &AppError{
		Code:       ErrCodeNoPairableKeys,
		Message:    "Connected via WalletConnect keys can not be paired with the desktop",
		StatusCode: http.StatusUnprocessableEntity,
	}

	ErrSessionUnavailable = &AppError{
		Code:       ErrCodeSessionUnavailable,
		Message:    "Connection has no session yet",
		StatusCode: http.StatusConflict,
	}

	ErrSignRequestNotFound = &AppError{
		Code:       ErrCodeSignRequestNotFound,
		Message:    "Sign request not found",
		StatusCode: http.StatusNotFound,
	}
)

// New creates a new AppError
func New(code, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// NewWithDetail creates a new AppError with additional detail
func NewWithDetail(code, message, detail string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		Detail:     detail,
		StatusCode: statusCode,
	}
}

// SignerOther creates a signer failure carrying the signer's own description
func SignerOther(detail string) *AppError {
	return &AppError{
		Code:       ErrCodeSignerFailed,
		Message:    "Signer failed",
		Detail:     detail,
		StatusCode: http.StatusBadGateway,
	}
}

// InvalidSignature creates an invalid signature error
func InvalidSignature(detail string) *AppError {
	return &AppError{
		Code:       ErrCodeInvalidSignature,
		Message:    "Invalid signature",
		Detail:     detail,
		StatusCode: http.StatusBadRequest,
	}
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// From converts any error into an AppError, falling back to an internal error
func From(err error) *AppError {
	if appErr, ok := IsAppError(err); ok {
		return appErr
	}
	return ErrInternalError.Wrap(err)
}
