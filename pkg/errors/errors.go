package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/testme/testme-backend/pkg/i18n"
)

// Error kinds. Every AppError wraps exactly one of these so callers can
// branch with errors.Is regardless of the concrete cause.
var (
	ErrNotFound           = errors.New("resource not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrBadRequest         = errors.New("bad request")
	ErrInternal           = errors.New("internal server error")
	ErrValidation         = errors.New("validation error")
	ErrConfiguration      = errors.New("configuration error")
	ErrUpstream           = errors.New("upstream service error")
	ErrTimeout            = errors.New("upstream service timeout")
	ErrParse              = errors.New("parse error")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenInvalid       = errors.New("invalid token")
)

// AppError represents an application error with context
type AppError struct {
	Err        error             `json:"-"`
	Message    string            `json:"message"`
	MessageKey string            `json:"-"` // i18n key for the user-facing message
	Params     map[string]string `json:"-"`
	Code       string            `json:"code"`
	StatusCode int               `json:"status_code"`
	Details    map[string]string `json:"details,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// Localize returns the user-facing message in the request locale
func (e *AppError) Localize(ctx context.Context) string {
	if e.MessageKey == "" {
		return e.Message
	}
	return i18n.TFromContext(ctx, e.MessageKey, e.Params)
}

// WithDetails adds details to an AppError
func (e *AppError) WithDetails(details map[string]string) *AppError {
	e.Details = details
	return e
}

// WithKey overrides the user-facing message key
func (e *AppError) WithKey(messageKey string, params ...map[string]string) *AppError {
	e.MessageKey = messageKey
	if len(params) > 0 {
		e.Params = params[0]
	}
	return e
}

// New creates a new AppError
func New(code string, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, code string, message string, statusCode int) *AppError {
	return &AppError{
		Err:        err,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// kindOf joins the sentinel with an optional cause so both stay reachable
// through errors.Is.
func kindOf(kind, cause error) error {
	if cause == nil {
		return kind
	}
	return fmt.Errorf("%w: %w", kind, cause)
}

func NotFound(resource string) *AppError {
	return &AppError{
		Err:        ErrNotFound,
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		MessageKey: "errors.not_found",
		Params:     map[string]string{"resource": resource},
		StatusCode: http.StatusNotFound,
	}
}

func Unauthorized(message string) *AppError {
	return &AppError{
		Err:        ErrUnauthorized,
		Code:       "UNAUTHORIZED",
		Message:    message,
		MessageKey: "errors.unauthorized",
		StatusCode: http.StatusUnauthorized,
	}
}

func BadRequest(message string) *AppError {
	return &AppError{
		Err:        ErrBadRequest,
		Code:       "BAD_REQUEST",
		Message:    message,
		MessageKey: "errors.bad_request",
		StatusCode: http.StatusBadRequest,
	}
}

func Internal(message string) *AppError {
	return &AppError{
		Err:        ErrInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		MessageKey: "errors.internal",
		StatusCode: http.StatusInternalServerError,
	}
}

// Validation reports malformed input. Never retried.
func Validation(details map[string]string) *AppError {
	return &AppError{
		Err:        ErrValidation,
		Code:       "VALIDATION_ERROR",
		Message:    "validation failed",
		MessageKey: "errors.validation_failed",
		StatusCode: http.StatusBadRequest,
		Details:    details,
	}
}

// InvalidInput is a single-field validation error with its own message key.
func InvalidInput(field, messageKey string) *AppError {
	return &AppError{
		Err:        ErrValidation,
		Code:       "VALIDATION_ERROR",
		Message:    fmt.Sprintf("invalid %s", field),
		MessageKey: messageKey,
		StatusCode: http.StatusBadRequest,
		Details:    map[string]string{field: messageKey},
	}
}

// TooLarge rejects an upload over limitBytes with 413
func TooLarge(field string, limitBytes int64) *AppError {
	return &AppError{
		Err:        ErrValidation,
		Code:       "VALIDATION_ERROR",
		Message:    fmt.Sprintf("%s too large", field),
		MessageKey: "errors.file_too_large",
		Params:     map[string]string{"limit": fmt.Sprintf("%dMB", limitBytes>>20)},
		StatusCode: http.StatusRequestEntityTooLarge,
		Details:    map[string]string{field: "errors.file_too_large"},
	}
}

// Configuration reports a missing credential or setting. Never retried.
func Configuration(setting string) *AppError {
	return &AppError{
		Err:        ErrConfiguration,
		Code:       "CONFIGURATION_ERROR",
		Message:    fmt.Sprintf("missing configuration: %s", setting),
		MessageKey: "errors.configuration",
		StatusCode: http.StatusInternalServerError,
	}
}

// Upstream reports a failed call to an external service. Retried once by pkg/retry.
func Upstream(service string, cause error) *AppError {
	return &AppError{
		Err:        kindOf(ErrUpstream, cause),
		Code:       "UPSTREAM_ERROR",
		Message:    fmt.Sprintf("%s request failed", service),
		MessageKey: "errors.upstream",
		Params:     map[string]string{"service": service},
		StatusCode: http.StatusBadGateway,
	}
}

// Timeout reports an external call that exceeded its deadline.
func Timeout(service string, cause error) *AppError {
	return &AppError{
		Err:        kindOf(ErrTimeout, cause),
		Code:       "UPSTREAM_TIMEOUT",
		Message:    fmt.Sprintf("%s request timed out", service),
		MessageKey: "errors.timeout",
		Params:     map[string]string{"service": service},
		StatusCode: http.StatusGatewayTimeout,
	}
}

// Parse reports unparseable structured data from an external service.
// Callers degrade to an empty result instead of surfacing it.
func Parse(what string, cause error) *AppError {
	return &AppError{
		Err:        kindOf(ErrParse, cause),
		Code:       "PARSE_ERROR",
		Message:    fmt.Sprintf("could not parse %s", what),
		MessageKey: "errors.internal",
		StatusCode: http.StatusBadGateway,
	}
}

func InvalidCredentials() *AppError {
	return &AppError{
		Err:        ErrInvalidCredentials,
		Code:       "INVALID_CREDENTIALS",
		Message:    "invalid password",
		MessageKey: "errors.invalid_credentials",
		StatusCode: http.StatusUnauthorized,
	}
}

func TokenExpired() *AppError {
	return &AppError{
		Err:        ErrTokenExpired,
		Code:       "TOKEN_EXPIRED",
		Message:    "token has expired",
		MessageKey: "errors.token_expired",
		StatusCode: http.StatusUnauthorized,
	}
}

func TokenInvalid() *AppError {
	return &AppError{
		Err:        ErrTokenInvalid,
		Code:       "TOKEN_INVALID",
		Message:    "invalid token",
		MessageKey: "errors.token_invalid",
		StatusCode: http.StatusUnauthorized,
	}
}

// IsRetryable reports whether err is worth another attempt. Only upstream
// failures qualify; configuration, validation and timeout errors are final.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrUpstream)
}

// Is checks if the error matches a target error
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As attempts to convert an error to a specific type
func As(err error, target any) bool {
	return errors.As(err, target)
}
