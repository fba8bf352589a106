package errors

import (
	stderrors "errors"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// ErrorCode identifies a class of application failure.
type ErrorCode string

const (
	ErrCodeInternal   ErrorCode = "INTERNAL_ERROR"
	ErrCodeValidation ErrorCode = "VALIDATION_ERROR"
	ErrCodeNotFound   ErrorCode = "NOT_FOUND"

	// Credential and authorization failures
	ErrCodeInvalidCredential ErrorCode = "INVALID_CREDENTIAL"
	ErrCodeInvalidOrExpired  ErrorCode = "INVALID_OR_EXPIRED_TOKEN"
	ErrCodeAccessDenied      ErrorCode = "ACCESS_DENIED"

	// Infrastructure failures
	ErrCodeStorage         ErrorCode = "STORAGE_FAILURE"
	ErrCodeExternalChannel ErrorCode = "EXTERNAL_CHANNEL_FAILURE"
)

// AppError is a typed application error carried up to the HTTP layer.
type AppError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Context   map[string]string      `json:"context,omitempty"`
	Stack     []string               `json:"-"`
	Timestamp time.Time              `json:"timestamp"`
	RequestID string                 `json:"request_id,omitempty"`
	ActorID   int64                  `json:"actor_id,omitempty"`
	Cause     error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an AppError with the same code, so callers can
// write errors.Is(err, errors.ErrAccessDenied).
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

func (e *AppError) IsNotFound() bool {
	return e.Code == ErrCodeNotFound
}

func (e *AppError) IsValidation() bool {
	return e.Code == ErrCodeValidation
}

func (e *AppError) IsUnauthorized() bool {
	return e.Code == ErrCodeInvalidCredential ||
		e.Code == ErrCodeInvalidOrExpired ||
		e.Code == ErrCodeAccessDenied
}

func (e *AppError) IsInternal() bool {
	return e.Code == ErrCodeInternal ||
		e.Code == ErrCodeStorage ||
		e.Code == ErrCodeExternalChannel
}

// WithContext attaches request-scoped context to the error.
func (e *AppError) WithContext(key, value string) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

// WithDetail attaches a client-visible detail to the error.
func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

func (e *AppError) WithRequestID(requestID string) *AppError {
	e.RequestID = requestID
	return e
}

func (e *AppError) WithActorID(actorID int64) *AppError {
	e.ActorID = actorID
	return e
}

// New creates an application error.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
		Stack:     getStackTrace(),
	}
}

// Wrap wraps err into an application error.
func Wrap(err error, code ErrorCode, message string) *AppError {
	appErr := New(code, message)
	appErr.Cause = err
	return appErr
}

// Wrapf wraps err with a formatted message.
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *AppError {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

func getStackTrace() []string {
	var stack []string
	for i := 2; ; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}
		if strings.Contains(fn.Name(), "internal/common/errors") {
			continue
		}
		stack = append(stack, fmt.Sprintf("%s:%d %s", file, line, fn.Name()))
		if len(stack) >= 10 {
			break
		}
	}
	return stack
}

// Sentinels for errors.Is comparisons. Never return these directly; use the
// constructors so every returned error carries its own stack and details.
var (
	ErrInvalidCredential = &AppError{Code: ErrCodeInvalidCredential}
	ErrInvalidOrExpired  = &AppError{Code: ErrCodeInvalidOrExpired}
	ErrAccessDenied      = &AppError{Code: ErrCodeAccessDenied}
	ErrNotFound          = &AppError{Code: ErrCodeNotFound}
	ErrStorage           = &AppError{Code: ErrCodeStorage}
	ErrExternalChannel   = &AppError{Code: ErrCodeExternalChannel}
	ErrValidation        = &AppError{Code: ErrCodeValidation}
)

func NewValidationError(field, reason string) *AppError {
	return New(ErrCodeValidation, fmt.Sprintf("Validation failed for field '%s': %s", field, reason)).
		WithDetail("field", field).
		WithDetail("reason", reason)
}

func NewNotFoundError(resource string, id interface{}) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource)).
		WithDetail("resource", resource).
		WithDetail("id", id)
}

func NewInvalidCredentialError(reason string) *AppError {
	return New(ErrCodeInvalidCredential, "Invalid credential").
		WithDetail("reason", reason)
}

func NewInvalidOrExpiredTokenError() *AppError {
	return New(ErrCodeInvalidOrExpired, "Invalid or expired token")
}

func NewAccessDeniedError(reason string) *AppError {
	return New(ErrCodeAccessDenied, "Access denied").
		WithDetail("reason", reason)
}

func NewStorageError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeStorage, fmt.Sprintf("Storage operation failed: %s", operation)).
		WithDetail("operation", operation)
}

func NewExternalChannelError(channel string, err error) *AppError {
	return Wrap(err, ErrCodeExternalChannel, fmt.Sprintf("External channel delivery failed: %s", channel)).
		WithDetail("channel", channel)
}

// AsAppError extracts an AppError from an error chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if err != nil && stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Classify turns any error into an AppError. Errors that are not already typed
// become storage failures of the current request.
func Classify(err error) *AppError {
	if appErr, ok := AsAppError(err); ok {
		return appErr
	}
	return Wrap(err, ErrCodeStorage, "Unexpected failure")
}
