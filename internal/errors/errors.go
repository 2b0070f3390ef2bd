package errors

import (
	"errors"
	"fmt"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

const (
	CodeValidation = "E100"
	CodeStore      = "E200"
	CodeTransport  = "E300"
	CodeState      = "E400"
	CodeRateLimit  = "E500"
)

// AppError is the error type crossing package boundaries. UserMessage is safe to show in chat.
type AppError struct {
	Code        string
	Message     string
	UserMessage string
	Severity    Severity
	Retryable   bool
	cause       error
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil && e.cause.Error() != e.Message {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.cause
}

func (e *AppError) Cause() error {
	return e.Unwrap()
}

// WithCause attaches cause so errors.Is can match it through the AppError.
func (e *AppError) WithCause(cause error) *AppError {
	if e == nil {
		return nil
	}
	e.cause = cause
	return e
}

// WithUserMessage overrides the chat-facing text.
func (e *AppError) WithUserMessage(msg string) *AppError {
	if e == nil {
		return nil
	}
	e.UserMessage = msg
	return e
}

// NewValidationError reports malformed or out-of-range user input. Recoverable by re-prompting.
func NewValidationError(msg string) *AppError {
	return &AppError{
		Code:        CodeValidation,
		Message:     msg,
		UserMessage: msg,
		Severity:    SeverityLow,
	}
}

// NewStoreError wraps a persistence failure. Fatal for the current operation only.
func NewStoreError(op string, cause error) *AppError {
	return &AppError{
		Code:        CodeStore,
		Message:     fmt.Sprintf("store error: %s", op),
		UserMessage: "Временная проблема, попробуйте позже",
		Severity:    SeverityHigh,
		Retryable:   true,
		cause:       cause,
	}
}

// NewTransportError wraps a failed send, edit or delete towards the chat transport.
func NewTransportError(op string, cause error) *AppError {
	return &AppError{
		Code:        CodeTransport,
		Message:     fmt.Sprintf("transport error: %s", op),
		UserMessage: "Сервис временно недоступен",
		Severity:    SeverityMedium,
		Retryable:   true,
		cause:       cause,
	}
}

// NewStateError reports an operation against an entity in the wrong lifecycle state.
func NewStateError(msg string) *AppError {
	return &AppError{
		Code:        CodeState,
		Message:     msg,
		UserMessage: "Операция невозможна в текущем состоянии",
		Severity:    SeverityMedium,
	}
}

func NewRateLimitError(retryAfter int) *AppError {
	return &AppError{
		Code:        CodeRateLimit,
		Message:     fmt.Sprintf("rate limit exceeded: retry after %d seconds", retryAfter),
		UserMessage: fmt.Sprintf("Слишком много запросов. Попробуйте через %d секунд", retryAfter),
		Severity:    SeverityLow,
	}
}

// CodeOf returns the AppError code in err's chain, or "" when there is none.
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr != nil {
		return appErr.Code
	}
	return ""
}

func IsValidation(err error) bool { return CodeOf(err) == CodeValidation }

func IsState(err error) bool { return CodeOf(err) == CodeState }

func IsStore(err error) bool { return CodeOf(err) == CodeStore }

func IsTransport(err error) bool { return CodeOf(err) == CodeTransport }
