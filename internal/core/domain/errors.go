package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrorType classifies a generation failure. Every provider error is
// normalized into exactly one of these at the failover boundary so the
// retry and breaker layers share a single vocabulary.
type ErrorType string

const (
	ErrServiceUnavailable ErrorType = "SERVICE_UNAVAILABLE"
	ErrRateLimited        ErrorType = "RATE_LIMITED"
	ErrAuthentication     ErrorType = "AUTHENTICATION_ERROR"
	ErrTimeout            ErrorType = "TIMEOUT"
	ErrInvalidRequest     ErrorType = "INVALID_REQUEST"
	ErrValidation         ErrorType = "VALIDATION_ERROR"
	ErrUnknown            ErrorType = "UNKNOWN_ERROR"
)

// GenerationError is the normalized failure shape consumed by the retry
// manager, circuit breaker and failover manager.
type GenerationError struct {
	Type       ErrorType
	Message    string
	Retryable  bool
	RetryAfter time.Duration // minimum wait hint, e.g. from a 429 Retry-After header
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// NewServiceUnavailable reports a provider that is down or erroring. Retryable.
func NewServiceUnavailable(msg string) *GenerationError {
	return &GenerationError{Type: ErrServiceUnavailable, Message: msg, Retryable: true}
}

// NewRateLimited reports throttling with an optional server-provided wait hint. Retryable.
func NewRateLimited(msg string, retryAfter time.Duration) *GenerationError {
	return &GenerationError{Type: ErrRateLimited, Message: msg, Retryable: true, RetryAfter: retryAfter}
}

// NewAuthenticationError reports bad or expired credentials. Not retryable.
func NewAuthenticationError(msg string) *GenerationError {
	return &GenerationError{Type: ErrAuthentication, Message: msg}
}

// NewTimeout reports an elapsed deadline. Retryable.
func NewTimeout(msg string) *GenerationError {
	return &GenerationError{Type: ErrTimeout, Message: msg, Retryable: true}
}

// NewInvalidRequest reports input the provider rejected. Not retryable.
func NewInvalidRequest(msg string) *GenerationError {
	return &GenerationError{Type: ErrInvalidRequest, Message: msg}
}

// NewValidationError reports a parameter set that failed compatibility
// validation. Not retryable; the caller must change its input.
func NewValidationError(msg string) *GenerationError {
	return &GenerationError{Type: ErrValidation, Message: msg}
}

// NewUnknown wraps an unclassified failure. Not retryable by default.
func NewUnknown(msg string) *GenerationError {
	return &GenerationError{Type: ErrUnknown, Message: msg}
}

// AsGenerationError unwraps err into a *GenerationError if one is present.
func AsGenerationError(err error) (*GenerationError, bool) {
	var ge *GenerationError
	if errors.As(err, &ge) {
		return ge, true
	}
	return nil, false
}

// Classify normalizes an arbitrary error into a GenerationError. Errors that
// are already typed pass through unchanged; everything else is matched on
// message content, defaulting to UNKNOWN_ERROR (non-retryable).
func Classify(err error) *GenerationError {
	if err == nil {
		return nil
	}
	if ge, ok := AsGenerationError(err); ok {
		return ge
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewTimeout(err.Error())
	}
	if errors.Is(err, context.Canceled) {
		return &GenerationError{Type: ErrTimeout, Message: err.Error()}
	}

	s := err.Error()
	sLower := strings.ToLower(s)

	switch {
	case strings.Contains(s, "429") || strings.Contains(sLower, "too many requests") ||
		strings.Contains(sLower, "rate limit") || strings.Contains(sLower, "quota"):
		return NewRateLimited(s, 0)
	case strings.Contains(s, "401") || strings.Contains(s, "403") ||
		strings.Contains(sLower, "unauthorized") || strings.Contains(sLower, "forbidden") ||
		strings.Contains(sLower, "invalid api key"):
		return NewAuthenticationError(s)
	case strings.Contains(sLower, "timeout") || strings.Contains(sLower, "deadline exceeded"):
		return NewTimeout(s)
	case strings.Contains(s, "400") || strings.Contains(s, "422") ||
		strings.Contains(sLower, "invalid request") || strings.Contains(sLower, "bad request"):
		return NewInvalidRequest(s)
	case strings.Contains(s, "500") || strings.Contains(s, "502") || strings.Contains(s, "503") ||
		strings.Contains(sLower, "connection refused") || strings.Contains(sLower, "connection reset") ||
		strings.Contains(sLower, "unavailable") || strings.Contains(sLower, "no such host"):
		return NewServiceUnavailable(s)
	default:
		return NewUnknown(s)
	}
}
