package common

import (
	"errors"
	"fmt"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrDatabase     = errors.New("database error")
	ErrValidation   = errors.New("validation failed")

	// ErrRateLimited is retryable: callers should back off and resubmit.
	ErrRateLimited = errors.New("rate limit exceeded")
	// ErrExtraction marks a document for which no AI provider produced a result.
	ErrExtraction = errors.New("extraction failed")
	// ErrUpload marks a fatal upload failure.
	ErrUpload = errors.New("upload failed")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// InvalidResponseError is returned when a provider response cannot be parsed as JSON,
// even after salvage.
type InvalidResponseError struct {
	Provider string
	Preview  string
	Cause    error
}

func (e *InvalidResponseError) Error() string {
	return fmt.Sprintf("invalid AI response from %s: %v (preview: %q)", e.Provider, e.Cause, e.Preview)
}

func (e *InvalidResponseError) Unwrap() error { return e.Cause }

// ExtractionError carries the primary and fallback provider failures.
type ExtractionError struct {
	Primary  error
	Fallback error
}

func (e *ExtractionError) Error() string {
	if e.Fallback != nil {
		return fmt.Sprintf("extraction failed: primary: %v; fallback: %v", e.Primary, e.Fallback)
	}
	return fmt.Sprintf("extraction failed: %v", e.Primary)
}

func (e *ExtractionError) Unwrap() []error {
	errs := []error{ErrExtraction}
	if e.Primary != nil {
		errs = append(errs, e.Primary)
	}
	if e.Fallback != nil {
		errs = append(errs, e.Fallback)
	}
	return errs
}

// UploadError reports a failed upload attempt with the HTTP status (0 for transport errors).
// Local is set when the payload could not be prepared and nothing was sent.
type UploadError struct {
	StatusCode int
	Body       string
	Local      bool
	Cause      error
}

func (e *UploadError) Error() string {
	if e.Local {
		return fmt.Sprintf("upload not sent: %v", e.Cause)
	}
	if e.StatusCode == 0 {
		return fmt.Sprintf("upload failed: %v", e.Cause)
	}
	return fmt.Sprintf("upload failed with status %d: %s", e.StatusCode, e.Body)
}

func (e *UploadError) Unwrap() []error {
	if e.Cause != nil {
		return []error{ErrUpload, e.Cause}
	}
	return []error{ErrUpload}
}

// ClientError reports whether the upload was rejected with a 4xx status.
func (e *UploadError) ClientError() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}

// Retryable is false for local failures and 4xx rejections.
func (e *UploadError) Retryable() bool {
	return !e.Local && !e.ClientError()
}
