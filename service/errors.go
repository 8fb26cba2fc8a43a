package service

import (
	"errors"
	"fmt"
)

// Stable error codes returned in API responses.
const (
	CodeValidationError   = "VALIDATION_ERROR"
	CodeInvalidFileType   = "INVALID_FILE_TYPE"
	CodeFileSizeExceeded  = "FILE_SIZE_EXCEEDED"
	CodeExtractionError   = "EXTRACTION_ERROR"
	CodeExtractionTimeout = "EXTRACTION_TIMEOUT"
	CodeQuotaExceeded     = "QUOTA_EXCEEDED"
	CodeStorageError      = "STORAGE_ERROR"
	CodeParseError        = "PARSE_ERROR"
	CodeNotFound          = "NOT_FOUND"
	CodeBatchTimeout      = "BATCH_TIMEOUT"
	CodeBatchSizeExceeded = "BATCH_SIZE_EXCEEDED"
)

var (
	ErrRecordNotFound  = errors.New("record not found")
	ErrStorageNotSet   = errors.New("storage not set")
	ErrExtractorNotSet = errors.New("extractor not set")
	ErrIndexNotSet     = errors.New("duplicate index not set")
)

// Error is a service-level failure carrying a stable taxonomy code. Each
// error is scoped to a single item or request; it never crashes the process.
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// ErrorCode extracts the taxonomy code from an error, defaulting to
// INTERNAL_ERROR for untyped failures.
func ErrorCode(err error) string {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Code
	}
	if errors.Is(err, ErrRecordNotFound) {
		return CodeNotFound
	}
	return "INTERNAL_ERROR"
}

// ErrorMessage extracts the human-readable message from an error.
func ErrorMessage(err error) string {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Message
	}
	return err.Error()
}
