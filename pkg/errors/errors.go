// Package errors defines the error taxonomy for the settlement ingestion
// service.
//
// Every failure the service can surface is classified by a category and a
// code, so callers (the CLI exit-code mapper, the HTTP API, operators reading
// logs) can tell a broken transfer apart from an empty file, and a malformed
// settlement line apart from a persistence conflict. Errors carry optional
// suggestions and a free-form context map for diagnostics.
package errors

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ErrorCategory represents different categories of errors
type ErrorCategory string

const (
	CategoryTransport      ErrorCategory = "transport"
	CategoryFile           ErrorCategory = "file"
	CategoryParse          ErrorCategory = "parse"
	CategoryValidation     ErrorCategory = "validation"
	CategoryConfiguration  ErrorCategory = "configuration"
	CategoryPersistence    ErrorCategory = "persistence"
	CategoryReconciliation ErrorCategory = "reconciliation"
	CategoryInternal       ErrorCategory = "internal"
)

// ErrorCode represents specific error codes within categories
type ErrorCode string

const (
	// Transport errors
	CodeFetchFailed  ErrorCode = "fetch_failed"
	CodeFetchTimeout ErrorCode = "fetch_timeout"
	CodeEmptyContent ErrorCode = "empty_content"

	// File errors
	CodeFileNotFound   ErrorCode = "file_not_found"
	CodeFilePermission ErrorCode = "file_permission"

	// Parse errors
	CodeInvalidLineLength ErrorCode = "invalid_line_length"
	CodeInvalidAmount     ErrorCode = "invalid_amount"
	CodeInvalidDate       ErrorCode = "invalid_date"
	CodeMalformedRecord   ErrorCode = "malformed_record"

	// Validation errors
	CodeMissingField ErrorCode = "missing_field"
	CodeInvalidValue ErrorCode = "invalid_value"

	// Configuration errors
	CodeInvalidConfig ErrorCode = "invalid_config"
	CodeMissingConfig ErrorCode = "missing_config"

	// Persistence errors
	CodeDuplicateKey ErrorCode = "duplicate_key"
	CodeWriteFailed  ErrorCode = "write_failed"
	CodeReadFailed   ErrorCode = "read_failed"

	// Reconciliation errors
	CodeDerivationFailed ErrorCode = "derivation_failed"
	CodeSnapshotFailed   ErrorCode = "snapshot_failed"

	// Internal errors
	CodeUnexpectedError ErrorCode = "unexpected_error"
)

// IngestError is the base error type for all application errors
type IngestError struct {
	Category   ErrorCategory     `json:"category"`
	Code       ErrorCode         `json:"code"`
	Message    string            `json:"message"`
	Suggestion string            `json:"suggestion,omitempty"`
	Context    Context           `json:"context,omitempty"`
	Cause      error             `json:"-"`
	StackTrace errors.StackTrace `json:"-"`
}

// Context provides additional information about the error
type Context map[string]interface{}

// Error implements the error interface
func (e *IngestError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%s (suggestion: %s)", e.Message, e.Suggestion)
	}
	return e.Message
}

// Unwrap returns the underlying cause error
func (e *IngestError) Unwrap() error {
	return e.Cause
}

// Retryable reports whether the failure is worth retrying from outside.
// Only transport failures qualify: everything else is either recovered
// locally or deterministic.
func (e *IngestError) Retryable() bool {
	return e.Category == CategoryTransport && e.Code != CodeEmptyContent
}

// GetExitCode returns an appropriate exit code for the error
func (e *IngestError) GetExitCode() int {
	switch e.Category {
	case CategoryFile:
		return 2
	case CategoryParse, CategoryValidation:
		return 3
	case CategoryConfiguration:
		return 4
	case CategoryReconciliation, CategoryInternal:
		return 5
	case CategoryTransport:
		return 6
	case CategoryPersistence:
		return 7
	default:
		return 1
	}
}

// WithContext adds context information to the error
func (e *IngestError) WithContext(key string, value interface{}) *IngestError {
	if e.Context == nil {
		e.Context = make(Context)
	}
	e.Context[key] = value
	return e
}

// WithSuggestion adds a suggestion for fixing the error
func (e *IngestError) WithSuggestion(suggestion string) *IngestError {
	e.Suggestion = suggestion
	return e
}

// New creates a new IngestError
func New(category ErrorCategory, code ErrorCode, message string) *IngestError {
	return &IngestError{
		Category:   category,
		Code:       code,
		Message:    message,
		StackTrace: errors.New("").(stackTracer).StackTrace(),
	}
}

// Wrap wraps an existing error with IngestError context
func Wrap(err error, category ErrorCategory, code ErrorCode, message string) *IngestError {
	if err == nil {
		return nil
	}

	return &IngestError{
		Category:   category,
		Code:       code,
		Message:    message,
		Cause:      err,
		StackTrace: errors.WithStack(err).(stackTracer).StackTrace(),
	}
}

// stackTracer interface for extracting stack traces
type stackTracer interface {
	StackTrace() errors.StackTrace
}

// Specific error constructors

// TransportError creates an error for a failed settlement-file fetch
func TransportError(code ErrorCode, source string, err error) *IngestError {
	var message string
	var suggestion string

	switch code {
	case CodeFetchFailed:
		message = fmt.Sprintf("failed to fetch settlement file from %s", source)
		suggestion = "check connectivity to the file source and retry the cycle"
	case CodeFetchTimeout:
		message = fmt.Sprintf("timed out fetching settlement file from %s", source)
		suggestion = "increase the fetch timeout or retry the cycle later"
	case CodeEmptyContent:
		message = fmt.Sprintf("settlement file from %s contained 0 records", source)
		suggestion = "confirm the acquirer published a file for the requested date"
	default:
		message = fmt.Sprintf("transport error fetching %s", source)
		suggestion = "check the file source and retry"
	}

	var result *IngestError
	if err != nil {
		result = Wrap(err, CategoryTransport, code, message)
	} else {
		result = New(CategoryTransport, code, message)
	}

	return result.
		WithSuggestion(suggestion).
		WithContext("source", source)
}

// FileError creates a file-related error
func FileError(code ErrorCode, path string, err error) *IngestError {
	var message string
	var suggestion string

	switch code {
	case CodeFileNotFound:
		message = fmt.Sprintf("settlement file not found: %s", path)
		suggestion = "check if the file path is correct and the file exists"
	case CodeFilePermission:
		message = fmt.Sprintf("permission denied accessing file: %s", path)
		suggestion = "check file permissions and ensure you have read access"
	default:
		message = fmt.Sprintf("file error: %s", path)
		suggestion = "check the file and try again"
	}

	var result *IngestError
	if err != nil {
		result = Wrap(err, CategoryFile, code, message)
	} else {
		result = New(CategoryFile, code, message)
	}

	return result.
		WithSuggestion(suggestion).
		WithContext("file_path", path)
}

// DecodeError creates an error for a settlement line that failed decoding.
// These are always recovered locally by dropping the line; the error exists
// so the drop can be logged and counted with full positional context.
func DecodeError(code ErrorCode, line int, field string, value string, err error) *IngestError {
	var message string
	var suggestion string

	switch code {
	case CodeInvalidLineLength:
		message = fmt.Sprintf("line %d has invalid length", line)
		suggestion = "settlement lines must be exactly 401 characters"
	case CodeInvalidAmount:
		message = fmt.Sprintf("invalid amount in field '%s' at line %d: '%s'", field, line, value)
		suggestion = "amount fields must be zero-padded digits in cents"
	case CodeInvalidDate:
		message = fmt.Sprintf("invalid date in field '%s' at line %d: '%s'", field, line, value)
		suggestion = "date fields must be DDMMYYYY"
	case CodeMalformedRecord:
		message = fmt.Sprintf("malformed record at line %d", line)
		suggestion = "the record was dropped; verify the file with the acquirer"
	default:
		message = fmt.Sprintf("decode error at line %d", line)
		suggestion = "check the file layout and data integrity"
	}

	var result *IngestError
	if err != nil {
		result = Wrap(err, CategoryParse, code, message)
	} else {
		result = New(CategoryParse, code, message)
	}

	return result.
		WithSuggestion(suggestion).
		WithContext("line", line).
		WithContext("field", field).
		WithContext("value", value)
}

// ValidationError creates a validation-related error
func ValidationError(code ErrorCode, field string, value interface{}, err error) *IngestError {
	var message string
	var suggestion string

	switch code {
	case CodeMissingField:
		message = fmt.Sprintf("required field '%s' is missing or empty", field)
		suggestion = "provide a value for this required field"
	case CodeInvalidValue:
		message = fmt.Sprintf("invalid value in field '%s': %v", field, value)
		suggestion = "check the field value and format"
	default:
		message = fmt.Sprintf("validation error in field '%s': %v", field, value)
		suggestion = "check the field value and format"
	}

	var result *IngestError
	if err != nil {
		result = Wrap(err, CategoryValidation, code, message)
	} else {
		result = New(CategoryValidation, code, message)
	}

	return result.
		WithSuggestion(suggestion).
		WithContext("field", field).
		WithContext("value", value)
}

// ConfigurationError creates a configuration-related error
func ConfigurationError(code ErrorCode, setting string, value interface{}, err error) *IngestError {
	var message string
	var suggestion string

	switch code {
	case CodeInvalidConfig:
		message = fmt.Sprintf("invalid configuration for '%s': %v", setting, value)
		suggestion = "check the configuration documentation for valid values"
	case CodeMissingConfig:
		message = fmt.Sprintf("missing required configuration: %s", setting)
		suggestion = "provide this configuration setting or use a config file"
	default:
		message = fmt.Sprintf("configuration error: %s", setting)
		suggestion = "check your configuration and try again"
	}

	var result *IngestError
	if err != nil {
		result = Wrap(err, CategoryConfiguration, code, message)
	} else {
		result = New(CategoryConfiguration, code, message)
	}

	return result.
		WithSuggestion(suggestion).
		WithContext("setting", setting).
		WithContext("value", value)
}

// PersistenceError creates a persistence-related error
func PersistenceError(code ErrorCode, sourceKey string, err error) *IngestError {
	var message string
	var suggestion string

	switch code {
	case CodeDuplicateKey:
		message = fmt.Sprintf("entry with source key %s already exists", sourceKey)
		suggestion = "a concurrent run already persisted this entry; it was skipped"
	case CodeWriteFailed:
		message = fmt.Sprintf("failed to persist entry with source key %s", sourceKey)
		suggestion = "check the database connection; remaining entries continue"
	case CodeReadFailed:
		message = "failed to load the persisted-entry snapshot"
		suggestion = "check the database connection and retry the cycle"
	default:
		message = fmt.Sprintf("persistence error for source key %s", sourceKey)
		suggestion = "check the database and try again"
	}

	var result *IngestError
	if err != nil {
		result = Wrap(err, CategoryPersistence, code, message)
	} else {
		result = New(CategoryPersistence, code, message)
	}

	return result.
		WithSuggestion(suggestion).
		WithContext("source_key", sourceKey)
}

// ReconciliationError creates a reconciliation-related error
func ReconciliationError(code ErrorCode, operation string, err error) *IngestError {
	var message string
	var suggestion string

	switch code {
	case CodeDerivationFailed:
		message = fmt.Sprintf("ledger entry derivation failed during %s", operation)
		suggestion = "verify the filtered record set and derivation inputs"
	case CodeSnapshotFailed:
		message = fmt.Sprintf("could not snapshot persisted entries during %s", operation)
		suggestion = "the run was aborted before any write; retry the cycle"
	default:
		message = fmt.Sprintf("reconciliation error during %s", operation)
		suggestion = "review the data and configuration"
	}

	var result *IngestError
	if err != nil {
		result = Wrap(err, CategoryReconciliation, code, message)
	} else {
		result = New(CategoryReconciliation, code, message)
	}

	return result.
		WithSuggestion(suggestion).
		WithContext("operation", operation)
}

// InternalError creates an internal error
func InternalError(code ErrorCode, operation string, err error) *IngestError {
	message := fmt.Sprintf("unexpected error during %s", operation)
	suggestion := "this is likely a bug - please report it with the error details"

	var result *IngestError
	if err != nil {
		result = Wrap(err, CategoryInternal, code, message)
	} else {
		result = New(CategoryInternal, code, message)
	}

	return result.
		WithSuggestion(suggestion).
		WithContext("operation", operation)
}

// ErrorSummary provides a summary of multiple errors
type ErrorSummary struct {
	Total        int                   `json:"total"`
	ByCategory   map[ErrorCategory]int `json:"by_category"`
	ByCode       map[ErrorCode]int     `json:"by_code"`
	Errors       []*IngestError        `json:"errors"`
	SampleErrors []*IngestError        `json:"sample_errors,omitempty"`
}

// NewErrorSummary creates a new error summary
func NewErrorSummary(errs []*IngestError) *ErrorSummary {
	summary := &ErrorSummary{
		Total:      len(errs),
		ByCategory: make(map[ErrorCategory]int),
		ByCode:     make(map[ErrorCode]int),
		Errors:     errs,
	}
	if len(errs) == 0 {
		summary.Errors = []*IngestError{}
		return summary
	}

	for _, err := range errs {
		summary.ByCategory[err.Category]++
		summary.ByCode[err.Code]++
	}

	maxSamples := 5
	if len(errs) > maxSamples {
		summary.SampleErrors = errs[:maxSamples]
	} else {
		summary.SampleErrors = errs
	}

	return summary
}

// Error returns a formatted error message for the summary
func (es *ErrorSummary) Error() string {
	if es.Total == 0 {
		return "no errors"
	}

	if es.Total == 1 {
		return es.Errors[0].Error()
	}

	var categories []string
	for category, count := range es.ByCategory {
		categories = append(categories, fmt.Sprintf("%s: %d", category, count))
	}

	return fmt.Sprintf("%d errors occurred (%s)", es.Total, strings.Join(categories, ", "))
}

// HasCategory checks if the summary contains errors of the given category
func (es *ErrorSummary) HasCategory(category ErrorCategory) bool {
	count, exists := es.ByCategory[category]
	return exists && count > 0
}

// GetExitCode returns the highest priority exit code from all errors
func (es *ErrorSummary) GetExitCode() int {
	if es.Total == 0 {
		return 0
	}

	maxCode := 1
	for _, err := range es.Errors {
		if code := err.GetExitCode(); code > maxCode {
			maxCode = code
		}
	}

	return maxCode
}

// Utility functions

// IsIngestError checks if an error is an IngestError
func IsIngestError(err error) bool {
	_, ok := err.(*IngestError)
	return ok
}

// AsIngestError extracts an IngestError from an error chain
func AsIngestError(err error) (*IngestError, bool) {
	var ingestErr *IngestError
	if errors.As(err, &ingestErr) {
		return ingestErr, true
	}
	return nil, false
}

// WrapIfNeeded wraps an error if it's not already an IngestError
func WrapIfNeeded(err error, category ErrorCategory, code ErrorCode, message string) *IngestError {
	if err == nil {
		return nil
	}

	if ingestErr, ok := AsIngestError(err); ok {
		return ingestErr
	}

	return Wrap(err, category, code, message)
}
