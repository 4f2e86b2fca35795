package errors

import (
	"errors"
	"testing"
)

func TestIngestError(t *testing.T) {
	tests := []struct {
		name       string
		category   ErrorCategory
		code       ErrorCode
		message    string
		cause      error
		expectCode int
	}{
		{
			name:       "file error",
			category:   CategoryFile,
			code:       CodeFileNotFound,
			message:    "file not found",
			cause:      errors.New("no such file"),
			expectCode: 2,
		},
		{
			name:       "parse error",
			category:   CategoryParse,
			code:       CodeMalformedRecord,
			message:    "malformed record",
			cause:      nil,
			expectCode: 3,
		},
		{
			name:       "configuration error",
			category:   CategoryConfiguration,
			code:       CodeInvalidConfig,
			message:    "invalid config",
			cause:      errors.New("missing field"),
			expectCode: 4,
		},
		{
			name:       "transport error",
			category:   CategoryTransport,
			code:       CodeFetchFailed,
			message:    "fetch failed",
			cause:      errors.New("connection refused"),
			expectCode: 6,
		},
		{
			name:       "persistence error",
			category:   CategoryPersistence,
			code:       CodeWriteFailed,
			message:    "write failed",
			cause:      errors.New("connection reset"),
			expectCode: 7,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err *IngestError
			if tt.cause != nil {
				err = Wrap(tt.cause, tt.category, tt.code, tt.message)
			} else {
				err = New(tt.category, tt.code, tt.message)
			}

			if err.Category != tt.category {
				t.Errorf("Category = %v, want %v", err.Category, tt.category)
			}
			if err.Code != tt.code {
				t.Errorf("Code = %v, want %v", err.Code, tt.code)
			}
			if err.Message != tt.message {
				t.Errorf("Message = %v, want %v", err.Message, tt.message)
			}
			if got := err.GetExitCode(); got != tt.expectCode {
				t.Errorf("GetExitCode() = %d, want %d", got, tt.expectCode)
			}
			if tt.cause != nil && !errors.Is(err, tt.cause) {
				t.Error("expected wrapped error to match the cause via errors.Is")
			}
		})
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  *IngestError
		want bool
	}{
		{
			name: "fetch failure is retryable",
			err:  TransportError(CodeFetchFailed, "sftp://acquirer", nil),
			want: true,
		},
		{
			name: "fetch timeout is retryable",
			err:  TransportError(CodeFetchTimeout, "sftp://acquirer", nil),
			want: true,
		},
		{
			name: "empty content is not retryable",
			err:  TransportError(CodeEmptyContent, "sftp://acquirer", nil),
			want: false,
		},
		{
			name: "decode error is not retryable",
			err:  DecodeError(CodeInvalidAmount, 12, "gross_amount", "xx", nil),
			want: false,
		},
		{
			name: "duplicate key is not retryable",
			err:  PersistenceError(CodeDuplicateKey, "rv:123", nil),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Retryable(); got != tt.want {
				t.Errorf("Retryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestErrorWithContextAndSuggestion(t *testing.T) {
	err := New(CategoryParse, CodeInvalidDate, "invalid date").
		WithContext("line", 42).
		WithSuggestion("date fields must be DDMMYYYY")

	if err.Context["line"] != 42 {
		t.Errorf("expected line context 42, got %v", err.Context["line"])
	}
	if err.Suggestion == "" {
		t.Error("expected suggestion to be set")
	}
	if err.Error() == err.Message {
		t.Error("expected Error() to include the suggestion")
	}
}

func TestDecodeErrorContext(t *testing.T) {
	err := DecodeError(CodeInvalidAmount, 7, "net_amount", "00a100", nil)

	if err.Category != CategoryParse {
		t.Errorf("Category = %v, want %v", err.Category, CategoryParse)
	}
	if err.Context["line"] != 7 {
		t.Errorf("line context = %v, want 7", err.Context["line"])
	}
	if err.Context["field"] != "net_amount" {
		t.Errorf("field context = %v, want net_amount", err.Context["field"])
	}
}

func TestErrorSummary(t *testing.T) {
	errs := []*IngestError{
		DecodeError(CodeInvalidAmount, 1, "gross_amount", "x", nil),
		DecodeError(CodeInvalidDate, 2, "payment_date", "99999999", nil),
		PersistenceError(CodeWriteFailed, "key-1", errors.New("io error")),
	}

	summary := NewErrorSummary(errs)

	if summary.Total != 3 {
		t.Errorf("Total = %d, want 3", summary.Total)
	}
	if summary.ByCategory[CategoryParse] != 2 {
		t.Errorf("parse count = %d, want 2", summary.ByCategory[CategoryParse])
	}
	if !summary.HasCategory(CategoryPersistence) {
		t.Error("expected persistence category in summary")
	}
	if summary.GetExitCode() != 7 {
		t.Errorf("GetExitCode() = %d, want 7", summary.GetExitCode())
	}

	empty := NewErrorSummary(nil)
	if empty.GetExitCode() != 0 {
		t.Errorf("empty summary exit code = %d, want 0", empty.GetExitCode())
	}
	if empty.Error() != "no errors" {
		t.Errorf("empty summary Error() = %q", empty.Error())
	}
}

func TestAsIngestError(t *testing.T) {
	base := FileError(CodeFileNotFound, "/data/missing.txt", nil)

	got, ok := AsIngestError(base)
	if !ok || got != base {
		t.Error("expected AsIngestError to return the original error")
	}

	if _, ok := AsIngestError(errors.New("plain")); ok {
		t.Error("expected plain error to not be an IngestError")
	}

	wrapped := WrapIfNeeded(errors.New("plain"), CategoryInternal, CodeUnexpectedError, "boom")
	if wrapped.Category != CategoryInternal {
		t.Errorf("WrapIfNeeded category = %v, want internal", wrapped.Category)
	}
	if again := WrapIfNeeded(base, CategoryInternal, CodeUnexpectedError, "boom"); again != base {
		t.Error("WrapIfNeeded should not re-wrap an IngestError")
	}
}
