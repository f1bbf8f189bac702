package parsererror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name: "parse error",
			err: &ParseError{
				Parser: "MPESA",
				Field:  "amount",
				Value:  "1,2,3.4.5",
				Err:    errors.New("invalid decimal"),
			},
			expected: "MPESA: failed to parse amount='1,2,3.4.5': invalid decimal",
		},
		{
			name:     "validation error with field",
			err:      &ValidationError{Field: "guid", Reason: "missing required field"},
			expected: "validation failed for guid: missing required field",
		},
		{
			name:     "validation error without field",
			err:      &ValidationError{Reason: "invalid JSON"},
			expected: "validation failed: invalid JSON",
		},
		{
			name:     "upstream error with status",
			err:      &UpstreamError{Op: "getsms", StatusCode: 503, Err: errors.New("service unavailable")},
			expected: "upstream getsms failed with status 503: service unavailable",
		},
		{
			name:     "upstream error without response",
			err:      &UpstreamError{Op: "getsms", Err: errors.New("connection refused")},
			expected: "upstream getsms failed: connection refused",
		},
		{
			name:     "storage error for message",
			err:      &StorageError{Op: "create message", MessageID: "abc123", Err: errors.New("disk full")},
			expected: "storage create message failed for message 'abc123': disk full",
		},
		{
			name:     "storage error without message",
			err:      &StorageError{Op: "latest message time", Err: errors.New("closed")},
			expected: "storage latest message time failed: closed",
		},
		{
			name: "invalid format with snippet",
			err: &InvalidFormatError{
				FilePath:             "/tmp/export.txt",
				ExpectedFormat:       "JSON or CSV",
				ActualContentSnippet: "hello",
				Msg:                  "unrecognised content",
			},
			expected: "invalid format in file '/tmp/export.txt': unrecognised content. Expected: JSON or CSV. Content snippet: 'hello'",
		},
		{
			name: "invalid format without snippet",
			err: &InvalidFormatError{
				FilePath:       "/tmp/export.csv",
				ExpectedFormat: "CSV with guid column",
				Msg:            "missing required headers",
			},
			expected: "invalid format in file '/tmp/export.csv': missing required headers. Expected: CSV with guid column",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestErrorWrappingPatterns(t *testing.T) {
	t.Run("ParseError unwraps", func(t *testing.T) {
		originalErr := errors.New("original error")
		parseErr := &ParseError{Parser: "MPESA", Field: "amount", Value: "x", Err: originalErr}

		assert.Equal(t, originalErr, parseErr.Unwrap())
		assert.True(t, errors.Is(parseErr, originalErr))
	})

	t.Run("UpstreamError survives fmt wrapping", func(t *testing.T) {
		cause := errors.New("timeout")
		wrapped := fmt.Errorf("fetch cycle: %w", &UpstreamError{Op: "getsms", Err: cause})

		var upstream *UpstreamError
		require.True(t, errors.As(wrapped, &upstream))
		assert.Equal(t, "getsms", upstream.Op)
		assert.True(t, errors.Is(wrapped, cause))
	})

	t.Run("StorageError survives fmt wrapping", func(t *testing.T) {
		cause := errors.New("constraint")
		wrapped := fmt.Errorf("ingest: %w", &StorageError{Op: "create transaction", MessageID: "m1", Err: cause})

		var storageErr *StorageError
		require.True(t, errors.As(wrapped, &storageErr))
		assert.Equal(t, "m1", storageErr.MessageID)
		assert.True(t, errors.Is(wrapped, cause))
	})

	t.Run("ValidationError is matched by errors.As", func(t *testing.T) {
		wrapped := fmt.Errorf("webhook: %w", &ValidationError{Field: "date", Reason: "bad layout"})

		var validationErr *ValidationError
		require.True(t, errors.As(wrapped, &validationErr))
		assert.Equal(t, "date", validationErr.Field)
	})
}
