package errors

import (
	"fmt"
	"io"
	"testing"
)

func TestDomainError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *DomainError
		expected string
	}{
		{
			name:     "without cause",
			err:      NotFound("job not found", nil),
			expected: "NOT_FOUND: job not found",
		},
		{
			name:     "with cause",
			err:      Internal("reading session", io.ErrUnexpectedEOF),
			expected: "INTERNAL: reading session: unexpected EOF",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
			if len(tt.err.StackTrace()) == 0 {
				t.Error("expected a captured stack")
			}
		})
	}
}

func TestTypeOf(t *testing.T) {
	wrapped := fmt.Errorf("handler: %w", Conflict("session already completed", nil))

	if got := TypeOf(wrapped); got != ErrTypeConflict {
		t.Errorf("TypeOf(wrapped) = %s, want %s", got, ErrTypeConflict)
	}
	if got := TypeOf(io.EOF); got != ErrTypeInternal {
		t.Errorf("TypeOf(plain) = %s, want %s", got, ErrTypeInternal)
	}
	if !Is(wrapped, ErrTypeConflict) {
		t.Error("Is(wrapped, CONFLICT) = false, want true")
	}
	if Is(wrapped, ErrTypeNotFound) {
		t.Error("Is(wrapped, NOT_FOUND) = true, want false")
	}
}

func TestDomainError_Unwrap(t *testing.T) {
	err := Unavailable("cache offline", io.ErrClosedPipe)
	if err.Unwrap() != io.ErrClosedPipe {
		t.Errorf("Unwrap() = %v, want %v", err.Unwrap(), io.ErrClosedPipe)
	}
}
