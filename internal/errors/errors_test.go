package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name      string
		err       *Error
		wantParts []string
	}{
		{
			name:      "with cause",
			err:       Wrap(Persistence, "failed to open database", stderrors.New("disk full")),
			wantParts: []string{"[PERSISTENCE]", "failed to open database", "disk full"},
		},
		{
			name:      "without cause",
			err:       New(NotFound, "no connections stored"),
			wantParts: []string{"[NOT_FOUND]", "no connections stored"},
		},
		{
			name:      "formatted message",
			err:       Newf(InvalidState, "session %s is %s", "abc", "completed"),
			wantParts: []string{"[INVALID_STATE]", "session abc is completed"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.err.Error()
			for _, part := range tt.wantParts {
				if !strings.Contains(got, part) {
					t.Errorf("Error() = %q, want to contain %q", got, part)
				}
			}
		})
	}
}

func TestUnwrap(t *testing.T) {
	cause := stderrors.New("locked")
	err := Wrap(Persistence, "write failed", cause)

	if !stderrors.Is(err, cause) {
		t.Errorf("errors.Is should find the wrapped cause")
	}
	if New(NotFound, "x").Unwrap() != nil {
		t.Errorf("Unwrap() on cause-less error should be nil")
	}
}

func TestHasCode(t *testing.T) {
	err := New(AmbiguousMatch, "3 connections match")

	if !HasCode(err, AmbiguousMatch) {
		t.Errorf("HasCode should match the error's own code")
	}
	if HasCode(err, NotFound) {
		t.Errorf("HasCode should not match a different code")
	}

	// Code must survive further wrapping with %w.
	wrapped := fmt.Errorf("search failed: %w", err)
	if !HasCode(wrapped, AmbiguousMatch) {
		t.Errorf("HasCode should see through fmt.Errorf wrapping")
	}

	if HasCode(stderrors.New("plain"), Persistence) {
		t.Errorf("HasCode on a plain error should be false")
	}
}

func TestCodeOf(t *testing.T) {
	if got := CodeOf(New(Configuration, "weights must sum to 1")); got != Configuration {
		t.Errorf("CodeOf = %q, want %q", got, Configuration)
	}
	if got := CodeOf(stderrors.New("plain")); got != "" {
		t.Errorf("CodeOf on a plain error = %q, want empty", got)
	}
	if got := CodeOf(nil); got != "" {
		t.Errorf("CodeOf(nil) = %q, want empty", got)
	}
}
