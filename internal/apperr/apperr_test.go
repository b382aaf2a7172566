package apperr

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"testing"
)

func TestErrorFormat(t *testing.T) {
	plain := NotFound("user")
	if plain.Error() != "NOT_FOUND_ERROR: user not found" {
		t.Errorf("Error() = %q", plain.Error())
	}

	wrapped := Database("read users", errors.New("boom"))
	if wrapped.Error() != "DATABASE_ERROR: store operation failed: read users: boom" {
		t.Errorf("Error() = %q", wrapped.Error())
	}
	if !errors.Is(wrapped, wrapped.Cause) {
		t.Error("Unwrap should expose the cause")
	}
}

func TestErrorIsMatchesOnCode(t *testing.T) {
	err := fmt.Errorf("outer: %w", NotFound("product"))
	if !errors.Is(err, NotFound("anything")) {
		t.Error("errors.Is should match on code through wrapping")
	}
	if errors.Is(err, Duplicate("product")) {
		t.Error("different codes must not match")
	}
}

func TestValidationMessage(t *testing.T) {
	one := Validation("email is required")
	if one.Message != "email is required" {
		t.Errorf("single-field message = %q", one.Message)
	}
	many := Validation("email is required", "password too short")
	if many.Message != "validation failed" {
		t.Errorf("multi-field message = %q", many.Message)
	}
	if len(many.Fields) != 2 {
		t.Errorf("Fields = %v", many.Fields)
	}
}

func TestAuthenticationIsUniform(t *testing.T) {
	// One message regardless of which check failed, so callers cannot tell
	// unknown accounts from wrong passwords.
	a, b := Authentication(), Authentication()
	if a.Message != b.Message || a.Code != b.Code {
		t.Error("authentication errors must be indistinguishable")
	}
}

func TestCode(t *testing.T) {
	if Code(NotFound("x")) != CodeNotFound {
		t.Error("classified error lost its code")
	}
	if Code(errors.New("boom")) != CodeDatabase {
		t.Error("unknown errors default to DATABASE_ERROR")
	}
}

func TestRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"validation", Validation("bad"), false},
		{"not found", NotFound("user"), false},
		{"duplicate", Duplicate("user"), false},
		{"authentication", Authentication(), false},
		{"database no cause", Database("read", nil), true},
		{"database timeout cause", Database("read", context.DeadlineExceeded), true},
		{"database refused cause", Database("read", syscall.ECONNREFUSED), true},
		{"database terminal cause", Database("encode", errors.New("invalid json")), false},
		{"connection no cause", Connection("unreachable", nil), true},
		{"bare deadline", context.DeadlineExceeded, true},
		{"bare refused", syscall.ECONNRESET, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := Retryable(c.err); got != c.want {
				t.Errorf("Retryable(%v) = %v, want %v", c.err, got, c.want)
			}
		})
	}
}
