package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorKind_String(t *testing.T) {
	tests := []struct {
		kind     ErrorKind
		expected string
	}{
		{ErrConfigRead, "config read error"},
		{ErrConfigValidation, "config validation error"},
		{ErrJailNotFound, "jail not found"},
		{ErrJailAlreadyRunning, "jail already running"},
		{ErrJailPathNotFound, "jail path not found"},
		{ErrSyscall, "syscall error"},
		{ErrNetwork, "network error"},
		{ErrBridgeAlreadyExists, "bridge already exists"},
		{ErrHookFailed, "hook failed"},
		{ErrHealthCheckFailed, "health check failed"},
		{ErrInternal, "internal error"},
		{ErrorKind(999), "unknown error"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.kind.String(); got != tt.expected {
				t.Errorf("ErrorKind.String() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestJailError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *JailError
		expected string
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: "<nil>",
		},
		{
			name: "full error",
			err: &JailError{
				Op:     "up",
				Jail:   "proj-web",
				Kind:   ErrJailPathNotFound,
				Detail: "release not bootstrapped",
				Err:    fmt.Errorf("no such file or directory"),
			},
			expected: "jail proj-web: up: release not bootstrapped: no such file or directory",
		},
		{
			name: "without jail",
			err: &JailError{
				Op:     "setup",
				Kind:   ErrNetwork,
				Detail: "bridge creation failed",
			},
			expected: "setup: bridge creation failed",
		},
		{
			name: "kind only",
			err: &JailError{
				Kind: ErrJailAlreadyRunning,
			},
			expected: "jail already running",
		},
		{
			name: "with underlying error",
			err: &JailError{
				Op:   "jail_remove",
				Kind: ErrSyscall,
				Err:  fmt.Errorf("device busy"),
			},
			expected: "jail_remove: syscall error: device busy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("JailError.Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestJailError_Unwrap(t *testing.T) {
	underlying := fmt.Errorf("underlying error")
	err := &JailError{
		Op:   "test",
		Kind: ErrInternal,
		Err:  underlying,
	}

	if got := err.Unwrap(); got != underlying {
		t.Errorf("Unwrap() = %v, want %v", got, underlying)
	}

	var nilErr *JailError
	if got := nilErr.Unwrap(); got != nil {
		t.Errorf("nil.Unwrap() = %v, want nil", got)
	}
}

func TestJailError_Is(t *testing.T) {
	err1 := &JailError{Kind: ErrJailNotFound, Op: "test1"}
	err2 := &JailError{Kind: ErrJailNotFound, Op: "test2"}
	err3 := &JailError{Kind: ErrNetwork, Op: "test3"}

	if !err1.Is(err2) {
		t.Error("err1.Is(err2) should be true (same kind)")
	}

	if err1.Is(err3) {
		t.Error("err1.Is(err3) should be false (different kind)")
	}

	if err1.Is(fmt.Errorf("some error")) {
		t.Error("err1.Is(fmt.Errorf(...)) should be false")
	}

	var nilErr *JailError
	if !nilErr.Is(nil) {
		t.Error("nil.Is(nil) should be true")
	}
}

func TestNew(t *testing.T) {
	err := New(ErrConfigValidation, "validate", "jail name is empty")

	if err.Kind != ErrConfigValidation {
		t.Errorf("Kind = %v, want %v", err.Kind, ErrConfigValidation)
	}
	if err.Op != "validate" {
		t.Errorf("Op = %q, want %q", err.Op, "validate")
	}
	if err.Detail != "jail name is empty" {
		t.Errorf("Detail = %q, want %q", err.Detail, "jail name is empty")
	}
}

func TestWrap(t *testing.T) {
	underlying := fmt.Errorf("permission denied")
	err := Wrap(underlying, ErrIO, "open file")

	if err.Err != underlying {
		t.Error("Wrapped error should preserve underlying error")
	}
	if err.Kind != ErrIO {
		t.Errorf("Kind = %v, want %v", err.Kind, ErrIO)
	}
	if err.Op != "open file" {
		t.Errorf("Op = %q, want %q", err.Op, "open file")
	}
}

func TestWrapWithJail(t *testing.T) {
	underlying := fmt.Errorf("not found")
	err := WrapWithJail(underlying, ErrJailNotFound, "load", "proj-db")

	if err.Jail != "proj-db" {
		t.Errorf("Jail = %q, want %q", err.Jail, "proj-db")
	}
}

func TestWrapWithDetail(t *testing.T) {
	underlying := fmt.Errorf("syscall failed")
	err := WrapWithDetail(underlying, ErrSyscall, "jail_set", "invalid parameter")

	if err.Detail != "invalid parameter" {
		t.Errorf("Detail = %q, want %q", err.Detail, "invalid parameter")
	}
}

func TestIsKind(t *testing.T) {
	err := &JailError{Kind: ErrJailNotFound}
	wrapped := fmt.Errorf("wrapped: %w", err)

	if !IsKind(err, ErrJailNotFound) {
		t.Error("IsKind(err, ErrJailNotFound) should be true")
	}
	if !IsKind(wrapped, ErrJailNotFound) {
		t.Error("IsKind(wrapped, ErrJailNotFound) should be true")
	}
	if IsKind(err, ErrNetwork) {
		t.Error("IsKind(err, ErrNetwork) should be false")
	}
	if IsKind(fmt.Errorf("plain error"), ErrJailNotFound) {
		t.Error("IsKind(plain error, ErrJailNotFound) should be false")
	}
}

func TestGetKind(t *testing.T) {
	err := &JailError{Kind: ErrSyscall}
	wrapped := fmt.Errorf("wrapped: %w", err)

	kind, ok := GetKind(err)
	if !ok || kind != ErrSyscall {
		t.Errorf("GetKind(err) = (%v, %v), want (%v, true)", kind, ok, ErrSyscall)
	}

	kind, ok = GetKind(wrapped)
	if !ok || kind != ErrSyscall {
		t.Errorf("GetKind(wrapped) = (%v, %v), want (%v, true)", kind, ok, ErrSyscall)
	}

	_, ok = GetKind(fmt.Errorf("plain error"))
	if ok {
		t.Error("GetKind(plain error) should return false")
	}
}

func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		name string
		err  *JailError
		kind ErrorKind
	}{
		{"ErrJailNotFoundSentinel", ErrJailNotFoundSentinel, ErrJailNotFound},
		{"ErrJailAlreadyRunningSentinel", ErrJailAlreadyRunningSentinel, ErrJailAlreadyRunning},
		{"ErrJailNotRunningSentinel", ErrJailNotRunningSentinel, ErrJailNotRunning},
		{"ErrDuplicateJail", ErrDuplicateJail, ErrConfigValidation},
		{"ErrBridgeAlreadyExistsSentinel", ErrBridgeAlreadyExistsSentinel, ErrBridgeAlreadyExists},
		{"ErrHookFailedSentinel", ErrHookFailedSentinel, ErrHookFailed},
		{"ErrHealthCheckFailedSentinel", ErrHealthCheckFailedSentinel, ErrHealthCheckFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Kind != tt.kind {
				t.Errorf("%s.Kind = %v, want %v", tt.name, tt.err.Kind, tt.kind)
			}
			wrapped := Wrap(fmt.Errorf("underlying"), tt.kind, "test")
			if !errors.Is(wrapped, tt.err) {
				t.Errorf("errors.Is(wrapped, %s) should be true", tt.name)
			}
		})
	}
}

func TestErrorChain(t *testing.T) {
	underlying := fmt.Errorf("file not found")
	err1 := Wrap(underlying, ErrJailNotFound, "load manifest")
	err2 := fmt.Errorf("orchestrator operation failed: %w", err1)

	if !errors.Is(err2, ErrJailNotFoundSentinel) {
		t.Error("errors.Is should find ErrJailNotFoundSentinel in chain")
	}

	var jerr *JailError
	if !errors.As(err2, &jerr) {
		t.Error("errors.As should find JailError in chain")
	}
	if jerr.Op != "load manifest" {
		t.Errorf("jerr.Op = %q, want %q", jerr.Op, "load manifest")
	}

	if errors.Unwrap(err1) != underlying {
		t.Error("Unwrap should return underlying error")
	}
}
