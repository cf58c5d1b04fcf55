package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestErrorCode_String(t *testing.T) {
	tests := map[ErrorCode]string{
		ErrCodeUnknown:    "UNKNOWN",
		ErrCodeNotFound:   "NOT_FOUND",
		ErrCodeBusy:       "BUSY",
		ErrCodeSchema:     "SCHEMA",
		ErrorCode(999):    "UNKNOWN",
		ErrCodeValidation: "VALIDATION",
	}
	for code, want := range tests {
		if got := code.String(); got != want {
			t.Errorf("ErrorCode(%d).String() = %q, want %q", code, got, want)
		}
	}
}

func TestRepositoryError_Error(t *testing.T) {
	err := NewRepositoryErrorWithContext("SaveSession", errors.New("disk I/O error"), ErrCodeConnection, map[string]string{
		"user_id":    "u1",
		"session_id": "s1",
	})

	want := "disk I/O error [op=SaveSession code=CONNECTION retryable=true session_id=s1 user_id=u1]"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	var nilErr *RepositoryError
	if nilErr.Error() != "repository error" {
		t.Errorf("nil Error() = %q", nilErr.Error())
	}
	if nilErr.IsRetryable() || nilErr.Unwrap() != nil || nilErr.GetCode() != "UNKNOWN" {
		t.Error("nil receiver guards failed")
	}

	bare := &RepositoryError{}
	if bare.Error() != "repository error" {
		t.Errorf("bare Error() = %q", bare.Error())
	}
}

func TestRepositoryError_IsAndUnwrap(t *testing.T) {
	base := errors.New("base")
	err := NewRepositoryError("QuerySessions", base, ErrCodeTimeout)

	if !errors.Is(err, base) {
		t.Error("errors.Is should match the wrapped error")
	}
	if !errors.Is(err, &RepositoryError{Code: ErrCodeTimeout}) {
		t.Error("errors.Is should match by code")
	}
	if errors.Is(err, &RepositoryError{Code: ErrCodeNotFound}) {
		t.Error("errors.Is should not match a different code")
	}
}

func TestNewRepositoryErrorWithContext_CopiesContext(t *testing.T) {
	ctx := map[string]string{"k": "v"}
	err := NewRepositoryErrorWithContext("op", errors.New("x"), ErrCodeUnknown, ctx)
	ctx["k"] = "changed"
	if err.Context["k"] != "v" {
		t.Errorf("Context[k] = %q, want v", err.Context["k"])
	}

	err.WithContext("extra", "1")
	if err.GetContext()["extra"] != "1" {
		t.Error("WithContext did not set key")
	}
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name string
		code ErrorCode
		err  error
		want bool
	}{
		{"busy", ErrCodeBusy, nil, true},
		{"connection", ErrCodeConnection, nil, true},
		{"validation", ErrCodeValidation, nil, false},
		{"disk space", ErrCodeDiskSpace, nil, false},
		{"unknown locked", ErrCodeUnknown, errors.New("table is LOCKED"), true},
		{"unknown other", ErrCodeUnknown, errors.New("boom"), false},
		{"unknown nil", ErrCodeUnknown, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRetryableError(tt.code, tt.err); got != tt.want {
				t.Errorf("isRetryableError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassificationHelpers(t *testing.T) {
	wrapped := errorsJoin(NewRepositoryError("Get", errors.New("none"), ErrCodeNotFound))
	if !IsNotFound(wrapped) {
		t.Error("IsNotFound() = false for wrapped not found")
	}
	if IsDuplicate(wrapped) || IsConnection(wrapped) || IsValidation(wrapped) || IsBusy(wrapped) {
		t.Error("unexpected classification match")
	}
	if IsRetryable(errors.New("plain")) {
		t.Error("IsRetryable() = true for plain error")
	}
	if !IsRetryable(NewRepositoryError("Save", errors.New("x"), ErrCodeBusy)) {
		t.Error("IsRetryable() = false for busy error")
	}
}

func errorsJoin(err error) error {
	return errors.Join(errors.New("context"), err)
}

func TestHandleHelpers(t *testing.T) {
	notFound := HandleNotFound("GetSession", "session", "s1")
	if !IsNotFound(notFound) || !strings.Contains(notFound.Error(), "identifier=s1") {
		t.Errorf("HandleNotFound() = %v", notFound)
	}

	invalid := HandleValidationError("SaveSession", "user_id", "", "empty")
	if !IsValidation(invalid) || IsRetryable(invalid) {
		t.Errorf("HandleValidationError() = %v", invalid)
	}

	conn := HandleConnectionError("Connect", "refused")
	if !IsConnection(conn) || !IsRetryable(conn) {
		t.Errorf("HandleConnectionError() = %v", conn)
	}
}
