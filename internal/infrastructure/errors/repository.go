package errors

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
)

// ClassifyError maps a driver or library error to an ErrorCode.
// Typed driver errors are checked first, then well-known sentinels, then message text.
func ClassifyError(err error) ErrorCode {
	if err == nil {
		return ErrCodeUnknown
	}
	if code := classifySQLiteError(err); code != ErrCodeUnknown {
		return code
	}
	if code := classifyPostgresError(err); code != ErrCodeUnknown {
		return code
	}

	switch {
	case errors.Is(err, sql.ErrNoRows), errors.Is(err, pgx.ErrNoRows):
		return ErrCodeNotFound
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return ErrCodeTimeout
	case errors.Is(err, sql.ErrConnDone):
		return ErrCodeConnection
	case errors.Is(err, sql.ErrTxDone), errors.Is(err, pgx.ErrTxClosed):
		return ErrCodeTransaction
	}

	msg := strings.ToLower(err.Error())
	for _, rule := range messageRules {
		if strings.Contains(msg, rule.fragment) {
			return rule.code
		}
	}
	return ErrCodeUnknown
}

var messageRules = []struct {
	fragment string
	code     ErrorCode
}{
	{"unique constraint", ErrCodeDuplicate},
	{"duplicate key", ErrCodeDuplicate},
	{"foreign key constraint", ErrCodeConstraint},
	{"check constraint", ErrCodeConstraint},
	{"not null constraint", ErrCodeConstraint},
	{"database is locked", ErrCodeBusy},
	{"database disk image is malformed", ErrCodeCorruption},
	{"no such table", ErrCodeSchema},
	{"no such column", ErrCodeSchema},
	{"permission denied", ErrCodePermission},
	{"no space left", ErrCodeDiskSpace},
	{"disk full", ErrCodeDiskSpace},
	{"connection refused", ErrCodeConnection},
	{"connection reset", ErrCodeConnection},
	{"timeout", ErrCodeTimeout},
	{"deadlock", ErrCodeTransaction},
	{"serialization failure", ErrCodeTransaction},
}

// WrapDatabaseError classifies err and wraps it; nil stays nil
func WrapDatabaseError(op string, err error) error {
	if err == nil {
		return nil
	}
	return NewRepositoryError(op, err, ClassifyError(err))
}

// WrapDatabaseErrorWithContext is WrapDatabaseError with context
func WrapDatabaseErrorWithContext(op string, err error, context map[string]string) error {
	if err == nil {
		return nil
	}
	return NewRepositoryErrorWithContext(op, err, ClassifyError(err), context)
}

// HandleNotFound reports a missing record
func HandleNotFound(op, resource, identifier string) error {
	return NewRepositoryErrorWithContext(op, sql.ErrNoRows, ErrCodeNotFound, map[string]string{
		"resource":   resource,
		"identifier": identifier,
	})
}

// HandleValidationError reports input rejected before reaching the store
func HandleValidationError(op, field, value, reason string) error {
	return NewRepositoryErrorWithContext(op, errors.New("validation failed: "+reason), ErrCodeValidation, map[string]string{
		"field": field,
		"value": value,
	})
}

// HandleConnectionError reports a store that is unavailable
func HandleConnectionError(op, details string) error {
	return NewRepositoryErrorWithContext(op, errors.New("connection error"), ErrCodeConnection, map[string]string{
		"details": details,
	})
}
