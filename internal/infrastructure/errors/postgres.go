package errors

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes, see https://www.postgresql.org/docs/current/errcodes-appendix.html
var pgStateCodes = map[string]ErrorCode{
	"23505": ErrCodeDuplicate,  // unique_violation
	"23503": ErrCodeConstraint, // foreign_key_violation
	"23514": ErrCodeConstraint, // check_violation
	"23502": ErrCodeConstraint, // not_null_violation
	"40001": ErrCodeTransaction,
	"40P01": ErrCodeTransaction,
	"55P03": ErrCodeBusy,
	"57014": ErrCodeTimeout,
	"53100": ErrCodeDiskSpace,
	"42P01": ErrCodeSchema,
	"42703": ErrCodeSchema,
	"42501": ErrCodePermission,
	"XX001": ErrCodeCorruption,
	"XX002": ErrCodeCorruption,
}

// classifyPostgresError returns ErrCodeUnknown for anything that is not a *pgconn.PgError
// or a pgconn connection failure
func classifyPostgresError(err error) ErrorCode {
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return ErrCodeConnection
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return ErrCodeUnknown
	}
	if code, ok := pgStateCodes[pgErr.Code]; ok {
		return code
	}
	// class 08 is connection exception
	if strings.HasPrefix(pgErr.Code, "08") {
		return ErrCodeConnection
	}
	if strings.HasPrefix(pgErr.Code, "23") {
		return ErrCodeConstraint
	}
	return ErrCodeUnknown
}
