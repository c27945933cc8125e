package sqlgraph

import (
	"errors"
	"strings"
)

// ConstraintError represents an error from a database constraint check,
// with the driver error kept in the chain.
type ConstraintError struct {
	msg  string
	wrap error
}

// Error implements the error interface.
func (e ConstraintError) Error() string {
	return "sqlgraph: constraint failed: " + e.msg
}

// Unwrap returns the driver error.
func (e ConstraintError) Unwrap() error {
	return e.wrap
}

// IsConstraintError returns true if the error resulted from a database constraint violation.
func IsConstraintError(err error) bool {
	var e ConstraintError
	return errors.As(err, &e) ||
		IsUniqueConstraintError(err) ||
		IsForeignKeyConstraintError(err) ||
		IsNotNullConstraintError(err) ||
		IsCheckConstraintError(err)
}

// errorCoder is implemented by *sqlite.Error of modernc.org/sqlite.
type errorCoder interface {
	Code() int
}

// SQLite extended result codes for constraint violations.
const (
	sqliteConstraintCheck      = 275
	sqliteConstraintForeignKey = 787
	sqliteConstraintNotNull    = 1299
	sqliteConstraintPrimaryKey = 1555
	sqliteConstraintUnique     = 2067
)

// IsUniqueConstraintError reports if the error resulted from a uniqueness
// or primary key constraint violation.
func IsUniqueConstraintError(err error) bool {
	return matches(err, []int{sqliteConstraintUnique, sqliteConstraintPrimaryKey},
		"UNIQUE constraint failed",
		"PRIMARY KEY constraint failed",
	)
}

// IsForeignKeyConstraintError reports if the error resulted from a foreign-key
// constraint violation, e.g. the parent row does not exist.
func IsForeignKeyConstraintError(err error) bool {
	return matches(err, []int{sqliteConstraintForeignKey}, "FOREIGN KEY constraint failed")
}

// IsNotNullConstraintError reports if the error resulted from a NOT NULL constraint violation.
func IsNotNullConstraintError(err error) bool {
	return matches(err, []int{sqliteConstraintNotNull}, "NOT NULL constraint failed")
}

// IsCheckConstraintError reports if the error resulted from a CHECK constraint violation.
func IsCheckConstraintError(err error) bool {
	return matches(err, []int{sqliteConstraintCheck}, "CHECK constraint failed")
}

func matches(err error, codes []int, msgs ...string) bool {
	if err == nil {
		return false
	}
	if e, ok := asError[errorCoder](err); ok {
		for _, c := range codes {
			if e.Code() == c {
				return true
			}
		}
	}
	// Drivers that only report the primary result code.
	return containsAny(err.Error(), msgs...)
}

// asError attempts to extract an error implementing interface T from the error chain.
func asError[T any](err error) (T, bool) {
	var target T
	for err != nil {
		if e, ok := err.(T); ok {
			return e, true
		}
		err = errors.Unwrap(err)
	}
	return target, false
}

func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// wrapConstraint wraps constraint violations with ConstraintError.
func wrapConstraint(err error) error {
	if err != nil && IsConstraintError(err) {
		return ConstraintError{msg: err.Error(), wrap: err}
	}
	return err
}
