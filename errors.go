package formulite

import (
	"errors"
	"fmt"

	"github.com/syssam/formulite/dialect/sql/sqlgraph"
	"github.com/syssam/formulite/schema"
)

// Schema and mapping errors. AlreadyExists is not among them: inserting an
// instance whose key is taken reports false instead of failing.
var (
	ErrDuplicateEntity     = schema.ErrDuplicateEntity
	ErrUnknownEntity       = schema.ErrUnknownEntity
	ErrUnknownAttribute    = schema.ErrUnknownAttribute
	ErrDuplicateAttribute  = schema.ErrDuplicateAttribute
	ErrSchemaMismatch      = schema.ErrSchemaMismatch
	ErrPrimaryKeyViolation = schema.ErrPrimaryKeyViolation
	ErrForeignKeyViolation = schema.ErrForeignKeyViolation
	ErrInvalidForeignKey   = schema.ErrInvalidForeignKey
	ErrNoJoinPath          = schema.ErrNoJoinPath

	// ErrNotFound is returned when a requested instance does not exist.
	ErrNotFound = errors.New("formulite: instance not found")
)

// NotFoundError represents an error when an instance is not found.
type NotFoundError struct {
	label string
	key   any
}

// Error returns the error string.
func (e *NotFoundError) Error() string {
	if e.key != nil {
		return fmt.Sprintf("formulite: %s not found (key=%v)", e.label, e.key)
	}
	return fmt.Sprintf("formulite: %s not found", e.label)
}

// Is reports whether the target error matches NotFoundError.
func (e *NotFoundError) Is(err error) bool {
	return err == ErrNotFound
}

// Label returns the entity name.
func (e *NotFoundError) Label() string {
	return e.label
}

// NewNotFoundError returns a new NotFoundError for the given entity.
func NewNotFoundError(label string, key any) *NotFoundError {
	return &NotFoundError{label: label, key: key}
}

// IsNotFound returns true if the error is a NotFoundError.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var e *NotFoundError
	return errors.As(err, &e) || errors.Is(err, ErrNotFound)
}

// SchemaError wraps a failed schema declaration or structural change.
type SchemaError struct {
	Entity string // Entity being declared or changed, empty for all-entity operations
	Op     string // Operation (e.g., "declare", "add_column", "reload")
	Err    error  // Underlying error
}

// Error returns the error string.
func (e *SchemaError) Error() string {
	if e.Entity == "" {
		return fmt.Sprintf("formulite: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("formulite: %s %s: %v", e.Op, e.Entity, e.Err)
}

// Unwrap returns the underlying error.
func (e *SchemaError) Unwrap() error {
	return e.Err
}

// IsSchemaError returns true if the error is a SchemaError.
func IsSchemaError(err error) bool {
	var e *SchemaError
	return errors.As(err, &e)
}

// QueryError wraps a query error with additional context.
type QueryError struct {
	Entity string // Entity being queried
	Op     string // Operation (e.g., "select", "count", "exists")
	Err    error  // Underlying error
}

// Error returns the error string.
func (e *QueryError) Error() string {
	return fmt.Sprintf("formulite: querying %s (%s): %v", e.Entity, e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *QueryError) Unwrap() error {
	return e.Err
}

// IsQueryError returns true if the error is a QueryError.
func IsQueryError(err error) bool {
	var e *QueryError
	return errors.As(err, &e)
}

// MutationError wraps a mutation error with additional context.
type MutationError struct {
	Entity string // Entity being mutated
	Op     string // Operation (e.g., "insert", "update", "delete")
	Err    error  // Underlying error
}

// Error returns the error string.
func (e *MutationError) Error() string {
	return fmt.Sprintf("formulite: %s %s: %v", e.Op, e.Entity, e.Err)
}

// Unwrap returns the underlying error.
func (e *MutationError) Unwrap() error {
	return e.Err
}

// IsMutationError returns true if the error is a MutationError.
func IsMutationError(err error) bool {
	var e *MutationError
	return errors.As(err, &e)
}

// RollbackError wraps an error that occurred during a transaction rollback.
type RollbackError struct {
	Err error
}

// Error returns the error string.
func (e *RollbackError) Error() string {
	return fmt.Sprintf("formulite: rollback failed: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *RollbackError) Unwrap() error {
	return e.Err
}

// classify makes database foreign key failures match ErrForeignKeyViolation,
// keeping the driver error in the chain.
func classify(err error) error {
	if err == nil || errors.Is(err, ErrForeignKeyViolation) {
		return err
	}
	if sqlgraph.IsForeignKeyConstraintError(err) {
		return fmt.Errorf("%w: %w", ErrForeignKeyViolation, err)
	}
	return err
}
