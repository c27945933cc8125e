package schema

import "errors"

// Errors reported by schema declarations and structural changes.
var (
	ErrDuplicateEntity     = errors.New("formulite: duplicate entity")
	ErrUnknownEntity       = errors.New("formulite: unknown entity")
	ErrUnknownAttribute    = errors.New("formulite: unknown attribute")
	ErrDuplicateAttribute  = errors.New("formulite: duplicate attribute")
	ErrPrimaryKeyViolation = errors.New("formulite: primary key violation")
	ErrForeignKeyViolation = errors.New("formulite: foreign key violation")
	ErrInvalidForeignKey   = errors.New("formulite: invalid foreign key")
	ErrSchemaMismatch      = errors.New("formulite: schema mismatch")
	ErrNoJoinPath          = errors.New("formulite: no join path")
)
