package sqlgraph

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

type codeError struct {
	code int
	msg  string
}

func (e *codeError) Error() string { return e.msg }
func (e *codeError) Code() int     { return e.code }

func TestConstraintErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		unique     bool
		foreignKey bool
		notNull    bool
		check      bool
	}{
		{name: "nil"},
		{name: "plain", err: errors.New("no such table: t")},
		{name: "unique_code", err: &codeError{code: 2067, msg: "constraint failed"}, unique: true},
		{name: "primary_key_code", err: &codeError{code: 1555, msg: "constraint failed"}, unique: true},
		{name: "foreign_key_code", err: fmt.Errorf("exec: %w", &codeError{code: 787, msg: "constraint failed"}), foreignKey: true},
		{name: "not_null_code", err: &codeError{code: 1299, msg: "constraint failed"}, notNull: true},
		{name: "check_code", err: &codeError{code: 275, msg: "constraint failed"}, check: true},
		{name: "unique_message", err: errors.New("UNIQUE constraint failed: User.name"), unique: true},
		{name: "foreign_key_message", err: errors.New("FOREIGN KEY constraint failed"), foreignKey: true},
		{name: "wrapped", err: ConstraintError{msg: "x", wrap: &codeError{code: 787}}, foreignKey: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.unique, IsUniqueConstraintError(tt.err))
			assert.Equal(t, tt.foreignKey, IsForeignKeyConstraintError(tt.err))
			assert.Equal(t, tt.notNull, IsNotNullConstraintError(tt.err))
			assert.Equal(t, tt.check, IsCheckConstraintError(tt.err))
			assert.Equal(t, tt.unique || tt.foreignKey || tt.notNull || tt.check, IsConstraintError(tt.err))
		})
	}
}

func TestWrapConstraint(t *testing.T) {
	assert.NoError(t, wrapConstraint(nil))

	plain := errors.New("disk I/O error")
	assert.Equal(t, plain, wrapConstraint(plain))

	fk := &codeError{code: 787, msg: "FOREIGN KEY constraint failed"}
	err := wrapConstraint(fk)
	var ce ConstraintError
	assert.ErrorAs(t, err, &ce)
	assert.ErrorIs(t, err, fk)
	assert.Contains(t, err.Error(), "FOREIGN KEY constraint failed")
}
