package formulite

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotFoundError(t *testing.T) {
	err := NewNotFoundError("Product", "pen")
	assert.Equal(t, "formulite: Product not found (key=pen)", err.Error())
	assert.Equal(t, "Product", err.Label())
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, IsNotFound(err))
	assert.Equal(t, "formulite: Product not found", NewNotFoundError("Product", nil).Error())

	wrapped := &MutationError{Entity: "Product", Op: "delete", Err: err}
	assert.True(t, IsNotFound(wrapped))
	assert.True(t, IsMutationError(wrapped))
	assert.False(t, IsQueryError(wrapped))
	assert.False(t, IsNotFound(nil))
	assert.False(t, IsNotFound(errors.New("other")))
}

func TestSchemaError(t *testing.T) {
	err := &SchemaError{Entity: "User", Op: "declare", Err: ErrDuplicateEntity}
	assert.Equal(t, "formulite: declare User: formulite: duplicate entity", err.Error())
	assert.ErrorIs(t, err, ErrDuplicateEntity)
	assert.True(t, IsSchemaError(err))

	err = &SchemaError{Op: "reload", Err: ErrSchemaMismatch}
	assert.Equal(t, "formulite: reload: formulite: schema mismatch", err.Error())
}

func TestQueryError(t *testing.T) {
	err := &QueryError{Entity: "User", Op: "select", Err: ErrUnknownAttribute}
	assert.Contains(t, err.Error(), "querying User (select)")
	assert.ErrorIs(t, err, ErrUnknownAttribute)
	assert.True(t, IsQueryError(err))
}

func TestRollbackError(t *testing.T) {
	cause := errors.New("connection lost")
	err := &RollbackError{Err: cause}
	assert.Equal(t, "formulite: rollback failed: connection lost", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestClassify(t *testing.T) {
	require.NoError(t, classify(nil))

	driverErr := errors.New("constraint failed: FOREIGN KEY constraint failed (787)")
	err := classify(driverErr)
	assert.ErrorIs(t, err, ErrForeignKeyViolation)
	assert.ErrorIs(t, err, driverErr)

	other := errors.New("disk I/O error")
	assert.Equal(t, other, classify(other))

	already := &MutationError{Err: ErrForeignKeyViolation}
	assert.Equal(t, error(already), classify(already))
}
