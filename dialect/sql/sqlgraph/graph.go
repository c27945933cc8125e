// Package sqlgraph provides the row-level operations of the mapping engine:
// creating, updating, deleting and counting rows, and the join topology of
// inheritance hierarchies.
package sqlgraph

import (
	"context"
	"fmt"

	"github.com/syssam/formulite/dialect"
	"github.com/syssam/formulite/dialect/sql"
)

// FieldSpec holds the information for setting a column value.
type FieldSpec struct {
	Column string
	Value  any
}

// CreateSpec holds the information for creating a row.
type CreateSpec struct {
	Table  string
	Fields []*FieldSpec
	// Surrogate is the surrogate key column of the table.
	Surrogate string
	// Allocate computes the surrogate key as MAX+1 inside the INSERT.
	// Without it the surrogate column is a rowid alias and the key is
	// the last insert id.
	Allocate bool
}

// NextKey returns the sub-query that allocates the next surrogate key of a table.
func NextKey(table, column string) sql.Querier {
	b := &sql.Builder{}
	b.WriteString("SELECT IFNULL(MAX(").Ident(column).WriteString("), 0) + 1 FROM ").Ident(table)
	return b
}

// CreateNode inserts a row and returns its surrogate key.
func CreateNode(ctx context.Context, drv dialect.ExecQuerier, spec *CreateSpec) (int64, error) {
	insert := sql.Insert(spec.Table)
	for _, f := range spec.Fields {
		insert.Set(f.Column, f.Value)
	}
	if spec.Allocate {
		insert.SetExpr(spec.Surrogate, NextKey(spec.Table, spec.Surrogate))
	}
	res, err := sql.ExecQuery(ctx, drv, insert)
	if err != nil {
		return 0, wrapConstraint(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("sqlgraph: last insert id: %w", err)
	}
	if !spec.Allocate {
		return id, nil
	}
	key, ok, err := FirstInt64(ctx, drv, sql.Select(spec.Surrogate).From(spec.Table).Where(sql.ExprP("rowid = ?", id)))
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("sqlgraph: row %d of %s not found after insert", id, spec.Table)
	}
	return key, nil
}

// UpdateSpec holds the information for updating rows.
type UpdateSpec struct {
	Table     string
	Fields    []*FieldSpec
	Predicate *sql.Predicate
}

// UpdateNodes applies the update and returns the number of matched rows.
// An update without fields only counts the rows the predicate matches.
func UpdateNodes(ctx context.Context, drv dialect.ExecQuerier, spec *UpdateSpec) (int, error) {
	if len(spec.Fields) == 0 {
		return CountNodes(ctx, drv, sql.Select().From(spec.Table).Where(spec.Predicate))
	}
	update := sql.Update(spec.Table).Where(spec.Predicate)
	for _, f := range spec.Fields {
		update.Set(f.Column, f.Value)
	}
	return affected(sql.ExecQuery(ctx, drv, update))
}

// DeleteNodes deletes the rows matching the predicate and returns their number.
func DeleteNodes(ctx context.Context, drv dialect.ExecQuerier, table string, p *sql.Predicate) (int, error) {
	return affected(sql.ExecQuery(ctx, drv, sql.Delete(table).Where(p)))
}

// CountNodes counts the rows of the given selector.
func CountNodes(ctx context.Context, drv dialect.ExecQuerier, selector *sql.Selector) (int, error) {
	n, _, err := FirstInt64(ctx, drv, selector.Clone().Count())
	return int(n), err
}

// FirstInt64 returns the first column of the first row as an int64.
// The boolean is false if no row matched or the column is NULL.
func FirstInt64(ctx context.Context, drv dialect.ExecQuerier, q sql.Querier) (int64, bool, error) {
	rows, err := sql.QueryValues(ctx, drv, q)
	if err != nil {
		return 0, false, err
	}
	if len(rows) == 0 || len(rows[0]) == 0 || rows[0][0] == nil {
		return 0, false, nil
	}
	n, ok := sql.ScanInt64(rows[0][0])
	if !ok {
		return 0, false, fmt.Errorf("sqlgraph: unexpected type %T for integer column", rows[0][0])
	}
	return n, true, nil
}

func affected(res sql.Result, err error) (int, error) {
	if err != nil {
		return 0, wrapConstraint(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlgraph: rows affected: %w", err)
	}
	return int(n), nil
}
