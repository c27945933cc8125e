// Package schema models SQLite tables and renders and inspects their DDL.
package schema

import (
	"github.com/syssam/formulite/schema/field"
)

// ReferenceOption for foreign key actions.
type ReferenceOption string

// Reference options.
const (
	NoAction ReferenceOption = "NO ACTION"
	Restrict ReferenceOption = "RESTRICT"
	Cascade  ReferenceOption = "CASCADE"
	SetNull  ReferenceOption = "SET NULL"
)

// Column schema definition for SQL dialects.
type Column struct {
	Name     string
	Type     field.Type
	Nullable bool
	Unique   bool
	Default  any
}

// ForeignKey definition for creation.
type ForeignKey struct {
	Columns    []string
	RefTable   string
	RefColumns []string
	OnUpdate   ReferenceOption
	OnDelete   ReferenceOption
}

// Table schema definition for SQL dialects.
type Table struct {
	Name        string
	Columns     []*Column
	PrimaryKey  []string
	ForeignKeys []*ForeignKey
}

// NewTable returns a new table with the given name.
func NewTable(name string) *Table {
	return &Table{Name: name}
}

// AddColumn adds a new column to the table.
func (t *Table) AddColumn(c *Column) *Table {
	t.Columns = append(t.Columns, c)
	return t
}

// SetPrimaryKey sets the primary key columns of the table.
func (t *Table) SetPrimaryKey(columns ...string) *Table {
	t.PrimaryKey = append([]string(nil), columns...)
	return t
}

// AddForeignKeys adds foreign keys to the table.
func (t *Table) AddForeignKeys(fks ...*ForeignKey) *Table {
	t.ForeignKeys = append(t.ForeignKeys, fks...)
	return t
}

// Column returns the column with the given name.
func (t *Table) Column(name string) (*Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}
