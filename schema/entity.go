package schema

import (
	"slices"
	"strings"

	"github.com/syssam/formulite/schema/field"
)

// Columns of linked tables.
const (
	ValueColumn    = "value"
	QuantityColumn = "quantity"
)

// ForeignKey links a local attribute to the key column of another entity.
type ForeignKey struct {
	Attribute string
	RefEntity string
	RefColumn string
}

// Entity describes one entity and its table.
type Entity struct {
	Name        string
	Attributes  []field.Descriptor
	PrimaryKey  []string
	ForeignKeys []ForeignKey
	// Parent is the name of the supertype, empty for root entities.
	Parent string
	// Surrogate is the engine-assigned integer key column.
	Surrogate string
}

// Derived reports if the entity has a parent.
func (e *Entity) Derived() bool { return e.Parent != "" }

// Attribute returns the attribute with the given name.
func (e *Entity) Attribute(name string) (field.Descriptor, bool) {
	for _, a := range e.Attributes {
		if a.Name == name {
			return a, true
		}
	}
	return field.Descriptor{}, false
}

// Columns returns the scalar attribute names in declaration order.
func (e *Entity) Columns() []string {
	columns := make([]string, 0, len(e.Attributes))
	for _, a := range e.Attributes {
		if !a.IsList() {
			columns = append(columns, a.Name)
		}
	}
	return columns
}

// Lists returns the list attributes in declaration order.
func (e *Entity) Lists() []field.Descriptor {
	var lists []field.Descriptor
	for _, a := range e.Attributes {
		if a.IsList() {
			lists = append(lists, a)
		}
	}
	return lists
}

// InPrimaryKey reports if the attribute is part of the primary key.
func (e *Entity) InPrimaryKey(name string) bool {
	return slices.Contains(e.PrimaryKey, name)
}

// ForeignKey returns the foreign key declared on the attribute.
func (e *Entity) ForeignKey(attr string) (ForeignKey, bool) {
	for _, fk := range e.ForeignKeys {
		if fk.Attribute == attr {
			return fk, true
		}
	}
	return ForeignKey{}, false
}

// KeyColumns returns the primary key columns of the entity table.
func (e *Entity) KeyColumns() []string {
	if e.Derived() {
		return []string{e.Surrogate}
	}
	return e.PrimaryKey
}

// Clone returns a deep copy of the entity.
func (e *Entity) Clone() *Entity {
	c := *e
	c.Attributes = slices.Clone(e.Attributes)
	c.PrimaryKey = slices.Clone(e.PrimaryKey)
	c.ForeignKeys = slices.Clone(e.ForeignKeys)
	return &c
}

func (e *Entity) hasName(name string) bool {
	if strings.EqualFold(e.Surrogate, name) {
		return true
	}
	for _, a := range e.Attributes {
		if strings.EqualFold(a.Name, name) {
			return true
		}
	}
	return false
}

// Link describes the linked table of a list attribute.
type Link struct {
	Table       string
	Owner       string
	Attribute   string
	OwnerColumn string
	ElemColumn  string
	// ElemType is the element column type. Entity elements are stored
	// as the element's surrogate key.
	ElemType field.Type
	// ElemEntity is the element entity, empty for scalar lists.
	ElemEntity string
}

// LinkTable returns the linked table name of a list attribute.
func LinkTable(owner, attr string) string {
	return owner + "_" + attr
}
