// Package snapshot persists entity descriptors so that the mapping can be
// rebuilt after a restart without re-running declarations.
package snapshot

import (
	"context"
	"fmt"

	"github.com/syssam/formulite/dialect"
	"github.com/syssam/formulite/schema"
	"github.com/syssam/formulite/schema/field"
)

// Attribute is the persisted form of an attribute.
type Attribute struct {
	Name string `msgpack:"name" yaml:"name"`
	Type string `msgpack:"type" yaml:"type"`
}

// ForeignKey is the persisted form of a foreign key.
type ForeignKey struct {
	Attribute string `msgpack:"attribute" yaml:"attribute"`
	Entity    string `msgpack:"entity" yaml:"entity"`
	Column    string `msgpack:"column,omitempty" yaml:"column,omitempty"`
}

// Record is the persisted form of one entity descriptor.
type Record struct {
	Name        string       `msgpack:"name" yaml:"name"`
	Parent      string       `msgpack:"parent,omitempty" yaml:"parent,omitempty"`
	Attributes  []Attribute  `msgpack:"attributes" yaml:"attributes"`
	PrimaryKey  []string     `msgpack:"primary_key,omitempty" yaml:"primary_key,omitempty"`
	ForeignKeys []ForeignKey `msgpack:"foreign_keys,omitempty" yaml:"foreign_keys,omitempty"`
	Surrogate   string       `msgpack:"surrogate,omitempty" yaml:"surrogate,omitempty"`
}

// Document is a full snapshot with its revision.
type Document struct {
	Revision string   `yaml:"revision,omitempty"`
	Entities []Record `yaml:"entities"`
}

// Store persists and loads snapshot records. The executor is the one of
// the enclosing operation, so stores backed by the database take part in
// its transaction.
type Store interface {
	Save(ctx context.Context, ex dialect.ExecQuerier, recs []Record) error
	Load(ctx context.Context, ex dialect.ExecQuerier) ([]Record, error)
}

// FromEntity returns the record of an entity.
func FromEntity(e *schema.Entity) Record {
	r := Record{
		Name:       e.Name,
		Parent:     e.Parent,
		Surrogate:  e.Surrogate,
		PrimaryKey: append([]string(nil), e.PrimaryKey...),
		Attributes: make([]Attribute, len(e.Attributes)),
	}
	for i, a := range e.Attributes {
		r.Attributes[i] = Attribute{Name: a.Name, Type: a.TypeName()}
	}
	for _, fk := range e.ForeignKeys {
		r.ForeignKeys = append(r.ForeignKeys, ForeignKey{Attribute: fk.Attribute, Entity: fk.RefEntity, Column: fk.RefColumn})
	}
	return r
}

// Records returns the records of all entities in dependency order.
func Records(reg *schema.Registry) []Record {
	es := reg.Sorted()
	recs := make([]Record, len(es))
	for i, e := range es {
		recs[i] = FromEntity(e)
	}
	return recs
}

// Descriptors parses the attributes of a record.
func (r Record) Descriptors() ([]field.Descriptor, error) {
	attrs := make([]field.Descriptor, len(r.Attributes))
	for i, a := range r.Attributes {
		d, err := field.Parse(a.Name, a.Type)
		if err != nil {
			return nil, fmt.Errorf("snapshot: entity %q: %w", r.Name, err)
		}
		attrs[i] = d
	}
	return attrs, nil
}

// Entity reconstructs the entity descriptor of a record.
func (r Record) Entity() (*schema.Entity, error) {
	if r.Surrogate == "" {
		return nil, fmt.Errorf("snapshot: entity %q has no surrogate key", r.Name)
	}
	attrs, err := r.Descriptors()
	if err != nil {
		return nil, err
	}
	e := &schema.Entity{
		Name:       r.Name,
		Parent:     r.Parent,
		Surrogate:  r.Surrogate,
		Attributes: attrs,
		PrimaryKey: append([]string(nil), r.PrimaryKey...),
	}
	for _, fk := range r.ForeignKeys {
		e.ForeignKeys = append(e.ForeignKeys, schema.ForeignKey{Attribute: fk.Attribute, RefEntity: fk.Entity, RefColumn: fk.Column})
	}
	return e, nil
}

// Registry rebuilds a registry from records given in dependency order.
func Registry(recs []Record) (*schema.Registry, error) {
	reg := schema.NewRegistry()
	for _, r := range recs {
		e, err := r.Entity()
		if err != nil {
			return nil, err
		}
		if err := reg.Add(e); err != nil {
			return nil, fmt.Errorf("snapshot: %w", err)
		}
	}
	return reg, nil
}
