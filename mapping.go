package formulite

import (
	sqlschema "github.com/syssam/formulite/dialect/sql/schema"
	"github.com/syssam/formulite/dialect/sql/sqlgraph"
	"github.com/syssam/formulite/schema"
	"github.com/syssam/formulite/schema/field"
)

// tablesOf returns the table of an entity followed by its linked tables.
func tablesOf(reg *schema.Registry, e *schema.Entity) []*sqlschema.Table {
	tables := []*sqlschema.Table{entityTable(reg, e)}
	for _, l := range reg.Links(e.Name) {
		tables = append(tables, linkTable(reg, l))
	}
	return tables
}

// entityTable maps an entity to its table.
//
// A root table is keyed by the declared primary key and carries the
// surrogate key as a unique column. A derived table holds only the
// attributes it adds: its surrogate key is the INTEGER PRIMARY KEY and a
// unique link column refers to the parent's surrogate key, cascading on
// update and delete.
func entityTable(reg *schema.Registry, e *schema.Entity) *sqlschema.Table {
	t := sqlschema.NewTable(e.Name)
	for _, a := range e.Attributes {
		if a.IsList() {
			continue
		}
		t.AddColumn(&sqlschema.Column{Name: a.Name, Type: a.Type, Nullable: !e.InPrimaryKey(a.Name)})
	}
	if pk, ok := reg.ParentKey(e); ok {
		t.AddColumn(&sqlschema.Column{Name: e.Surrogate, Type: field.TypeInt})
		t.AddColumn(&sqlschema.Column{Name: pk.Attribute, Type: field.TypeInt, Unique: true})
		t.SetPrimaryKey(e.Surrogate)
		t.AddForeignKeys(&sqlschema.ForeignKey{
			Columns:    []string{pk.Attribute},
			RefTable:   pk.RefEntity,
			RefColumns: []string{pk.RefColumn},
			OnUpdate:   sqlschema.Cascade,
			OnDelete:   sqlschema.Cascade,
		})
	} else {
		t.AddColumn(&sqlschema.Column{Name: e.Surrogate, Type: field.TypeInt, Unique: true})
		t.SetPrimaryKey(e.PrimaryKey...)
	}
	for _, fk := range e.ForeignKeys {
		t.AddForeignKeys(&sqlschema.ForeignKey{
			Columns:    []string{fk.Attribute},
			RefTable:   fk.RefEntity,
			RefColumns: []string{fk.RefColumn},
		})
	}
	return t
}

// linkTable maps a list attribute to its linked table: one row per distinct
// element with the number of times it occurs.
func linkTable(reg *schema.Registry, l schema.Link) *sqlschema.Table {
	t := sqlschema.NewTable(l.Table).
		AddColumn(&sqlschema.Column{Name: l.OwnerColumn, Type: field.TypeInt}).
		AddColumn(&sqlschema.Column{Name: l.ElemColumn, Type: l.ElemType}).
		AddColumn(&sqlschema.Column{Name: schema.QuantityColumn, Type: field.TypeInt, Default: 1}).
		SetPrimaryKey(l.OwnerColumn, l.ElemColumn).
		AddForeignKeys(&sqlschema.ForeignKey{
			Columns:    []string{l.OwnerColumn},
			RefTable:   l.Owner,
			RefColumns: []string{l.OwnerColumn},
			OnUpdate:   sqlschema.Cascade,
			OnDelete:   sqlschema.Cascade,
		})
	if elem, ok := reg.Lookup(l.ElemEntity); ok {
		t.AddForeignKeys(&sqlschema.ForeignKey{
			Columns:    []string{l.ElemColumn},
			RefTable:   elem.Name,
			RefColumns: []string{elem.Surrogate},
			OnUpdate:   sqlschema.Cascade,
			OnDelete:   sqlschema.Cascade,
		})
	}
	return t
}

// hierarchy returns the join topology used to read an entity: its chain of
// ancestors, inner joined, optionally followed by all its descendants.
func hierarchy(reg *schema.Registry, name string, descendants bool) (*sqlgraph.Hierarchy, []*schema.Entity, error) {
	es, err := reg.Chain(name)
	if err != nil {
		return nil, nil, err
	}
	h := &sqlgraph.Hierarchy{Inner: len(es)}
	if descendants {
		es = append(es, reg.Descendants(name)...)
	}
	index := make(map[string]int, len(es))
	for i, e := range es {
		l := sqlgraph.Level{Table: e.Name, Columns: e.Columns(), Surrogate: e.Surrogate, Parent: -1}
		if pk, ok := reg.ParentKey(e); ok && i > 0 {
			l.Link, l.Parent = pk.Attribute, index[e.Parent]
		}
		index[e.Name] = i
		h.Levels = append(h.Levels, l)
	}
	return h, es, nil
}
