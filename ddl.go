package formulite

import (
	"context"
	"fmt"
	"slices"

	"github.com/syssam/formulite/dialect"
	"github.com/syssam/formulite/dialect/sql"
	sqlschema "github.com/syssam/formulite/dialect/sql/schema"
	"github.com/syssam/formulite/dialect/sql/sqlgraph"
	"github.com/syssam/formulite/schema"
	"github.com/syssam/formulite/schema/field"
	"github.com/syssam/formulite/schema/snapshot"
)

// alter applies a structural change to a copy of the registry, runs fn's
// statements and saves the snapshot in one transaction. The copy replaces
// the registry only once the transaction commits.
func (c *Client) alter(ctx context.Context, entity, op string, fn func(context.Context, dialect.ExecQuerier, *schema.Registry) error) error {
	ctx = sql.WithOperation(ctx, entity, op)
	c.mu.Lock()
	defer c.mu.Unlock()
	reg := c.registry.Clone()
	err := c.withTx(ctx, func(tx dialect.Tx) error {
		if err := fn(ctx, tx, reg); err != nil {
			return err
		}
		return c.store.Save(ctx, tx, snapshot.Records(reg))
	})
	if err != nil {
		return &SchemaError{Entity: entity, Op: op, Err: classify(err)}
	}
	c.registry = reg
	c.log.Info("schema altered", "op", op, "entity", entity)
	return nil
}

func exec(ctx context.Context, ex dialect.ExecQuerier, qs ...sql.Querier) error {
	for _, q := range qs {
		if _, err := sql.ExecQuery(ctx, ex, q); err != nil {
			return err
		}
	}
	return nil
}

// createTables creates the table and linked tables of an entity if they do
// not exist yet.
func createTables(ctx context.Context, ex dialect.ExecQuerier, reg *schema.Registry, e *schema.Entity) error {
	if !e.Derived() && len(e.PrimaryKey) == 0 {
		return fmt.Errorf("%w: %s has no primary key", ErrPrimaryKeyViolation, e.Name)
	}
	for _, t := range tablesOf(reg, e) {
		if err := exec(ctx, ex, sqlschema.CreateTable(t)); err != nil {
			return fmt.Errorf("create table %s: %w", t.Name, err)
		}
	}
	return nil
}

// dropTables drops the linked tables of an entity, then its table.
func dropTables(ctx context.Context, ex dialect.ExecQuerier, reg *schema.Registry, e *schema.Entity) error {
	for _, l := range reg.Links(e.Name) {
		if err := exec(ctx, ex, sqlschema.DropTable(l.Table)); err != nil {
			return err
		}
	}
	return exec(ctx, ex, sqlschema.DropTable(e.Name))
}

// CreateAll creates the tables of all declared entities, referenced tables
// first, and persists the schema. Existing tables are kept, so it can run
// again after more entities are declared.
func (c *Client) CreateAll(ctx context.Context) error {
	return c.alter(ctx, "", "create_all", func(ctx context.Context, ex dialect.ExecQuerier, reg *schema.Registry) error {
		for _, e := range reg.Sorted() {
			if err := createTables(ctx, ex, reg, e); err != nil {
				return err
			}
		}
		return nil
	})
}

// AddTable creates the tables of one declared entity.
func (c *Client) AddTable(ctx context.Context, entity string) error {
	return c.alter(ctx, entity, "add_table", func(ctx context.Context, ex dialect.ExecQuerier, reg *schema.Registry) error {
		e, err := reg.Entity(entity)
		if err != nil {
			return err
		}
		return createTables(ctx, ex, reg, e)
	})
}

// AddColumn adds an attribute to an entity and its table. Existing rows
// get NULL for a scalar attribute and an empty list for a list attribute.
func (c *Client) AddColumn(ctx context.Context, entity string, attr field.Descriptor) error {
	return c.alter(ctx, entity, "add_column", func(ctx context.Context, ex dialect.ExecQuerier, reg *schema.Registry) error {
		if err := reg.AddAttribute(entity, attr); err != nil {
			return err
		}
		if attr.IsList() {
			for _, l := range reg.Links(entity) {
				if l.Attribute == attr.Name {
					return exec(ctx, ex, sqlschema.CreateTable(linkTable(reg, l)))
				}
			}
			return nil
		}
		return exec(ctx, ex, sqlschema.AddColumn(entity, &sqlschema.Column{Name: attr.Name, Type: attr.Type, Nullable: true}))
	})
}

// DropColumn removes an attribute from an entity and its table. Primary
// key and foreign key attributes cannot be dropped.
func (c *Client) DropColumn(ctx context.Context, entity, attr string) error {
	return c.alter(ctx, entity, "drop_column", func(ctx context.Context, ex dialect.ExecQuerier, reg *schema.Registry) error {
		e, err := reg.Entity(entity)
		if err != nil {
			return err
		}
		a, ok := e.Attribute(attr)
		if err := reg.DropAttribute(entity, attr); err != nil {
			return err
		}
		if ok && a.IsList() {
			return exec(ctx, ex, sqlschema.DropTable(schema.LinkTable(entity, attr)))
		}
		return exec(ctx, ex, sqlschema.DropColumn(entity, attr))
	})
}

// RenameTable renames an entity with its table and linked tables.
// References from other entities follow the new name.
func (c *Client) RenameTable(ctx context.Context, from, to string) error {
	return c.alter(ctx, from, "rename_table", func(ctx context.Context, ex dialect.ExecQuerier, reg *schema.Registry) error {
		links := reg.Links(from)
		if err := reg.RenameEntity(from, to); err != nil {
			return err
		}
		if err := exec(ctx, ex, sqlschema.RenameTable(from, to)); err != nil {
			return err
		}
		for _, l := range links {
			if err := exec(ctx, ex, sqlschema.RenameTable(l.Table, schema.LinkTable(to, l.Attribute))); err != nil {
				return err
			}
		}
		return nil
	})
}

// RenameColumn renames an attribute of an entity. Renaming a list attribute
// renames its linked table.
func (c *Client) RenameColumn(ctx context.Context, entity, from, to string) error {
	return c.alter(ctx, entity, "rename_column", func(ctx context.Context, ex dialect.ExecQuerier, reg *schema.Registry) error {
		e, err := reg.Entity(entity)
		if err != nil {
			return err
		}
		a, ok := e.Attribute(from)
		if err := reg.RenameAttribute(entity, from, to); err != nil {
			return err
		}
		if ok && a.IsList() {
			return exec(ctx, ex, sqlschema.RenameTable(schema.LinkTable(entity, from), schema.LinkTable(entity, to)))
		}
		return exec(ctx, ex, sqlschema.RenameColumn(entity, from, to))
	})
}

// DropTable drops the table of an entity and forgets the entity. An entity
// still referenced by another one, including by a derived entity, cannot
// be dropped.
func (c *Client) DropTable(ctx context.Context, entity string) error {
	return c.alter(ctx, entity, "drop_table", func(ctx context.Context, ex dialect.ExecQuerier, reg *schema.Registry) error {
		e, err := reg.Entity(entity)
		if err != nil {
			return err
		}
		e = e.Clone()
		links := reg.Links(entity)
		if err := reg.Remove(entity); err != nil {
			return err
		}
		for _, l := range links {
			if err := exec(ctx, ex, sqlschema.DropTable(l.Table)); err != nil {
				return err
			}
		}
		return exec(ctx, ex, sqlschema.DropTable(e.Name))
	})
}

// DropAll drops the tables of all entities, referencing tables first, and
// forgets all entities.
func (c *Client) DropAll(ctx context.Context) error {
	return c.alter(ctx, "", "drop_all", func(ctx context.Context, ex dialect.ExecQuerier, reg *schema.Registry) error {
		es := reg.Sorted()
		slices.Reverse(es)
		for _, e := range es {
			if err := dropTables(ctx, ex, reg, e); err != nil {
				return err
			}
			if err := reg.Remove(e.Name); err != nil {
				return err
			}
		}
		return nil
	})
}

// CreateView creates a view named name over the query of an entity and the
// given clauses. Views are not entities: they are neither persisted in the
// schema snapshot nor returned by Entities. Predicates of a view must not
// carry bound arguments.
func (c *Client) CreateView(ctx context.Context, name, entity string, clauses ...Clause) error {
	ctx = sql.WithOperation(ctx, name, "create_view")
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.registry.Lookup(name); ok || schema.Reserved(name) {
		return &SchemaError{Entity: name, Op: "create_view", Err: fmt.Errorf("%w: name %q is taken", ErrDuplicateEntity, name)}
	}
	h, es, err := hierarchy(c.registry, entity, false)
	if err != nil {
		return &SchemaError{Entity: name, Op: "create_view", Err: err}
	}
	q := newQuery(clauses)
	if _, err := q.restrict(h, es); err != nil {
		return &SchemaError{Entity: name, Op: "create_view", Err: err}
	}
	if err := exec(ctx, c.driver, sqlschema.CreateView(name, q.build(h.Selector()))); err != nil {
		return &SchemaError{Entity: name, Op: "create_view", Err: err}
	}
	c.log.Info("view created", "view", name, "entity", entity)
	return nil
}

// DropView drops a view created by CreateView.
func (c *Client) DropView(ctx context.Context, name string) error {
	ctx = sql.WithOperation(ctx, name, "drop_view")
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := exec(ctx, c.driver, sqlschema.DropView(name)); err != nil {
		return &SchemaError{Entity: name, Op: "drop_view", Err: err}
	}
	return nil
}

// ClearContents deletes all rows of an entity's table. Rows of derived
// tables and lists that depend on them are deleted with them.
func (c *Client) ClearContents(ctx context.Context, entity string) error {
	ctx = sql.WithOperation(ctx, entity, "clear")
	c.mu.RLock()
	defer c.mu.RUnlock()
	if _, err := c.registry.Entity(entity); err != nil {
		return &MutationError{Entity: entity, Op: "clear", Err: err}
	}
	err := c.withTx(ctx, func(tx dialect.Tx) error {
		_, err := sqlgraph.DeleteNodes(ctx, tx, entity, nil)
		return err
	})
	if err != nil {
		return &MutationError{Entity: entity, Op: "clear", Err: classify(err)}
	}
	return nil
}

// ClearAll deletes the rows of every entity, referencing tables first,
// keeping the tables.
func (c *Client) ClearAll(ctx context.Context) error {
	ctx = sql.WithOperation(ctx, "", "clear")
	c.mu.RLock()
	defer c.mu.RUnlock()
	es := c.registry.Sorted()
	slices.Reverse(es)
	err := c.withTx(ctx, func(tx dialect.Tx) error {
		for _, e := range es {
			if _, err := sqlgraph.DeleteNodes(ctx, tx, e.Name, nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return &MutationError{Op: "clear", Err: classify(err)}
	}
	return nil
}
