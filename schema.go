package formulite

import (
	"context"
	"fmt"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/syssam/formulite/dialect"
	"github.com/syssam/formulite/dialect/sql"
	sqlschema "github.com/syssam/formulite/dialect/sql/schema"
	"github.com/syssam/formulite/schema"
	"github.com/syssam/formulite/schema/field"
	"github.com/syssam/formulite/schema/snapshot"
)

// Declare registers a root entity. Declarations stay in memory until
// CreateAll, AddTable or PersistSchema.
func (c *Client) Declare(name string, attrs ...field.Descriptor) error {
	return c.declare(name, "declare", func(reg *schema.Registry) error {
		_, err := reg.Declare(name, attrs...)
		return err
	})
}

// DeclareDerived registers an entity deriving from parent, with the
// attributes it adds to the parent's.
func (c *Client) DeclareDerived(name, parent string, attrs ...field.Descriptor) error {
	return c.declare(name, "declare", func(reg *schema.Registry) error {
		_, err := reg.DeclareDerived(name, parent, attrs...)
		return err
	})
}

// SetPrimaryKey replaces the primary key of a root entity.
func (c *Client) SetPrimaryKey(entity string, attrs ...string) error {
	return c.declare(entity, "set_primary_key", func(reg *schema.Registry) error {
		return reg.SetPrimaryKey(entity, attrs...)
	})
}

// AppendPrimaryKey extends the primary key of a root entity.
func (c *Client) AppendPrimaryKey(entity string, attrs ...string) error {
	return c.declare(entity, "set_primary_key", func(reg *schema.Registry) error {
		return reg.AppendPrimaryKey(entity, attrs...)
	})
}

// SetForeignKey makes an attribute of entity refer to the entity ref.
func (c *Client) SetForeignKey(entity, attr, ref string) error {
	return c.declare(entity, "set_foreign_key", func(reg *schema.Registry) error {
		return reg.SetForeignKey(entity, attr, ref)
	})
}

func (c *Client) declare(entity, op string, fn func(*schema.Registry) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := fn(c.registry); err != nil {
		return &SchemaError{Entity: entity, Op: op, Err: err}
	}
	c.log.Debug("schema declared", "op", op, "entity", entity)
	return nil
}

// Entity returns a copy of the descriptor of an entity.
func (c *Client) Entity(name string) (*schema.Entity, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, err := c.registry.Entity(name)
	if err != nil {
		return nil, err
	}
	return e.Clone(), nil
}

// KeyColumn returns the surrogate key column of an entity qualified with
// its table name, for filtering reads by the keys in Instance.Keys. A
// derived table repeats its parent's key column, so the unqualified name is
// ambiguous on reads that join the hierarchy.
func (c *Client) KeyColumn(entity string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, err := c.registry.Entity(entity)
	if err != nil {
		return "", err
	}
	return e.Name + "." + e.Surrogate, nil
}

// Entities returns copies of all entity descriptors in declaration order.
func (c *Client) Entities() []*schema.Entity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	es := c.registry.Entities()
	for i, e := range es {
		es[i] = e.Clone()
	}
	return es
}

// Loaded reports whether the registry was restored from a snapshot.
func (c *Client) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

// PersistSchema writes the snapshot of the current declarations.
func (c *Client) PersistSchema(ctx context.Context) error {
	ctx = sql.WithOperation(ctx, "", "persist")
	c.mu.Lock()
	defer c.mu.Unlock()
	recs := snapshot.Records(c.registry)
	if err := c.withTx(ctx, func(tx dialect.Tx) error {
		return c.store.Save(ctx, tx, recs)
	}); err != nil {
		return &SchemaError{Op: "persist", Err: err}
	}
	c.log.Info("schema persisted", "entities", len(recs))
	return nil
}

// Export returns the snapshot document of the current declarations.
func (c *Client) Export() *snapshot.Document {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return &snapshot.Document{Entities: snapshot.Records(c.registry)}
}

// ReloadSchema rebuilds the registry from the persisted snapshot and checks
// it against the tables in the database. A table without a snapshot entry,
// or one whose columns differ from its entry, fails with ErrSchemaMismatch
// and leaves the current registry in place.
func (c *Client) ReloadSchema(ctx context.Context) error {
	ctx = sql.WithOperation(ctx, "", "reload")
	c.mu.Lock()
	defer c.mu.Unlock()
	recs, err := c.store.Load(ctx, c.driver)
	if err != nil {
		return &SchemaError{Op: "reload", Err: err}
	}
	reg, err := snapshot.Registry(recs)
	if err != nil {
		return &SchemaError{Op: "reload", Err: fmt.Errorf("%w: %w", ErrSchemaMismatch, err)}
	}
	desired := make(map[string]*sqlschema.Table)
	for _, e := range reg.Entities() {
		for _, t := range tablesOf(reg, e) {
			desired[t.Name] = t
		}
	}
	names, err := sqlschema.Tables(ctx, c.driver)
	if err != nil {
		return &SchemaError{Op: "reload", Err: err}
	}
	var present []*sqlschema.Table
	for _, name := range names {
		if schema.Reserved(name) {
			continue
		}
		t, ok := desired[name]
		if !ok {
			return &SchemaError{Op: "reload", Err: fmt.Errorf("%w: table %q has no snapshot entry", ErrSchemaMismatch, name)}
		}
		present = append(present, t)
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, t := range present {
		g.Go(func() error {
			actual, err := sqlschema.Inspect(gctx, c.driver, t.Name)
			if err != nil {
				return err
			}
			if res := sqlschema.Validate(actual, t); res.HasErrors() {
				return fmt.Errorf("%w: %w", ErrSchemaMismatch, res.Err())
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return &SchemaError{Op: "reload", Err: err}
	}
	c.registry = reg
	c.loaded = len(recs) > 0
	c.log.Info("schema reloaded", "entities", reg.Len(), "tables", len(present))
	return nil
}

// Import declares the entities of snapshot records, as read from a schema
// file. Entities already declared with the same definition are skipped, so
// importing the same file twice is harmless.
func (c *Client) Import(recs ...snapshot.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	reg := c.registry.Clone()
	for _, r := range recs {
		if e, ok := reg.Lookup(r.Name); ok {
			if !sameRecord(snapshot.FromEntity(e), canonical(r)) {
				return &SchemaError{Entity: r.Name, Op: "import", Err: fmt.Errorf("%w: with a different definition", ErrDuplicateEntity)}
			}
			continue
		}
		if err := importRecord(reg, r); err != nil {
			return &SchemaError{Entity: r.Name, Op: "import", Err: err}
		}
	}
	for _, r := range recs {
		for _, fk := range r.ForeignKeys {
			if e, _ := reg.Lookup(r.Name); e != nil {
				if cur, ok := e.ForeignKey(fk.Attribute); ok && cur.RefEntity == fk.Entity {
					continue
				}
			}
			if err := reg.SetForeignKey(r.Name, fk.Attribute, fk.Entity); err != nil {
				return &SchemaError{Entity: r.Name, Op: "import", Err: err}
			}
		}
	}
	c.registry = reg
	c.log.Debug("schema imported", "records", len(recs))
	return nil
}

func importRecord(reg *schema.Registry, r snapshot.Record) error {
	attrs, err := r.Descriptors()
	if err != nil {
		return err
	}
	if r.Parent != "" {
		_, err = reg.DeclareDerived(r.Name, r.Parent, attrs...)
		return err
	}
	if _, err := reg.Declare(r.Name, attrs...); err != nil {
		return err
	}
	if len(r.PrimaryKey) > 0 {
		return reg.SetPrimaryKey(r.Name, r.PrimaryKey...)
	}
	return nil
}

// sameRecord compares the declared parts of two records. Generated names
// and the primary keys of derived entities are not part of a declaration.
func sameRecord(a, b snapshot.Record) bool {
	if a.Name != b.Name || a.Parent != b.Parent || !slices.Equal(a.Attributes, b.Attributes) {
		return false
	}
	if a.Parent == "" && !slices.Equal(a.PrimaryKey, b.PrimaryKey) {
		return false
	}
	fks := func(r snapshot.Record) []string {
		var s []string
		for _, fk := range r.ForeignKeys {
			s = append(s, fk.Attribute+">"+fk.Entity)
		}
		slices.Sort(s)
		return s
	}
	return slices.Equal(fks(a), fks(b))
}

// canonical rewrites attribute types in their canonical spelling.
func canonical(r snapshot.Record) snapshot.Record {
	attrs, err := r.Descriptors()
	if err != nil {
		return r
	}
	r.Attributes = slices.Clone(r.Attributes)
	for i, a := range attrs {
		r.Attributes[i].Type = a.TypeName()
	}
	return r
}
