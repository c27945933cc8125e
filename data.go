package formulite

import (
	"context"
	"fmt"

	"github.com/syssam/formulite/dialect"
	"github.com/syssam/formulite/dialect/sql"
	"github.com/syssam/formulite/dialect/sql/sqlgraph"
	"github.com/syssam/formulite/schema"
	"github.com/syssam/formulite/schema/field"
)

// InsertOption configures an insert.
type InsertOption func(*insertConfig)

type insertConfig struct {
	replace bool
}

// Replace overwrites the attributes and lists of an instance that already
// exists instead of leaving it untouched.
func Replace() InsertOption {
	return func(c *insertConfig) {
		c.replace = true
	}
}

// writer writes the rows of one instance inside a transaction.
type writer struct {
	reg     *schema.Registry
	ex      dialect.ExecQuerier
	values  map[string]any
	keys    map[string]int64
	replace bool
}

// Exists reports whether the rows of an instance exist at every level of
// its hierarchy, looked up by the root primary key.
func (c *Client) Exists(ctx context.Context, inst *Instance) (bool, error) {
	ctx = sql.WithOperation(ctx, inst.Entity, "exists")
	c.mu.RLock()
	defer c.mu.RUnlock()
	chain, values, err := c.prepare(inst, false)
	if err != nil {
		return false, &QueryError{Entity: inst.Entity, Op: "exists", Err: err}
	}
	w := &writer{reg: c.registry, ex: c.driver, values: values, keys: make(map[string]int64)}
	found, err := w.lookup(ctx, chain)
	if err != nil {
		return false, &QueryError{Entity: inst.Entity, Op: "exists", Err: err}
	}
	return found, nil
}

// Insert writes the row of the instance's own entity. For a derived entity
// the ancestor rows must already exist: they are found through
// inst.Keys, or else by the root primary key, and their absence fails with
// ErrForeignKeyViolation. It reports false, writing nothing, when the row
// already exists, unless Replace is given.
func (c *Client) Insert(ctx context.Context, inst *Instance, opts ...InsertOption) (bool, error) {
	return c.insert(ctx, inst, false, opts)
}

// InsertPropagated writes the rows of all levels of an instance's hierarchy
// in one transaction, parents first, so that each child row refers to the
// key just written for its parent. Levels that already exist are kept, or
// overwritten with Replace. It reports whether the most derived row was
// written.
func (c *Client) InsertPropagated(ctx context.Context, inst *Instance, opts ...InsertOption) (bool, error) {
	return c.insert(ctx, inst, true, opts)
}

func (c *Client) insert(ctx context.Context, inst *Instance, propagate bool, opts []InsertOption) (bool, error) {
	ctx = sql.WithOperation(ctx, inst.Entity, "insert")
	cfg := &insertConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	chain, values, err := c.prepare(inst, false)
	if err != nil {
		return false, &MutationError{Entity: inst.Entity, Op: "insert", Err: err}
	}
	var (
		written bool
		keys    = make(map[string]int64)
	)
	err = c.withTx(ctx, func(tx dialect.Tx) error {
		w := &writer{reg: c.registry, ex: tx, values: values, keys: keys, replace: cfg.replace}
		if propagate {
			for i, e := range chain {
				if written, err = w.level(ctx, chain, i); err != nil {
					return err
				}
				c.log.Debug("level written", "entity", e.Name, "key", w.keys[e.Name], "written", written)
			}
			return nil
		}
		if err := w.ancestors(ctx, chain, inst.Keys); err != nil {
			return err
		}
		written, err = w.level(ctx, chain, len(chain)-1)
		return err
	})
	if err != nil {
		return false, &MutationError{Entity: inst.Entity, Op: "insert", Err: classify(err)}
	}
	if inst.Keys == nil {
		inst.Keys = make(map[string]int64)
	}
	for name, key := range keys {
		inst.Keys[name] = key
	}
	if !written {
		c.log.Debug("instance exists, insert skipped", "entity", inst.Entity)
	}
	return written, nil
}

// Update overwrites the attributes present in inst.Values at every level of
// the instance's hierarchy, found by the root primary key. Lists present in
// inst.Values replace the stored ones. It fails with a NotFoundError when
// the instance does not exist.
func (c *Client) Update(ctx context.Context, inst *Instance) error {
	ctx = sql.WithOperation(ctx, inst.Entity, "update")
	c.mu.RLock()
	defer c.mu.RUnlock()
	chain, values, err := c.prepare(inst, false)
	if err != nil {
		return &MutationError{Entity: inst.Entity, Op: "update", Err: err}
	}
	keys := make(map[string]int64)
	err = c.withTx(ctx, func(tx dialect.Tx) error {
		w := &writer{reg: c.registry, ex: tx, values: values, keys: keys, replace: true}
		found, err := w.lookup(ctx, chain)
		if err != nil {
			return err
		}
		if !found {
			return NewNotFoundError(inst.Entity, w.rootKey(chain[0]))
		}
		for _, e := range chain {
			if err := w.overwrite(ctx, e); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return &MutationError{Entity: inst.Entity, Op: "update", Err: classify(err)}
	}
	return nil
}

// Delete removes an instance, found by its root primary key, with all the
// rows of its hierarchy and lists. It fails with a NotFoundError when no
// row matches.
func (c *Client) Delete(ctx context.Context, inst *Instance) error {
	ctx = sql.WithOperation(ctx, inst.Entity, "delete")
	c.mu.RLock()
	defer c.mu.RUnlock()
	chain, values, err := c.prepare(inst, false)
	if err != nil {
		return &MutationError{Entity: inst.Entity, Op: "delete", Err: err}
	}
	root := chain[0]
	pred, err := keyPredicate(root, values)
	if err != nil {
		return &MutationError{Entity: inst.Entity, Op: "delete", Err: err}
	}
	var n int
	err = c.withTx(ctx, func(tx dialect.Tx) error {
		n, err = sqlgraph.DeleteNodes(ctx, tx, root.Name, pred)
		return err
	})
	if err != nil {
		return &MutationError{Entity: inst.Entity, Op: "delete", Err: classify(err)}
	}
	if n == 0 {
		return &MutationError{Entity: inst.Entity, Op: "delete", Err: NewNotFoundError(inst.Entity, nil)}
	}
	clear(inst.Keys)
	return nil
}

// Select returns the instances of an entity. Rows of a derived entity are
// joined with their ancestors, so each instance carries the inherited
// attributes too.
func (c *Client) Select(ctx context.Context, entity string, clauses ...Clause) ([]*Instance, error) {
	return c.read(ctx, entity, "select", false, clauses)
}

// SearchJoined returns the instances of an entity and of all entities
// deriving from it. Each instance is of the most derived entity that has a
// row for it, with the attributes of every level down to that entity.
func (c *Client) SearchJoined(ctx context.Context, entity string, clauses ...Clause) ([]*Instance, error) {
	return c.read(ctx, entity, "search", true, clauses)
}

// Count returns the number of instances of an entity matching the clauses.
func (c *Client) Count(ctx context.Context, entity string, clauses ...Clause) (int, error) {
	ctx = sql.WithOperation(ctx, entity, "count")
	c.mu.RLock()
	defer c.mu.RUnlock()
	h, _, err := hierarchy(c.registry, entity, false)
	if err != nil {
		return 0, &QueryError{Entity: entity, Op: "count", Err: err}
	}
	n, err := sqlgraph.CountNodes(ctx, c.driver, newQuery(clauses).build(h.Selector()))
	if err != nil {
		return 0, &QueryError{Entity: entity, Op: "count", Err: err}
	}
	return n, nil
}

func (c *Client) read(ctx context.Context, entity, op string, descendants bool, clauses []Clause) ([]*Instance, error) {
	ctx = sql.WithOperation(ctx, entity, op)
	c.mu.RLock()
	defer c.mu.RUnlock()
	h, es, err := hierarchy(c.registry, entity, descendants)
	if err != nil {
		return nil, &QueryError{Entity: entity, Op: op, Err: err}
	}
	q := newQuery(clauses)
	lists, err := q.restrict(h, es)
	if err != nil {
		return nil, &QueryError{Entity: entity, Op: op, Err: err}
	}
	rows, err := sql.QueryValues(ctx, c.driver, q.build(h.Selector()))
	if err != nil {
		return nil, &QueryError{Entity: entity, Op: op, Err: err}
	}
	insts := make([]*Instance, 0, len(rows))
	for _, row := range rows {
		values, keys := h.Split(row)
		lvl := h.Resolve(keys)
		inst := &Instance{Entity: es[lvl].Name, Values: make(map[string]any), Keys: make(map[string]int64)}
		for _, i := range h.Path(lvl) {
			e := es[i]
			for j, col := range h.Levels[i].Columns {
				a, _ := e.Attribute(col)
				v, err := field.Convert(a.Type, values[i][j])
				if err != nil {
					return nil, &QueryError{Entity: entity, Op: op, Err: fmt.Errorf("column %s.%s: %w", e.Name, col, err)}
				}
				inst.Values[col] = v
			}
			key, _ := sql.ScanInt64(keys[i])
			inst.Keys[e.Name] = key
			for _, l := range c.registry.Links(e.Name) {
				if !lists[l.Attribute] {
					continue
				}
				elems, err := readLink(ctx, c.driver, l, key)
				if err != nil {
					return nil, &QueryError{Entity: entity, Op: op, Err: err}
				}
				inst.Values[l.Attribute] = elems
			}
		}
		insts = append(insts, inst)
	}
	return insts, nil
}

// readLink returns the elements of one list, each repeated by its quantity,
// in insertion order.
func readLink(ctx context.Context, ex dialect.ExecQuerier, l schema.Link, owner int64) ([]any, error) {
	rows, err := sql.QueryValues(ctx, ex, sql.Select(l.ElemColumn, schema.QuantityColumn).
		From(l.Table).
		Where(sql.EQ(l.OwnerColumn, owner)).
		OrderBy("rowid", sql.OrderAsc))
	if err != nil {
		return nil, err
	}
	elems := []any{}
	for _, row := range rows {
		v, err := field.Convert(l.ElemType, row[0])
		if err != nil {
			return nil, fmt.Errorf("linked table %s: %w", l.Table, err)
		}
		n, _ := sql.ScanInt64(row[1])
		for range n {
			elems = append(elems, v)
		}
	}
	return elems, nil
}

// prepare resolves the chain of an instance and normalizes its values.
func (c *Client) prepare(inst *Instance, fill bool) ([]*schema.Entity, map[string]any, error) {
	if inst == nil {
		return nil, nil, fmt.Errorf("nil instance")
	}
	chain, err := c.registry.Chain(inst.Entity)
	if err != nil {
		return nil, nil, err
	}
	values, err := normalize(chain, inst.Values, fill)
	if err != nil {
		return nil, nil, err
	}
	return chain, values, nil
}

// keyPredicate matches the row of a root entity by its primary key.
func keyPredicate(root *schema.Entity, values map[string]any) (*sql.Predicate, error) {
	if len(root.PrimaryKey) == 0 {
		return nil, fmt.Errorf("%w: %s has no primary key", ErrPrimaryKeyViolation, root.Name)
	}
	preds := make([]*sql.Predicate, len(root.PrimaryKey))
	for i, col := range root.PrimaryKey {
		v := values[col]
		if v == nil {
			return nil, fmt.Errorf("%w: primary key attribute %q of %s is not set", ErrPrimaryKeyViolation, col, root.Name)
		}
		preds[i] = sql.EQ(root.Name+"."+col, v)
	}
	return sql.And(preds...), nil
}

func (w *writer) rootKey(root *schema.Entity) any {
	if len(root.PrimaryKey) == 1 {
		return w.values[root.PrimaryKey[0]]
	}
	key := make([]any, len(root.PrimaryKey))
	for i, col := range root.PrimaryKey {
		key[i] = w.values[col]
	}
	return key
}

// lookup finds the surrogate keys of every level of the chain, recording
// them in w.keys. It reports false as soon as a level has no row.
func (w *writer) lookup(ctx context.Context, chain []*schema.Entity) (bool, error) {
	for i := range chain {
		found, err := w.find(ctx, chain, i)
		if err != nil || !found {
			return false, err
		}
	}
	return true, nil
}

// find looks up the row of level i. The level above must be resolved.
func (w *writer) find(ctx context.Context, chain []*schema.Entity, i int) (bool, error) {
	e := chain[i]
	var pred *sql.Predicate
	if i == 0 {
		p, err := keyPredicate(e, w.values)
		if err != nil {
			return false, err
		}
		pred = p
	} else {
		pk, _ := w.reg.ParentKey(e)
		pred = sql.EQ(pk.Attribute, w.keys[e.Parent])
	}
	key, found, err := sqlgraph.FirstInt64(ctx, w.ex, sql.Select(e.Surrogate).From(e.Name).Where(pred))
	if err != nil || !found {
		return false, err
	}
	w.keys[e.Name] = key
	return true, nil
}

// ancestors resolves the keys of all levels above the last one, preferring
// keys already known to the caller.
func (w *writer) ancestors(ctx context.Context, chain []*schema.Entity, known map[string]int64) error {
	if len(chain) < 2 {
		return nil
	}
	parent := chain[len(chain)-2]
	if key := known[parent.Name]; key != 0 {
		w.keys[parent.Name] = key
		return nil
	}
	for i := 0; i < len(chain)-1; i++ {
		found, err := w.find(ctx, chain, i)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%w: no %s row for this instance", ErrForeignKeyViolation, chain[i].Name)
		}
	}
	return nil
}

// level writes the row of level i unless it exists. The level above must
// be resolved.
func (w *writer) level(ctx context.Context, chain []*schema.Entity, i int) (bool, error) {
	e := chain[i]
	found, err := w.find(ctx, chain, i)
	if err != nil {
		return false, err
	}
	if found {
		if !w.replace {
			return false, nil
		}
		return true, w.overwrite(ctx, e)
	}
	spec := &sqlgraph.CreateSpec{Table: e.Name, Surrogate: e.Surrogate, Allocate: !e.Derived()}
	for _, col := range e.Columns() {
		spec.Fields = append(spec.Fields, &sqlgraph.FieldSpec{Column: col, Value: w.values[col]})
	}
	if pk, ok := w.reg.ParentKey(e); ok {
		spec.Fields = append(spec.Fields, &sqlgraph.FieldSpec{Column: pk.Attribute, Value: w.keys[e.Parent]})
	}
	key, err := sqlgraph.CreateNode(ctx, w.ex, spec)
	if err != nil {
		return false, err
	}
	w.keys[e.Name] = key
	for _, l := range w.reg.Links(e.Name) {
		if err := w.link(ctx, l, key); err != nil {
			return false, err
		}
	}
	return true, nil
}

// overwrite updates the attributes of an existing row that are present in
// the values, except primary key attributes.
func (w *writer) overwrite(ctx context.Context, e *schema.Entity) error {
	key := w.keys[e.Name]
	spec := &sqlgraph.UpdateSpec{Table: e.Name, Predicate: sql.EQ(e.Surrogate, key)}
	for _, col := range e.Columns() {
		if v, ok := w.values[col]; ok && !e.InPrimaryKey(col) {
			spec.Fields = append(spec.Fields, &sqlgraph.FieldSpec{Column: col, Value: v})
		}
	}
	if len(spec.Fields) > 0 {
		if _, err := sqlgraph.UpdateNodes(ctx, w.ex, spec); err != nil {
			return err
		}
	}
	for _, l := range w.reg.Links(e.Name) {
		if _, ok := w.values[l.Attribute]; !ok {
			continue
		}
		if _, err := sqlgraph.DeleteNodes(ctx, w.ex, l.Table, sql.EQ(l.OwnerColumn, key)); err != nil {
			return err
		}
		if err := w.link(ctx, l, key); err != nil {
			return err
		}
	}
	return nil
}

// link writes the elements of a list, one row per distinct element with
// its number of occurrences.
func (w *writer) link(ctx context.Context, l schema.Link, owner int64) error {
	elems, _ := w.values[l.Attribute].([]any)
	var (
		order  []any
		counts = make(map[any]int)
	)
	for _, v := range elems {
		if counts[v] == 0 {
			order = append(order, v)
		}
		counts[v]++
	}
	for _, v := range order {
		insert := sql.Insert(l.Table).
			Set(l.OwnerColumn, owner).
			Set(l.ElemColumn, v).
			Set(schema.QuantityColumn, counts[v])
		if _, err := sql.ExecQuery(ctx, w.ex, insert); err != nil {
			return err
		}
	}
	return nil
}
