package sql

import (
	"errors"
	"strconv"
	"strings"
)

// Querier wraps the basic Query method that is implemented
// by the different builders in this file.
type Querier interface {
	// Query returns the query representation of the element
	// and its arguments (if any).
	Query() (string, []any)
}

// Builder is the base query builder for the sql dsl.
// Identifiers are quoted with backticks and values are always
// bound as positional "?" arguments.
type Builder struct {
	sb   strings.Builder
	args []any
	errs []error
}

// WriteString writes the given string as-is.
func (b *Builder) WriteString(s string) *Builder {
	b.sb.WriteString(s)
	return b
}

// WriteByte writes the given byte as-is.
func (b *Builder) WriteByte(c byte) *Builder {
	b.sb.WriteByte(c)
	return b
}

// Pad adds a space to the query.
func (b *Builder) Pad() *Builder {
	return b.WriteByte(' ')
}

// Ident appends the given string as a quoted identifier. Qualified names
// ("table.column") are quoted part by part and "*" is written unquoted.
func (b *Builder) Ident(s string) *Builder {
	if s == "*" {
		return b.WriteString(s)
	}
	for i, part := range strings.Split(s, ".") {
		if i > 0 {
			b.WriteByte('.')
		}
		if part == "*" {
			b.WriteString(part)
			continue
		}
		b.WriteByte('`').WriteString(strings.ReplaceAll(part, "`", "``")).WriteByte('`')
	}
	return b
}

// IdentComma calls Ident on all arguments and adds a comma between them.
func (b *Builder) IdentComma(s ...string) *Builder {
	for i := range s {
		if i > 0 {
			b.WriteString(", ")
		}
		b.Ident(s[i])
	}
	return b
}

// Arg appends an input argument to the builder.
func (b *Builder) Arg(a any) *Builder {
	b.args = append(b.args, a)
	return b.WriteByte('?')
}

// Args appends a list of arguments to the builder.
func (b *Builder) Args(a ...any) *Builder {
	for i := range a {
		if i > 0 {
			b.WriteString(", ")
		}
		b.Arg(a[i])
	}
	return b
}

// Join joins a query and its arguments into the builder.
func (b *Builder) Join(q Querier) *Builder {
	query, args := q.Query()
	b.WriteString(query)
	b.args = append(b.args, args...)
	if qb, ok := q.(interface{ Err() error }); ok {
		if err := qb.Err(); err != nil {
			b.AddError(err)
		}
	}
	return b
}

// Wrap gets a callback, and wraps its result with parentheses.
func (b *Builder) Wrap(f func(*Builder)) *Builder {
	b.WriteByte('(')
	f(b)
	return b.WriteByte(')')
}

// AddError appends an error to the builder errors.
func (b *Builder) AddError(err error) *Builder {
	if err != nil {
		b.errs = append(b.errs, err)
	}
	return b
}

// Err returns a concatenated error of all errors encountered during
// the query-building, or were added manually by calling AddError.
func (b *Builder) Err() error {
	return errors.Join(b.errs...)
}

// Query implements the Querier interface.
func (b *Builder) Query() (string, []any) {
	return b.sb.String(), b.args
}

// String returns the accumulated string.
func (b *Builder) String() string {
	return b.sb.String()
}

// expr is a raw SQL fragment with its arguments.
type expr struct {
	s    string
	args []any
}

func (e expr) Query() (string, []any) { return e.s, e.args }

// Expr returns an SQL expression that is written as-is, together with
// its bound arguments.
func Expr(s string, args ...any) Querier {
	return expr{s: s, args: args}
}

// Order is the sort direction of an ORDER BY term.
type Order string

// Sort directions.
const (
	OrderAsc  Order = "ASC"
	OrderDesc Order = "DESC"
)

type (
	join struct {
		kind  string
		table string
		on    *Predicate
	}
	orderTerm struct {
		column string
		dir    Order
	}
)

// Selector is a builder for the `SELECT` statement.
// Clauses are rendered in SQL order regardless of the order their
// setters were called in.
type Selector struct {
	columns []string
	from    string
	joins   []join
	where   *Predicate
	orders  []orderTerm
	limit   *int
	offset  *int
	count   bool
}

// Select returns a new selector for the `SELECT` statement.
//
//	Select("name", "age").From("users").Where(EQ("name", "a8m"))
func Select(columns ...string) *Selector {
	return (&Selector{}).Select(columns...)
}

// Select changes the columns selection of the SELECT statement.
// Empty selection means all columns *.
func (s *Selector) Select(columns ...string) *Selector {
	s.columns = append([]string(nil), columns...)
	return s
}

// AppendSelect appends additional columns to the SELECT statement.
func (s *Selector) AppendSelect(columns ...string) *Selector {
	s.columns = append(s.columns, columns...)
	return s
}

// SelectedColumns returns the selected columns in the Selector.
func (s *Selector) SelectedColumns() []string {
	return append([]string(nil), s.columns...)
}

// From sets the source of `FROM` clause.
func (s *Selector) From(table string) *Selector {
	s.from = table
	return s
}

// Table returns the table name of the `FROM` clause.
func (s *Selector) Table() string {
	return s.from
}

// Join appends a `JOIN` clause to the statement.
func (s *Selector) Join(table string) *Selector {
	s.joins = append(s.joins, join{kind: "JOIN", table: table})
	return s
}

// LeftJoin appends a `LEFT JOIN` clause to the statement.
func (s *Selector) LeftJoin(table string) *Selector {
	s.joins = append(s.joins, join{kind: "LEFT JOIN", table: table})
	return s
}

// On sets the `ON` clause of the last `JOIN` operation.
func (s *Selector) On(c1, c2 string) *Selector {
	return s.OnP(ColumnsEQ(c1, c2))
}

// OnP sets or appends the given predicate for the `ON` clause of the last `JOIN` operation.
func (s *Selector) OnP(p *Predicate) *Selector {
	if len(s.joins) == 0 {
		return s
	}
	j := &s.joins[len(s.joins)-1]
	if j.on == nil {
		j.on = p
	} else {
		j.on = And(j.on, p)
	}
	return s
}

// Where sets or appends the given predicate to the statement.
func (s *Selector) Where(p *Predicate) *Selector {
	if p == nil {
		return s
	}
	if s.where == nil {
		s.where = p
	} else {
		s.where = And(s.where, p)
	}
	return s
}

// P returns the predicate of a selector.
func (s *Selector) P() *Predicate {
	return s.where
}

// OrderBy appends the `ORDER BY` term.
func (s *Selector) OrderBy(column string, dir Order) *Selector {
	s.orders = append(s.orders, orderTerm{column: column, dir: dir})
	return s
}

// Limit adds the `LIMIT` clause to the `SELECT` statement.
func (s *Selector) Limit(limit int) *Selector {
	s.limit = &limit
	return s
}

// Offset adds the `OFFSET` clause to the `SELECT` statement.
func (s *Selector) Offset(offset int) *Selector {
	s.offset = &offset
	return s
}

// Count sets the Select statement to be a `SELECT COUNT(*)`.
func (s *Selector) Count() *Selector {
	s.count = true
	return s
}

// Clone returns a duplicate of the selector.
func (s *Selector) Clone() *Selector {
	c := *s
	c.columns = append([]string(nil), s.columns...)
	c.joins = append([]join(nil), s.joins...)
	c.orders = append([]orderTerm(nil), s.orders...)
	return &c
}

// Err returns an error if the selector is not complete.
func (s *Selector) Err() error {
	if s.from == "" {
		return errors.New("dialect/sql: missing FROM table")
	}
	return nil
}

// Query returns query representation of a `SELECT` statement.
func (s *Selector) Query() (string, []any) {
	b := &Builder{}
	if s.count && (s.limit != nil || s.offset != nil) {
		inner := s.Clone()
		inner.count = false
		inner.columns = nil
		b.WriteString("SELECT COUNT(*) FROM ").Wrap(func(b *Builder) {
			b.Join(inner)
		}).WriteString(" AS `t`")
		return b.Query()
	}
	b.WriteString("SELECT ")
	switch {
	case s.count:
		b.WriteString("COUNT(*)")
	case len(s.columns) == 0:
		b.WriteByte('*')
	default:
		b.IdentComma(s.columns...)
	}
	b.WriteString(" FROM ").Ident(s.from)
	for _, j := range s.joins {
		b.Pad().WriteString(j.kind).Pad().Ident(j.table)
		if j.on != nil {
			b.WriteString(" ON ").Join(j.on)
		}
	}
	if s.where != nil {
		b.WriteString(" WHERE ").Join(s.where)
	}
	for i, o := range s.orders {
		if i == 0 {
			b.WriteString(" ORDER BY ")
		} else {
			b.WriteString(", ")
		}
		b.Ident(o.column)
		if o.dir != "" {
			b.Pad().WriteString(string(o.dir))
		}
	}
	switch {
	case s.limit != nil:
		b.WriteString(" LIMIT ").WriteString(strconv.Itoa(*s.limit))
	case s.offset != nil:
		// SQLite requires a LIMIT before OFFSET.
		b.WriteString(" LIMIT -1")
	}
	if s.offset != nil {
		b.WriteString(" OFFSET ").WriteString(strconv.Itoa(*s.offset))
	}
	return b.Query()
}

type setter struct {
	column string
	value  any
	expr   Querier
}

func (st setter) write(b *Builder) {
	if st.expr != nil {
		b.Wrap(func(b *Builder) { b.Join(st.expr) })
		return
	}
	b.Arg(st.value)
}

// InsertBuilder is a builder for `INSERT INTO` statement.
type InsertBuilder struct {
	table string
	sets  []setter
}

// Insert creates a builder for the `INSERT INTO` statement.
//
//	Insert("users").
//		Set("name", "foo").
//		Set("age", 10)
func Insert(table string) *InsertBuilder { return &InsertBuilder{table: table} }

// Set sets a column to a bound value.
func (i *InsertBuilder) Set(column string, v any) *InsertBuilder {
	i.sets = append(i.sets, setter{column: column, value: v})
	return i
}

// SetExpr sets a column to the result of an SQL expression.
func (i *InsertBuilder) SetExpr(column string, x Querier) *InsertBuilder {
	i.sets = append(i.sets, setter{column: column, expr: x})
	return i
}

// Query returns query representation of an `INSERT INTO` statement.
func (i *InsertBuilder) Query() (string, []any) {
	b := &Builder{}
	b.WriteString("INSERT INTO ").Ident(i.table)
	if len(i.sets) == 0 {
		b.WriteString(" DEFAULT VALUES")
		return b.Query()
	}
	b.Pad().Wrap(func(b *Builder) {
		for j, st := range i.sets {
			if j > 0 {
				b.WriteString(", ")
			}
			b.Ident(st.column)
		}
	})
	b.WriteString(" VALUES ").Wrap(func(b *Builder) {
		for j, st := range i.sets {
			if j > 0 {
				b.WriteString(", ")
			}
			st.write(b)
		}
	})
	return b.Query()
}

// UpdateBuilder is a builder for `UPDATE` statement.
type UpdateBuilder struct {
	table string
	sets  []setter
	where *Predicate
}

// Update creates a builder for the `UPDATE` statement.
//
//	Update("users").Set("name", "foo").Set("age", 10)
func Update(table string) *UpdateBuilder { return &UpdateBuilder{table: table} }

// Set sets a column to a given value.
func (u *UpdateBuilder) Set(column string, v any) *UpdateBuilder {
	u.sets = append(u.sets, setter{column: column, value: v})
	return u
}

// Empty reports whether this builder does not contain update changes.
func (u *UpdateBuilder) Empty() bool {
	return len(u.sets) == 0
}

// Where adds a where predicate for update statement.
func (u *UpdateBuilder) Where(p *Predicate) *UpdateBuilder {
	if u.where == nil {
		u.where = p
	} else {
		u.where = And(u.where, p)
	}
	return u
}

// Err returns an error if the statement has nothing to set.
func (u *UpdateBuilder) Err() error {
	if u.Empty() {
		return errors.New("dialect/sql: UPDATE without SET")
	}
	return nil
}

// Query returns query representation of an `UPDATE` statement.
func (u *UpdateBuilder) Query() (string, []any) {
	b := &Builder{}
	b.WriteString("UPDATE ").Ident(u.table).WriteString(" SET ")
	for i, st := range u.sets {
		if i > 0 {
			b.WriteString(", ")
		}
		b.Ident(st.column).WriteString(" = ")
		st.write(b)
	}
	if u.where != nil {
		b.WriteString(" WHERE ").Join(u.where)
	}
	return b.Query()
}

// DeleteBuilder is a builder for `DELETE` statement.
type DeleteBuilder struct {
	table string
	where *Predicate
}

// Delete creates a builder for the `DELETE` statement.
//
//	Delete("users").
//		Where(
//			Or(
//				And(EQ("name", "foo"), EQ("age", 10)),
//				And(EQ("name", "bar"), EQ("age", 20)),
//			),
//		)
func Delete(table string) *DeleteBuilder { return &DeleteBuilder{table: table} }

// Where appends a where predicate to the `DELETE` statement.
func (d *DeleteBuilder) Where(p *Predicate) *DeleteBuilder {
	if d.where == nil {
		d.where = p
	} else {
		d.where = And(d.where, p)
	}
	return d
}

// Query returns query representation of a `DELETE` statement.
func (d *DeleteBuilder) Query() (string, []any) {
	b := &Builder{}
	b.WriteString("DELETE FROM ").Ident(d.table)
	if d.where != nil {
		b.WriteString(" WHERE ").Join(d.where)
	}
	return b.Query()
}
