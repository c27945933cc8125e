package formulite

import (
	"fmt"
	"strconv"

	"github.com/syssam/formulite/dialect/sql"
	"github.com/syssam/formulite/dialect/sql/sqlgraph"
	"github.com/syssam/formulite/schema"
)

// Clause is a query fragment given to Select, SearchJoined, Count and
// CreateView. Clauses compose independently of the order they are given
// in; the statement always renders joins, then conditions, then ordering,
// then paging.
type Clause interface {
	fmt.Stringer
	apply(*query)
}

// query collects the clauses of one read.
type query struct {
	joins   []joinClause
	preds   []*sql.Predicate
	orders  []orderClause
	limit   *int
	offset  *int
	columns []string
}

func newQuery(clauses []Clause) *query {
	q := &query{}
	for _, c := range clauses {
		if c != nil {
			c.apply(q)
		}
	}
	return q
}

// restrict narrows the attribute columns of each level to the selected
// ones. It reports which list attributes are selected.
func (q *query) restrict(h *sqlgraph.Hierarchy, es []*schema.Entity) (map[string]bool, error) {
	lists := make(map[string]bool)
	if q.columns == nil {
		for _, e := range es {
			for _, a := range e.Lists() {
				lists[a.Name] = true
			}
		}
		return lists, nil
	}
	selected := make(map[string]bool, len(q.columns))
	for _, name := range q.columns {
		found := false
		for _, e := range es {
			if a, ok := e.Attribute(name); ok {
				found = true
				if a.IsList() {
					lists[name] = true
				}
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: %q", ErrUnknownAttribute, name)
		}
		selected[name] = true
	}
	for i := range h.Levels {
		var cols []string
		for _, c := range h.Levels[i].Columns {
			if selected[c] {
				cols = append(cols, c)
			}
		}
		h.Levels[i].Columns = cols
	}
	return lists, nil
}

// build adds the collected clauses to a selector.
func (q *query) build(s *sql.Selector) *sql.Selector {
	for _, j := range q.joins {
		s.Join(j.table).On(j.left, j.right)
	}
	s.Where(sql.And(q.preds...))
	for _, o := range q.orders {
		s.OrderBy(o.column, o.dir)
	}
	if q.limit != nil {
		s.Limit(*q.limit)
	}
	if q.offset != nil {
		s.Offset(*q.offset)
	}
	return s
}

type whereClause struct{ p *sql.Predicate }

// Where filters rows by a predicate. Several Where clauses are combined
// with AND. Surrogate key columns appear at two levels of a hierarchy and
// must be written as Table.column; see Client.KeyColumn.
func Where(p *sql.Predicate) Clause { return whereClause{p: p} }

func (w whereClause) apply(q *query) {
	if w.p != nil {
		q.preds = append(q.preds, w.p)
	}
}

func (w whereClause) String() string {
	if w.p == nil {
		return "WHERE"
	}
	return "WHERE " + w.p.String()
}

type orderClause struct {
	column string
	dir    sql.Order
}

// OrderBy orders rows by a column.
func OrderBy(column string, dir sql.Order) Clause { return orderClause{column: column, dir: dir} }

// Asc orders rows by a column in ascending order.
func Asc(column string) Clause { return OrderBy(column, sql.OrderAsc) }

// Desc orders rows by a column in descending order.
func Desc(column string) Clause { return OrderBy(column, sql.OrderDesc) }

func (o orderClause) apply(q *query) { q.orders = append(q.orders, o) }

func (o orderClause) String() string {
	b := &sql.Builder{}
	b.WriteString("ORDER BY ").Ident(o.column)
	if o.dir == sql.OrderDesc {
		b.WriteString(" DESC")
	} else {
		b.WriteString(" ASC")
	}
	return b.String()
}

type limitClause int

// Limit caps the number of rows.
func Limit(n int) Clause { return limitClause(n) }

func (l limitClause) apply(q *query) {
	n := int(l)
	q.limit = &n
}

func (l limitClause) String() string { return "LIMIT " + strconv.Itoa(int(l)) }

type offsetClause int

// Offset skips the first n rows.
func Offset(n int) Clause { return offsetClause(n) }

func (o offsetClause) apply(q *query) {
	n := int(o)
	q.offset = &n
}

func (o offsetClause) String() string { return "OFFSET " + strconv.Itoa(int(o)) }

type columnsClause []string

// Columns restricts the attributes read to the given ones. Unselected
// attributes are absent from the returned instances.
func Columns(names ...string) Clause { return columnsClause(names) }

func (c columnsClause) apply(q *query) {
	if q.columns == nil {
		q.columns = []string{}
	}
	q.columns = append(q.columns, c...)
}

func (c columnsClause) String() string {
	b := &sql.Builder{}
	b.IdentComma(c...)
	return b.String()
}

type joinClause struct {
	table       string
	left, right string
}

func (j joinClause) apply(q *query) { q.joins = append(q.joins, j) }

func (j joinClause) String() string {
	b := &sql.Builder{}
	b.WriteString("JOIN ").Ident(j.table).WriteString(" ON ").Ident(j.left).WriteString(" = ").Ident(j.right)
	return b.String()
}

// Join returns a clause joining the table of entity b to a query over
// entity a. The join columns are resolved from the foreign keys between
// them: those of a in declaration order, then its parent link, then those
// of b. It fails with ErrNoJoinPath when the entities are unrelated.
func (c *Client) Join(a, b string) (Clause, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	left, right, err := c.registry.JoinPath(a, b)
	if err != nil {
		return nil, &QueryError{Entity: a, Op: "join", Err: err}
	}
	return joinClause{table: b, left: left, right: right}, nil
}
