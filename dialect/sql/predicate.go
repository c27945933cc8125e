package sql

import (
	"strings"
)

// Predicate is a where predicate.
type Predicate struct {
	fns []func(*Builder)
}

// P creates a new predicate.
//
//	P(func(b *Builder) {
//		b.Ident("age").WriteString(" > ").Arg(30)
//	})
func P(fns ...func(*Builder)) *Predicate {
	return &Predicate{fns: fns}
}

// Query returns query representation of a predicate.
func (p *Predicate) Query() (string, []any) {
	b := &Builder{}
	for _, f := range p.fns {
		f(b)
	}
	return b.Query()
}

// String renders the predicate with "?" placeholders in place of its values.
func (p *Predicate) String() string {
	s, _ := p.Query()
	return s
}

func binary(col, op string, v any) *Predicate {
	return P(func(b *Builder) {
		b.Ident(col).Pad().WriteString(op).Pad().Arg(v)
	})
}

// EQ returns a "=" predicate.
func EQ(col string, value any) *Predicate { return binary(col, "=", value) }

// NEQ returns a "<>" predicate.
func NEQ(col string, value any) *Predicate { return binary(col, "<>", value) }

// LT returns a "<" predicate.
func LT(col string, value any) *Predicate { return binary(col, "<", value) }

// LTE returns a "<=" predicate.
func LTE(col string, value any) *Predicate { return binary(col, "<=", value) }

// GT returns a ">" predicate.
func GT(col string, value any) *Predicate { return binary(col, ">", value) }

// GTE returns a ">=" predicate.
func GTE(col string, value any) *Predicate { return binary(col, ">=", value) }

// Like returns a "LIKE" predicate.
func Like(col, pattern string) *Predicate { return binary(col, "LIKE", pattern) }

// Contains is a helper predicate that checks substring using the LIKE predicate.
func Contains(col, substr string) *Predicate {
	return P(func(b *Builder) {
		b.Ident(col).WriteString(" LIKE ").Arg("%" + escapeLike(substr) + "%").WriteString(` ESCAPE '\'`)
	})
}

// HasPrefix is a helper predicate that checks prefix using the LIKE predicate.
func HasPrefix(col, prefix string) *Predicate {
	return P(func(b *Builder) {
		b.Ident(col).WriteString(" LIKE ").Arg(escapeLike(prefix) + "%").WriteString(` ESCAPE '\'`)
	})
}

// HasSuffix is a helper predicate that checks suffix using the LIKE predicate.
func HasSuffix(col, suffix string) *Predicate {
	return P(func(b *Builder) {
		b.Ident(col).WriteString(" LIKE ").Arg("%" + escapeLike(suffix)).WriteString(` ESCAPE '\'`)
	})
}

// escapeLike escapes the LIKE wildcards in a user supplied string.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// IsNull returns the `IS NULL` predicate.
func IsNull(col string) *Predicate {
	return P(func(b *Builder) { b.Ident(col).WriteString(" IS NULL") })
}

// NotNull returns the `IS NOT NULL` predicate.
func NotNull(col string) *Predicate {
	return P(func(b *Builder) { b.Ident(col).WriteString(" IS NOT NULL") })
}

// In returns the `IN` predicate. An empty list never matches.
func In(col string, args ...any) *Predicate {
	if len(args) == 0 {
		return False()
	}
	return P(func(b *Builder) {
		b.Ident(col).WriteString(" IN ").Wrap(func(b *Builder) { b.Args(args...) })
	})
}

// NotIn returns the `NOT IN` predicate. An empty list matches every row.
func NotIn(col string, args ...any) *Predicate {
	if len(args) == 0 {
		return Not(False())
	}
	return P(func(b *Builder) {
		b.Ident(col).WriteString(" NOT IN ").Wrap(func(b *Builder) { b.Args(args...) })
	})
}

// ColumnsEQ appends a "=" predicate between 2 columns.
func ColumnsEQ(col1, col2 string) *Predicate {
	return P(func(b *Builder) { b.Ident(col1).WriteString(" = ").Ident(col2) })
}

// False appends the FALSE keyword to the predicate.
func False() *Predicate {
	return P(func(b *Builder) { b.WriteString("FALSE") })
}

// ExprP creates a new predicate from the given expression.
//
//	ExprP("A = ? AND B > ?", args...)
func ExprP(exr string, args ...any) *Predicate {
	return P(func(b *Builder) { b.Join(Expr(exr, args...)) })
}

// Not wraps the given predicate with the not predicate.
func Not(pred *Predicate) *Predicate {
	return P(func(b *Builder) {
		b.WriteString("NOT ").Wrap(func(b *Builder) { b.Join(pred) })
	})
}

// And combines all given predicates with AND between them.
// Nil predicates are skipped, and nil is returned when none is left.
func And(preds ...*Predicate) *Predicate { return junction("AND", preds) }

// Or combines all given predicates with OR between them.
func Or(preds ...*Predicate) *Predicate { return junction("OR", preds) }

func junction(op string, preds []*Predicate) *Predicate {
	var ps []*Predicate
	for _, p := range preds {
		if p != nil {
			ps = append(ps, p)
		}
	}
	switch len(ps) {
	case 0:
		return nil
	case 1:
		return ps[0]
	}
	return P(func(b *Builder) {
		for i, p := range ps {
			if i > 0 {
				b.Pad().WriteString(op).Pad()
			}
			b.Wrap(func(b *Builder) { b.Join(p) })
		}
	})
}

// Field is a typed column name that provides type-safe predicate methods.
//
//	var Name = sql.Field[string]("prod_name")
//	sel.Where(Name.EQ("soap"))
type Field[T any] string

// Name returns the column name.
func (f Field[T]) Name() string { return string(f) }

// EQ returns a predicate that checks if the column equals the given value.
func (f Field[T]) EQ(v T) *Predicate { return EQ(string(f), v) }

// NEQ returns a predicate that checks if the column does not equal the given value.
func (f Field[T]) NEQ(v T) *Predicate { return NEQ(string(f), v) }

// GT returns a predicate that checks if the column is greater than the given value.
func (f Field[T]) GT(v T) *Predicate { return GT(string(f), v) }

// GTE returns a predicate that checks if the column is greater than or equal to the given value.
func (f Field[T]) GTE(v T) *Predicate { return GTE(string(f), v) }

// LT returns a predicate that checks if the column is less than the given value.
func (f Field[T]) LT(v T) *Predicate { return LT(string(f), v) }

// LTE returns a predicate that checks if the column is less than or equal to the given value.
func (f Field[T]) LTE(v T) *Predicate { return LTE(string(f), v) }

// In returns a predicate that checks if the column value is in the given list.
func (f Field[T]) In(vs ...T) *Predicate {
	args := make([]any, len(vs))
	for i := range vs {
		args[i] = vs[i]
	}
	return In(string(f), args...)
}

// IsNull returns a predicate that checks if the column is NULL.
func (f Field[T]) IsNull() *Predicate { return IsNull(string(f)) }

// NotNull returns a predicate that checks if the column is not NULL.
func (f Field[T]) NotNull() *Predicate { return NotNull(string(f)) }
