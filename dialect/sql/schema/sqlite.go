package schema

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/syssam/formulite/dialect/sql"
)

// CreateTable returns the `CREATE TABLE IF NOT EXISTS` statement of t.
func CreateTable(t *Table) *sql.Builder {
	b := &sql.Builder{}
	b.WriteString("CREATE TABLE IF NOT EXISTS ").Ident(t.Name).WriteString(" (")
	for i, c := range t.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		column(b, c)
	}
	if len(t.PrimaryKey) > 0 {
		b.WriteString(", PRIMARY KEY").Wrap(func(b *sql.Builder) { b.IdentComma(t.PrimaryKey...) })
	}
	for _, fk := range t.ForeignKeys {
		b.WriteString(", FOREIGN KEY").Wrap(func(b *sql.Builder) { b.IdentComma(fk.Columns...) })
		b.WriteString(" REFERENCES ").Ident(fk.RefTable).Wrap(func(b *sql.Builder) { b.IdentComma(fk.RefColumns...) })
		if fk.OnUpdate != "" {
			b.WriteString(" ON UPDATE ").WriteString(string(fk.OnUpdate))
		}
		if fk.OnDelete != "" {
			b.WriteString(" ON DELETE ").WriteString(string(fk.OnDelete))
		}
	}
	b.WriteByte(')')
	return b
}

func column(b *sql.Builder, c *Column) {
	b.Ident(c.Name)
	if t := c.Type.SQLType(); t != "" {
		b.Pad().WriteString(t)
	} else {
		b.AddError(fmt.Errorf("dialect/sql/schema: column %q has no SQL type", c.Name))
	}
	if !c.Nullable {
		b.WriteString(" NOT NULL")
	}
	if c.Unique {
		b.WriteString(" UNIQUE")
	}
	if c.Default != nil {
		b.WriteString(" DEFAULT ")
		literal(b, c.Default)
	}
}

// literal writes a constant default value. DDL statements cannot carry
// bound arguments.
func literal(b *sql.Builder, v any) {
	switch v := v.(type) {
	case int:
		b.WriteString(strconv.Itoa(v))
	case int64:
		b.WriteString(strconv.FormatInt(v, 10))
	case float64:
		b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	case bool:
		if v {
			b.WriteString("1")
		} else {
			b.WriteString("0")
		}
	case string:
		b.WriteByte('\'').WriteString(strings.ReplaceAll(v, "'", "''")).WriteByte('\'')
	default:
		b.AddError(fmt.Errorf("dialect/sql/schema: unsupported default value %T", v))
	}
}

// AddColumn returns the `ALTER TABLE ADD COLUMN` statement.
func AddColumn(table string, c *Column) *sql.Builder {
	b := &sql.Builder{}
	b.WriteString("ALTER TABLE ").Ident(table).WriteString(" ADD COLUMN ")
	column(b, c)
	return b
}

// DropColumn returns the `ALTER TABLE DROP COLUMN` statement.
func DropColumn(table, name string) *sql.Builder {
	b := &sql.Builder{}
	b.WriteString("ALTER TABLE ").Ident(table).WriteString(" DROP COLUMN ").Ident(name)
	return b
}

// RenameTable returns the `ALTER TABLE RENAME TO` statement.
func RenameTable(from, to string) *sql.Builder {
	b := &sql.Builder{}
	b.WriteString("ALTER TABLE ").Ident(from).WriteString(" RENAME TO ").Ident(to)
	return b
}

// RenameColumn returns the `ALTER TABLE RENAME COLUMN` statement.
func RenameColumn(table, from, to string) *sql.Builder {
	b := &sql.Builder{}
	b.WriteString("ALTER TABLE ").Ident(table).WriteString(" RENAME COLUMN ").Ident(from).WriteString(" TO ").Ident(to)
	return b
}

// DropTable returns the `DROP TABLE IF EXISTS` statement.
func DropTable(name string) *sql.Builder {
	b := &sql.Builder{}
	b.WriteString("DROP TABLE IF EXISTS ").Ident(name)
	return b
}

// CreateView returns the `CREATE VIEW IF NOT EXISTS` statement for the
// given query. Views are stored as text, so the query must not carry
// bound arguments.
func CreateView(name string, q sql.Querier) *sql.Builder {
	b := &sql.Builder{}
	query, args := q.Query()
	if len(args) > 0 {
		b.AddError(errors.New("dialect/sql/schema: view query cannot have bound arguments"))
	}
	b.WriteString("CREATE VIEW IF NOT EXISTS ").Ident(name).WriteString(" AS ").WriteString(query)
	return b
}

// DropView returns the `DROP VIEW IF EXISTS` statement.
func DropView(name string) *sql.Builder {
	b := &sql.Builder{}
	b.WriteString("DROP VIEW IF EXISTS ").Ident(name)
	return b
}
