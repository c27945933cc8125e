package schema

import (
	"context"
	"fmt"
	"sort"

	"github.com/syssam/formulite/dialect"
	"github.com/syssam/formulite/dialect/sql"
	"github.com/syssam/formulite/schema/field"
)

// Tables returns the names of the tables in the database, excluding the
// SQLite internal ones, in name order.
func Tables(ctx context.Context, ex dialect.ExecQuerier) ([]string, error) {
	rows, err := sql.QueryValues(ctx, ex, sql.Select("name").
		From("sqlite_master").
		Where(sql.And(sql.EQ("type", "table"), sql.Not(sql.HasPrefix("name", "sqlite_")))).
		OrderBy("name", sql.OrderAsc))
	if err != nil {
		return nil, fmt.Errorf("dialect/sql/schema: list tables: %w", err)
	}
	names := make([]string, 0, len(rows))
	for _, r := range rows {
		names = append(names, asString(r[0]))
	}
	return names, nil
}

// TableExists reports if a table with the given name exists.
func TableExists(ctx context.Context, ex dialect.ExecQuerier, name string) (bool, error) {
	rows, err := sql.QueryValues(ctx, ex, sql.Select("name").
		From("sqlite_master").
		Where(sql.And(sql.EQ("type", "table"), sql.EQ("name", name))))
	if err != nil {
		return false, fmt.Errorf("dialect/sql/schema: table exists: %w", err)
	}
	return len(rows) > 0, nil
}

// Inspect reads the columns and primary key of a table. Column types
// that do not map to an attribute type are reported as field.TypeInvalid.
func Inspect(ctx context.Context, ex dialect.ExecQuerier, name string) (*Table, error) {
	b := &sql.Builder{}
	b.WriteString("SELECT ").IdentComma("name", "type", "notnull", "pk").
		WriteString(" FROM pragma_table_info(").Arg(name).WriteString(") ORDER BY ").Ident("cid")
	rows, err := sql.QueryValues(ctx, ex, b)
	if err != nil {
		return nil, fmt.Errorf("dialect/sql/schema: inspect %q: %w", name, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("dialect/sql/schema: table %q does not exist", name)
	}
	t := NewTable(name)
	type pkPart struct {
		column string
		seq    int64
	}
	var pk []pkPart
	for _, r := range rows {
		typ, _ := field.ParseScalar(asString(r[1]))
		notNull, _ := sql.ScanInt64(r[2])
		seq, _ := sql.ScanInt64(r[3])
		c := &Column{Name: asString(r[0]), Type: typ, Nullable: notNull == 0}
		t.AddColumn(c)
		if seq > 0 {
			pk = append(pk, pkPart{column: c.Name, seq: seq})
		}
	}
	sort.Slice(pk, func(i, j int) bool { return pk[i].seq < pk[j].seq })
	for _, p := range pk {
		t.PrimaryKey = append(t.PrimaryKey, p.column)
	}
	return t, nil
}

func asString(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
