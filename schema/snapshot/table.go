package snapshot

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/syssam/formulite/dialect"
	"github.com/syssam/formulite/dialect/sql"
	sqlschema "github.com/syssam/formulite/dialect/sql/schema"
)

// DefaultTable is the metadata table of TableStore.
const DefaultTable = "formulite_schema"

// TableStore keeps the records in a metadata table of the database itself,
// one msgpack encoded record per row. Saving replaces all rows and stamps
// them with a new revision.
type TableStore struct {
	table string
}

// NewTableStore returns a store using DefaultTable.
func NewTableStore() *TableStore {
	return &TableStore{table: DefaultTable}
}

// Table returns the metadata table name.
func (s *TableStore) Table() string { return s.table }

func (s *TableStore) create(ctx context.Context, ex dialect.ExecQuerier) error {
	b := &sql.Builder{}
	b.WriteString("CREATE TABLE IF NOT EXISTS ").Ident(s.table).
		WriteString(" (").Ident("name").WriteString(" TEXT NOT NULL, ").
		Ident("position").WriteString(" INTEGER NOT NULL, ").
		Ident("revision").WriteString(" TEXT NOT NULL, ").
		Ident("record").WriteString(" BLOB NOT NULL, PRIMARY KEY(").Ident("name").WriteString("))")
	if _, err := sql.ExecQuery(ctx, ex, b); err != nil {
		return fmt.Errorf("snapshot: create %s: %w", s.table, err)
	}
	return nil
}

// Save implements Store.
func (s *TableStore) Save(ctx context.Context, ex dialect.ExecQuerier, recs []Record) error {
	if err := s.create(ctx, ex); err != nil {
		return err
	}
	if _, err := sql.ExecQuery(ctx, ex, sql.Delete(s.table)); err != nil {
		return fmt.Errorf("snapshot: clear %s: %w", s.table, err)
	}
	revision := uuid.NewString()
	for i, r := range recs {
		data, err := msgpack.Marshal(&r)
		if err != nil {
			return fmt.Errorf("snapshot: encode %q: %w", r.Name, err)
		}
		insert := sql.Insert(s.table).
			Set("name", r.Name).
			Set("position", i).
			Set("revision", revision).
			Set("record", data)
		if _, err := sql.ExecQuery(ctx, ex, insert); err != nil {
			return fmt.Errorf("snapshot: save %q: %w", r.Name, err)
		}
	}
	return nil
}

// Load implements Store. A database without the metadata table has no records.
func (s *TableStore) Load(ctx context.Context, ex dialect.ExecQuerier) ([]Record, error) {
	exists, err := sqlschema.TableExists(ctx, ex, s.table)
	if err != nil || !exists {
		return nil, err
	}
	rows, err := sql.QueryValues(ctx, ex, sql.Select("record").From(s.table).OrderBy("position", sql.OrderAsc))
	if err != nil {
		return nil, fmt.Errorf("snapshot: load: %w", err)
	}
	recs := make([]Record, 0, len(rows))
	for _, row := range rows {
		data, ok := row[0].([]byte)
		if !ok {
			return nil, fmt.Errorf("snapshot: unexpected record type %T", row[0])
		}
		var r Record
		if err := msgpack.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("snapshot: decode: %w", err)
		}
		recs = append(recs, r)
	}
	return recs, nil
}

// Revision returns the revision of the last save, or an empty string if
// nothing was saved.
func (s *TableStore) Revision(ctx context.Context, ex dialect.ExecQuerier) (string, error) {
	exists, err := sqlschema.TableExists(ctx, ex, s.table)
	if err != nil || !exists {
		return "", err
	}
	rows, err := sql.QueryValues(ctx, ex, sql.Select("revision").From(s.table).Limit(1))
	if err != nil || len(rows) == 0 {
		return "", err
	}
	rev, _ := rows[0][0].(string)
	return rev, nil
}
