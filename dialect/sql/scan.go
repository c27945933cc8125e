package sql

import (
	"context"
	"fmt"

	"github.com/syssam/formulite/dialect"
)

// QueryValues executes the given query and reads every row into a slice
// of column values. The rows are closed before QueryValues returns, so the
// connection is free for the next statement.
func QueryValues(ctx context.Context, ex dialect.ExecQuerier, q Querier) ([][]any, error) {
	if err := queryErr(q); err != nil {
		return nil, err
	}
	query, args := q.Query()
	rows := &Rows{}
	if err := ex.Query(ctx, query, args, rows); err != nil {
		return nil, err
	}
	defer rows.Close()
	return ScanValues(rows)
}

// ExecQuery executes the given statement and returns its result.
func ExecQuery(ctx context.Context, ex dialect.ExecQuerier, q Querier) (Result, error) {
	if err := queryErr(q); err != nil {
		return nil, err
	}
	query, args := q.Query()
	var res Result
	if err := ex.Exec(ctx, query, args, &res); err != nil {
		return nil, err
	}
	return res, nil
}

// ScanValues scans all rows into slices of values, one slice per row.
// Values keep the types reported by the driver.
func ScanValues(rows ColumnScanner) ([][]any, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("dialect/sql: columns: %w", err)
	}
	var out [][]any
	for rows.Next() {
		values := make([]any, len(columns))
		dest := make([]any, len(columns))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("dialect/sql: scan: %w", err)
		}
		out = append(out, values)
	}
	return out, rows.Err()
}

// ScanInt64 converts a scanned value to int64.
func ScanInt64(v any) (int64, bool) {
	switch v := v.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case float64:
		return int64(v), true
	case []byte:
		var n int64
		_, err := fmt.Sscan(string(v), &n)
		return n, err == nil
	case string:
		var n int64
		_, err := fmt.Sscan(v, &n)
		return n, err == nil
	default:
		return 0, false
	}
}

func queryErr(q Querier) error {
	if e, ok := q.(interface{ Err() error }); ok {
		return e.Err()
	}
	return nil
}
