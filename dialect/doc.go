// Package dialect defines the narrow database surface the mapping engine
// consumes: statement execution, row queries and transactions.
//
// # Driver Interface
//
//	type Driver interface {
//	    Exec(ctx context.Context, query string, args, v any) error
//	    Query(ctx context.Context, query string, args, v any) error
//	    Tx(ctx context.Context) (Tx, error)
//	    Close() error
//	    Dialect() string
//	}
//
// Both Driver and Tx satisfy ExecQuerier, so every helper that only needs
// to run statements accepts an ExecQuerier and works inside or outside a
// transaction.
//
// # Usage
//
//	drv, err := sql.Open(dialect.SQLite, "file:app.db?_pragma=foreign_keys(1)")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer drv.Close()
//
// # Sub-packages
//
//   - dialect/sql: statement builders, predicates and the database/sql driver
//   - dialect/sql/schema: table model, SQLite DDL and inspection
//   - dialect/sql/sqlgraph: row-level operations and inheritance joins
package dialect
