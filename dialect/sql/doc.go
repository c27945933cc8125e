// Package sql provides the statement builders, predicates and the
// database/sql backed driver used by the mapping engine.
//
// # Builder Types
//
//   - Builder: low-level SQL string builder with identifier quoting
//   - Selector: SELECT builder with joins, predicates, ordering and paging
//   - InsertBuilder, UpdateBuilder, DeleteBuilder: row mutations
//
// Values never appear in the statement text. Every value is bound as a
// positional "?" argument:
//
//	q, args := sql.Select("prod_id", "prod_name").
//	    From("Product").
//	    Where(sql.EQ("prod_id", 1)).
//	    Query()
//	// SELECT `prod_id`, `prod_name` FROM `Product` WHERE `prod_id` = ?
//	// [1]
//
// # Predicates
//
//	sql.EQ("name", "john")
//	sql.GT("age", 18)
//	sql.Contains("name", "jo")
//	sql.IsNull("deleted_at")
//	sql.In("status", "active", "pending")
//	sql.And(p1, sql.Or(p2, p3))
//
// # Joins
//
//	sql.Select("User.name", "Admin.credentials").
//	    From("User").
//	    LeftJoin("Admin").On("Admin.user_id", "User.user_id")
//
// # Drivers
//
// Driver adapts a *sql.DB to dialect.Driver. StatsDriver and DebugDriver
// wrap it to collect statement statistics or log every statement.
package sql
