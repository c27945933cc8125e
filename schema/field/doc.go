// Package field describes entity attributes and their types.
//
// Attributes are plain values built with the typed constructors or parsed
// from a type expression:
//
//	field.Int("prod_id")
//	field.String("prod_name")
//	field.List("tags", "string")
//
//	d, err := field.Parse("items", "[Product]")
//
// Scalar types map to one SQLite column each. List types are stored in a
// linked table owned by the entity.
package field
