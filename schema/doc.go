// Package schema holds the entity descriptors of the mapping engine and
// the registry that validates and relates them.
//
// Entities are declared with ordered attributes, then keyed, then linked:
//
//	reg := schema.NewRegistry()
//	reg.Declare("User", field.Int("id"), field.String("name"))
//	reg.SetPrimaryKey("User", "id")
//	reg.DeclareDerived("Admin", "User", field.String("credentials"))
//
// Every entity owns a surrogate key column named after it ("user_id" for
// User). A derived entity is keyed by its surrogate and links to its
// parent through a column named after the parent's surrogate.
//
// The registry rejects foreign key cycles, including the implicit edges
// from a derived entity to its parent and from a list attribute to its
// element entity, so tables can always be created in dependency order.
package schema
