// Package formulite maps declared entities, including single-inheritance
// hierarchies and list-valued attributes, onto SQLite tables and composes
// queries over them.
//
// Entities are declared on a Client, turned into tables with CreateAll and
// then written and read as Instances:
//
//	client, err := formulite.Open(ctx, "file:shop.db")
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	err = client.Declare("Product",
//		field.String("name"),
//		field.Int("price"),
//		field.List("tags", "str"),
//	)
//	err = client.SetPrimaryKey("Product", "name")
//	err = client.CreateAll(ctx)
//
//	p, err := client.Build("Product", map[string]any{"name": "lamp", "price": 12})
//	_, err = client.Insert(ctx, p)
//	rows, err := client.Select(ctx, "Product", formulite.Where(sql.GT("price", 10)))
//
// The schema is persisted next to the data, so a later Open restores the
// declarations without running them again.
package formulite
