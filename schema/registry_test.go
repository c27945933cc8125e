package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/formulite/schema/field"
)

// shop declares Product(name PK, price, tags [str]), User(name PK, age),
// Admin : User (level) and Order(id PK, product -> Product, items [Product]).
func shop(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry()
	_, err := r.Declare("Product", field.String("name"), field.Int("price"), field.List("tags", "str"))
	require.NoError(t, err)
	require.NoError(t, r.SetPrimaryKey("Product", "name"))
	_, err = r.Declare("User", field.String("name"), field.Int("age"))
	require.NoError(t, err)
	require.NoError(t, r.SetPrimaryKey("User", "name"))
	_, err = r.DeclareDerived("Admin", "User", field.Int("level"))
	require.NoError(t, err)
	_, err = r.Declare("Order", field.Int("id"), field.String("product"), field.List("items", "Product"))
	require.NoError(t, err)
	require.NoError(t, r.SetPrimaryKey("Order", "id"))
	require.NoError(t, r.SetForeignKey("Order", "product", "Product"))
	return r
}

func TestDeclare(t *testing.T) {
	r := shop(t)
	assert.Equal(t, 4, r.Len())

	p, err := r.Entity("Product")
	require.NoError(t, err)
	assert.Equal(t, "product_id", p.Surrogate)
	assert.Equal(t, []string{"name"}, p.PrimaryKey)
	assert.Equal(t, []string{"name", "price"}, p.Columns())
	require.Len(t, p.Lists(), 1)
	assert.False(t, p.Derived())

	a, err := r.Entity("Admin")
	require.NoError(t, err)
	assert.True(t, a.Derived())
	assert.Equal(t, "admin_id", a.Surrogate)
	assert.Equal(t, []string{"admin_id"}, a.PrimaryKey)
	assert.Equal(t, []string{"admin_id"}, a.KeyColumns())

	var names []string
	for _, e := range r.Entities() {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"Product", "User", "Admin", "Order"}, names)
}

func TestDeclareErrors(t *testing.T) {
	r := shop(t)
	tests := []struct {
		name string
		fn   func() error
		err  error
	}{
		{"duplicate", func() error { _, err := r.Declare("Product"); return err }, ErrDuplicateEntity},
		{"duplicate_case", func() error { _, err := r.Declare("product"); return err }, ErrDuplicateEntity},
		{"linked_table_name", func() error { _, err := r.Declare("Product_tags"); return err }, ErrDuplicateEntity},
		{"unknown_parent", func() error { _, err := r.DeclareDerived("X", "Nope"); return err }, ErrUnknownEntity},
		{"duplicate_attribute", func() error { _, err := r.Declare("X", field.Int("a"), field.String("A")); return err }, ErrDuplicateAttribute},
		{"inherited_attribute", func() error { _, err := r.DeclareDerived("Guest", "User", field.String("name")); return err }, ErrDuplicateAttribute},
		{"parent_surrogate", func() error { _, err := r.DeclareDerived("Guest", "User", field.Int("user_id")); return err }, ErrDuplicateAttribute},
		{"unknown_list_elem", func() error { _, err := r.Declare("X", field.List("xs", "Nope")); return err }, ErrUnknownEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.ErrorIs(t, tt.fn(), tt.err)
		})
	}
	_, err := r.Declare("sqlite_things")
	require.Error(t, err)
	_, err = r.Declare("bad name")
	require.Error(t, err)
	assert.Equal(t, 4, r.Len(), "failed declarations leave no trace")
}

func TestSurrogateCollision(t *testing.T) {
	r := NewRegistry()
	e, err := r.Declare("Item", field.Int("item_id"))
	require.NoError(t, err)
	assert.Equal(t, "item_key", e.Surrogate)

	e, err = r.Declare("Thing", field.Int("thing_id"), field.Int("thing_key"))
	require.NoError(t, err)
	assert.Equal(t, "thing_rowid", e.Surrogate)

	_, err = r.Declare("Odd", field.Int("odd_id"), field.Int("odd_key"), field.Int("odd_rowid"))
	require.ErrorIs(t, err, ErrDuplicateAttribute)
}

func TestPrimaryKey(t *testing.T) {
	r := shop(t)
	require.NoError(t, r.AppendPrimaryKey("User", "age", "name"))
	u, _ := r.Lookup("User")
	assert.Equal(t, []string{"name", "age"}, u.PrimaryKey)

	require.NoError(t, r.SetPrimaryKey("User", "age", "age"))
	assert.Equal(t, []string{"age"}, u.PrimaryKey)

	require.ErrorIs(t, r.SetPrimaryKey("User", "email"), ErrUnknownAttribute)
	require.ErrorIs(t, r.SetPrimaryKey("Admin", "level"), ErrPrimaryKeyViolation)
	require.ErrorIs(t, r.SetPrimaryKey("Product", "tags"), ErrPrimaryKeyViolation)
	require.ErrorIs(t, r.SetPrimaryKey("User"), ErrPrimaryKeyViolation)
	require.ErrorIs(t, r.SetPrimaryKey("Nope", "x"), ErrUnknownEntity)
}

func TestForeignKey(t *testing.T) {
	r := shop(t)
	o, _ := r.Lookup("Order")
	fk, ok := o.ForeignKey("product")
	require.True(t, ok)
	assert.Equal(t, ForeignKey{Attribute: "product", RefEntity: "Product", RefColumn: "name"}, fk)

	t.Run("derived_target_uses_surrogate", func(t *testing.T) {
		_, err := r.Declare("Badge", field.Int("id"), field.Int("holder"))
		require.NoError(t, err)
		require.NoError(t, r.SetForeignKey("Badge", "holder", "Admin"))
		b, _ := r.Lookup("Badge")
		fk, _ := b.ForeignKey("holder")
		assert.Equal(t, "admin_id", fk.RefColumn)
	})

	t.Run("composite_target_uses_surrogate", func(t *testing.T) {
		require.NoError(t, r.AppendPrimaryKey("User", "age"))
		col, typ, err := r.RefColumn("User")
		require.NoError(t, err)
		assert.Equal(t, "user_id", col)
		assert.Equal(t, field.TypeInt, typ)
	})

	t.Run("redeclare_replaces", func(t *testing.T) {
		_, err := r.Declare("Review", field.String("subject"))
		require.NoError(t, err)
		require.NoError(t, r.SetForeignKey("Review", "subject", "Product"))
		_, err = r.Declare("Topic", field.String("title"))
		require.NoError(t, err)
		require.NoError(t, r.SetPrimaryKey("Topic", "title"))
		require.NoError(t, r.SetForeignKey("Review", "subject", "Topic"))
		rv, _ := r.Lookup("Review")
		require.Len(t, rv.ForeignKeys, 1)
		assert.Equal(t, "Topic", rv.ForeignKeys[0].RefEntity)
	})

	t.Run("errors", func(t *testing.T) {
		require.ErrorIs(t, r.SetForeignKey("Order", "price", "Product"), ErrUnknownAttribute)
		require.ErrorIs(t, r.SetForeignKey("Order", "id", "Product"), ErrInvalidForeignKey, "type mismatch")
		require.ErrorIs(t, r.SetForeignKey("Order", "items", "Product"), ErrInvalidForeignKey, "list attribute")
		require.ErrorIs(t, r.SetForeignKey("Order", "product", "Nope"), ErrUnknownEntity)
		_, err := r.Declare("Loose", field.String("x"))
		require.NoError(t, err)
		require.ErrorIs(t, r.SetForeignKey("Order", "product", "Loose"), ErrInvalidForeignKey, "no primary key")
		require.NoError(t, r.AddAttribute("Product", field.Int("best")))
		require.ErrorIs(t, r.SetForeignKey("Product", "best", "Order"), ErrInvalidForeignKey, "cycle")
	})
}

func TestTopology(t *testing.T) {
	r := NewRegistry()
	_, err := r.Declare("Order", field.Int("id"), field.List("items", "Product"))
	require.ErrorIs(t, err, ErrUnknownEntity)

	r = shop(t)
	_, err = r.DeclareDerived("SuperAdmin", "Admin", field.String("scope"))
	require.NoError(t, err)
	_, err = r.DeclareDerived("Guest", "User")
	require.NoError(t, err)

	var sorted []string
	for _, e := range r.Sorted() {
		sorted = append(sorted, e.Name)
	}
	assert.Equal(t, []string{"Product", "User", "Admin", "Order", "SuperAdmin", "Guest"}, sorted)

	chain, err := r.Chain("SuperAdmin")
	require.NoError(t, err)
	require.Len(t, chain, 3)
	assert.Equal(t, "User", chain[0].Name)
	assert.Equal(t, "SuperAdmin", chain[2].Name)

	var desc []string
	for _, e := range r.Descendants("User") {
		desc = append(desc, e.Name)
	}
	assert.Equal(t, []string{"Admin", "Guest", "SuperAdmin"}, desc)

	pk, ok := r.ParentKey(chain[2])
	require.True(t, ok)
	assert.Equal(t, ForeignKey{Attribute: "admin_id", RefEntity: "Admin", RefColumn: "admin_id"}, pk)
	_, ok = r.ParentKey(chain[0])
	assert.False(t, ok)

	links := r.Links("Order")
	require.Len(t, links, 1)
	assert.Equal(t, Link{
		Table:       "Order_items",
		Owner:       "Order",
		Attribute:   "items",
		OwnerColumn: "order_id",
		ElemColumn:  "product_id",
		ElemType:    field.TypeInt,
		ElemEntity:  "Product",
	}, links[0])
	links = r.Links("Product")
	require.Len(t, links, 1)
	assert.Equal(t, ValueColumn, links[0].ElemColumn)
	assert.Equal(t, field.TypeString, links[0].ElemType)

	assert.ElementsMatch(t, []string{"Order"}, r.Referrers("Product"))
	assert.ElementsMatch(t, []string{"Admin", "Guest"}, r.Referrers("User"))
}

func TestJoinPath(t *testing.T) {
	r := shop(t)
	tests := []struct {
		a, b        string
		left, right string
	}{
		{"Order", "Product", "Order.product", "Product.name"},
		{"Product", "Order", "Product.name", "Order.product"},
		{"Admin", "User", "Admin.user_id", "User.user_id"},
		{"User", "Admin", "User.user_id", "Admin.user_id"},
	}
	for _, tt := range tests {
		t.Run(tt.a+"_"+tt.b, func(t *testing.T) {
			left, right, err := r.JoinPath(tt.a, tt.b)
			require.NoError(t, err)
			assert.Equal(t, tt.left, left)
			assert.Equal(t, tt.right, right)
		})
	}
	_, _, err := r.JoinPath("User", "Product")
	require.ErrorIs(t, err, ErrNoJoinPath)
	_, _, err = r.JoinPath("User", "Nope")
	require.ErrorIs(t, err, ErrUnknownEntity)
}

func TestStructuralChanges(t *testing.T) {
	t.Run("attributes", func(t *testing.T) {
		r := shop(t)
		require.NoError(t, r.AddAttribute("Product", field.Float("weight")))
		require.ErrorIs(t, r.AddAttribute("Admin", field.Int("age")), ErrDuplicateAttribute)
		require.ErrorIs(t, r.AddAttribute("User", field.Int("level")), ErrDuplicateAttribute, "taken by a descendant")
		require.NoError(t, r.DropAttribute("Product", "weight"))
		require.ErrorIs(t, r.DropAttribute("Product", "weight"), ErrUnknownAttribute)
		require.ErrorIs(t, r.DropAttribute("Product", "name"), ErrPrimaryKeyViolation)
		require.ErrorIs(t, r.DropAttribute("Order", "product"), ErrForeignKeyViolation)
		require.NoError(t, r.DropAttribute("Product", "tags"))
		assert.Empty(t, r.Links("Product"))
	})

	t.Run("rename_attribute", func(t *testing.T) {
		r := shop(t)
		require.NoError(t, r.RenameAttribute("Product", "name", "title"))
		p, _ := r.Lookup("Product")
		assert.Equal(t, []string{"title"}, p.PrimaryKey)
		o, _ := r.Lookup("Order")
		assert.Equal(t, "title", o.ForeignKeys[0].RefColumn)
		require.NoError(t, r.RenameAttribute("Order", "product", "what"))
		assert.Equal(t, "what", o.ForeignKeys[0].Attribute)
		require.ErrorIs(t, r.RenameAttribute("Product", "price", "title"), ErrDuplicateAttribute)
		require.ErrorIs(t, r.RenameAttribute("Product", "nope", "x"), ErrUnknownAttribute)
	})

	t.Run("rename_entity", func(t *testing.T) {
		r := shop(t)
		require.NoError(t, r.RenameEntity("User", "Person"))
		_, ok := r.Lookup("User")
		assert.False(t, ok)
		a, _ := r.Lookup("Admin")
		assert.Equal(t, "Person", a.Parent)
		p, _ := r.Lookup("Person")
		assert.Equal(t, "user_id", p.Surrogate, "surrogate keys keep their names")

		require.NoError(t, r.RenameEntity("Product", "Article"))
		o, _ := r.Lookup("Order")
		assert.Equal(t, "Article", o.ForeignKeys[0].RefEntity)
		assert.Equal(t, "Article", o.Lists()[0].Elem)

		require.ErrorIs(t, r.RenameEntity("Order", "Person"), ErrDuplicateEntity)
		_, ok = r.Lookup("Order")
		assert.True(t, ok, "failed rename keeps the entity")
	})

	t.Run("remove", func(t *testing.T) {
		r := shop(t)
		require.ErrorIs(t, r.Remove("Product"), ErrForeignKeyViolation)
		require.ErrorIs(t, r.Remove("User"), ErrForeignKeyViolation)
		require.NoError(t, r.Remove("Order"))
		require.NoError(t, r.Remove("Product"))
		require.NoError(t, r.Remove("Admin"))
		require.NoError(t, r.Remove("User"))
		assert.Zero(t, r.Len())
		require.ErrorIs(t, r.Remove("User"), ErrUnknownEntity)
	})
}

func TestClone(t *testing.T) {
	r := shop(t)
	c := r.Clone()
	require.NoError(t, c.AddAttribute("Product", field.Float("weight")))
	_, err := c.Declare("Extra")
	require.NoError(t, err)

	p, _ := r.Lookup("Product")
	_, ok := p.Attribute("weight")
	assert.False(t, ok)
	assert.Equal(t, 4, r.Len())
	assert.Equal(t, 5, c.Len())
}

func TestAdd(t *testing.T) {
	r := NewRegistry()
	require.ErrorIs(t, r.Add(&Entity{Name: "Admin", Parent: "User", Surrogate: "admin_id"}), ErrUnknownEntity)
	require.Error(t, r.Add(&Entity{Name: "User"}), "surrogate is required")
	require.NoError(t, r.Add(&Entity{Name: "User", Surrogate: "user_id", Attributes: []field.Descriptor{field.String("name")}, PrimaryKey: []string{"name"}}))
	require.NoError(t, r.Add(&Entity{Name: "Admin", Parent: "User", Surrogate: "admin_id", PrimaryKey: []string{"admin_id"}}))
	assert.Equal(t, 2, r.Len())
}

func TestReserved(t *testing.T) {
	assert.True(t, Reserved("sqlite_sequence"))
	assert.True(t, Reserved("formulite_schema"))
	assert.True(t, Reserved("FORMULITE_x"))
	assert.False(t, Reserved("Product"))
	assert.Equal(t, "Product_tags", LinkTable("Product", "tags"))
}
