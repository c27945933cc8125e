package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/formulite/dialect/sql"
	"github.com/syssam/formulite/schema/field"
)

func TestCreateTable(t *testing.T) {
	tests := []struct {
		name  string
		table *Table
		want  string
	}{
		{
			name: "root",
			table: NewTable("User").
				AddColumn(&Column{Name: "name", Type: field.TypeString}).
				AddColumn(&Column{Name: "age", Type: field.TypeInt, Nullable: true}).
				AddColumn(&Column{Name: "user_id", Type: field.TypeInt, Unique: true}).
				SetPrimaryKey("name"),
			want: "CREATE TABLE IF NOT EXISTS `User` (`name` TEXT NOT NULL, `age` INTEGER, `user_id` INTEGER NOT NULL UNIQUE, PRIMARY KEY(`name`))",
		},
		{
			name: "derived",
			table: NewTable("Admin").
				AddColumn(&Column{Name: "level", Type: field.TypeFloat, Nullable: true}).
				AddColumn(&Column{Name: "admin_id", Type: field.TypeInt}).
				AddColumn(&Column{Name: "user_id", Type: field.TypeInt, Unique: true}).
				SetPrimaryKey("admin_id").
				AddForeignKeys(&ForeignKey{
					Columns:    []string{"user_id"},
					RefTable:   "User",
					RefColumns: []string{"user_id"},
					OnUpdate:   Cascade,
					OnDelete:   Cascade,
				}),
			want: "CREATE TABLE IF NOT EXISTS `Admin` (`level` REAL, `admin_id` INTEGER NOT NULL, `user_id` INTEGER NOT NULL UNIQUE, " +
				"PRIMARY KEY(`admin_id`), FOREIGN KEY(`user_id`) REFERENCES `User`(`user_id`) ON UPDATE CASCADE ON DELETE CASCADE)",
		},
		{
			name: "defaults",
			table: NewTable("t").
				AddColumn(&Column{Name: "q", Type: field.TypeInt, Default: 1}).
				AddColumn(&Column{Name: "s", Type: field.TypeString, Nullable: true, Default: "it's"}).
				AddColumn(&Column{Name: "b", Type: field.TypeBool, Nullable: true, Default: true}),
			want: "CREATE TABLE IF NOT EXISTS `t` (`q` INTEGER NOT NULL DEFAULT 1, `s` TEXT DEFAULT 'it''s', `b` BOOLEAN DEFAULT 1)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := CreateTable(tt.table)
			require.NoError(t, b.Err())
			assert.Equal(t, tt.want, b.String())
		})
	}
}

func TestCreateTableErrors(t *testing.T) {
	b := CreateTable(NewTable("t").AddColumn(&Column{Name: "tags", Type: field.TypeList}))
	require.Error(t, b.Err())

	b = CreateTable(NewTable("t").AddColumn(&Column{Name: "x", Type: field.TypeInt, Default: []int{1}}))
	require.Error(t, b.Err())
}

func TestAlterStatements(t *testing.T) {
	tests := []struct {
		b    *sql.Builder
		want string
	}{
		{AddColumn("User", &Column{Name: "email", Type: field.TypeString, Nullable: true}), "ALTER TABLE `User` ADD COLUMN `email` TEXT"},
		{DropColumn("User", "email"), "ALTER TABLE `User` DROP COLUMN `email`"},
		{RenameTable("User", "Person"), "ALTER TABLE `User` RENAME TO `Person`"},
		{RenameColumn("User", "name", "title"), "ALTER TABLE `User` RENAME COLUMN `name` TO `title`"},
		{DropTable("User"), "DROP TABLE IF EXISTS `User`"},
		{DropView("cheap"), "DROP VIEW IF EXISTS `cheap`"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.b.String())
		})
	}
}

func TestCreateView(t *testing.T) {
	b := CreateView("cheap", sql.Select("name").From("Product").Where(sql.ExprP("price < 10")))
	require.NoError(t, b.Err())
	assert.Equal(t, "CREATE VIEW IF NOT EXISTS `cheap` AS SELECT `name` FROM `Product` WHERE price < 10", b.String())

	b = CreateView("cheap", sql.Select("name").From("Product").Where(sql.LT("price", 10)))
	require.Error(t, b.Err(), "views cannot carry bound arguments")
}
