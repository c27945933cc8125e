package sql

import (
	"testing"
)

func BenchmarkInsertBuilder_Default(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		Insert("users").Query()
	}
}

func BenchmarkInsertBuilder_Small(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		Insert("users").
			Set("age", 30).
			Set("first_name", "Ariel").
			Set("last_name", "Mashraki").
			Set("nickname", "a8m").
			SetExpr("users_id", Expr("SELECT IFNULL(MAX(`users_id`), 0) + 1 FROM `users`")).
			Query()
	}
}

func BenchmarkSelectBuilder_Simple(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		Select("id", "name", "email").
			From("users").
			Where(EQ("name", "Ariel")).
			Query()
	}
}

func BenchmarkSelectBuilder_Hierarchy(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		Select("User.name", "User.user_id", "Admin.level", "Admin.admin_id").
			From("User").
			LeftJoin("Admin").
			On("Admin.user_id", "User.user_id").
			Where(And(GT("User.age", 18), Contains("User.name", "a"))).
			OrderBy("User.name", OrderAsc).
			Limit(10).
			Offset(20).
			Query()
	}
}

func BenchmarkUpdateBuilder(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		Update("users").
			Set("name", "Ariel").
			Set("age", 30).
			Where(EQ("users_id", 1)).
			Query()
	}
}
