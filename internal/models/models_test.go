package models

import (
	"database/sql"
	"testing"

	"github.com/mkendall/stride/internal/database"
)

// testDB creates a fresh in-memory SQLite database with migrations applied.
func testDB(t testing.TB) *sql.DB {
	t.Helper()

	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := database.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

// testUser creates a user with sensible HR parameters for tests.
func testUser(t testing.TB, db *sql.DB, email string) *User {
	t.Helper()

	u, err := CreateUser(db, email, "test-password")
	if err != nil {
		t.Fatalf("create test user: %v", err)
	}
	return u
}
