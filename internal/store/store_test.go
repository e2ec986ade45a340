package store

import (
	"database/sql"
	"testing"

	"streamhub/internal/database"
	"streamhub/internal/model"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createTestUser(t *testing.T, db *sql.DB, email, username string) *model.User {
	t.Helper()
	user, err := NewUserStore(db).Create(email, username, username, "x")
	if err != nil {
		t.Fatalf("create test user: %v", err)
	}
	return user
}

func createTestStream(t *testing.T, db *sql.DB, title string) *model.Stream {
	t.Helper()
	stream, err := NewStreamStore(db).Create(title, title)
	if err != nil {
		t.Fatalf("create test stream: %v", err)
	}
	return stream
}
