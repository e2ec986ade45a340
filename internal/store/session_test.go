package store

import (
	"testing"
	"time"
)

func TestSessionCreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "alice@example.com", "alice")
	s := NewSessionStore(db)

	sess, err := s.Create(user.ID)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if sess.Token == "" {
		t.Fatal("expected a token")
	}

	got, err := s.GetByToken(sess.Token)
	if err != nil {
		t.Fatalf("get by token: %v", err)
	}
	if got == nil {
		t.Fatal("expected session, got nil")
	}
	if got.UserID != user.ID {
		t.Errorf("user id = %d, want %d", got.UserID, user.ID)
	}
}

func TestSessionExpired(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "alice@example.com", "alice")
	s := NewSessionStore(db)

	sess, err := s.Create(user.ID)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	past := time.Now().UTC().Add(-time.Hour)
	if _, err := db.Exec(`UPDATE sessions SET expires_at = ? WHERE token = ?`, past, sess.Token); err != nil {
		t.Fatalf("expire session: %v", err)
	}

	got, err := s.GetByToken(sess.Token)
	if err != nil {
		t.Fatalf("get by token: %v", err)
	}
	if got != nil {
		t.Error("expected nil for expired session")
	}

	n, err := s.DeleteExpired()
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}
}

func TestSessionDelete(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "alice@example.com", "alice")
	s := NewSessionStore(db)

	sess, _ := s.Create(user.ID)
	if err := s.Delete(sess.Token); err != nil {
		t.Fatalf("delete: %v", err)
	}

	got, _ := s.GetByToken(sess.Token)
	if got != nil {
		t.Error("expected nil after delete")
	}
}
