package store

import (
	"fmt"
	"testing"
	"time"

	"streamhub/internal/model"
)

func seedMessage(t *testing.T, s *MessageStore, id string, streamID int64, body string, at time.Time) {
	t.Helper()
	err := s.Create(&model.ChatMessage{
		ID:        id,
		StreamID:  streamID,
		Body:      body,
		CreatedAt: at,
	})
	if err != nil {
		t.Fatalf("seed message %s: %v", id, err)
	}
}

func TestMessageCreateIgnoresDuplicateID(t *testing.T) {
	db := setupTestDB(t)
	stream := createTestStream(t, db, "launch day")
	s := NewMessageStore(db)

	now := time.Now().UTC()
	seedMessage(t, s, "msg-1", stream.ID, "first", now)
	seedMessage(t, s, "msg-1", stream.ID, "replayed", now.Add(time.Second))

	msgs, err := s.ListRecent(stream.ID, 10)
	if err != nil {
		t.Fatalf("list recent: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message after duplicate insert, got %d", len(msgs))
	}
	if msgs[0].Body != "first" {
		t.Errorf("body = %q, want the original %q", msgs[0].Body, "first")
	}
}

func TestMessageListRecentOrderAndLimit(t *testing.T) {
	db := setupTestDB(t)
	stream := createTestStream(t, db, "launch day")
	s := NewMessageStore(db)

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		seedMessage(t, s, fmt.Sprintf("msg-%d", i), stream.ID, fmt.Sprintf("body %d", i), base.Add(time.Duration(i)*time.Minute))
	}

	msgs, err := s.ListRecent(stream.ID, 3)
	if err != nil {
		t.Fatalf("list recent: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	// The newest three, chronological
	want := []string{"msg-2", "msg-3", "msg-4"}
	for i, m := range msgs {
		if m.ID != want[i] {
			t.Errorf("msgs[%d].ID = %s, want %s", i, m.ID, want[i])
		}
	}
}

func TestMessageAuthorRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	stream := createTestStream(t, db, "launch day")
	user := createTestUser(t, db, "alice@example.com", "alice")
	s := NewMessageStore(db)

	err := s.Create(&model.ChatMessage{
		ID:       "msg-author",
		StreamID: stream.ID,
		Author: &model.Author{
			UserID:      user.ID,
			Username:    "alice",
			DisplayName: "Alice",
		},
		Body:      "hello",
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	msgs, err := s.ListRecent(stream.ID, 1)
	if err != nil {
		t.Fatalf("list recent: %v", err)
	}
	if msgs[0].Author == nil {
		t.Fatal("expected author, got nil")
	}
	if msgs[0].Author.Username != "alice" {
		t.Errorf("username = %q, want alice", msgs[0].Author.Username)
	}
}

func TestMessageArchiveQueries(t *testing.T) {
	db := setupTestDB(t)
	stream := createTestStream(t, db, "launch day")
	other := createTestStream(t, db, "encore")
	s := NewMessageStore(db)

	cutoff := time.Now().UTC().Add(-24 * time.Hour)
	seedMessage(t, s, "old-1", stream.ID, "old", cutoff.Add(-2*time.Hour))
	seedMessage(t, s, "old-2", stream.ID, "older", cutoff.Add(-3*time.Hour))
	seedMessage(t, s, "new-1", stream.ID, "new", cutoff.Add(time.Hour))
	seedMessage(t, s, "other-old", other.ID, "old elsewhere", cutoff.Add(-time.Hour))

	ids, err := s.StreamIDsWithMessagesBefore(cutoff)
	if err != nil {
		t.Fatalf("stream ids before: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 streams with old messages, got %d", len(ids))
	}

	old, err := s.ListBefore(stream.ID, cutoff, 100)
	if err != nil {
		t.Fatalf("list before: %v", err)
	}
	if len(old) != 2 {
		t.Fatalf("expected 2 old messages, got %d", len(old))
	}
	if old[0].ID != "old-2" {
		t.Errorf("oldest first: got %s", old[0].ID)
	}

	deleted, err := s.DeleteBefore(stream.ID, cutoff)
	if err != nil {
		t.Fatalf("delete before: %v", err)
	}
	if deleted != 2 {
		t.Errorf("deleted = %d, want 2", deleted)
	}

	remaining, err := s.ListRecent(stream.ID, 10)
	if err != nil {
		t.Fatalf("list recent: %v", err)
	}
	if len(remaining) != 1 || remaining[0].ID != "new-1" {
		t.Errorf("expected only new-1 to remain, got %v", remaining)
	}
}
