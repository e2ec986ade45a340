package chat

import (
	"log/slog"
	"reflect"
	"testing"
	"time"

	"streamhub/internal/database"
	"streamhub/internal/model"
	"streamhub/internal/store"
)

func TestParseMentions(t *testing.T) {
	tests := []struct {
		body string
		want []string
	}{
		{"hello @alice", []string{"alice"}},
		{"@alice @bob hi", []string{"alice", "bob"}},
		{"@alice and @alice again", []string{"alice"}},
		{"no mentions here", nil},
		{"mail me at user@example.com", nil},
		{"punctuation @alice!", []string{"alice"}},
		{"lone @ sign", nil},
		{"@under_score and @dash-name", []string{"under_score", "dash-name"}},
	}
	for _, tt := range tests {
		if got := parseMentions(tt.body); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("parseMentions(%q) = %v, want %v", tt.body, got, tt.want)
		}
	}
}

type recordedMention struct {
	userID   int64
	from     string
	streamID int64
}

type fakeNotifier struct {
	mentions []recordedMention
}

func (f *fakeNotifier) NotifyMention(userID int64, fromUsername string, streamID int64) {
	f.mentions = append(f.mentions, recordedMention{userID, fromUsername, streamID})
}

func TestMentionsNotify(t *testing.T) {
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	users := store.NewUserStore(db)
	bob, err := users.Create("bob@example.com", "bob", "Bob", "x")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	notifier := &fakeNotifier{}
	m := NewMentions(users, notifier, slog.Default())

	m.Notify(model.ChatMessage{
		ID:        "m-1",
		StreamID:  7,
		Author:    &model.Author{UserID: 1, Username: "alice"},
		Body:      "hey @bob, also @ghost and @alice",
		CreatedAt: time.Now(),
	})

	// Unknown users and self-mentions produce nothing
	want := []recordedMention{{bob.ID, "alice", 7}}
	if !reflect.DeepEqual(notifier.mentions, want) {
		t.Errorf("mentions = %v, want %v", notifier.mentions, want)
	}
}

func TestMentionsAnonymousAuthorIgnored(t *testing.T) {
	notifier := &fakeNotifier{}
	m := NewMentions(nil, notifier, slog.Default())

	m.Notify(model.ChatMessage{ID: "m-1", StreamID: 7, Body: "@bob hi"})
	if len(notifier.mentions) != 0 {
		t.Errorf("mentions = %v, want none", notifier.mentions)
	}
}
