package archive

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"streamhub/internal/database"
	"streamhub/internal/model"
	"streamhub/internal/store"
)

type fakeS3 struct {
	puts []string // object keys in upload order
	err  error
}

func (f *fakeS3) PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.puts = append(f.puts, *input.Key)
	return &s3.PutObjectOutput{}, nil
}

func setupManager(t *testing.T, client s3Client) (*Manager, *sql.DB, *store.MessageStore, *store.ArchiveStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	messages := store.NewMessageStore(db)
	runs := store.NewArchiveStore(db)
	m := NewManager(Config{
		S3:        S3Config{Bucket: "chat-archive", AccessKey: "k", SecretKey: "s"},
		Retention: 24 * time.Hour,
	}, messages, runs, slog.Default(), nil)
	m.client = client
	return m, db, messages, runs
}

func seedStream(t *testing.T, db *sql.DB, title string) *model.Stream {
	t.Helper()
	stream, err := store.NewStreamStore(db).Create(title, title)
	if err != nil {
		t.Fatalf("create stream: %v", err)
	}
	return stream
}

func seedMessage(t *testing.T, s *store.MessageStore, id string, streamID int64, at time.Time) {
	t.Helper()
	err := s.Create(&model.ChatMessage{ID: id, StreamID: streamID, Body: "b", CreatedAt: at})
	if err != nil {
		t.Fatalf("seed message: %v", err)
	}
}

func TestRunNowArchivesAndDeletes(t *testing.T) {
	client := &fakeS3{}
	m, db, messages, runs := setupManager(t, client)
	stream := seedStream(t, db, "launch day")

	old := time.Now().UTC().Add(-48 * time.Hour)
	seedMessage(t, messages, "old-1", stream.ID, old)
	seedMessage(t, messages, "old-2", stream.ID, old.Add(time.Minute))
	seedMessage(t, messages, "fresh", stream.ID, time.Now().UTC())

	n, err := m.RunNow(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if n != 2 {
		t.Fatalf("archived %d messages, want 2", n)
	}
	if len(client.puts) != 1 {
		t.Fatalf("uploads = %d, want 1", len(client.puts))
	}

	// Fresh message survives
	remaining, err := messages.ListRecent(stream.ID, 10)
	if err != nil {
		t.Fatalf("list recent: %v", err)
	}
	if len(remaining) != 1 || remaining[0].ID != "fresh" {
		t.Fatalf("remaining = %+v", remaining)
	}

	recorded, err := runs.ListByStream(stream.ID, 10)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(recorded) != 1 || recorded[0].Status != RunCompleted || recorded[0].MessageCount != 2 {
		t.Fatalf("run record = %+v", recorded)
	}

	if m.Status().State != StateIdle {
		t.Errorf("state = %q, want idle", m.Status().State)
	}
}

func TestRunNowUploadFailureKeepsMessages(t *testing.T) {
	client := &fakeS3{err: errors.New("access denied")}
	m, db, messages, runs := setupManager(t, client)
	stream := seedStream(t, db, "launch day")

	old := time.Now().UTC().Add(-48 * time.Hour)
	seedMessage(t, messages, "old-1", stream.ID, old)

	if _, err := m.RunNow(context.Background()); err == nil {
		t.Fatal("expected run to report the upload failure")
	}

	// Nothing is deleted without a confirmed upload
	remaining, err := messages.ListRecent(stream.ID, 10)
	if err != nil {
		t.Fatalf("list recent: %v", err)
	}
	if len(remaining) != 1 {
		t.Fatalf("remaining = %d, want 1", len(remaining))
	}

	recorded, _ := runs.ListByStream(stream.ID, 10)
	if len(recorded) != 1 || recorded[0].Status != RunFailed {
		t.Fatalf("run record = %+v", recorded)
	}

	if m.Status().State != StateError {
		t.Errorf("state = %q, want error", m.Status().State)
	}
}

func TestRunNowFailingStreamDoesNotAbortOthers(t *testing.T) {
	client := &fakeS3{}
	m, db, messages, _ := setupManager(t, client)
	a := seedStream(t, db, "stream a")
	b := seedStream(t, db, "stream b")

	old := time.Now().UTC().Add(-48 * time.Hour)
	seedMessage(t, messages, "a-1", a.ID, old)
	seedMessage(t, messages, "b-1", b.ID, old)

	// First upload fails, second succeeds
	calls := 0
	m.client = putFunc(func(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("transient")
		}
		return &s3.PutObjectOutput{}, nil
	})

	n, err := m.RunNow(context.Background())
	if err == nil {
		t.Fatal("expected the run to surface the failure")
	}
	if n != 1 {
		t.Fatalf("archived %d messages, want 1 from the surviving stream", n)
	}
	if calls != 2 {
		t.Fatalf("uploads attempted = %d, want 2", calls)
	}
}

type putFunc func(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)

func (f putFunc) PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	return f(ctx, input, opts...)
}

func TestManagerDisabledWithoutCredentials(t *testing.T) {
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	m := NewManager(Config{}, store.NewMessageStore(db), store.NewArchiveStore(db), slog.Default(), nil)
	if m.Status().State != StateDisabled {
		t.Fatalf("state = %q, want disabled", m.Status().State)
	}
	if _, err := m.RunNow(context.Background()); err == nil {
		t.Fatal("expected RunNow to refuse without configuration")
	}
}
