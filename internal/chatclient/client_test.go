package chatclient

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"streamhub/internal/chat"
	"streamhub/internal/model"
)

// fakeConn is an in-memory transport. Tests read client frames from writes
// and inject server frames through inbound.
type fakeConn struct {
	inbound chan []byte
	writes  chan []byte
	closed  chan struct{}
	once    sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound: make(chan []byte, 16),
		writes:  make(chan []byte, 16),
		closed:  make(chan struct{}),
	}
}

func (c *fakeConn) Read(ctx context.Context) ([]byte, error) {
	select {
	case data := <-c.inbound:
		return data, nil
	case <-c.closed:
		return nil, errors.New("connection closed")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *fakeConn) Write(ctx context.Context, data []byte) error {
	select {
	case <-c.closed:
		return errors.New("connection closed")
	case c.writes <- data:
		return nil
	}
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

// drop simulates the server side going away.
func (c *fakeConn) drop() {
	c.Close()
}

type fakeHistory struct {
	mu   sync.Mutex
	msgs []model.ChatMessage
	err  error
}

func (f *fakeHistory) ChatHistory(ctx context.Context, streamID int64, limit int) ([]model.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.msgs, f.err
}

type harness struct {
	registry *Registry
	conns    chan *fakeConn
}

func newHarness() *harness {
	h := &harness{conns: make(chan *fakeConn, 4)}
	h.registry = NewRegistry(func(token string) Dialer {
		return func(ctx context.Context) (Conn, error) {
			conn := newFakeConn()
			h.conns <- conn
			return conn, nil
		}
	}, slog.Default())
	return h
}

func (h *harness) nextConn(t *testing.T) *fakeConn {
	t.Helper()
	select {
	case conn := <-h.conns:
		return conn
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for dial")
		return nil
	}
}

// expectFrame reads the next client frame off the connection.
func expectFrame(t *testing.T, conn *fakeConn, event string) chat.Frame {
	t.Helper()
	select {
	case data := <-conn.writes:
		var frame chat.Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			t.Fatalf("unmarshal frame: %v", err)
		}
		if frame.Event != event {
			t.Fatalf("event = %q, want %q", frame.Event, event)
		}
		return frame
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for %s frame", event)
		return chat.Frame{}
	}
}

func inject(t *testing.T, conn *fakeConn, event string, payload any) {
	t.Helper()
	frame, err := chat.NewFrame(event, payload)
	if err != nil {
		t.Fatalf("new frame: %v", err)
	}
	data, err := json.Marshal(frame)
	if err != nil {
		t.Fatalf("marshal frame: %v", err)
	}
	conn.inbound <- data
}

// connect joins the client to its stream, acking the join like the server
// would, and returns the connection in use.
func connect(t *testing.T, h *harness, c *Client) *fakeConn {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- c.Connect(context.Background()) }()

	conn := h.nextConn(t)
	frame := expectFrame(t, conn, chat.EventJoinStream)

	var p chat.JoinPayload
	if err := json.Unmarshal(frame.Payload, &p); err != nil {
		t.Fatalf("unmarshal join payload: %v", err)
	}
	inject(t, conn, chat.EventJoinedStream, chat.JoinedPayload{StreamID: p.StreamID})

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("connect: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("connect did not return after join ack")
	}
	return conn
}

func collectMessages(c *Client) (func() []model.ChatMessage, Handler) {
	var mu sync.Mutex
	var got []model.ChatMessage
	handler := func(m model.ChatMessage) {
		mu.Lock()
		got = append(got, m)
		mu.Unlock()
	}
	return func() []model.ChatMessage {
		mu.Lock()
		defer mu.Unlock()
		return append([]model.ChatMessage(nil), got...)
	}, handler
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func msg(id string, streamID int64, body string, at time.Time) model.ChatMessage {
	return model.ChatMessage{ID: id, StreamID: streamID, Body: body, CreatedAt: at}
}

func TestConnectTransitionsToJoined(t *testing.T) {
	h := newHarness()
	c := New(1, "tok", h.registry, &fakeHistory{}, slog.Default())

	if c.State() != StateIdle {
		t.Fatalf("initial state = %s, want idle", c.State())
	}

	connect(t, h, c)

	if c.State() != StateJoined {
		t.Fatalf("state = %s, want joined", c.State())
	}

	// A second Connect while joined is a no-op: no new dial
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("repeat connect: %v", err)
	}
	select {
	case <-h.conns:
		t.Fatal("repeat connect dialed a second connection")
	default:
	}
}

func TestSendValidation(t *testing.T) {
	h := newHarness()
	c := New(1, "tok", h.registry, &fakeHistory{}, slog.Default())

	if err := c.Send("hello"); !errors.Is(err, ErrNotJoined) {
		t.Fatalf("send before join: got %v, want ErrNotJoined", err)
	}

	conn := connect(t, h, c)

	if err := c.Send("   "); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("blank send: got %v, want ErrEmptyMessage", err)
	}

	long := make([]rune, model.MaxMessageLen+1)
	for i := range long {
		long[i] = 'x'
	}
	if err := c.Send(string(long)); !errors.Is(err, ErrMessageTooLong) {
		t.Fatalf("long send: got %v, want ErrMessageTooLong", err)
	}

	// Nothing was written for the rejected sends
	select {
	case data := <-conn.writes:
		t.Fatalf("unexpected frame written: %s", data)
	case <-time.After(50 * time.Millisecond):
	}

	if err := c.Send("  hello world  "); err != nil {
		t.Fatalf("valid send: %v", err)
	}
	frame := expectFrame(t, conn, chat.EventSendMessage)
	var p chat.SendPayload
	if err := json.Unmarshal(frame.Payload, &p); err != nil {
		t.Fatalf("unmarshal send payload: %v", err)
	}
	if p.Text != "hello world" {
		t.Errorf("text = %q, want trimmed %q", p.Text, "hello world")
	}
}

func TestSendRequiresAuthentication(t *testing.T) {
	h := newHarness()
	c := New(1, "", h.registry, &fakeHistory{}, slog.Default())
	connect(t, h, c)

	if err := c.Send("hello"); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("anonymous send: got %v, want ErrNotAuthenticated", err)
	}
}

func TestDeliverExactlyOnce(t *testing.T) {
	h := newHarness()
	c := New(1, "tok", h.registry, &fakeHistory{}, slog.Default())
	got, handler := collectMessages(c)
	c.OnMessage(handler)

	conn := connect(t, h, c)
	if err := c.LoadHistory(context.Background(), 50); err != nil {
		t.Fatalf("load history: %v", err)
	}

	now := time.Now().UTC()
	inject(t, conn, chat.EventNewMessage, msg("m1", 1, "hello", now))
	inject(t, conn, chat.EventNewMessage, msg("m1", 1, "hello", now)) // replay
	inject(t, conn, chat.EventNewMessage, msg("m2", 99, "other stream", now))
	inject(t, conn, chat.EventNewMessage, msg("m3", 1, "bye", now.Add(time.Second)))

	waitFor(t, func() bool { return len(got()) >= 2 })
	time.Sleep(50 * time.Millisecond)

	msgs := got()
	if len(msgs) != 2 {
		t.Fatalf("delivered %d messages, want 2", len(msgs))
	}
	if msgs[0].ID != "m1" || msgs[1].ID != "m3" {
		t.Errorf("delivered %v", msgs)
	}
}

func TestHistoryMergesBufferedLiveMessages(t *testing.T) {
	h := newHarness()
	history := &fakeHistory{}
	c := New(1, "tok", h.registry, history, slog.Default())
	got, handler := collectMessages(c)
	c.OnMessage(handler)

	conn := connect(t, h, c)

	base := time.Now().UTC().Add(-time.Minute)
	// Live messages land while the history fetch is still outstanding
	inject(t, conn, chat.EventNewMessage, msg("live-1", 1, "live", base.Add(30*time.Second)))
	inject(t, conn, chat.EventNewMessage, msg("hist-2", 1, "overlap", base.Add(10*time.Second)))

	// Wait until both are buffered (nothing delivered yet)
	waitFor(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return len(c.pending) == 2
	})
	if len(got()) != 0 {
		t.Fatalf("messages delivered before history resolved: %v", got())
	}

	history.mu.Lock()
	history.msgs = []model.ChatMessage{
		msg("hist-1", 1, "first", base),
		msg("hist-2", 1, "overlap", base.Add(10*time.Second)),
	}
	history.mu.Unlock()

	if err := c.LoadHistory(context.Background(), 50); err != nil {
		t.Fatalf("load history: %v", err)
	}

	msgs := got()
	want := []string{"hist-1", "hist-2", "live-1"}
	if len(msgs) != len(want) {
		t.Fatalf("delivered %d messages, want %d: %v", len(msgs), len(want), msgs)
	}
	for i, id := range want {
		if msgs[i].ID != id {
			t.Errorf("msgs[%d].ID = %s, want %s", i, msgs[i].ID, id)
		}
	}
}

func TestSharedChannelRefcount(t *testing.T) {
	h := newHarness()
	c1 := New(1, "tok", h.registry, &fakeHistory{}, slog.Default())
	c2 := New(2, "tok", h.registry, &fakeHistory{}, slog.Default())

	conn := connect(t, h, c1)

	// Second client with the same token shares the connection
	done := make(chan error, 1)
	go func() { done <- c2.Connect(context.Background()) }()
	frame := expectFrame(t, conn, chat.EventJoinStream)
	var p chat.JoinPayload
	json.Unmarshal(frame.Payload, &p)
	if p.StreamID != 2 {
		t.Fatalf("join stream id = %d, want 2", p.StreamID)
	}
	inject(t, conn, chat.EventJoinedStream, chat.JoinedPayload{StreamID: 2})
	if err := <-done; err != nil {
		t.Fatalf("second connect: %v", err)
	}
	select {
	case <-h.conns:
		t.Fatal("second client dialed its own connection")
	default:
	}

	// First disconnect keeps the shared connection alive
	c1.Disconnect()
	select {
	case <-conn.closed:
		t.Fatal("connection closed while a consumer remains")
	case <-time.After(50 * time.Millisecond):
	}

	// Last disconnect closes it
	c2.Disconnect()
	select {
	case <-conn.closed:
	case <-time.After(time.Second):
		t.Fatal("connection not closed after last release")
	}
}

func TestDisconnectIdempotent(t *testing.T) {
	h := newHarness()
	c := New(1, "tok", h.registry, &fakeHistory{}, slog.Default())
	connect(t, h, c)

	c.Disconnect()
	if c.State() != StateDisconnected {
		t.Fatalf("state = %s, want disconnected", c.State())
	}
	// Second call must not panic or change anything
	c.Disconnect()
	if c.State() != StateDisconnected {
		t.Fatalf("state after second disconnect = %s", c.State())
	}
}

func TestConnectionLossEntersErrorState(t *testing.T) {
	h := newHarness()
	c := New(1, "tok", h.registry, &fakeHistory{}, slog.Default())
	conn := connect(t, h, c)

	conn.drop()

	waitFor(t, func() bool { return c.State() == StateError })

	select {
	case <-c.downs():
	case <-time.After(time.Second):
		t.Fatal("no down notice after connection loss")
	}
}

func TestSupervisorRejoinsAfterDrop(t *testing.T) {
	h := newHarness()
	c := New(1, "tok", h.registry, &fakeHistory{}, slog.Default())
	got, handler := collectMessages(c)
	c.OnMessage(handler)

	conn := connect(t, h, c)
	if err := c.LoadHistory(context.Background(), 50); err != nil {
		t.Fatalf("load history: %v", err)
	}

	now := time.Now().UTC()
	inject(t, conn, chat.EventNewMessage, msg("m1", 1, "before drop", now))
	waitFor(t, func() bool { return len(got()) == 1 })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sup := NewSupervisor(c, slog.Default())
	go sup.Run(ctx)

	conn.drop()

	// The supervisor's first attempt is immediate; ack the rejoin
	conn2 := h.nextConn(t)
	expectFrame(t, conn2, chat.EventJoinStream)
	inject(t, conn2, chat.EventJoinedStream, chat.JoinedPayload{StreamID: 1})

	waitFor(t, func() bool { return c.State() == StateJoined })

	// Replayed and fresh messages: the replay is suppressed
	inject(t, conn2, chat.EventNewMessage, msg("m1", 1, "before drop", now))
	inject(t, conn2, chat.EventNewMessage, msg("m2", 1, "after rejoin", now.Add(time.Second)))

	waitFor(t, func() bool { return len(got()) == 2 })
	msgs := got()
	if msgs[1].ID != "m2" {
		t.Errorf("second delivery = %s, want m2", msgs[1].ID)
	}
}
