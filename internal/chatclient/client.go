package chatclient

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"streamhub/internal/chat"
	"streamhub/internal/model"
)

// State is the client's connection state. Error is non-terminal: a later
// Connect (or the supervisor) may retry.
type State string

const (
	StateIdle         State = "idle"
	StateConnecting   State = "connecting"
	StateJoined       State = "joined"
	StateError        State = "error"
	StateDisconnected State = "disconnected"
)

var (
	// ErrEmptyMessage rejects messages that are empty after trimming.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrMessageTooLong rejects messages over the length cap.
	ErrMessageTooLong = errors.New("message exceeds maximum length")
	// ErrNotJoined rejects sends before the join is acknowledged.
	ErrNotJoined = errors.New("not joined to stream")
	// ErrNotAuthenticated rejects sends on a tokenless connection.
	ErrNotAuthenticated = errors.New("authentication required to send")
)

// Handler receives each distinct message exactly once, in arrival order.
type Handler func(model.ChatMessage)

// HistoryFetcher loads prior messages over request/response, not the live
// channel. Satisfied by *api.Client.
type HistoryFetcher interface {
	ChatHistory(ctx context.Context, streamID int64, limit int) ([]model.ChatMessage, error)
}

// Client is a per-stream chat consumer sharing the session channel with other
// consumers. Messages are de-duplicated by identifier; live messages arriving
// before the history fetch resolves are buffered and merged by timestamp so
// the first delivery is chronological.
type Client struct {
	streamID int64
	token    string
	registry *Registry
	history  HistoryFetcher
	logger   *slog.Logger

	mu            sync.Mutex
	state         State
	channel       *Channel
	sub           *Subscription
	handlers      []Handler
	seen          map[string]struct{}
	historyLoaded bool
	pending       []model.ChatMessage
	joined        chan struct{}

	downCh chan error
}

// New creates a client for one stream. An empty token connects anonymously;
// the connection works but sends are rejected locally.
func New(streamID int64, token string, registry *Registry, history HistoryFetcher, logger *slog.Logger) *Client {
	return &Client{
		streamID: streamID,
		token:    token,
		registry: registry,
		history:  history,
		logger:   logger,
		state:    StateIdle,
		seen:     make(map[string]struct{}),
		downCh:   make(chan error, 1),
	}
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// OnMessage registers a handler. No handler is ever invoked twice for the
// same message identifier within the client's lifetime.
func (c *Client) OnMessage(h Handler) {
	c.mu.Lock()
	c.handlers = append(c.handlers, h)
	c.mu.Unlock()
}

// Connect acquires the shared channel, joins the stream's room, and returns
// once the server acknowledges the join.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateJoined {
		c.mu.Unlock()
		return nil
	}
	c.state = StateConnecting
	c.mu.Unlock()

	return c.join(ctx)
}

// Reconnect tears down the old channel binding and joins again. Used by the
// supervisor after connection loss; de-duplication state survives so replayed
// messages are not delivered twice.
func (c *Client) Reconnect(ctx context.Context) error {
	c.mu.Lock()
	old, oldSub := c.channel, c.sub
	c.channel, c.sub = nil, nil
	c.state = StateConnecting
	c.mu.Unlock()

	if old != nil {
		old.Unsubscribe(oldSub)
		c.registry.Release(old)
	}
	return c.join(ctx)
}

func (c *Client) join(ctx context.Context) error {
	joined := make(chan struct{})
	c.mu.Lock()
	c.joined = joined
	c.mu.Unlock()

	ch, err := c.registry.Acquire(ctx, c.token)
	if err != nil {
		c.setState(StateError)
		return err
	}
	sub := ch.Subscribe(c.onFrame, c.onDown)

	c.mu.Lock()
	c.channel, c.sub = ch, sub
	c.mu.Unlock()

	if err := ch.Emit(chat.EventJoinStream, chat.JoinPayload{StreamID: c.streamID}); err != nil {
		ch.Unsubscribe(sub)
		c.registry.Release(ch)
		c.mu.Lock()
		c.channel, c.sub = nil, nil
		c.state = StateError
		c.mu.Unlock()
		return err
	}

	select {
	case <-joined:
		c.setState(StateJoined)
		return nil
	case <-ctx.Done():
		c.setState(StateError)
		return ctx.Err()
	}
}

// LoadHistory fetches up to limit prior messages and merges them into the
// ordered set, skipping identifiers already known. On the first load, live
// messages buffered during the fetch are merge-sorted in by timestamp before
// anything reaches the handlers.
func (c *Client) LoadHistory(ctx context.Context, limit int) error {
	msgs, err := c.history.ChatHistory(ctx, c.streamID, limit)
	if err != nil {
		return err
	}

	c.mu.Lock()
	var fresh []model.ChatMessage
	for _, m := range msgs {
		if _, dup := c.seen[m.ID]; dup {
			continue
		}
		c.seen[m.ID] = struct{}{}
		fresh = append(fresh, m)
	}

	if !c.historyLoaded {
		fresh = append(fresh, c.pending...)
		sort.SliceStable(fresh, func(i, j int) bool {
			return fresh[i].CreatedAt.Before(fresh[j].CreatedAt)
		})
		c.pending = nil
		c.historyLoaded = true
	}

	handlers := append([]Handler(nil), c.handlers...)
	c.mu.Unlock()

	for _, m := range fresh {
		for _, h := range handlers {
			h(m)
		}
	}
	return nil
}

// Send validates locally and dispatches asynchronously. It never waits for
// the server echo; the sent message arrives back through OnMessage. Invalid
// sends are rejected before any network activity.
func (c *Client) Send(text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ErrEmptyMessage
	}
	if len([]rune(trimmed)) > model.MaxMessageLen {
		return ErrMessageTooLong
	}

	c.mu.Lock()
	if c.state != StateJoined {
		c.mu.Unlock()
		return ErrNotJoined
	}
	if c.token == "" {
		c.mu.Unlock()
		return ErrNotAuthenticated
	}
	ch := c.channel
	c.mu.Unlock()

	return ch.Emit(chat.EventSendMessage, chat.SendPayload{StreamID: c.streamID, Text: trimmed})
}

// Disconnect leaves the room, detaches all handlers, and releases the shared
// channel. Idempotent.
func (c *Client) Disconnect() {
	c.mu.Lock()
	if c.state == StateDisconnected {
		c.mu.Unlock()
		return
	}
	ch, sub := c.channel, c.sub
	c.channel, c.sub = nil, nil
	c.handlers = nil
	c.state = StateDisconnected
	c.mu.Unlock()

	if ch != nil {
		if err := ch.Emit(chat.EventLeaveStream, chat.JoinPayload{StreamID: c.streamID}); err != nil {
			c.logger.Debug("leave notification not sent", "error", err)
		}
		ch.Unsubscribe(sub)
		c.registry.Release(ch)
	}
}

// downs exposes connection-loss notices to the supervisor.
func (c *Client) downs() <-chan error {
	return c.downCh
}

func (c *Client) onFrame(frame chat.Frame) {
	switch frame.Event {
	case chat.EventJoinedStream:
		var p chat.JoinedPayload
		if err := json.Unmarshal(frame.Payload, &p); err != nil || p.StreamID != c.streamID {
			return
		}
		c.mu.Lock()
		joined := c.joined
		c.joined = nil
		c.mu.Unlock()
		if joined != nil {
			close(joined)
		}

	case chat.EventNewMessage:
		var msg model.ChatMessage
		if err := json.Unmarshal(frame.Payload, &msg); err != nil {
			c.logger.Warn("dropping malformed message", "error", err)
			return
		}
		if msg.StreamID != c.streamID {
			return
		}
		c.deliver(msg)

	case chat.EventError:
		var p chat.ErrorPayload
		if err := json.Unmarshal(frame.Payload, &p); err == nil {
			c.logger.Warn("chat channel error", "message", p.Message)
		}
	}
}

// deliver hands a message to handlers at most once per identifier, buffering
// while the history fetch is outstanding.
func (c *Client) deliver(msg model.ChatMessage) {
	c.mu.Lock()
	if _, dup := c.seen[msg.ID]; dup {
		c.mu.Unlock()
		return
	}
	c.seen[msg.ID] = struct{}{}

	if !c.historyLoaded {
		c.pending = append(c.pending, msg)
		c.mu.Unlock()
		return
	}

	handlers := append([]Handler(nil), c.handlers...)
	c.mu.Unlock()

	for _, h := range handlers {
		h(msg)
	}
}

func (c *Client) onDown(err error) {
	c.mu.Lock()
	if c.state == StateDisconnected {
		c.mu.Unlock()
		return
	}
	c.state = StateError
	c.mu.Unlock()

	select {
	case c.downCh <- err:
	default:
	}
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}
