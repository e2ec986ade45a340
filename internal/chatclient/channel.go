// Package chatclient is the consumer side of the live chat channel: a shared
// per-session connection, per-stream clients with exactly-once message
// delivery, and a supervisor that rejoins after connection loss.
package chatclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"streamhub/internal/chat"

	ws "github.com/coder/websocket"
)

const outboundBufferSize = 64

// ErrChannelClosed is returned when emitting on a channel that has shut down.
var ErrChannelClosed = errors.New("chat channel closed")

// Conn is the minimal transport under a channel. Satisfied by the websocket
// adapter below and by in-memory fakes in tests.
type Conn interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Close() error
}

// Dialer opens a transport connection.
type Dialer func(ctx context.Context) (Conn, error)

type wsConn struct {
	conn *ws.Conn
}

func (c *wsConn) Read(ctx context.Context) ([]byte, error) {
	_, data, err := c.conn.Read(ctx)
	return data, err
}

func (c *wsConn) Write(ctx context.Context, data []byte) error {
	return c.conn.Write(ctx, ws.MessageText, data)
}

func (c *wsConn) Close() error {
	return c.conn.Close(ws.StatusNormalClosure, "")
}

// DialWebSocket returns a Dialer for the chat endpoint. The channel token, if
// any, rides along as a query parameter.
func DialWebSocket(endpoint, token string) Dialer {
	return func(ctx context.Context) (Conn, error) {
		url := endpoint
		if token != "" {
			url += "?token=" + token
		}
		conn, _, err := ws.Dial(ctx, url, nil)
		if err != nil {
			return nil, fmt.Errorf("dial chat channel: %w", err)
		}
		return &wsConn{conn: conn}, nil
	}
}

// Subscription receives frames and connection-loss notices from a channel.
type Subscription struct {
	onFrame func(chat.Frame)
	onDown  func(error)
}

// Channel is one live connection multiplexed across consumers. It is
// reference counted: consumers acquire it through a Registry and release it
// when done; the connection closes only when the count reaches zero.
type Channel struct {
	token string
	reg   *Registry

	mu   sync.Mutex
	refs int
	subs map[*Subscription]struct{}
	dead bool

	conn     Conn
	outbound chan []byte
	cancel   context.CancelFunc
	logger   *slog.Logger
}

func newChannel(token string, reg *Registry, conn Conn, logger *slog.Logger) *Channel {
	ctx, cancel := context.WithCancel(context.Background())
	ch := &Channel{
		token:    token,
		reg:      reg,
		subs:     make(map[*Subscription]struct{}),
		conn:     conn,
		outbound: make(chan []byte, outboundBufferSize),
		cancel:   cancel,
		logger:   logger,
	}
	go ch.readLoop(ctx)
	go ch.writeLoop(ctx)
	return ch
}

// Subscribe registers callbacks for frames and connection loss.
func (ch *Channel) Subscribe(onFrame func(chat.Frame), onDown func(error)) *Subscription {
	sub := &Subscription{onFrame: onFrame, onDown: onDown}
	ch.mu.Lock()
	ch.subs[sub] = struct{}{}
	ch.mu.Unlock()
	return sub
}

// Unsubscribe detaches a subscription.
func (ch *Channel) Unsubscribe(sub *Subscription) {
	ch.mu.Lock()
	delete(ch.subs, sub)
	ch.mu.Unlock()
}

// Emit queues a frame for sending. It never waits for the server; a full
// outbound buffer or a dead channel is reported as an error.
func (ch *Channel) Emit(event string, payload any) error {
	ch.mu.Lock()
	dead := ch.dead
	ch.mu.Unlock()
	if dead {
		return ErrChannelClosed
	}

	frame, err := chat.NewFrame(event, payload)
	if err != nil {
		return err
	}
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}

	select {
	case ch.outbound <- data:
		return nil
	default:
		return fmt.Errorf("outbound buffer full")
	}
}

func (ch *Channel) readLoop(ctx context.Context) {
	for {
		data, err := ch.conn.Read(ctx)
		if err != nil {
			ch.markDown(err)
			return
		}

		var frame chat.Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			ch.logger.Warn("dropping malformed frame", "error", err)
			continue
		}

		ch.mu.Lock()
		subs := make([]*Subscription, 0, len(ch.subs))
		for sub := range ch.subs {
			subs = append(subs, sub)
		}
		ch.mu.Unlock()

		for _, sub := range subs {
			sub.onFrame(frame)
		}
	}
}

func (ch *Channel) writeLoop(ctx context.Context) {
	for {
		select {
		case data := <-ch.outbound:
			if err := ch.conn.Write(ctx, data); err != nil {
				ch.markDown(err)
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// markDown flags the channel dead and notifies subscribers exactly once.
func (ch *Channel) markDown(err error) {
	ch.mu.Lock()
	if ch.dead {
		ch.mu.Unlock()
		return
	}
	ch.dead = true
	subs := make([]*Subscription, 0, len(ch.subs))
	for sub := range ch.subs {
		subs = append(subs, sub)
	}
	ch.mu.Unlock()

	ch.cancel()
	ch.conn.Close()

	for _, sub := range subs {
		if sub.onDown != nil {
			sub.onDown(err)
		}
	}
}

// release decrements the reference count, closing the connection and removing
// the channel from its registry at zero.
func (ch *Channel) release() {
	ch.mu.Lock()
	ch.refs--
	done := ch.refs <= 0
	ch.mu.Unlock()

	if done {
		ch.cancel()
		ch.conn.Close()
		ch.reg.remove(ch)
	}
}

// Registry is the shared accessor for channels, keyed by auth token. All
// consumers with the same token share one connection.
type Registry struct {
	mu       sync.Mutex
	dial     func(token string) Dialer
	channels map[string]*Channel
	logger   *slog.Logger
}

// NewRegistry creates a Registry. dial produces a Dialer for a given token.
func NewRegistry(dial func(token string) Dialer, logger *slog.Logger) *Registry {
	return &Registry{
		dial:     dial,
		channels: make(map[string]*Channel),
		logger:   logger,
	}
}

// Acquire returns the live channel for a token, dialing one if none exists or
// the previous one died. The caller must balance with Release.
func (r *Registry) Acquire(ctx context.Context, token string) (*Channel, error) {
	r.mu.Lock()
	ch, ok := r.channels[token]
	if ok {
		ch.mu.Lock()
		if !ch.dead {
			ch.refs++
			ch.mu.Unlock()
			r.mu.Unlock()
			return ch, nil
		}
		ch.mu.Unlock()
		delete(r.channels, token)
	}
	r.mu.Unlock()

	conn, err := r.dial(token)(ctx)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// Another consumer may have dialed while we were; prefer theirs.
	if existing, ok := r.channels[token]; ok {
		existing.mu.Lock()
		if !existing.dead {
			existing.refs++
			existing.mu.Unlock()
			conn.Close()
			return existing, nil
		}
		existing.mu.Unlock()
	}

	ch = newChannel(token, r, conn, r.logger)
	ch.refs = 1
	r.channels[token] = ch
	return ch, nil
}

// Release balances an Acquire.
func (r *Registry) Release(ch *Channel) {
	ch.release()
}

func (r *Registry) remove(ch *Channel) {
	r.mu.Lock()
	if r.channels[ch.token] == ch {
		delete(r.channels, ch.token)
	}
	r.mu.Unlock()
}
