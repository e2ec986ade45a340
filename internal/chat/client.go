package chat

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"streamhub/internal/auth"
	"streamhub/internal/model"
	"streamhub/internal/store"

	ws "github.com/coder/websocket"
	"github.com/google/uuid"
)

const (
	sendBufferSize = 32
	pingInterval   = 30 * time.Second
)

// Client represents a single chat WebSocket connection. Anonymous connections
// (nil claims) may join rooms and receive messages but cannot send.
type Client struct {
	hub      *Hub
	conn     *ws.Conn
	send     chan []byte
	claims   *auth.ChannelClaims
	messages *store.MessageStore
	mentions *Mentions // nil when push is not configured
	logger   *slog.Logger
}

// NewClient creates a Client tied to the given hub and connection.
func NewClient(hub *Hub, conn *ws.Conn, claims *auth.ChannelClaims, messages *store.MessageStore, mentions *Mentions, logger *slog.Logger) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, sendBufferSize),
		claims:   claims,
		messages: messages,
		mentions: mentions,
		logger:   logger,
	}
}

// Run registers the client, starts the write pump, and runs the read pump.
// It blocks until the connection is closed, then unregisters.
func (c *Client) Run(ctx context.Context) {
	c.hub.Register(c)
	defer c.hub.Unregister(c)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go c.writePump(ctx)
	c.readPump(ctx)
}

// readPump reads inbound frames and dispatches them. It returns on error
// (connection close), which triggers cleanup.
func (c *Client) readPump(ctx context.Context) {
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			return
		}

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.sendError("malformed frame")
			continue
		}
		c.handleFrame(frame)
	}
}

// writePump drains the send channel and writes frames to the WebSocket.
// It also sends periodic pings to detect stale connections.
func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				// Hub closed the channel; connection is done
				return
			}
			if err := c.conn.Write(ctx, ws.MessageText, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.Ping(ctx); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (c *Client) handleFrame(frame Frame) {
	switch frame.Event {
	case EventJoinStream:
		var p JoinPayload
		if err := json.Unmarshal(frame.Payload, &p); err != nil {
			c.sendError("malformed join payload")
			return
		}
		c.hub.Join(c, p.StreamID)
		c.enqueue(EventJoinedStream, JoinedPayload{StreamID: p.StreamID})

	case EventLeaveStream:
		var p JoinPayload
		if err := json.Unmarshal(frame.Payload, &p); err != nil {
			c.sendError("malformed leave payload")
			return
		}
		c.hub.Leave(c, p.StreamID)

	case EventSendMessage:
		var p SendPayload
		if err := json.Unmarshal(frame.Payload, &p); err != nil {
			c.sendError("malformed send payload")
			return
		}
		c.handleSend(p)

	default:
		c.sendError("unknown event " + frame.Event)
	}
}

func (c *Client) handleSend(p SendPayload) {
	if c.claims == nil {
		c.sendError("authentication required to send messages")
		return
	}

	text := strings.TrimSpace(p.Text)
	if text == "" {
		c.sendError("message is empty")
		return
	}
	if len([]rune(text)) > model.MaxMessageLen {
		c.sendError("message is too long")
		return
	}

	id, err := uuid.NewV7()
	if err != nil {
		c.logger.Error("generate message id", "error", err)
		c.sendError("could not send message")
		return
	}

	msg := model.ChatMessage{
		ID:       id.String(),
		StreamID: p.StreamID,
		Author: &model.Author{
			UserID:      c.claims.UserID,
			Username:    c.claims.Username,
			DisplayName: c.claims.DisplayName,
			AvatarURL:   c.claims.AvatarURL,
		},
		Body:      text,
		CreatedAt: time.Now().UTC(),
	}

	if err := c.messages.Create(&msg); err != nil {
		c.logger.Error("persist message", "error", err, "stream_id", p.StreamID)
		c.sendError("could not send message")
		return
	}

	frame, err := NewFrame(EventNewMessage, msg)
	if err != nil {
		c.logger.Error("marshal new-message", "error", err)
		return
	}
	c.hub.Broadcast(p.StreamID, frame)

	if c.mentions != nil {
		go c.mentions.Notify(msg)
	}
}

// enqueue queues a frame for this client only.
func (c *Client) enqueue(event string, payload any) {
	frame, err := NewFrame(event, payload)
	if err != nil {
		c.logger.Error("marshal frame", "event", event, "error", err)
		return
	}
	data, err := json.Marshal(frame)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func (c *Client) sendError(message string) {
	c.enqueue(EventError, ErrorPayload{Message: message})
}
