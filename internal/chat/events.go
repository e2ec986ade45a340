package chat

import (
	"encoding/json"
	"fmt"
)

// Event names on the chat channel.
const (
	// inbound
	EventJoinStream  = "join-stream"
	EventLeaveStream = "leave-stream"
	EventSendMessage = "send-message"

	// outbound
	EventJoinedStream = "joined-stream"
	EventNewMessage   = "new-message"
	EventError        = "error"
)

// Frame is the JSON envelope carried on the channel in both directions.
type Frame struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewFrame marshals payload into a Frame.
func NewFrame(event string, payload any) (Frame, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, fmt.Errorf("marshal %s payload: %w", event, err)
	}
	return Frame{Event: event, Payload: data}, nil
}

type JoinPayload struct {
	StreamID int64 `json:"stream_id"`
}

type JoinedPayload struct {
	StreamID int64 `json:"stream_id"`
}

type SendPayload struct {
	StreamID int64  `json:"stream_id"`
	Text     string `json:"text"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
