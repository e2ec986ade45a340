package model

import "time"

type Stream struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Channel   string    `json:"channel"`
	Live      bool      `json:"live"`
	CreatedAt time.Time `json:"created_at"`
}

// MaxMessageLen is the longest chat message accepted, in characters. Enforced
// client-side before dispatch and again by the chat server.
const MaxMessageLen = 500

// Author identifies who wrote a chat message. Absent for system messages.
type Author struct {
	UserID      int64  `json:"user_id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
}

// ChatMessage is a single chat message. The ID is assigned server-side and is
// the identity used for de-duplication on the client.
type ChatMessage struct {
	ID        string    `json:"id"`
	StreamID  int64     `json:"stream_id"`
	Author    *Author   `json:"author,omitempty"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}
