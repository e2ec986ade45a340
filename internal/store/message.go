package store

import (
	"database/sql"
	"fmt"
	"time"

	"streamhub/internal/model"
)

type MessageStore struct {
	db *sql.DB
}

func NewMessageStore(db *sql.DB) *MessageStore {
	return &MessageStore{db: db}
}

// Create persists a message. Inserting an identifier that already exists is a
// no-op, so replayed sends cannot produce duplicate rows.
func (s *MessageStore) Create(msg *model.ChatMessage) error {
	var userID *int64
	var username, displayName, avatarURL string
	if msg.Author != nil {
		userID = &msg.Author.UserID
		username = msg.Author.Username
		displayName = msg.Author.DisplayName
		avatarURL = msg.Author.AvatarURL
	}

	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO messages (id, stream_id, user_id, username, display_name, avatar_url, body, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.StreamID, userID, username, displayName, avatarURL, msg.Body, msg.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// ListRecent returns up to limit of the most recent messages for a stream, in
// chronological order.
func (s *MessageStore) ListRecent(streamID int64, limit int) ([]model.ChatMessage, error) {
	rows, err := s.db.Query(
		`SELECT id, stream_id, user_id, username, display_name, avatar_url, body, created_at
		 FROM (SELECT * FROM messages WHERE stream_id = ? ORDER BY created_at DESC, id DESC LIMIT ?)
		 ORDER BY created_at ASC, id ASC`,
		streamID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list recent messages: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

// ListBefore returns messages for a stream created before the cutoff, oldest
// first. Used by the archiver.
func (s *MessageStore) ListBefore(streamID int64, before time.Time, limit int) ([]model.ChatMessage, error) {
	rows, err := s.db.Query(
		`SELECT id, stream_id, user_id, username, display_name, avatar_url, body, created_at
		 FROM messages WHERE stream_id = ? AND created_at < ?
		 ORDER BY created_at ASC, id ASC LIMIT ?`,
		streamID, before.UTC(), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list messages before: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

// DeleteBefore removes messages for a stream created before the cutoff.
func (s *MessageStore) DeleteBefore(streamID int64, before time.Time) (int64, error) {
	result, err := s.db.Exec(
		`DELETE FROM messages WHERE stream_id = ? AND created_at < ?`,
		streamID, before.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("delete messages before: %w", err)
	}
	n, _ := result.RowsAffected()
	return n, nil
}

// StreamIDsWithMessagesBefore returns distinct stream IDs holding messages
// older than the cutoff.
func (s *MessageStore) StreamIDsWithMessagesBefore(before time.Time) ([]int64, error) {
	rows, err := s.db.Query(
		`SELECT DISTINCT stream_id FROM messages WHERE created_at < ?`, before.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("list stream ids with old messages: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan stream id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanMessages(rows *sql.Rows) ([]model.ChatMessage, error) {
	var msgs []model.ChatMessage
	for rows.Next() {
		var m model.ChatMessage
		var userID *int64
		var username, displayName, avatarURL string
		if err := rows.Scan(&m.ID, &m.StreamID, &userID, &username, &displayName, &avatarURL, &m.Body, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if userID != nil {
			m.Author = &model.Author{
				UserID:      *userID,
				Username:    username,
				DisplayName: displayName,
				AvatarURL:   avatarURL,
			}
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
