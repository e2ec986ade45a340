package store

import (
	"database/sql"
	"fmt"

	"streamhub/internal/model"
)

type StreamStore struct {
	db *sql.DB
}

func NewStreamStore(db *sql.DB) *StreamStore {
	return &StreamStore{db: db}
}

func scanStream(scanner interface{ Scan(...any) error }) (*model.Stream, error) {
	var st model.Stream
	var live int
	if err := scanner.Scan(&st.ID, &st.Title, &st.Channel, &live, &st.CreatedAt); err != nil {
		return nil, err
	}
	st.Live = live != 0
	return &st, nil
}

const streamCols = `id, title, channel, live, created_at`

func (s *StreamStore) Create(title, channel string) (*model.Stream, error) {
	result, err := s.db.Exec(`INSERT INTO streams (title, channel) VALUES (?, ?)`, title, channel)
	if err != nil {
		return nil, fmt.Errorf("insert stream: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *StreamStore) GetByID(id int64) (*model.Stream, error) {
	row := s.db.QueryRow(`SELECT `+streamCols+` FROM streams WHERE id = ?`, id)
	st, err := scanStream(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get stream: %w", err)
	}
	return st, nil
}

func (s *StreamStore) List() ([]model.Stream, error) {
	rows, err := s.db.Query(`SELECT ` + streamCols + ` FROM streams ORDER BY live DESC, title ASC`)
	if err != nil {
		return nil, fmt.Errorf("list streams: %w", err)
	}
	defer rows.Close()

	var streams []model.Stream
	for rows.Next() {
		st, err := scanStream(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stream: %w", err)
		}
		streams = append(streams, *st)
	}
	return streams, rows.Err()
}

func (s *StreamStore) SetLive(id int64, live bool) error {
	var l int
	if live {
		l = 1
	}
	_, err := s.db.Exec(`UPDATE streams SET live = ? WHERE id = ?`, l, id)
	if err != nil {
		return fmt.Errorf("set stream live: %w", err)
	}
	return nil
}
