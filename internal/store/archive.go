package store

import (
	"database/sql"
	"fmt"
	"time"

	"streamhub/internal/model"
)

type ArchiveStore struct {
	db *sql.DB
}

func NewArchiveStore(db *sql.DB) *ArchiveStore {
	return &ArchiveStore{db: db}
}

func (s *ArchiveStore) Record(streamID int64, objectKey string, messageCount int, status, errMsg string) (*model.ArchiveRun, error) {
	now := time.Now().UTC()
	result, err := s.db.Exec(
		`INSERT INTO archive_runs (stream_id, object_key, message_count, status, error, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		streamID, objectKey, messageCount, status, errMsg, now,
	)
	if err != nil {
		return nil, fmt.Errorf("record archive run: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *ArchiveStore) GetByID(id int64) (*model.ArchiveRun, error) {
	var run model.ArchiveRun
	err := s.db.QueryRow(
		`SELECT id, stream_id, object_key, message_count, status, error, started_at, completed_at
		 FROM archive_runs WHERE id = ?`, id,
	).Scan(&run.ID, &run.StreamID, &run.ObjectKey, &run.MessageCount, &run.Status, &run.Error, &run.StartedAt, &run.CompletedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get archive run: %w", err)
	}
	return &run, nil
}

func (s *ArchiveStore) ListByStream(streamID int64, limit int) ([]model.ArchiveRun, error) {
	rows, err := s.db.Query(
		`SELECT id, stream_id, object_key, message_count, status, error, started_at, completed_at
		 FROM archive_runs WHERE stream_id = ? ORDER BY started_at DESC LIMIT ?`,
		streamID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list archive runs: %w", err)
	}
	defer rows.Close()

	var runs []model.ArchiveRun
	for rows.Next() {
		var run model.ArchiveRun
		if err := rows.Scan(&run.ID, &run.StreamID, &run.ObjectKey, &run.MessageCount, &run.Status, &run.Error, &run.StartedAt, &run.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan archive run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
