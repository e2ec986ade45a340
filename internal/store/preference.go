package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Preference keys recognized by the profile preference surface.
const (
	PrefLanguage = "language"
	PrefCurrency = "currency"
)

var localeKeys = []string{PrefLanguage, PrefCurrency}

// PreferenceStore holds per-user key/value preferences. This is the
// authoritative profile copy that wins over any device-local cache once the
// user is authenticated.
type PreferenceStore struct {
	db *sql.DB
}

func NewPreferenceStore(db *sql.DB) *PreferenceStore {
	return &PreferenceStore{db: db}
}

func (s *PreferenceStore) Get(userID int64, key string) (string, error) {
	var value string
	err := s.db.QueryRow(
		`SELECT value FROM preferences WHERE user_id = ? AND key = ?`, userID, key,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("preference %q not found", key)
	}
	if err != nil {
		return "", fmt.Errorf("get preference %q: %w", key, err)
	}
	return value, nil
}

func (s *PreferenceStore) Set(userID int64, key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO preferences (user_id, key, value, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(user_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		userID, key, value, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("set preference %q: %w", key, err)
	}
	return nil
}

// GetLocale returns the language/currency pair for a user. Missing keys are
// simply absent from the map.
func (s *PreferenceStore) GetLocale(userID int64) (map[string]string, error) {
	prefs := make(map[string]string)
	for _, key := range localeKeys {
		var value string
		err := s.db.QueryRow(
			`SELECT value FROM preferences WHERE user_id = ? AND key = ?`, userID, key,
		).Scan(&value)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get locale preference %q: %w", key, err)
		}
		prefs[key] = value
	}
	return prefs, nil
}
