package database

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/username/fundfolio/backend/src/utils"
)

// MetaStore holds small JSON documents keyed by name, outside the main
// state snapshot. The model portfolio definition lives here.
type MetaStore struct {
	db *sql.DB
}

func NewMetaStore(db *sql.DB) *MetaStore {
	return &MetaStore{db: db}
}

// GetJSON decodes the stored document into out. A missing key leaves out
// untouched and returns false.
func (m *MetaStore) GetJSON(key string, out any) (bool, error) {
	var value string
	err := m.db.QueryRow(`SELECT value FROM meta WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading meta %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(value), out); err != nil {
		return false, fmt.Errorf("decoding meta %s: %w", key, err)
	}
	return true, nil
}

// SetJSON encodes and upserts the document under key.
func (m *MetaStore) SetJSON(key string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding meta %s: %w", key, err)
	}
	_, err = m.db.Exec(
		`INSERT INTO meta (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, string(payload), utils.NowISO(),
	)
	if err != nil {
		return fmt.Errorf("persisting meta %s: %w", key, err)
	}
	return nil
}
