package database

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/username/fundfolio/backend/src/logger"
	"github.com/username/fundfolio/backend/src/models"
	"github.com/username/fundfolio/backend/src/utils"
)

// StateStore owns the single state document. All readers receive a private,
// already-normalized deep copy built under the read lock, so a concurrent
// Replace can never hand the analytics engine a torn snapshot — the engine
// relies on this guarantee and does no locking of its own.
type StateStore struct {
	mu sync.RWMutex
	db *sql.DB

	// generation bumps on every Replace; cache layers key on it to drop
	// memoized metrics/series built from an older state.
	generation uint64
}

func NewStateStore(db *sql.DB) (*StateStore, error) {
	store := &StateStore{db: db}
	if err := store.seedIfEmpty(); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *StateStore) seedIfEmpty() error {
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM app_state`).Scan(&count); err != nil {
		return fmt.Errorf("counting state rows: %w", err)
	}
	if count > 0 {
		return nil
	}
	payload, err := json.Marshal(models.DefaultState())
	if err != nil {
		return fmt.Errorf("marshalling default state: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO app_state (id, payload, updated_at) VALUES (1, ?, ?)`,
		string(payload), utils.NowISO(),
	)
	if err != nil {
		return fmt.Errorf("seeding default state: %w", err)
	}
	logger.L.Info("Seeded empty database with default state")
	return nil
}

// Get returns a normalized private snapshot of the current state.
func (s *StateStore) Get() (*models.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var payload string
	err := s.db.QueryRow(`SELECT payload FROM app_state WHERE id = 1`).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return models.DefaultState(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading state: %w", err)
	}

	state := &models.State{}
	if err := json.Unmarshal([]byte(payload), state); err != nil {
		// A corrupt document is a precondition failure of the writer, not
		// of the reader; surface it instead of silently resetting.
		return nil, fmt.Errorf("decoding stored state: %w", err)
	}
	return models.Normalize(state), nil
}

// Generation identifies the current state version for cache keys.
func (s *StateStore) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// Replace normalizes and persists a full state document, invalidating any
// generation-keyed caches.
func (s *StateStore) Replace(raw []byte) (*models.State, error) {
	state := &models.State{}
	if err := json.Unmarshal(raw, state); err != nil {
		return nil, fmt.Errorf("decoding state payload: %w", err)
	}
	normalized := models.Normalize(state)

	payload, err := json.Marshal(normalized)
	if err != nil {
		return nil, fmt.Errorf("encoding normalized state: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.Exec(
		`INSERT INTO app_state (id, payload, updated_at) VALUES (1, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		string(payload), utils.NowISO(),
	)
	if err != nil {
		return nil, fmt.Errorf("persisting state: %w", err)
	}
	s.generation++
	logger.L.Info("State replaced",
		"operations", len(normalized.Operations),
		"assets", len(normalized.Assets),
		"generation", s.generation)
	return normalized, nil
}

// UpdateAlerts persists only the alerts slice of the current state. Used by
// the alert workflow to record lastTriggerAt without racing a full replace.
func (s *StateStore) UpdateAlerts(alerts []models.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var payload string
	if err := s.db.QueryRow(`SELECT payload FROM app_state WHERE id = 1`).Scan(&payload); err != nil {
		return fmt.Errorf("reading state for alert update: %w", err)
	}
	state := &models.State{}
	if err := json.Unmarshal([]byte(payload), state); err != nil {
		return fmt.Errorf("decoding state for alert update: %w", err)
	}
	state.Alerts = alerts
	updated, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encoding state for alert update: %w", err)
	}
	if _, err := s.db.Exec(
		`UPDATE app_state SET payload = ?, updated_at = ? WHERE id = 1`,
		string(updated), utils.NowISO(),
	); err != nil {
		return fmt.Errorf("persisting alert update: %w", err)
	}
	s.generation++
	return nil
}
