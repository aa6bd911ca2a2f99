package database

import (
	"database/sql"
	"fmt"

	"github.com/username/fundfolio/backend/src/models"
)

// AlertStore is the append-only log of alert trigger events.
type AlertStore struct {
	db *sql.DB
}

func NewAlertStore(db *sql.DB) *AlertStore {
	return &AlertStore{db: db}
}

// LogEvent appends one trigger evaluation to the event log.
func (a *AlertStore) LogEvent(event models.AlertEvent) error {
	_, err := a.db.Exec(
		`INSERT INTO alert_events
		   (alert_id, asset_id, ticker, direction, target_price, current_price, status, message, event_time)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.AlertID, event.AssetID, event.Ticker, event.Direction,
		event.TargetPrice, event.CurrentPrice, event.Status, event.Message, event.EventTime,
	)
	if err != nil {
		return fmt.Errorf("logging alert event: %w", err)
	}
	return nil
}

// ListEvents returns the newest events first, capped at limit.
func (a *AlertStore) ListEvents(limit int) ([]models.AlertEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > 500 {
		limit = 500
	}
	rows, err := a.db.Query(
		`SELECT id, alert_id, asset_id, ticker, direction, target_price, current_price, status, message, event_time
		 FROM alert_events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing alert events: %w", err)
	}
	defer rows.Close()

	var out []models.AlertEvent
	for rows.Next() {
		var event models.AlertEvent
		if err := rows.Scan(
			&event.ID, &event.AlertID, &event.AssetID, &event.Ticker, &event.Direction,
			&event.TargetPrice, &event.CurrentPrice, &event.Status, &event.Message, &event.EventTime,
		); err != nil {
			return nil, fmt.Errorf("scanning alert event: %w", err)
		}
		out = append(out, event)
	}
	return out, rows.Err()
}
