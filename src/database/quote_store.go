package database

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/username/fundfolio/backend/src/models"
)

// QuoteStore caches the most recent quote per ticker.
type QuoteStore struct {
	db *sql.DB
}

func NewQuoteStore(db *sql.DB) *QuoteStore {
	return &QuoteStore{db: db}
}

// Upsert writes or refreshes quote rows; tickers are stored uppercased.
func (q *QuoteStore) Upsert(quotes []models.Quote) error {
	if len(quotes) == 0 {
		return nil
	}
	tx, err := q.db.Begin()
	if err != nil {
		return fmt.Errorf("starting quote upsert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO quotes (ticker, price, currency, provider, fetched_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(ticker) DO UPDATE SET
		   price = excluded.price,
		   currency = excluded.currency,
		   provider = excluded.provider,
		   fetched_at = excluded.fetched_at`)
	if err != nil {
		return fmt.Errorf("preparing quote upsert: %w", err)
	}
	defer stmt.Close()

	for _, quote := range quotes {
		ticker := strings.ToUpper(strings.TrimSpace(quote.Ticker))
		if ticker == "" {
			continue
		}
		if _, err := stmt.Exec(ticker, quote.Price, quote.Currency, quote.Provider, quote.FetchedAt); err != nil {
			return fmt.Errorf("upserting quote %s: %w", ticker, err)
		}
	}
	return tx.Commit()
}

// List returns cached quotes, optionally restricted to the given tickers.
func (q *QuoteStore) List(tickers []string) ([]models.Quote, error) {
	query := `SELECT ticker, price, currency, provider, fetched_at FROM quotes`
	var args []any
	if len(tickers) > 0 {
		placeholders := make([]string, 0, len(tickers))
		for _, ticker := range tickers {
			trimmed := strings.ToUpper(strings.TrimSpace(ticker))
			if trimmed == "" {
				continue
			}
			placeholders = append(placeholders, "?")
			args = append(args, trimmed)
		}
		if len(placeholders) > 0 {
			query += ` WHERE ticker IN (` + strings.Join(placeholders, ",") + `)`
		}
	}
	query += ` ORDER BY ticker`

	rows, err := q.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing quotes: %w", err)
	}
	defer rows.Close()

	var out []models.Quote
	for rows.Next() {
		var quote models.Quote
		if err := rows.Scan(&quote.Ticker, &quote.Price, &quote.Currency, &quote.Provider, &quote.FetchedAt); err != nil {
			return nil, fmt.Errorf("scanning quote row: %w", err)
		}
		out = append(out, quote)
	}
	return out, rows.Err()
}
