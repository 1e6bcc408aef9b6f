// Package historical provides access to historical price series.
package historical

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/crossfolio/internal/domain"
	"github.com/rs/zerolog"
)

// Store persists per-instrument OHLC history and serves the ordered series
// the risk analyzer consumes. Series are read-only for the duration of one
// pipeline run; sync happens between runs.
type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewStore creates the store and ensures its schema exists
func NewStore(db *sql.DB, log zerolog.Logger) (*Store, error) {
	s := &Store{
		db:  db,
		log: log.With().Str("component", "history_store").Logger(),
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS daily_prices (
			instrument TEXT NOT NULL,
			ts         INTEGER NOT NULL,
			open       REAL NOT NULL,
			high       REAL NOT NULL,
			low        REAL NOT NULL,
			close      REAL NOT NULL,
			PRIMARY KEY (instrument, ts)
		);
		CREATE INDEX IF NOT EXISTS idx_daily_prices_instrument_ts
			ON daily_prices (instrument, ts DESC);
	`); err != nil {
		return nil, fmt.Errorf("failed to initialize history schema: %w", err)
	}
	return s, nil
}

// Sync upserts a price series for an instrument
func (s *Store) Sync(instrument string, points []domain.PricePoint) error {
	if len(points) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
		INSERT INTO daily_prices (instrument, ts, open, high, low, close)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(instrument, ts) DO UPDATE SET
			open = excluded.open,
			high = excluded.high,
			low = excluded.low,
			close = excluded.close
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, p := range points {
		if _, err := stmt.Exec(instrument, p.Time.Unix(), p.Open, p.High, p.Low, p.Close); err != nil {
			return fmt.Errorf("failed to upsert price for %s: %w", instrument, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit prices: %w", err)
	}

	s.log.Debug().Str("instrument", instrument).Int("points", len(points)).Msg("Synced price history")
	return nil
}

// Series returns up to limit most recent points for an instrument, ordered
// oldest first. limit <= 0 returns the full series.
func (s *Store) Series(instrument string, limit int) ([]domain.PricePoint, error) {
	query := `
		SELECT ts, open, high, low, close
		FROM daily_prices
		WHERE instrument = ?
		ORDER BY ts DESC
	`
	args := []interface{}{instrument}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query price series for %s: %w", instrument, err)
	}
	defer rows.Close()

	var points []domain.PricePoint
	for rows.Next() {
		var ts int64
		var p domain.PricePoint
		if err := rows.Scan(&ts, &p.Open, &p.High, &p.Low, &p.Close); err != nil {
			return nil, fmt.Errorf("failed to scan price point: %w", err)
		}
		p.Time = time.Unix(ts, 0).UTC()
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating price series: %w", err)
	}

	// Query returns newest first for the LIMIT; reverse to oldest first.
	for i, j := 0, len(points)-1; i < j; i, j = i+1, j-1 {
		points[i], points[j] = points[j], points[i]
	}
	return points, nil
}
