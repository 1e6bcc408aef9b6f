package currency

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/crossfolio/internal/domain"
	"github.com/rs/zerolog"
)

// maxCachedRateAge bounds how stale a cached rate may be before a warning
const maxCachedRateAge = 48 * time.Hour

// RateRepository persists rate observations so later runs can fall back to
// the most recent cached at-or-before rate when a source is unavailable.
type RateRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRateRepository creates the repository and ensures its schema exists
func NewRateRepository(db *sql.DB, log zerolog.Logger) (*RateRepository, error) {
	r := &RateRepository{
		db:  db,
		log: log.With().Str("repository", "rates").Logger(),
	}
	if err := r.ensureSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize rate schema: %w", err)
	}
	return r, nil
}

func (r *RateRepository) ensureSchema() error {
	_, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS exchange_rates (
			from_currency TEXT NOT NULL,
			to_currency   TEXT NOT NULL,
			rate          REAL NOT NULL,
			observed_at   INTEGER NOT NULL,
			PRIMARY KEY (from_currency, to_currency, observed_at)
		);
		CREATE INDEX IF NOT EXISTS idx_exchange_rates_pair_time
			ON exchange_rates (from_currency, to_currency, observed_at DESC);
	`)
	return err
}

// Record stores rate observations, ignoring duplicates
func (r *RateRepository) Record(observations []domain.RateObservation) error {
	if len(observations) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO exchange_rates (from_currency, to_currency, rate, observed_at)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, obs := range observations {
		if obs.Rate <= 0 {
			continue
		}
		if _, err := stmt.Exec(string(obs.From), string(obs.To), obs.Rate, obs.At.Unix()); err != nil {
			return fmt.Errorf("failed to insert rate %s/%s: %w", obs.From, obs.To, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit rates: %w", err)
	}
	return nil
}

// Lookup returns the latest cached rate for from->to at-or-before asOf.
// Tries the direct pair first, then the inverse. Stale hits are used but
// logged, matching the converter's degrade-gracefully behavior.
func (r *RateRepository) Lookup(from, to domain.Currency, asOf time.Time) (float64, bool) {
	if rate, at, ok := r.lookupDirect(from, to, asOf); ok {
		r.warnIfStale(from, to, at, asOf)
		return rate, true
	}
	if rate, at, ok := r.lookupDirect(to, from, asOf); ok {
		r.warnIfStale(to, from, at, asOf)
		return 1.0 / rate, true
	}
	return 0, false
}

func (r *RateRepository) lookupDirect(from, to domain.Currency, asOf time.Time) (float64, time.Time, bool) {
	var rate float64
	var observedAt int64
	err := r.db.QueryRow(`
		SELECT rate, observed_at
		FROM exchange_rates
		WHERE from_currency = ? AND to_currency = ? AND observed_at <= ?
		ORDER BY observed_at DESC
		LIMIT 1
	`, string(from), string(to), asOf.Unix()).Scan(&rate, &observedAt)
	if err != nil {
		if err != sql.ErrNoRows {
			r.log.Error().Err(err).
				Str("from", string(from)).
				Str("to", string(to)).
				Msg("Failed to query cached rate")
		}
		return 0, time.Time{}, false
	}
	return rate, time.Unix(observedAt, 0).UTC(), true
}

func (r *RateRepository) warnIfStale(from, to domain.Currency, observedAt, asOf time.Time) {
	if age := asOf.Sub(observedAt); age > maxCachedRateAge {
		r.log.Warn().
			Str("from", string(from)).
			Str("to", string(to)).
			Dur("age", age).
			Msg("Cached rate is stale but using anyway")
	}
}

// DeleteStaleRates removes cached observations older than the cutoff
func (r *RateRepository) DeleteStaleRates(olderThan time.Time) error {
	result, err := r.db.Exec(`DELETE FROM exchange_rates WHERE observed_at < ?`, olderThan.Unix())
	if err != nil {
		return fmt.Errorf("failed to delete stale rates: %w", err)
	}
	if deleted, err := result.RowsAffected(); err == nil && deleted > 0 {
		r.log.Info().Int64("deleted", deleted).Msg("Deleted stale cached rates")
	}
	return nil
}
