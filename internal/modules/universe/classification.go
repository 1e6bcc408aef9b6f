// Package universe maintains the instrument classification table used to
// group exposure by asset class.
package universe

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/aristath/crossfolio/internal/domain"
	"github.com/rs/zerolog"
)

// ClassificationRepository stores instrument -> asset class mappings
type ClassificationRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewClassificationRepository creates the repository and ensures its schema
func NewClassificationRepository(db *sql.DB, log zerolog.Logger) (*ClassificationRepository, error) {
	r := &ClassificationRepository{
		db:  db,
		log: log.With().Str("repository", "classification").Logger(),
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS instrument_classes (
			instrument  TEXT PRIMARY KEY,
			asset_class TEXT NOT NULL
		)
	`); err != nil {
		return nil, fmt.Errorf("failed to initialize classification schema: %w", err)
	}
	return r, nil
}

// Upsert stores or replaces a classification
func (r *ClassificationRepository) Upsert(instrument string, class domain.AssetClass) error {
	instrument = strings.ToUpper(strings.TrimSpace(instrument))
	if instrument == "" {
		return fmt.Errorf("instrument must not be empty")
	}
	_, err := r.db.Exec(`
		INSERT INTO instrument_classes (instrument, asset_class) VALUES (?, ?)
		ON CONFLICT(instrument) DO UPDATE SET asset_class = excluded.asset_class
	`, instrument, string(class))
	if err != nil {
		return fmt.Errorf("failed to upsert classification for %s: %w", instrument, err)
	}
	return nil
}

// GetAll loads the full classification table
func (r *ClassificationRepository) GetAll() (map[string]domain.AssetClass, error) {
	rows, err := r.db.Query(`SELECT instrument, asset_class FROM instrument_classes`)
	if err != nil {
		return nil, fmt.Errorf("failed to query classifications: %w", err)
	}
	defer rows.Close()

	classes := make(map[string]domain.AssetClass)
	for rows.Next() {
		var instrument, class string
		if err := rows.Scan(&instrument, &class); err != nil {
			return nil, fmt.Errorf("failed to scan classification: %w", err)
		}
		classes[instrument] = domain.AssetClass(class)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating classifications: %w", err)
	}
	return classes, nil
}

// Classifier is an in-memory classification table loaded once per pipeline
// run. Lookups never mutate it, so a run always classifies consistently.
type Classifier struct {
	classes map[string]domain.AssetClass
}

// NewClassifier builds a classifier from an instrument -> class table
func NewClassifier(classes map[string]domain.AssetClass) *Classifier {
	normalized := make(map[string]domain.AssetClass, len(classes))
	for instrument, class := range classes {
		normalized[strings.ToUpper(strings.TrimSpace(instrument))] = class
	}
	return &Classifier{classes: normalized}
}

// LoadClassifier loads the table from the repository into a run-scoped classifier
func (r *ClassificationRepository) LoadClassifier() (*Classifier, error) {
	classes, err := r.GetAll()
	if err != nil {
		return nil, err
	}
	r.log.Debug().Int("instruments", len(classes)).Msg("Loaded classification table")
	return NewClassifier(classes), nil
}

// Classify returns the asset class for an instrument, or
// UnclassifiedInstrumentError when none is known.
func (c *Classifier) Classify(instrument string) (domain.AssetClass, error) {
	class, ok := c.classes[strings.ToUpper(strings.TrimSpace(instrument))]
	if !ok {
		return domain.AssetClassUnclassified, &domain.UnclassifiedInstrumentError{Instrument: instrument}
	}
	return class, nil
}
