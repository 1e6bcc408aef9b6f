package portfolio

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/crossfolio/internal/domain"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// snapshotDetail is the part of a snapshot persisted as a packed blob:
// per-position records and the consolidated breakdowns. Summary columns stay
// relational for listing without unpacking.
type snapshotDetail struct {
	Positions       []domain.Position             `msgpack:"positions"`
	Accounts        []domain.Account              `msgpack:"accounts"`
	ByInstrument    map[string]InstrumentExposure `msgpack:"by_instrument"`
	ExposureByClass map[domain.AssetClass]float64 `msgpack:"exposure_by_class"`
	MissingAccounts []string                      `msgpack:"missing_accounts"`
	GrossExposure   float64                       `msgpack:"gross_exposure"`
	Unconverted     int                           `msgpack:"unconverted"`
	Unclassified    int                           `msgpack:"unclassified"`
	Deduplicated    int                           `msgpack:"deduplicated"`
}

// SnapshotSummary is one row of the archive listing
type SnapshotSummary struct {
	ID            string    `json:"id"`
	CreatedAt     time.Time `json:"created_at"`
	BaseCurrency  string    `json:"base_currency"`
	TotalEquity   float64   `json:"total_equity"`
	TotalExposure float64   `json:"total_exposure"`
	Positions     int       `json:"positions"`
	Partial       bool      `json:"partial"`
}

// SnapshotRepository is the append-only snapshot archive. Snapshots are
// immutable values; rows are inserted once and never updated.
type SnapshotRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewSnapshotRepository creates the repository and ensures its schema exists
func NewSnapshotRepository(db *sql.DB, log zerolog.Logger) (*SnapshotRepository, error) {
	r := &SnapshotRepository{
		db:  db,
		log: log.With().Str("repository", "snapshots").Logger(),
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS snapshots (
			id             TEXT PRIMARY KEY,
			created_at     INTEGER NOT NULL,
			base_currency  TEXT NOT NULL,
			total_equity   REAL NOT NULL,
			total_exposure REAL NOT NULL,
			positions      INTEGER NOT NULL,
			partial        INTEGER NOT NULL,
			detail         BLOB NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_snapshots_created_at
			ON snapshots (created_at DESC);
	`); err != nil {
		return nil, fmt.Errorf("failed to initialize snapshot schema: %w", err)
	}
	return r, nil
}

// Save archives a snapshot
func (r *SnapshotRepository) Save(snapshot *PortfolioSnapshot) error {
	detail, err := msgpack.Marshal(snapshotDetail{
		Positions:       snapshot.Positions,
		Accounts:        snapshot.Accounts,
		ByInstrument:    snapshot.ByInstrument,
		ExposureByClass: snapshot.ExposureByClass,
		MissingAccounts: snapshot.MissingAccounts,
		GrossExposure:   snapshot.GrossExposure,
		Unconverted:     snapshot.Unconverted,
		Unclassified:    snapshot.Unclassified,
		Deduplicated:    snapshot.Deduplicated,
	})
	if err != nil {
		return fmt.Errorf("failed to pack snapshot detail: %w", err)
	}

	partial := 0
	if snapshot.Partial {
		partial = 1
	}

	_, err = r.db.Exec(`
		INSERT INTO snapshots (id, created_at, base_currency, total_equity, total_exposure, positions, partial, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		snapshot.ID,
		snapshot.CreatedAt.Unix(),
		string(snapshot.BaseCurrency),
		snapshot.TotalEquity,
		snapshot.TotalExposure,
		len(snapshot.Positions),
		partial,
		detail,
	)
	if err != nil {
		return fmt.Errorf("failed to archive snapshot %s: %w", snapshot.ID, err)
	}

	r.log.Debug().Str("snapshot_id", snapshot.ID).Msg("Archived snapshot")
	return nil
}

// List returns the most recent snapshot summaries, newest first
func (r *SnapshotRepository) List(limit int) ([]SnapshotSummary, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Query(`
		SELECT id, created_at, base_currency, total_equity, total_exposure, positions, partial
		FROM snapshots
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var summaries []SnapshotSummary
	for rows.Next() {
		var s SnapshotSummary
		var createdAt int64
		var partial int
		if err := rows.Scan(&s.ID, &createdAt, &s.BaseCurrency, &s.TotalEquity, &s.TotalExposure, &s.Positions, &partial); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot row: %w", err)
		}
		s.CreatedAt = time.Unix(createdAt, 0).UTC()
		s.Partial = partial != 0
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}
	return summaries, nil
}

// Get reconstructs a full archived snapshot by ID
func (r *SnapshotRepository) Get(id string) (*PortfolioSnapshot, error) {
	var createdAt int64
	var baseCurrency string
	var partial int
	var blob []byte
	snapshot := &PortfolioSnapshot{ID: id}

	err := r.db.QueryRow(`
		SELECT created_at, base_currency, total_equity, total_exposure, partial, detail
		FROM snapshots
		WHERE id = ?
	`, id).Scan(&createdAt, &baseCurrency, &snapshot.TotalEquity, &snapshot.TotalExposure, &partial, &blob)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query snapshot %s: %w", id, err)
	}

	var detail snapshotDetail
	if err := msgpack.Unmarshal(blob, &detail); err != nil {
		return nil, fmt.Errorf("failed to unpack snapshot detail for %s: %w", id, err)
	}

	snapshot.CreatedAt = time.Unix(createdAt, 0).UTC()
	snapshot.BaseCurrency = domain.Currency(baseCurrency)
	snapshot.Partial = partial != 0
	snapshot.Positions = detail.Positions
	snapshot.Accounts = detail.Accounts
	snapshot.ByInstrument = detail.ByInstrument
	snapshot.ExposureByClass = detail.ExposureByClass
	snapshot.MissingAccounts = detail.MissingAccounts
	snapshot.GrossExposure = detail.GrossExposure
	snapshot.Unconverted = detail.Unconverted
	snapshot.Unclassified = detail.Unclassified
	snapshot.Deduplicated = detail.Deduplicated
	return snapshot, nil
}

// Count returns the number of archived snapshots
func (r *SnapshotRepository) Count() (int, error) {
	var count int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM snapshots`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count snapshots: %w", err)
	}
	return count, nil
}
