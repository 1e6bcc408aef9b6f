// Package portfolio merges normalized positions across brokers and accounts
// into consolidated point-in-time snapshots.
package portfolio

import (
	"time"

	"github.com/aristath/crossfolio/internal/domain"
)

// InstrumentExposure is the consolidated view of one instrument across all
// accounts. Per-account positions stay individually addressable on the
// snapshot; this is a sum, not a destructive merge.
type InstrumentExposure struct {
	Instrument    string            `json:"instrument"`
	AssetClass    domain.AssetClass `json:"asset_class"`
	NetQuantity   float64           `json:"net_quantity"`
	Exposure      float64           `json:"exposure"` // signed notional in base currency
	UnrealizedPnL float64           `json:"unrealized_pnl"`
	Accounts      []string          `json:"accounts"` // contributing account IDs, sorted
	NeedsMapping  bool              `json:"needs_mapping,omitempty"`
	// Unconverted counts positions excluded from Exposure because no rate
	// path existed; they remain listed on the snapshot in raw currency.
	Unconverted int `json:"unconverted,omitempty"`
}

// PortfolioSnapshot is the aggregation output: an immutable point-in-time
// view of all normalized positions across accounts, in one base currency.
// Each refresh produces a new snapshot; prior snapshots are never mutated.
type PortfolioSnapshot struct {
	ID           string          `json:"id"`
	CreatedAt    time.Time       `json:"created_at"`
	BaseCurrency domain.Currency `json:"base_currency"`

	Positions []domain.Position `json:"positions"`
	Accounts  []domain.Account  `json:"accounts"`

	ByInstrument    map[string]InstrumentExposure `json:"by_instrument"`
	ExposureByClass map[domain.AssetClass]float64 `json:"exposure_by_class"`

	TotalEquity   float64 `json:"total_equity"`   // sum of per-account equities, base currency
	TotalExposure float64 `json:"total_exposure"` // sum of net instrument exposures, signed
	GrossExposure float64 `json:"gross_exposure"` // sum of absolute net instrument exposures

	// Degraded-condition flags. Every data-quality issue that affected this
	// snapshot is discoverable here, not only in logs.
	Partial         bool     `json:"partial"`
	MissingAccounts []string `json:"missing_accounts,omitempty"`
	Unconverted     int      `json:"unconverted,omitempty"`
	Unclassified    int      `json:"unclassified,omitempty"`
	Deduplicated    int      `json:"deduplicated,omitempty"`
}

// Input is one complete batch for a single aggregation run. Positions and
// accounts are expected to be currency-converted already.
type Input struct {
	AsOf            time.Time
	Positions       []domain.Position
	Accounts        []domain.Account
	MissingAccounts []string
}
