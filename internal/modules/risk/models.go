// Package risk computes exposure, PnL attribution and risk metrics from
// portfolio snapshots.
package risk

import (
	"time"

	"github.com/aristath/crossfolio/internal/domain"
)

// Constants for risk model configuration
const (
	DefaultLookbackPeriods = 252 // 1 year of trading days
	DefaultPeriodsPerYear  = 252
	DefaultConfidence      = 0.95
)

// Config holds analyzer configuration
type Config struct {
	LookbackPeriods int     // window for volatility/beta/VaR
	PeriodsPerYear  int     // annualization factor
	Confidence      float64 // VaR confidence level
	Benchmark       string  // benchmark instrument for beta
}

// withDefaults fills unset fields with documented defaults
func (c Config) withDefaults() Config {
	if c.LookbackPeriods <= 0 {
		c.LookbackPeriods = DefaultLookbackPeriods
	}
	if c.PeriodsPerYear <= 0 {
		c.PeriodsPerYear = DefaultPeriodsPerYear
	}
	if c.Confidence <= 0 || c.Confidence >= 1 {
		c.Confidence = DefaultConfidence
	}
	return c
}

// InstrumentRisk holds per-instrument metrics. Nil metric pointers mean the
// metric was unavailable for that instrument; the reason is recorded on the
// report's Gaps list.
type InstrumentRisk struct {
	Instrument    string              `json:"instrument"`
	AssetClass    domain.AssetClass   `json:"asset_class"`
	Exposure      float64             `json:"exposure"`
	UnrealizedPnL float64             `json:"unrealized_pnl"`
	Volatility    *float64            `json:"volatility,omitempty"` // annualized
	Beta          *float64            `json:"beta,omitempty"`
	Features      *VolatilityFeatures `json:"features,omitempty"`
}

// MetricGap records one metric that could not be computed and why.
// Gaps make degraded metrics discoverable on the report itself.
type MetricGap struct {
	Metric     string `json:"metric"`
	Instrument string `json:"instrument,omitempty"` // empty for portfolio-level metrics
	Reason     string `json:"reason"`
}

// Report is derived from one snapshot plus external price history. It is a
// pure function of its inputs: nothing here mutates the snapshot or caches
// results beyond this value.
//
// Parametric and historical VaR are both reported because they diverge under
// fat-tailed return distributions; neither is authoritative.
type Report struct {
	ID           string          `json:"id"`
	SnapshotID   string          `json:"snapshot_id"`
	GeneratedAt  time.Time       `json:"generated_at"`
	BaseCurrency domain.Currency `json:"base_currency"`

	TotalUnrealizedPnL float64                       `json:"total_unrealized_pnl"`
	PnLByInstrument    map[string]float64            `json:"pnl_by_instrument"`
	PnLByClass         map[domain.AssetClass]float64 `json:"pnl_by_class"`

	Instruments map[string]InstrumentRisk `json:"instruments"`

	PortfolioVolatility *float64 `json:"portfolio_volatility,omitempty"` // annualized
	ParametricVaR       *float64 `json:"parametric_var,omitempty"`       // return-space quantile
	HistoricalVaR       *float64 `json:"historical_var,omitempty"`       // empirical quantile
	MaxDrawdown         *float64 `json:"max_drawdown,omitempty"`         // positive fraction

	Confidence float64     `json:"confidence"`
	Lookback   int         `json:"lookback"`
	Gaps       []MetricGap `json:"gaps,omitempty"`
}

func ptr(v float64) *float64 { return &v }
