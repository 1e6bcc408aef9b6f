// Package domain provides core domain models and types.
package domain

import "time"

// Currency represents an ISO 4217 currency code
type Currency string

const (
	CurrencyEUR Currency = "EUR"
	CurrencyUSD Currency = "USD"
	CurrencyGBP Currency = "GBP"
	CurrencyJPY Currency = "JPY"
)

// BrokerType identifies the broker a payload or record originated from.
// Normalizer selection is keyed on this tag, never on payload shape.
type BrokerType string

const (
	BrokerIBKR    BrokerType = "ibkr"
	BrokerMT5     BrokerType = "mt5"
	BrokerCTrader BrokerType = "ctrader"
)

// AssetClass classifies an instrument for exposure grouping
type AssetClass string

const (
	AssetClassEquity       AssetClass = "equity"
	AssetClassForex        AssetClass = "forex"
	AssetClassIndex        AssetClass = "index"
	AssetClassCommodity    AssetClass = "commodity"
	AssetClassBond         AssetClass = "bond"
	AssetClassCrypto       AssetClass = "crypto"
	AssetClassUnclassified AssetClass = "unclassified"
)

// PositionState marks whether a position is still open.
// Closed positions are kept (never deleted) so PnL attribution retains history.
type PositionState string

const (
	PositionOpen   PositionState = "open"
	PositionClosed PositionState = "closed"
)

// Side represents a trade direction
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Position represents one open exposure on one account/broker, normalized to
// the canonical schema. Quantity sign convention: positive = long,
// negative = short, for every broker.
type Position struct {
	UpdatedAt  time.Time     `json:"updated_at"`
	Instrument string        `json:"instrument"`
	Broker     BrokerType    `json:"broker"`
	AccountID  string        `json:"account_id"`
	Currency   Currency      `json:"currency"`
	State      PositionState `json:"state"`
	Quantity   float64       `json:"quantity"`
	EntryPrice float64       `json:"entry_price"`
	MarkPrice  float64       `json:"mark_price"`

	// NeedsMapping flags instrument symbols the normalizer could not map to a
	// known identifier. Such positions flow through the pipeline so exposure
	// is never silently lost.
	NeedsMapping bool `json:"needs_mapping,omitempty"`

	// Set by the currency converter. When ConversionFailed is true the
	// position is retained in its raw currency and excluded from
	// base-currency totals.
	MarketValueBase  float64 `json:"market_value_base"`
	UnrealizedPnL    float64 `json:"unrealized_pnl"`
	ConversionFailed bool    `json:"conversion_failed,omitempty"`
}

// MarketValue returns the signed notional value in the position's own currency.
func (p Position) MarketValue() float64 {
	return p.Quantity * p.MarkPrice
}

// Key returns the identity of a position record for deduplication:
// same broker, account, instrument and timestamp means the same record.
func (p Position) Key() string {
	return string(p.Broker) + "|" + p.AccountID + "|" + p.Instrument + "|" + p.UpdatedAt.UTC().Format(time.RFC3339Nano)
}

// Trade represents an immutable execution record. Trades are append-only and
// never mutated after creation.
type Trade struct {
	ExecutedAt time.Time  `json:"executed_at"`
	Instrument string     `json:"instrument"`
	Broker     BrokerType `json:"broker"`
	AccountID  string     `json:"account_id"`
	Side       Side       `json:"side"`
	Currency   Currency   `json:"currency"`
	Quantity   float64    `json:"quantity"`
	Price      float64    `json:"price"`
	Commission float64    `json:"commission"`
}

// Account represents one brokerage login context. Each fetch replaces the
// previous snapshot wholesale; superseded snapshots are discarded, not merged.
type Account struct {
	FetchedAt    time.Time  `json:"fetched_at"`
	Broker       BrokerType `json:"broker"`
	AccountID    string     `json:"account_id"`
	BaseCurrency Currency   `json:"base_currency"`
	Equity       float64    `json:"equity"`
	MarginUsed   float64    `json:"margin_used"`
	MarginFree   float64    `json:"margin_free"`

	// Set by the currency converter.
	EquityBase       float64 `json:"equity_base"`
	ConversionFailed bool    `json:"conversion_failed,omitempty"`
}

// PricePoint is a single observation in an instrument's historical series
type PricePoint struct {
	Time  time.Time `json:"time"`
	Open  float64   `json:"open"`
	High  float64   `json:"high"`
	Low   float64   `json:"low"`
	Close float64   `json:"close"`
}

// Money represents a monetary value with currency
type Money struct {
	Currency Currency `json:"currency"`
	Amount   float64  `json:"amount"`
}

// NewMoney creates a new Money value
func NewMoney(amount float64, currency Currency) Money {
	return Money{Amount: amount, Currency: currency}
}
