package normalize

import (
	"encoding/json"
	"strings"

	"github.com/aristath/crossfolio/internal/domain"
	"github.com/rs/zerolog"
)

// ctraderPayload mirrors the document a cTrader Open API connector produces:
// trader (account) summary, open positions and deal history.
type ctraderPayload struct {
	Trader    *ctraderTrader    `json:"trader"`
	Positions []ctraderPosition `json:"positions"`
	Deals     []ctraderDeal     `json:"deals"`
}

type ctraderTrader struct {
	DepositCurrency string   `json:"deposit_currency"`
	Equity          *float64 `json:"equity"`
	MarginUsed      float64  `json:"margin_used"`
	FreeMargin      float64  `json:"free_margin"`
}

type ctraderPosition struct {
	SymbolName    string   `json:"symbol_name"`
	TradeSide     string   `json:"trade_side"` // BUY / SELL
	VolumeInUnits *float64 `json:"volume_in_units"`
	EntryPrice    *float64 `json:"entry_price"`
	CurrentPrice  *float64 `json:"current_price"`
	QuoteCurrency string   `json:"quote_currency"`
	UpdateTime    string   `json:"update_time"` // RFC3339
}

type ctraderDeal struct {
	SymbolName     string   `json:"symbol_name"`
	TradeSide      string   `json:"trade_side"`
	VolumeInUnits  *float64 `json:"volume_in_units"`
	ExecutionPrice *float64 `json:"execution_price"`
	QuoteCurrency  string   `json:"quote_currency"`
	Commission     float64  `json:"commission"`
	ExecutionTime  string   `json:"execution_time"`
}

// CTraderNormalizer maps cTrader-style payloads to canonical records.
// cTrader reports unsigned volumes with a separate trade side, so SELL
// positions are negated to meet the positive=long convention.
type CTraderNormalizer struct {
	log zerolog.Logger
}

// NewCTraderNormalizer creates a normalizer for cTrader-style payloads
func NewCTraderNormalizer(log zerolog.Logger) *CTraderNormalizer {
	return &CTraderNormalizer{log: log.With().Str("normalizer", "ctrader").Logger()}
}

// Broker returns the broker tag this normalizer handles
func (n *CTraderNormalizer) Broker() domain.BrokerType {
	return domain.BrokerCTrader
}

// Normalize converts one cTrader account payload into canonical records
func (n *CTraderNormalizer) Normalize(raw domain.RawAccountData) (Result, error) {
	var payload ctraderPayload
	if err := json.Unmarshal(raw.Payload, &payload); err != nil {
		return Result{}, domain.NewSchemaError(domain.BrokerCTrader, "", "payload is not valid JSON: "+err.Error())
	}
	if payload.Trader == nil {
		return Result{}, domain.NewSchemaError(domain.BrokerCTrader, "trader", "required field is absent")
	}
	if payload.Trader.Equity == nil {
		return Result{}, domain.NewSchemaError(domain.BrokerCTrader, "trader.equity", "required field is absent")
	}

	result := Result{
		Account: &domain.Account{
			FetchedAt:    raw.FetchedAt,
			Broker:       domain.BrokerCTrader,
			AccountID:    raw.AccountID,
			BaseCurrency: currencyOrDefault(payload.Trader.DepositCurrency, domain.CurrencyEUR),
			Equity:       *payload.Trader.Equity,
			MarginUsed:   payload.Trader.MarginUsed,
			MarginFree:   payload.Trader.FreeMargin,
		},
	}

	for _, p := range payload.Positions {
		pos, err := n.normalizePosition(raw, p)
		if err != nil {
			n.log.Warn().Err(err).Str("account", raw.AccountID).Msg("Dropping malformed position record")
			result.Dropped++
			continue
		}
		result.Positions = append(result.Positions, *pos)
	}

	for _, d := range payload.Deals {
		trade, err := n.normalizeDeal(raw, d)
		if err != nil {
			n.log.Warn().Err(err).Str("account", raw.AccountID).Msg("Dropping malformed deal record")
			result.Dropped++
			continue
		}
		result.Trades = append(result.Trades, *trade)
	}

	return result, nil
}

func (n *CTraderNormalizer) normalizePosition(raw domain.RawAccountData, p ctraderPosition) (*domain.Position, error) {
	if p.SymbolName == "" {
		return nil, domain.NewSchemaError(domain.BrokerCTrader, "symbol_name", "required field is absent")
	}
	if p.VolumeInUnits == nil || *p.VolumeInUnits <= 0 {
		return nil, domain.NewSchemaError(domain.BrokerCTrader, "volume_in_units", "absent or non-positive")
	}
	if p.EntryPrice == nil || p.CurrentPrice == nil {
		return nil, domain.NewSchemaError(domain.BrokerCTrader, "entry_price/current_price", "required field is absent")
	}

	quantity := *p.VolumeInUnits
	switch strings.ToUpper(p.TradeSide) {
	case "BUY":
		// long
	case "SELL":
		quantity = -quantity
	default:
		return nil, domain.NewSchemaError(domain.BrokerCTrader, "trade_side", "unexpected value "+p.TradeSide)
	}

	updatedAt, err := parseTimestamp(p.UpdateTime, raw.FetchedAt)
	if err != nil {
		return nil, domain.NewSchemaError(domain.BrokerCTrader, "update_time", err.Error())
	}

	return &domain.Position{
		UpdatedAt:    updatedAt,
		Instrument:   strings.ToUpper(strings.TrimSpace(p.SymbolName)),
		Broker:       domain.BrokerCTrader,
		AccountID:    raw.AccountID,
		Currency:     currencyOrDefault(p.QuoteCurrency, domain.CurrencyEUR),
		State:        domain.PositionOpen,
		Quantity:     quantity,
		EntryPrice:   *p.EntryPrice,
		MarkPrice:    *p.CurrentPrice,
		NeedsMapping: p.QuoteCurrency == "",
	}, nil
}

func (n *CTraderNormalizer) normalizeDeal(raw domain.RawAccountData, d ctraderDeal) (*domain.Trade, error) {
	if d.SymbolName == "" {
		return nil, domain.NewSchemaError(domain.BrokerCTrader, "symbol_name", "required field is absent")
	}
	if d.VolumeInUnits == nil || d.ExecutionPrice == nil {
		return nil, domain.NewSchemaError(domain.BrokerCTrader, "volume_in_units/execution_price", "required field is absent")
	}

	var side domain.Side
	switch strings.ToUpper(d.TradeSide) {
	case "BUY":
		side = domain.SideBuy
	case "SELL":
		side = domain.SideSell
	default:
		return nil, domain.NewSchemaError(domain.BrokerCTrader, "trade_side", "unexpected value "+d.TradeSide)
	}

	executedAt, err := parseTimestamp(d.ExecutionTime, raw.FetchedAt)
	if err != nil {
		return nil, domain.NewSchemaError(domain.BrokerCTrader, "execution_time", err.Error())
	}

	return &domain.Trade{
		ExecutedAt: executedAt,
		Instrument: strings.ToUpper(strings.TrimSpace(d.SymbolName)),
		Broker:     domain.BrokerCTrader,
		AccountID:  raw.AccountID,
		Side:       side,
		Currency:   currencyOrDefault(d.QuoteCurrency, domain.CurrencyEUR),
		Quantity:   *d.VolumeInUnits,
		Price:      *d.ExecutionPrice,
		Commission: d.Commission,
	}, nil
}
