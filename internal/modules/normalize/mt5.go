package normalize

import (
	"encoding/json"
	"strings"

	"github.com/aristath/crossfolio/internal/domain"
	"github.com/rs/zerolog"
)

// MT5 type codes for positions and deals: 0 = buy, 1 = sell
const (
	mt5TypeBuy  = 0
	mt5TypeSell = 1
)

// mt5Payload mirrors the document an MT5-style connector produces from
// account_info(), positions_get() and history_deals_get().
type mt5Payload struct {
	AccountInfo *mt5AccountInfo `json:"account_info"`
	Positions   []mt5Position   `json:"positions"`
	Deals       []mt5Deal       `json:"deals"`
}

type mt5AccountInfo struct {
	Currency   string   `json:"currency"`
	Equity     *float64 `json:"equity"`
	Margin     float64  `json:"margin"`
	MarginFree float64  `json:"margin_free"`
}

type mt5Position struct {
	Symbol         string   `json:"symbol"`
	Type           *int     `json:"type"` // 0 = buy, 1 = sell
	Volume         *float64 `json:"volume"`
	PriceOpen      *float64 `json:"price_open"`
	PriceCurrent   *float64 `json:"price_current"`
	CurrencyProfit string   `json:"currency_profit"`
	TimeUpdate     int64    `json:"time_update"` // Unix seconds
}

type mt5Deal struct {
	Symbol     string   `json:"symbol"`
	Type       *int     `json:"type"`
	Volume     *float64 `json:"volume"`
	Price      *float64 `json:"price"`
	Commission float64  `json:"commission"`
	Time       int64    `json:"time"`
	Currency   string   `json:"currency_profit"`
}

// MT5Normalizer maps MT5-style payloads to canonical records.
// MT5 reports volume as an unsigned lot size with a separate type code, so
// sell positions are negated here to meet the positive=long convention.
type MT5Normalizer struct {
	log zerolog.Logger
}

// NewMT5Normalizer creates a normalizer for MT5-style payloads
func NewMT5Normalizer(log zerolog.Logger) *MT5Normalizer {
	return &MT5Normalizer{log: log.With().Str("normalizer", "mt5").Logger()}
}

// Broker returns the broker tag this normalizer handles
func (n *MT5Normalizer) Broker() domain.BrokerType {
	return domain.BrokerMT5
}

// Normalize converts one MT5 account payload into canonical records
func (n *MT5Normalizer) Normalize(raw domain.RawAccountData) (Result, error) {
	var payload mt5Payload
	if err := json.Unmarshal(raw.Payload, &payload); err != nil {
		return Result{}, domain.NewSchemaError(domain.BrokerMT5, "", "payload is not valid JSON: "+err.Error())
	}
	if payload.AccountInfo == nil {
		return Result{}, domain.NewSchemaError(domain.BrokerMT5, "account_info", "required field is absent")
	}
	if payload.AccountInfo.Equity == nil {
		return Result{}, domain.NewSchemaError(domain.BrokerMT5, "account_info.equity", "required field is absent")
	}

	result := Result{
		Account: &domain.Account{
			FetchedAt:    raw.FetchedAt,
			Broker:       domain.BrokerMT5,
			AccountID:    raw.AccountID,
			BaseCurrency: currencyOrDefault(payload.AccountInfo.Currency, domain.CurrencyUSD),
			Equity:       *payload.AccountInfo.Equity,
			MarginUsed:   payload.AccountInfo.Margin,
			MarginFree:   payload.AccountInfo.MarginFree,
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

func (n *MT5Normalizer) normalizePosition(raw domain.RawAccountData, p mt5Position) (*domain.Position, error) {
	if p.Symbol == "" {
		return nil, domain.NewSchemaError(domain.BrokerMT5, "symbol", "required field is absent")
	}
	if p.Type == nil {
		return nil, domain.NewSchemaError(domain.BrokerMT5, "type", "required field is absent")
	}
	if p.Volume == nil || *p.Volume <= 0 {
		return nil, domain.NewSchemaError(domain.BrokerMT5, "volume", "absent or non-positive")
	}
	if p.PriceOpen == nil || p.PriceCurrent == nil {
		return nil, domain.NewSchemaError(domain.BrokerMT5, "price_open/price_current", "required field is absent")
	}

	quantity := *p.Volume
	switch *p.Type {
	case mt5TypeBuy:
		// long, volume stays positive
	case mt5TypeSell:
		quantity = -quantity
	default:
		return nil, domain.NewSchemaError(domain.BrokerMT5, "type", "unexpected position type code")
	}

	updatedAt := raw.FetchedAt
	if p.TimeUpdate > 0 {
		updatedAt = timeFromUnix(p.TimeUpdate)
	}

	// MT5 does not carry an instrument catalogue in the payload; symbols the
	// profit currency is missing for cannot be valued downstream without a
	// mapping, so flag them instead of guessing.
	return &domain.Position{
		UpdatedAt:    updatedAt,
		Instrument:   strings.ToUpper(strings.TrimSpace(p.Symbol)),
		Broker:       domain.BrokerMT5,
		AccountID:    raw.AccountID,
		Currency:     currencyOrDefault(p.CurrencyProfit, domain.CurrencyUSD),
		State:        domain.PositionOpen,
		Quantity:     quantity,
		EntryPrice:   *p.PriceOpen,
		MarkPrice:    *p.PriceCurrent,
		NeedsMapping: p.CurrencyProfit == "",
	}, nil
}

func (n *MT5Normalizer) normalizeDeal(raw domain.RawAccountData, d mt5Deal) (*domain.Trade, error) {
	if d.Symbol == "" {
		return nil, domain.NewSchemaError(domain.BrokerMT5, "symbol", "required field is absent")
	}
	if d.Type == nil {
		return nil, domain.NewSchemaError(domain.BrokerMT5, "type", "required field is absent")
	}
	if d.Volume == nil || d.Price == nil {
		return nil, domain.NewSchemaError(domain.BrokerMT5, "volume/price", "required field is absent")
	}

	var side domain.Side
	switch *d.Type {
	case mt5TypeBuy:
		side = domain.SideBuy
	case mt5TypeSell:
		side = domain.SideSell
	default:
		return nil, domain.NewSchemaError(domain.BrokerMT5, "type", "unexpected deal type code")
	}

	executedAt := raw.FetchedAt
	if d.Time > 0 {
		executedAt = timeFromUnix(d.Time)
	}

	return &domain.Trade{
		ExecutedAt: executedAt,
		Instrument: strings.ToUpper(strings.TrimSpace(d.Symbol)),
		Broker:     domain.BrokerMT5,
		AccountID:  raw.AccountID,
		Side:       side,
		Currency:   currencyOrDefault(d.Currency, domain.CurrencyUSD),
		Quantity:   *d.Volume,
		Price:      *d.Price,
		Commission: d.Commission,
	}, nil
}
