package normalize

import (
	"encoding/json"
	"strings"

	"github.com/aristath/crossfolio/internal/domain"
	"github.com/rs/zerolog"
)

// ibkrPayload mirrors the portfolio document an IBKR-style connector
// produces: one account summary plus portfolio items and executions.
type ibkrPayload struct {
	Account    *ibkrAccount    `json:"account"`
	Portfolio  []ibkrPosition  `json:"portfolio"`
	Executions []ibkrExecution `json:"executions"`
}

type ibkrAccount struct {
	Currency   string   `json:"currency"`
	NetLiq     *float64 `json:"net_liquidation"`
	MarginUsed float64  `json:"maintenance_margin"`
	MarginFree float64  `json:"available_funds"`
}

type ibkrPosition struct {
	Symbol        string   `json:"symbol"`
	SecType       string   `json:"sec_type"`
	Currency      string   `json:"currency"`
	Position      *float64 `json:"position"` // signed: negative = short
	AverageCost   *float64 `json:"average_cost"`
	MarketPrice   *float64 `json:"market_price"`
	UnrealizedPNL float64  `json:"unrealized_pnl"`
}

type ibkrExecution struct {
	Symbol     string   `json:"symbol"`
	Side       string   `json:"side"` // BOT / SLD
	Shares     *float64 `json:"shares"`
	Price      *float64 `json:"price"`
	Currency   string   `json:"currency"`
	Commission float64  `json:"commission"`
	Time       string   `json:"time"` // RFC3339
}

// IBKRNormalizer maps IBKR-style payloads to canonical records.
// IBKR reports position quantity already signed, so the sign convention
// carries over unchanged.
type IBKRNormalizer struct {
	log zerolog.Logger
}

// NewIBKRNormalizer creates a normalizer for IBKR-style payloads
func NewIBKRNormalizer(log zerolog.Logger) *IBKRNormalizer {
	return &IBKRNormalizer{log: log.With().Str("normalizer", "ibkr").Logger()}
}

// Broker returns the broker tag this normalizer handles
func (n *IBKRNormalizer) Broker() domain.BrokerType {
	return domain.BrokerIBKR
}

// Normalize converts one IBKR account payload into canonical records
func (n *IBKRNormalizer) Normalize(raw domain.RawAccountData) (Result, error) {
	var payload ibkrPayload
	if err := json.Unmarshal(raw.Payload, &payload); err != nil {
		return Result{}, domain.NewSchemaError(domain.BrokerIBKR, "", "payload is not valid JSON: "+err.Error())
	}
	if payload.Account == nil {
		return Result{}, domain.NewSchemaError(domain.BrokerIBKR, "account", "required field is absent")
	}
	if payload.Account.NetLiq == nil {
		return Result{}, domain.NewSchemaError(domain.BrokerIBKR, "account.net_liquidation", "required field is absent")
	}

	result := Result{
		Account: &domain.Account{
			FetchedAt:    raw.FetchedAt,
			Broker:       domain.BrokerIBKR,
			AccountID:    raw.AccountID,
			BaseCurrency: currencyOrDefault(payload.Account.Currency, domain.CurrencyUSD),
			Equity:       *payload.Account.NetLiq,
			MarginUsed:   payload.Account.MarginUsed,
			MarginFree:   payload.Account.MarginFree,
		},
	}

	for _, p := range payload.Portfolio {
		pos, err := n.normalizePosition(raw, p)
		if err != nil {
			n.log.Warn().Err(err).Str("account", raw.AccountID).Msg("Dropping malformed position record")
			result.Dropped++
			continue
		}
		if pos != nil {
			result.Positions = append(result.Positions, *pos)
		}
	}

	for _, e := range payload.Executions {
		trade, err := n.normalizeExecution(raw, e)
		if err != nil {
			n.log.Warn().Err(err).Str("account", raw.AccountID).Msg("Dropping malformed execution record")
			result.Dropped++
			continue
		}
		result.Trades = append(result.Trades, *trade)
	}

	return result, nil
}

func (n *IBKRNormalizer) normalizePosition(raw domain.RawAccountData, p ibkrPosition) (*domain.Position, error) {
	if p.Symbol == "" {
		return nil, domain.NewSchemaError(domain.BrokerIBKR, "symbol", "required field is absent")
	}
	if p.Position == nil {
		return nil, domain.NewSchemaError(domain.BrokerIBKR, "position", "required field is absent")
	}
	if p.AverageCost == nil || p.MarketPrice == nil {
		return nil, domain.NewSchemaError(domain.BrokerIBKR, "average_cost/market_price", "required field is absent")
	}

	state := domain.PositionOpen
	if *p.Position == 0 {
		// Zero quantity means the position was closed; keep the record in a
		// terminal state so PnL attribution retains history.
		state = domain.PositionClosed
	}

	return &domain.Position{
		UpdatedAt:    raw.FetchedAt,
		Instrument:   strings.ToUpper(strings.TrimSpace(p.Symbol)),
		Broker:       domain.BrokerIBKR,
		AccountID:    raw.AccountID,
		Currency:     currencyOrDefault(p.Currency, domain.CurrencyUSD),
		State:        state,
		Quantity:     *p.Position,
		EntryPrice:   *p.AverageCost,
		MarkPrice:    *p.MarketPrice,
		NeedsMapping: p.SecType == "" || strings.EqualFold(p.SecType, "unknown"),
	}, nil
}

func (n *IBKRNormalizer) normalizeExecution(raw domain.RawAccountData, e ibkrExecution) (*domain.Trade, error) {
	if e.Symbol == "" {
		return nil, domain.NewSchemaError(domain.BrokerIBKR, "symbol", "required field is absent")
	}
	if e.Shares == nil || e.Price == nil {
		return nil, domain.NewSchemaError(domain.BrokerIBKR, "shares/price", "required field is absent")
	}

	var side domain.Side
	switch strings.ToUpper(e.Side) {
	case "BOT", "BUY":
		side = domain.SideBuy
	case "SLD", "SELL":
		side = domain.SideSell
	default:
		return nil, domain.NewSchemaError(domain.BrokerIBKR, "side", "unexpected value "+e.Side)
	}

	executedAt, err := parseTimestamp(e.Time, raw.FetchedAt)
	if err != nil {
		return nil, domain.NewSchemaError(domain.BrokerIBKR, "time", err.Error())
	}

	return &domain.Trade{
		ExecutedAt: executedAt,
		Instrument: strings.ToUpper(strings.TrimSpace(e.Symbol)),
		Broker:     domain.BrokerIBKR,
		AccountID:  raw.AccountID,
		Side:       side,
		Currency:   currencyOrDefault(e.Currency, domain.CurrencyUSD),
		Quantity:   *e.Shares,
		Price:      *e.Price,
		Commission: e.Commission,
	}, nil
}
