package normalize

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/aristath/crossfolio/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRaw(t *testing.T, broker domain.BrokerType, account string, payload interface{}) domain.RawAccountData {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return domain.RawAccountData{
		FetchedAt: time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC),
		Broker:    broker,
		AccountID: account,
		Payload:   data,
	}
}

func TestRegistry_DispatchesByBrokerTag(t *testing.T) {
	registry := NewRegistry(zerolog.Nop())

	raw := testRaw(t, domain.BrokerIBKR, "U123", map[string]interface{}{
		"account": map[string]interface{}{
			"currency":        "USD",
			"net_liquidation": 50000.0,
		},
	})

	result, err := registry.Normalize(raw)
	require.NoError(t, err)
	require.NotNil(t, result.Account)
	assert.Equal(t, domain.BrokerIBKR, result.Account.Broker)
	assert.Equal(t, 50000.0, result.Account.Equity)
}

func TestRegistry_UnknownBroker(t *testing.T) {
	registry := NewRegistry(zerolog.Nop())

	_, err := registry.Normalize(domain.RawAccountData{Broker: "plus500", Payload: []byte("{}")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no normalizer registered")
}

func TestIBKR_SignedQuantityCarriesOver(t *testing.T) {
	n := NewIBKRNormalizer(zerolog.Nop())

	raw := testRaw(t, domain.BrokerIBKR, "U123", map[string]interface{}{
		"account": map[string]interface{}{"currency": "USD", "net_liquidation": 100000.0},
		"portfolio": []map[string]interface{}{
			{
				"symbol":       "AAPL",
				"sec_type":     "STK",
				"currency":     "USD",
				"position":     -50.0, // short, already signed
				"average_cost": 180.0,
				"market_price": 175.0,
			},
		},
	})

	result, err := n.Normalize(raw)
	require.NoError(t, err)
	require.Len(t, result.Positions, 1)
	assert.Equal(t, -50.0, result.Positions[0].Quantity)
	assert.Equal(t, domain.PositionOpen, result.Positions[0].State)
	assert.False(t, result.Positions[0].NeedsMapping)
}

func TestIBKR_ZeroQuantityMarksClosed(t *testing.T) {
	n := NewIBKRNormalizer(zerolog.Nop())

	raw := testRaw(t, domain.BrokerIBKR, "U123", map[string]interface{}{
		"account": map[string]interface{}{"currency": "USD", "net_liquidation": 100000.0},
		"portfolio": []map[string]interface{}{
			{
				"symbol":       "MSFT",
				"sec_type":     "STK",
				"currency":     "USD",
				"position":     0.0,
				"average_cost": 300.0,
				"market_price": 310.0,
			},
		},
	})

	result, err := n.Normalize(raw)
	require.NoError(t, err)
	require.Len(t, result.Positions, 1)
	assert.Equal(t, domain.PositionClosed, result.Positions[0].State)
}

func TestIBKR_MissingRequiredFieldDropsRecord(t *testing.T) {
	n := NewIBKRNormalizer(zerolog.Nop())

	raw := testRaw(t, domain.BrokerIBKR, "U123", map[string]interface{}{
		"account": map[string]interface{}{"currency": "USD", "net_liquidation": 100000.0},
		"portfolio": []map[string]interface{}{
			{"symbol": "AAPL", "currency": "USD"}, // no position/prices
			{
				"symbol":       "MSFT",
				"sec_type":     "STK",
				"currency":     "USD",
				"position":     10.0,
				"average_cost": 300.0,
				"market_price": 310.0,
			},
		},
	})

	result, err := n.Normalize(raw)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Dropped)
	require.Len(t, result.Positions, 1)
	assert.Equal(t, "MSFT", result.Positions[0].Instrument)
}

func TestIBKR_MissingAccountFailsPayload(t *testing.T) {
	n := NewIBKRNormalizer(zerolog.Nop())

	raw := testRaw(t, domain.BrokerIBKR, "U123", map[string]interface{}{
		"portfolio": []map[string]interface{}{},
	})

	_, err := n.Normalize(raw)
	require.Error(t, err)
	var se *domain.SchemaError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "account", se.Field)
}

func TestMT5_SellTypeNegatesVolume(t *testing.T) {
	n := NewMT5Normalizer(zerolog.Nop())

	raw := testRaw(t, domain.BrokerMT5, "9001", map[string]interface{}{
		"account_info": map[string]interface{}{"currency": "USD", "equity": 25000.0},
		"positions": []map[string]interface{}{
			{
				"symbol":          "EURUSD",
				"type":            1, // sell
				"volume":          2.0,
				"price_open":      1.0850,
				"price_current":   1.0900,
				"currency_profit": "USD",
				"time_update":     1772452800,
			},
			{
				"symbol":          "XAUUSD",
				"type":            0, // buy
				"volume":          1.5,
				"price_open":      2600.0,
				"price_current":   2650.0,
				"currency_profit": "USD",
			},
		},
	})

	result, err := n.Normalize(raw)
	require.NoError(t, err)
	require.Len(t, result.Positions, 2)
	assert.Equal(t, -2.0, result.Positions[0].Quantity, "sell position must be negative")
	assert.Equal(t, 1.5, result.Positions[1].Quantity, "buy position must stay positive")
	assert.Equal(t, time.Unix(1772452800, 0).UTC(), result.Positions[0].UpdatedAt)
}

func TestMT5_MissingProfitCurrencyFlagsNeedsMapping(t *testing.T) {
	n := NewMT5Normalizer(zerolog.Nop())

	raw := testRaw(t, domain.BrokerMT5, "9001", map[string]interface{}{
		"account_info": map[string]interface{}{"currency": "USD", "equity": 25000.0},
		"positions": []map[string]interface{}{
			{
				"symbol":        "JP225",
				"type":          0,
				"volume":        1.0,
				"price_open":    38000.0,
				"price_current": 38500.0,
			},
		},
	})

	result, err := n.Normalize(raw)
	require.NoError(t, err)
	require.Len(t, result.Positions, 1)
	assert.True(t, result.Positions[0].NeedsMapping, "unmapped instruments pass through flagged, never dropped")
}

func TestMT5_DealsBecomeTrades(t *testing.T) {
	n := NewMT5Normalizer(zerolog.Nop())

	raw := testRaw(t, domain.BrokerMT5, "9001", map[string]interface{}{
		"account_info": map[string]interface{}{"currency": "USD", "equity": 25000.0},
		"deals": []map[string]interface{}{
			{
				"symbol":          "EURUSD",
				"type":            1,
				"volume":          1.0,
				"price":           1.0910,
				"commission":      3.5,
				"time":            1772452000,
				"currency_profit": "USD",
			},
		},
	})

	result, err := n.Normalize(raw)
	require.NoError(t, err)
	require.Len(t, result.Trades, 1)
	assert.Equal(t, domain.SideSell, result.Trades[0].Side)
	assert.Equal(t, 3.5, result.Trades[0].Commission)
}

func TestCTrader_SellSideNegatesVolume(t *testing.T) {
	n := NewCTraderNormalizer(zerolog.Nop())

	raw := testRaw(t, domain.BrokerCTrader, "ct-77", map[string]interface{}{
		"trader": map[string]interface{}{"deposit_currency": "EUR", "equity": 8000.0},
		"positions": []map[string]interface{}{
			{
				"symbol_name":     "GBPUSD",
				"trade_side":      "SELL",
				"volume_in_units": 10000.0,
				"entry_price":     1.2700,
				"current_price":   1.2650,
				"quote_currency":  "USD",
			},
		},
	})

	result, err := n.Normalize(raw)
	require.NoError(t, err)
	require.Len(t, result.Positions, 1)
	assert.Equal(t, -10000.0, result.Positions[0].Quantity)
	assert.Equal(t, domain.Currency("USD"), result.Positions[0].Currency)
}

func TestCTrader_UnexpectedTradeSideDropsRecord(t *testing.T) {
	n := NewCTraderNormalizer(zerolog.Nop())

	raw := testRaw(t, domain.BrokerCTrader, "ct-77", map[string]interface{}{
		"trader": map[string]interface{}{"deposit_currency": "EUR", "equity": 8000.0},
		"positions": []map[string]interface{}{
			{
				"symbol_name":     "GBPUSD",
				"trade_side":      "HOLD",
				"volume_in_units": 10000.0,
				"entry_price":     1.2700,
				"current_price":   1.2650,
			},
		},
	})

	result, err := n.Normalize(raw)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Dropped)
	assert.Empty(t, result.Positions)
}

func TestNormalize_InvalidJSONIsSchemaError(t *testing.T) {
	registry := NewRegistry(zerolog.Nop())

	_, err := registry.Normalize(domain.RawAccountData{
		Broker:    domain.BrokerMT5,
		AccountID: "9001",
		Payload:   []byte("{not json"),
	})
	require.Error(t, err)
	var se *domain.SchemaError
	assert.ErrorAs(t, err, &se)
}
