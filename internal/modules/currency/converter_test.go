package currency

import (
	"testing"
	"time"

	"github.com/aristath/crossfolio/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSource []domain.RateObservation

func (s staticSource) Rates() []domain.RateObservation { return s }

var testTime = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

func newTestConverter(t *testing.T, base, pivot domain.Currency, obs ...domain.RateObservation) *Converter {
	t.Helper()
	c := NewConverter(base, pivot, zerolog.Nop())
	c.LoadRates(staticSource(obs))
	return c
}

func TestConvert_SameCurrencyIsIdentity(t *testing.T) {
	c := newTestConverter(t, domain.CurrencyEUR, domain.CurrencyUSD)

	got, err := c.Convert(123.45, domain.CurrencyEUR, testTime)
	require.NoError(t, err)
	assert.Equal(t, 123.45, got)
}

func TestConvert_DirectRate(t *testing.T) {
	c := newTestConverter(t, domain.CurrencyEUR, domain.CurrencyUSD,
		domain.RateObservation{At: testTime.Add(-time.Hour), From: "USD", To: "EUR", Rate: 0.92},
	)

	got, err := c.Convert(100, domain.CurrencyUSD, testTime)
	require.NoError(t, err)
	assert.InDelta(t, 92.0, got, 1e-9)
}

func TestConvert_InverseRate(t *testing.T) {
	// Only EUR->USD known; USD->EUR resolves via inversion
	c := newTestConverter(t, domain.CurrencyEUR, domain.CurrencyUSD,
		domain.RateObservation{At: testTime.Add(-time.Hour), From: "EUR", To: "USD", Rate: 1.10},
	)

	got, err := c.Convert(110, domain.CurrencyUSD, testTime)
	require.NoError(t, err)
	assert.InDelta(t, 100.0, got, 1e-9)
}

func TestConvert_NoLookAhead(t *testing.T) {
	c := newTestConverter(t, domain.CurrencyEUR, domain.CurrencyUSD,
		domain.RateObservation{At: testTime.Add(-2 * time.Hour), From: "USD", To: "EUR", Rate: 0.90},
		domain.RateObservation{At: testTime.Add(time.Hour), From: "USD", To: "EUR", Rate: 0.95},
	)

	// The later rate exists but is after asOf; the earlier one must win.
	got, err := c.Convert(100, domain.CurrencyUSD, testTime)
	require.NoError(t, err)
	assert.InDelta(t, 90.0, got, 1e-9)
}

func TestConvert_OnlyFutureRatesUnavailable(t *testing.T) {
	c := newTestConverter(t, domain.CurrencyEUR, domain.CurrencyUSD,
		domain.RateObservation{At: testTime.Add(time.Hour), From: "USD", To: "EUR", Rate: 0.95},
	)

	_, err := c.Convert(100, domain.CurrencyUSD, testTime)
	require.Error(t, err)
	var rateErr *domain.RateUnavailableError
	assert.ErrorAs(t, err, &rateErr)
}

func TestConvert_TriangulationThroughPivot(t *testing.T) {
	// EUR amount to JPY base: EUR->USD=1.10, USD->JPY=150 => 1.10*150
	c := newTestConverter(t, domain.CurrencyJPY, domain.CurrencyUSD,
		domain.RateObservation{At: testTime.Add(-time.Hour), From: "EUR", To: "USD", Rate: 1.10},
		domain.RateObservation{At: testTime.Add(-time.Hour), From: "USD", To: "JPY", Rate: 150.0},
	)

	got, err := c.Convert(100, domain.CurrencyEUR, testTime)
	require.NoError(t, err)
	assert.InDelta(t, 100*1.10*150, got, 1e-6)
}

func TestConvert_TriangulationRoundTrip(t *testing.T) {
	obs := []domain.RateObservation{
		{At: testTime.Add(-time.Hour), From: "EUR", To: "USD", Rate: 1.10},
		{At: testTime.Add(-time.Hour), From: "USD", To: "JPY", Rate: 150.0},
	}

	toJPY := newTestConverter(t, domain.CurrencyJPY, domain.CurrencyUSD, obs...)
	toEUR := newTestConverter(t, domain.CurrencyEUR, domain.CurrencyUSD, obs...)

	jpy, err := toJPY.Convert(100, domain.CurrencyEUR, testTime)
	require.NoError(t, err)

	// Round-trip through two triangulations compounds rounding error; the
	// result must still approximate the original amount.
	back, err := toEUR.Convert(jpy, domain.CurrencyJPY, testTime)
	require.NoError(t, err)
	assert.InDelta(t, 100.0, back, 1e-6)
}

func TestConvert_NoPathReturnsRateUnavailable(t *testing.T) {
	c := newTestConverter(t, domain.CurrencyEUR, domain.CurrencyUSD,
		domain.RateObservation{At: testTime.Add(-time.Hour), From: "GBP", To: "CHF", Rate: 1.12},
	)

	_, err := c.Convert(100, domain.Currency("CHF"), testTime)
	require.Error(t, err)
	var rateErr *domain.RateUnavailableError
	require.ErrorAs(t, err, &rateErr)
	assert.Equal(t, domain.Currency("CHF"), rateErr.From)
	assert.Equal(t, domain.CurrencyEUR, rateErr.To)
}

func TestConvertPositions_FailedConversionRetainsPosition(t *testing.T) {
	c := newTestConverter(t, domain.CurrencyEUR, domain.CurrencyUSD,
		domain.RateObservation{At: testTime.Add(-time.Hour), From: "USD", To: "EUR", Rate: 0.90},
	)

	positions := []domain.Position{
		{
			Instrument: "AAPL", Currency: "USD", Quantity: 10,
			EntryPrice: 100, MarkPrice: 110, UpdatedAt: testTime,
		},
		{
			Instrument: "EXOTIC", Currency: "XXX", Quantity: 5,
			EntryPrice: 50, MarkPrice: 55, UpdatedAt: testTime,
		},
	}

	converted := c.ConvertPositions(positions)
	require.Len(t, converted, 2)

	assert.False(t, converted[0].ConversionFailed)
	assert.InDelta(t, 10*110*0.90, converted[0].MarketValueBase, 1e-9)
	assert.InDelta(t, (110-100)*10*0.90, converted[0].UnrealizedPnL, 1e-9)

	assert.True(t, converted[1].ConversionFailed, "position without a rate path is flagged, not dropped")
	assert.Equal(t, "EXOTIC", converted[1].Instrument)
}

func TestConvertAccounts_EquityInBaseCurrency(t *testing.T) {
	c := newTestConverter(t, domain.CurrencyEUR, domain.CurrencyUSD,
		domain.RateObservation{At: testTime.Add(-time.Hour), From: "USD", To: "EUR", Rate: 0.90},
	)

	accounts := []domain.Account{
		{AccountID: "A", BaseCurrency: "USD", Equity: 1000, FetchedAt: testTime},
		{AccountID: "B", BaseCurrency: "EUR", Equity: 500, FetchedAt: testTime},
	}

	converted := c.ConvertAccounts(accounts)
	assert.InDelta(t, 900.0, converted[0].EquityBase, 1e-9)
	assert.InDelta(t, 500.0, converted[1].EquityBase, 1e-9)
}
