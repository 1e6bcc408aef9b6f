package currency

import (
	"time"

	"github.com/aristath/crossfolio/internal/domain"
	"github.com/rs/zerolog"
)

// rateLookup is the contract shared by the in-run rate table and the
// persistent rate cache fallback.
type rateLookup interface {
	Lookup(from, to domain.Currency, asOf time.Time) (float64, bool)
}

// Converter resolves amounts in any currency to the configured base currency.
//
// Resolution order for X -> base as of time T:
//  1. direct (or inverse) X/base rate at-or-before T
//  2. triangulation through the pivot currency: X -> pivot -> base
//  3. the same two steps against the cached-rate fallback, when configured
//
// Triangulated rates compound the rounding error of each leg; amounts stay
// float64 end to end and are rounded only at presentation.
type Converter struct {
	base  domain.Currency
	pivot domain.Currency
	table *RateTable
	cache rateLookup // optional persistent fallback
	log   zerolog.Logger
}

// NewConverter creates a converter for the given base and pivot currencies
func NewConverter(base, pivot domain.Currency, log zerolog.Logger) *Converter {
	return &Converter{
		base:  base,
		pivot: pivot,
		table: NewRateTable(nil),
		log:   log.With().Str("component", "currency_converter").Logger(),
	}
}

// SetCache sets the persistent rate cache used when the in-run table has no
// path. Optional; without it a missing path is a RateUnavailableError.
func (c *Converter) SetCache(cache rateLookup) {
	c.cache = cache
}

// Base returns the configured base currency
func (c *Converter) Base() domain.Currency {
	return c.base
}

// LoadRates replaces the in-run rate table from the given sources.
// Called once per pipeline run; the table is read-only until the next load.
func (c *Converter) LoadRates(sources ...domain.RateSource) {
	var observations []domain.RateObservation
	for _, src := range sources {
		if src == nil {
			continue
		}
		observations = append(observations, src.Rates()...)
	}
	c.table = NewRateTable(observations)
	c.log.Debug().Int("observations", len(observations)).Msg("Loaded rate table")
}

// Rate returns the X -> base rate as of asOf, triangulating through the
// pivot when no direct path exists.
func (c *Converter) Rate(from domain.Currency, asOf time.Time) (float64, error) {
	if from == c.base {
		return 1.0, nil
	}

	if rate, ok := c.resolve(c.table, from, asOf); ok {
		return rate, nil
	}

	if c.cache != nil {
		if rate, ok := c.resolve(c.cache, from, asOf); ok {
			c.log.Warn().
				Str("from", string(from)).
				Str("to", string(c.base)).
				Time("as_of", asOf).
				Msg("Rate table has no path, using cached rate")
			return rate, nil
		}
	}

	return 0, &domain.RateUnavailableError{From: from, To: c.base, At: asOf.UTC().Format(time.RFC3339)}
}

// resolve attempts direct then triangulated resolution against one lookup
func (c *Converter) resolve(lookup rateLookup, from domain.Currency, asOf time.Time) (float64, bool) {
	if rate, ok := lookup.Lookup(from, c.base, asOf); ok {
		return rate, true
	}

	if from == c.pivot || c.base == c.pivot {
		return 0, false
	}

	toPivot, ok := lookup.Lookup(from, c.pivot, asOf)
	if !ok {
		return 0, false
	}
	pivotToBase, ok := lookup.Lookup(c.pivot, c.base, asOf)
	if !ok {
		return 0, false
	}
	return toPivot * pivotToBase, true
}

// Convert converts an amount in currency from to the base currency as of asOf
func (c *Converter) Convert(amount float64, from domain.Currency, asOf time.Time) (float64, error) {
	rate, err := c.Rate(from, asOf)
	if err != nil {
		return 0, err
	}
	return amount * rate, nil
}

// ConvertPositions fills base-currency valuations on positions in place.
// Positions without a rate path are retained in their raw currency with
// ConversionFailed set, so they stay visible without polluting totals.
func (c *Converter) ConvertPositions(positions []domain.Position) []domain.Position {
	failed := 0
	for i := range positions {
		pos := &positions[i]
		rate, err := c.Rate(pos.Currency, pos.UpdatedAt)
		if err != nil {
			c.log.Warn().
				Err(err).
				Str("instrument", pos.Instrument).
				Str("account", pos.AccountID).
				Msg("Currency conversion failed, retaining position in raw currency")
			pos.ConversionFailed = true
			pos.MarketValueBase = 0
			pos.UnrealizedPnL = 0
			failed++
			continue
		}
		pos.ConversionFailed = false
		pos.MarketValueBase = pos.MarketValue() * rate
		pos.UnrealizedPnL = (pos.MarkPrice - pos.EntryPrice) * pos.Quantity * rate
	}

	if failed > 0 {
		c.log.Warn().
			Int("failed", failed).
			Int("total", len(positions)).
			Msg("Some positions could not be converted to base currency")
	}
	return positions
}

// ConvertAccounts fills base-currency equity on account snapshots in place
func (c *Converter) ConvertAccounts(accounts []domain.Account) []domain.Account {
	for i := range accounts {
		acc := &accounts[i]
		rate, err := c.Rate(acc.BaseCurrency, acc.FetchedAt)
		if err != nil {
			c.log.Warn().
				Err(err).
				Str("account", acc.AccountID).
				Str("currency", string(acc.BaseCurrency)).
				Msg("Equity conversion failed, retaining account in raw currency")
			acc.ConversionFailed = true
			acc.EquityBase = 0
			continue
		}
		acc.ConversionFailed = false
		acc.EquityBase = acc.Equity * rate
	}
	return accounts
}
