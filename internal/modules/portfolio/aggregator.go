package portfolio

import (
	"math"
	"sort"
	"time"

	"github.com/aristath/crossfolio/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Aggregator builds consolidated portfolio snapshots from normalized,
// currency-converted positions.
type Aggregator struct {
	baseCurrency domain.Currency
	classifier   domain.Classifier
	log          zerolog.Logger
}

// NewAggregator creates an aggregator for the given base currency
func NewAggregator(baseCurrency domain.Currency, classifier domain.Classifier, log zerolog.Logger) *Aggregator {
	return &Aggregator{
		baseCurrency: baseCurrency,
		classifier:   classifier,
		log:          log.With().Str("component", "aggregator").Logger(),
	}
}

// Aggregate produces exactly one snapshot from the input batch.
//
// Duplicate records (same broker, account, instrument and timestamp) are
// collapsed, so re-aggregating the same input yields an equal snapshot.
// A batch with missing accounts still aggregates over the rest; the gap is
// reported via Partial and MissingAccounts, it is not an error.
func (a *Aggregator) Aggregate(input Input) *PortfolioSnapshot {
	asOf := input.AsOf
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}

	positions, deduplicated := dedupe(input.Positions)

	snapshot := &PortfolioSnapshot{
		ID:              uuid.NewString(),
		CreatedAt:       asOf,
		BaseCurrency:    a.baseCurrency,
		Positions:       positions,
		Accounts:        input.Accounts,
		ByInstrument:    make(map[string]InstrumentExposure),
		ExposureByClass: make(map[domain.AssetClass]float64),
		Deduplicated:    deduplicated,
	}

	if len(input.MissingAccounts) > 0 {
		snapshot.Partial = true
		snapshot.MissingAccounts = append([]string(nil), input.MissingAccounts...)
		sort.Strings(snapshot.MissingAccounts)
		a.log.Warn().
			Strs("missing_accounts", snapshot.MissingAccounts).
			Msg("Aggregating without some accounts, snapshot marked partial")
	}

	accounts := make(map[string][]string) // instrument -> contributing account IDs

	for _, pos := range positions {
		if pos.State != domain.PositionOpen {
			// Closed positions stay on the snapshot for history but carry no
			// exposure.
			continue
		}

		entry := snapshot.ByInstrument[pos.Instrument]
		entry.Instrument = pos.Instrument
		entry.NeedsMapping = entry.NeedsMapping || pos.NeedsMapping

		if pos.ConversionFailed {
			entry.Unconverted++
			snapshot.Unconverted++
		} else {
			entry.NetQuantity += pos.Quantity
			entry.Exposure += pos.MarketValueBase
			entry.UnrealizedPnL += pos.UnrealizedPnL
		}

		accounts[pos.Instrument] = append(accounts[pos.Instrument], pos.AccountID)
		snapshot.ByInstrument[pos.Instrument] = entry
	}

	for instrument, entry := range snapshot.ByInstrument {
		entry.AssetClass = a.classify(instrument, snapshot)
		entry.Accounts = uniqueSorted(accounts[instrument])
		snapshot.ByInstrument[instrument] = entry

		snapshot.TotalExposure += entry.Exposure
		snapshot.GrossExposure += math.Abs(entry.Exposure)
		snapshot.ExposureByClass[entry.AssetClass] += entry.Exposure
	}

	for _, acc := range input.Accounts {
		if acc.ConversionFailed {
			snapshot.Unconverted++
			continue
		}
		snapshot.TotalEquity += acc.EquityBase
	}

	a.log.Info().
		Int("positions", len(positions)).
		Int("instruments", len(snapshot.ByInstrument)).
		Int("accounts", len(input.Accounts)).
		Bool("partial", snapshot.Partial).
		Float64("total_equity", snapshot.TotalEquity).
		Msg("Aggregated portfolio snapshot")

	return snapshot
}

// classify resolves an instrument's asset class, bucketing unknown
// instruments as unclassified instead of aborting aggregation.
func (a *Aggregator) classify(instrument string, snapshot *PortfolioSnapshot) domain.AssetClass {
	if a.classifier == nil {
		snapshot.Unclassified++
		return domain.AssetClassUnclassified
	}
	class, err := a.classifier.Classify(instrument)
	if err != nil {
		a.log.Warn().Err(err).Str("instrument", instrument).Msg("Instrument not classified, using unclassified bucket")
		snapshot.Unclassified++
		return domain.AssetClassUnclassified
	}
	return class
}

// dedupe collapses duplicate position records, keyed on broker, account,
// instrument and timestamp. Order of first occurrence is preserved.
func dedupe(positions []domain.Position) ([]domain.Position, int) {
	seen := make(map[string]bool, len(positions))
	result := make([]domain.Position, 0, len(positions))
	dropped := 0
	for _, pos := range positions {
		key := pos.Key()
		if seen[key] {
			dropped++
			continue
		}
		seen[key] = true
		result = append(result, pos)
	}
	return result, dropped
}

func uniqueSorted(values []string) []string {
	seen := make(map[string]bool, len(values))
	var result []string
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			result = append(result, v)
		}
	}
	sort.Strings(result)
	return result
}
