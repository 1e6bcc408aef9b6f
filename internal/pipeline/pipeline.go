// Package pipeline runs the snapshot refresh sequence end to end.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/crossfolio/internal/domain"
	"github.com/aristath/crossfolio/internal/events"
	"github.com/aristath/crossfolio/internal/fetch"
	"github.com/aristath/crossfolio/internal/modules/currency"
	"github.com/aristath/crossfolio/internal/modules/normalize"
	"github.com/aristath/crossfolio/internal/modules/portfolio"
	"github.com/aristath/crossfolio/internal/modules/risk"
)

// RateRecorder persists rate observations for later fallback lookups
type RateRecorder interface {
	Record(observations []domain.RateObservation) error
}

// Pipeline orchestrates fetch → normalize → convert → aggregate → analyze.
// Refreshes are serialized: at most one aggregation is in flight at a time.
type Pipeline struct {
	mu sync.Mutex

	fetcher     *fetch.Fetcher
	normalizers *normalize.Registry
	converter   *currency.Converter
	aggregator  *portfolio.Aggregator
	analyzer    *risk.Analyzer
	snapshots   *portfolio.SnapshotRepository
	history     domain.PriceHistoryProvider
	rateSources []domain.RateSource
	rateCache   RateRecorder
	bus         *events.Bus
	log         zerolog.Logger

	latestMu       sync.RWMutex
	latestSnapshot *portfolio.PortfolioSnapshot
	latestReport   *risk.Report
}

// Deps collects the pipeline's collaborators
type Deps struct {
	Fetcher     *fetch.Fetcher
	Normalizers *normalize.Registry
	Converter   *currency.Converter
	Aggregator  *portfolio.Aggregator
	Analyzer    *risk.Analyzer
	Snapshots   *portfolio.SnapshotRepository
	History     domain.PriceHistoryProvider
	RateSources []domain.RateSource
	RateCache   RateRecorder
	Bus         *events.Bus
}

// New creates a pipeline
func New(deps Deps, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		fetcher:     deps.Fetcher,
		normalizers: deps.Normalizers,
		converter:   deps.Converter,
		aggregator:  deps.Aggregator,
		analyzer:    deps.Analyzer,
		snapshots:   deps.Snapshots,
		history:     deps.History,
		rateSources: deps.RateSources,
		rateCache:   deps.RateCache,
		bus:         deps.Bus,
		log:         log.With().Str("component", "pipeline").Logger(),
	}
}

// Refresh runs one full refresh cycle and returns the resulting snapshot
// and risk report. Data-quality problems degrade the outputs; only
// infrastructure failures (snapshot persistence) return an error.
func (p *Pipeline) Refresh(ctx context.Context) (*portfolio.PortfolioSnapshot, *risk.Report, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	started := time.Now()
	p.publish(events.RefreshStarted, nil)

	batch := p.fetcher.FetchAll(ctx)

	var (
		positions []domain.Position
		accounts  []domain.Account
		missing   = append([]string(nil), batch.Missing...)
	)
	for _, raw := range batch.Raw {
		result, err := p.normalizers.Normalize(raw)
		if err != nil {
			// Payload-level failure: the whole account is unusable
			p.log.Warn().
				Err(err).
				Str("broker", string(raw.Broker)).
				Str("account_id", raw.AccountID).
				Msg("Failed to normalize account payload, treating account as missing")
			missing = append(missing, raw.AccountID)
			continue
		}
		positions = append(positions, result.Positions...)
		if result.Account != nil {
			accounts = append(accounts, *result.Account)
		}
	}

	p.refreshRates()

	positions = p.converter.ConvertPositions(positions)
	accounts = p.converter.ConvertAccounts(accounts)

	snapshot := p.aggregator.Aggregate(portfolio.Input{
		AsOf:            batch.FetchedAt,
		Positions:       positions,
		Accounts:        accounts,
		MissingAccounts: missing,
	})

	report := p.analyzer.Analyze(snapshot, p.history)

	if err := p.snapshots.Save(snapshot); err != nil {
		p.publish(events.RefreshFailed, map[string]interface{}{"error": err.Error()})
		return nil, nil, fmt.Errorf("failed to persist snapshot: %w", err)
	}
	p.publish(events.SnapshotPersisted, map[string]interface{}{"snapshot_id": snapshot.ID})

	p.latestMu.Lock()
	p.latestSnapshot = snapshot
	p.latestReport = report
	p.latestMu.Unlock()

	eventType := events.RefreshCompleted
	if snapshot.Partial {
		eventType = events.RefreshPartial
	}
	p.publish(eventType, map[string]interface{}{
		"snapshot_id":      snapshot.ID,
		"report_id":        report.ID,
		"positions":        len(snapshot.Positions),
		"missing_accounts": snapshot.MissingAccounts,
		"duration_ms":      time.Since(started).Milliseconds(),
	})

	p.log.Info().
		Str("snapshot_id", snapshot.ID).
		Bool("partial", snapshot.Partial).
		Dur("duration", time.Since(started)).
		Msg("Refresh completed")

	return snapshot, report, nil
}

// Latest returns the most recent snapshot and report, or nils before the
// first successful refresh.
func (p *Pipeline) Latest() (*portfolio.PortfolioSnapshot, *risk.Report) {
	p.latestMu.RLock()
	defer p.latestMu.RUnlock()
	return p.latestSnapshot, p.latestReport
}

// refreshRates pulls observations from all rate sources into the converter's
// table and records them in the cache for future fallback lookups.
func (p *Pipeline) refreshRates() {
	if len(p.rateSources) == 0 {
		return
	}

	p.converter.LoadRates(p.rateSources...)

	if p.rateCache != nil {
		total := 0
		for _, source := range p.rateSources {
			observations := source.Rates()
			if err := p.rateCache.Record(observations); err != nil {
				p.log.Warn().Err(err).Msg("Failed to record rate observations")
				continue
			}
			total += len(observations)
		}
		p.publish(events.RatesUpdated, map[string]interface{}{"observations": total})
	}
}

func (p *Pipeline) publish(eventType events.EventType, data map[string]interface{}) {
	if p.bus == nil {
		return
	}
	p.bus.Publish(eventType, "pipeline", data)
}
