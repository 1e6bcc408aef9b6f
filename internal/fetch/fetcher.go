// Package fetch fans out account data collection across broker connectors.
package fetch

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/crossfolio/internal/domain"
)

// Result is the outcome of one batch fetch: the payloads that arrived plus
// the accounts that did not, so downstream aggregation can mark the snapshot
// partial instead of failing.
type Result struct {
	FetchedAt time.Time
	Raw       []domain.RawAccountData
	Missing   []string
}

// Fetcher collects raw account data from all registered connectors
type Fetcher struct {
	connectors []domain.BrokerConnector
	timeout    time.Duration
	log        zerolog.Logger
}

// NewFetcher creates a fetcher over a fixed set of connectors
func NewFetcher(connectors []domain.BrokerConnector, timeout time.Duration, log zerolog.Logger) *Fetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Fetcher{
		connectors: connectors,
		timeout:    timeout,
		log:        log.With().Str("component", "fetcher").Logger(),
	}
}

// FetchAll queries every connector concurrently. A connector failure never
// fails the batch: the account is recorded as missing and the rest proceed.
func (f *Fetcher) FetchAll(ctx context.Context) Result {
	result := Result{FetchedAt: time.Now().UTC()}
	if len(f.connectors) == 0 {
		return result
	}

	type outcome struct {
		raw     domain.RawAccountData
		account string
		err     error
	}

	results := make(chan outcome, len(f.connectors))
	var wg sync.WaitGroup

	for _, connector := range f.connectors {
		wg.Add(1)
		go func(c domain.BrokerConnector) {
			defer wg.Done()

			fetchCtx, cancel := context.WithTimeout(ctx, f.timeout)
			defer cancel()

			raw, err := c.Fetch(fetchCtx)
			results <- outcome{raw: raw, account: c.AccountID(), err: err}
		}(connector)
	}

	wg.Wait()
	close(results)

	for o := range results {
		if o.err != nil {
			f.log.Warn().
				Err(o.err).
				Str("account_id", o.account).
				Msg("Account fetch failed, continuing without it")
			result.Missing = append(result.Missing, o.account)
			continue
		}
		result.Raw = append(result.Raw, o.raw)
	}

	// Deterministic ordering for downstream consumers and tests
	sort.Slice(result.Raw, func(i, j int) bool {
		if result.Raw[i].Broker != result.Raw[j].Broker {
			return result.Raw[i].Broker < result.Raw[j].Broker
		}
		return result.Raw[i].AccountID < result.Raw[j].AccountID
	})
	sort.Strings(result.Missing)

	f.log.Info().
		Int("fetched", len(result.Raw)).
		Int("missing", len(result.Missing)).
		Msg("Batch fetch completed")

	return result
}
