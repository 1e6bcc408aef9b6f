// Package currency resolves monetary amounts to the configured base currency
// at reference rates with point-in-time semantics.
package currency

import (
	"sort"
	"time"

	"github.com/aristath/crossfolio/internal/domain"
)

// RateTable holds timestamped rate observations for one pipeline run.
// It is built once before the run and treated as read-only for its duration.
type RateTable struct {
	// pair key -> observations sorted by time ascending
	rates map[string][]domain.RateObservation
}

func pairKey(from, to domain.Currency) string {
	return string(from) + "/" + string(to)
}

// NewRateTable builds a table from rate observations
func NewRateTable(observations []domain.RateObservation) *RateTable {
	t := &RateTable{rates: make(map[string][]domain.RateObservation)}
	for _, obs := range observations {
		if obs.Rate <= 0 {
			continue
		}
		key := pairKey(obs.From, obs.To)
		t.rates[key] = append(t.rates[key], obs)
	}
	for key := range t.rates {
		obs := t.rates[key]
		sort.Slice(obs, func(i, j int) bool { return obs[i].At.Before(obs[j].At) })
	}
	return t
}

// Lookup returns the rate for from->to whose timestamp is closest to, and
// not after, asOf. Looks for the direct pair first, then the inverse.
func (t *RateTable) Lookup(from, to domain.Currency, asOf time.Time) (float64, bool) {
	if rate, ok := t.lookupDirect(from, to, asOf); ok {
		return rate, true
	}
	if rate, ok := t.lookupDirect(to, from, asOf); ok {
		return 1.0 / rate, true
	}
	return 0, false
}

func (t *RateTable) lookupDirect(from, to domain.Currency, asOf time.Time) (float64, bool) {
	obs, ok := t.rates[pairKey(from, to)]
	if !ok || len(obs) == 0 {
		return 0, false
	}

	// Index of the first observation after asOf; the one before it is the
	// latest at-or-before rate. No look-ahead.
	idx := sort.Search(len(obs), func(i int) bool { return obs[i].At.After(asOf) })
	if idx == 0 {
		return 0, false
	}
	return obs[idx-1].Rate, true
}
