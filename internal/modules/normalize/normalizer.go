// Package normalize converts broker-specific payloads into canonical
// position, trade and account records.
//
// One normalizer exists per broker type, all implementing the same mapping
// contract so the rest of the pipeline stays broker-agnostic. Selection is
// keyed on the explicit broker tag of the payload, never on payload shape.
package normalize

import (
	"fmt"

	"github.com/aristath/crossfolio/internal/domain"
	"github.com/rs/zerolog"
)

// Result holds the canonical records produced from one account payload
type Result struct {
	Account   *domain.Account
	Positions []domain.Position
	Trades    []domain.Trade
	// Dropped counts records rejected with a schema error. They are logged
	// and skipped; the payload's remaining records still normalize.
	Dropped int
}

// Normalizer maps one broker's raw payload to canonical records
type Normalizer interface {
	Broker() domain.BrokerType
	Normalize(raw domain.RawAccountData) (Result, error)
}

// Registry selects normalizers by broker tag
type Registry struct {
	normalizers map[domain.BrokerType]Normalizer
	log         zerolog.Logger
}

// NewRegistry creates a registry with the standard broker normalizers
func NewRegistry(log zerolog.Logger) *Registry {
	r := &Registry{
		normalizers: make(map[domain.BrokerType]Normalizer),
		log:         log.With().Str("component", "normalizer").Logger(),
	}
	r.Register(NewIBKRNormalizer(log))
	r.Register(NewMT5Normalizer(log))
	r.Register(NewCTraderNormalizer(log))
	return r
}

// Register adds a normalizer, replacing any prior one for the same broker
func (r *Registry) Register(n Normalizer) {
	r.normalizers[n.Broker()] = n
}

// Normalize dispatches raw account data to the normalizer for its broker tag
func (r *Registry) Normalize(raw domain.RawAccountData) (Result, error) {
	n, ok := r.normalizers[raw.Broker]
	if !ok {
		return Result{}, fmt.Errorf("no normalizer registered for broker %q", raw.Broker)
	}

	result, err := n.Normalize(raw)
	if err != nil {
		return Result{}, err
	}

	if result.Dropped > 0 {
		r.log.Warn().
			Str("broker", string(raw.Broker)).
			Str("account", raw.AccountID).
			Int("dropped", result.Dropped).
			Msg("Some records were dropped due to schema errors")
	}

	return result, nil
}
