package domain

import (
	"context"
	"encoding/json"
	"time"
)

// RawAccountData is one broker-tagged payload for a single account, exactly
// as produced by a broker connector. The normalizer is the only component
// that interprets Payload.
type RawAccountData struct {
	FetchedAt time.Time
	Broker    BrokerType
	AccountID string
	Payload   json.RawMessage
}

// BrokerConnector supplies raw position/trade/account payloads for one
// account. Authentication, sessions and rate limits are the connector's
// responsibility, not the pipeline's.
type BrokerConnector interface {
	Broker() BrokerType
	AccountID() string
	Fetch(ctx context.Context) (RawAccountData, error)
}

// RateSource supplies reference exchange rates observed at specific times.
// The pipeline treats the returned rates as read-only for the duration of a
// run.
type RateSource interface {
	// Rates returns all known rate observations for the pairs it covers.
	Rates() []RateObservation
}

// RateObservation is one (pair, timestamp) → rate fact
type RateObservation struct {
	At   time.Time
	From Currency
	To   Currency
	Rate float64
}

// Classifier maps an instrument identifier to its asset class.
// A missing classification returns UnclassifiedInstrumentError.
type Classifier interface {
	Classify(instrument string) (AssetClass, error)
}

// PriceHistoryProvider supplies ordered historical price series per
// instrument, oldest first. Required only by the risk analyzer.
type PriceHistoryProvider interface {
	Series(instrument string, limit int) ([]PricePoint, error)
}
