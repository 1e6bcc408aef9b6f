package domain

import "fmt"

// SchemaError reports a malformed broker payload. The offending record is
// dropped and logged; the pipeline continues with the remaining records.
type SchemaError struct {
	Broker  BrokerType
	Field   string
	Message string
}

func (e *SchemaError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("schema error in %s payload: field %q: %s", e.Broker, e.Field, e.Message)
	}
	return fmt.Sprintf("schema error in %s payload: %s", e.Broker, e.Message)
}

// NewSchemaError creates a SchemaError for a specific payload field
func NewSchemaError(broker BrokerType, field, message string) *SchemaError {
	return &SchemaError{Broker: broker, Field: field, Message: message}
}

// RateUnavailableError reports that no direct or triangulated rate path
// exists for a currency pair at (or before) the requested time.
type RateUnavailableError struct {
	From Currency
	To   Currency
	At   string // RFC3339, empty when no time constraint applied
}

func (e *RateUnavailableError) Error() string {
	if e.At != "" {
		return fmt.Sprintf("no rate available for %s/%s as of %s", e.From, e.To, e.At)
	}
	return fmt.Sprintf("no rate available for %s/%s", e.From, e.To)
}

// UnclassifiedInstrumentError reports a missing asset-class classification.
// Recoverable: the aggregator buckets the instrument as "unclassified".
type UnclassifiedInstrumentError struct {
	Instrument string
}

func (e *UnclassifiedInstrumentError) Error() string {
	return fmt.Sprintf("no asset class classification for instrument %q", e.Instrument)
}

// InsufficientHistoryError reports that an instrument's price history is
// shorter than the analyzer's lookback window. Non-fatal: the affected metric
// is reported as unavailable, other metrics still compute.
type InsufficientHistoryError struct {
	Instrument string
	Have       int
	Want       int
}

func (e *InsufficientHistoryError) Error() string {
	return fmt.Sprintf("insufficient history for %q: have %d periods, want %d", e.Instrument, e.Have, e.Want)
}
