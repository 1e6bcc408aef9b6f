package fetch

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/crossfolio/internal/domain"
)

func writePayload(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func TestFileConnectorFetch(t *testing.T) {
	dir := t.TempDir()
	writePayload(t, dir, "ibkr_U123.json", `{"account":{}}`)

	c := NewFileConnector(domain.BrokerIBKR, "U123", filepath.Join(dir, "ibkr_U123.json"))
	raw, err := c.Fetch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.BrokerIBKR, raw.Broker)
	assert.Equal(t, "U123", raw.AccountID)
	assert.JSONEq(t, `{"account":{}}`, string(raw.Payload))
	assert.False(t, raw.FetchedAt.IsZero())
}

func TestFileConnectorFetchMissingFile(t *testing.T) {
	c := NewFileConnector(domain.BrokerIBKR, "U123", filepath.Join(t.TempDir(), "absent.json"))
	_, err := c.Fetch(context.Background())
	assert.Error(t, err)
}

func TestDiscoverFileConnectors(t *testing.T) {
	dir := t.TempDir()
	writePayload(t, dir, "ibkr_U123.json", `{}`)
	writePayload(t, dir, "mt5_900100.json", `{}`)
	writePayload(t, dir, "ctrader_CT-7.json", `{}`)
	writePayload(t, dir, "notes.txt", `irrelevant`)
	writePayload(t, dir, "unknownbroker_X.json", `{}`)
	writePayload(t, dir, "noprefix.json", `{}`)

	connectors, err := DiscoverFileConnectors(dir, zerolog.Nop())
	require.NoError(t, err)
	require.Len(t, connectors, 3)

	brokers := map[domain.BrokerType]string{}
	for _, c := range connectors {
		brokers[c.Broker()] = c.AccountID()
	}
	assert.Equal(t, "U123", brokers[domain.BrokerIBKR])
	assert.Equal(t, "900100", brokers[domain.BrokerMT5])
	assert.Equal(t, "CT-7", brokers[domain.BrokerCTrader])
}

func TestDiscoverFileConnectorsMissingDir(t *testing.T) {
	connectors, err := DiscoverFileConnectors(filepath.Join(t.TempDir(), "nope"), zerolog.Nop())
	require.NoError(t, err)
	assert.Empty(t, connectors)
}
