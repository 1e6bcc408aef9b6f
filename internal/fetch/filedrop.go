package fetch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/aristath/crossfolio/internal/domain"
)

// FileConnector reads an account payload from a JSON file dropped by an
// external broker bridge. The file name encodes broker and account:
// <broker>_<account>.json, e.g. ibkr_U1234567.json.
type FileConnector struct {
	broker    domain.BrokerType
	accountID string
	path      string
}

// NewFileConnector creates a connector over one payload file
func NewFileConnector(broker domain.BrokerType, accountID, path string) *FileConnector {
	return &FileConnector{broker: broker, accountID: accountID, path: path}
}

// Broker returns the broker tag
func (c *FileConnector) Broker() domain.BrokerType { return c.broker }

// AccountID returns the account identifier
func (c *FileConnector) AccountID() string { return c.accountID }

// Fetch reads the payload file. The file's modification time is used as the
// observation timestamp so stale drops are not mistaken for fresh data.
func (c *FileConnector) Fetch(ctx context.Context) (domain.RawAccountData, error) {
	if err := ctx.Err(); err != nil {
		return domain.RawAccountData{}, err
	}

	info, err := os.Stat(c.path)
	if err != nil {
		return domain.RawAccountData{}, fmt.Errorf("failed to stat payload file: %w", err)
	}

	payload, err := os.ReadFile(c.path)
	if err != nil {
		return domain.RawAccountData{}, fmt.Errorf("failed to read payload file: %w", err)
	}

	return domain.RawAccountData{
		FetchedAt: info.ModTime().UTC(),
		Broker:    c.broker,
		AccountID: c.accountID,
		Payload:   payload,
	}, nil
}

// DiscoverFileConnectors scans a directory for payload drops and builds one
// connector per recognized file. Unrecognized files are logged and skipped.
func DiscoverFileConnectors(dir string, log zerolog.Logger) ([]domain.BrokerConnector, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read accounts directory: %w", err)
	}

	var connectors []domain.BrokerConnector
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		name := strings.TrimSuffix(entry.Name(), ".json")
		broker, accountID, ok := strings.Cut(name, "_")
		if !ok {
			log.Warn().Str("file", entry.Name()).Msg("Skipping payload file without broker prefix")
			continue
		}

		switch domain.BrokerType(broker) {
		case domain.BrokerIBKR, domain.BrokerMT5, domain.BrokerCTrader:
		default:
			log.Warn().Str("file", entry.Name()).Str("broker", broker).Msg("Skipping payload file with unknown broker")
			continue
		}

		connectors = append(connectors, NewFileConnector(
			domain.BrokerType(broker),
			accountID,
			filepath.Join(dir, entry.Name()),
		))
	}

	log.Info().Int("connectors", len(connectors)).Str("dir", dir).Msg("Discovered account payload files")
	return connectors, nil
}

var _ domain.BrokerConnector = (*FileConnector)(nil)
