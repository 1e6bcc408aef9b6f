package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/crossfolio/internal/config"
	"github.com/aristath/crossfolio/internal/database"
	"github.com/aristath/crossfolio/internal/domain"
	"github.com/aristath/crossfolio/internal/events"
	"github.com/aristath/crossfolio/internal/fetch"
	"github.com/aristath/crossfolio/internal/modules/currency"
	"github.com/aristath/crossfolio/internal/modules/normalize"
	"github.com/aristath/crossfolio/internal/modules/portfolio"
	portfoliohandlers "github.com/aristath/crossfolio/internal/modules/portfolio/handlers"
	"github.com/aristath/crossfolio/internal/modules/risk"
	riskhandlers "github.com/aristath/crossfolio/internal/modules/risk/handlers"
	"github.com/aristath/crossfolio/internal/pipeline"
)

type noHistory struct{}

func (noHistory) Series(instrument string, limit int) ([]domain.PricePoint, error) {
	return nil, nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()

	db, err := database.New(database.Config{
		Path:    "file:server_test_" + t.Name() + "?mode=memory&cache=shared",
		Profile: database.ProfileArchive,
		Name:    "snapshots",
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	snapshots, err := portfolio.NewSnapshotRepository(db.Conn(), zerolog.Nop())
	require.NoError(t, err)

	bus := events.NewBus(zerolog.Nop())
	p := pipeline.New(pipeline.Deps{
		Fetcher:     fetch.NewFetcher(nil, time.Second, zerolog.Nop()),
		Normalizers: normalize.NewRegistry(zerolog.Nop()),
		Converter:   currency.NewConverter(domain.CurrencyEUR, domain.CurrencyUSD, zerolog.Nop()),
		Aggregator:  portfolio.NewAggregator(domain.CurrencyEUR, nil, zerolog.Nop()),
		Analyzer:    risk.NewAnalyzer(risk.Config{}, zerolog.Nop()),
		Snapshots:   snapshots,
		History:     noHistory{},
		Bus:         bus,
	}, zerolog.Nop())

	return New(Config{
		Log: zerolog.Nop(),
		Config: &config.Config{
			Port:         8002,
			BaseCurrency: "EUR",
			DevMode:      true,
		},
		Pipeline:         p,
		Bus:              bus,
		PortfolioHandler: portfoliohandlers.NewHandler(p, snapshots, zerolog.Nop()),
		RiskHandler:      riskhandlers.NewHandler(p, zerolog.Nop()),
		Databases:        []*database.DB{db},
	})
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestSystemStatusEndpoint(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/system/status", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Contains(t, body, "uptime_seconds")
}

func TestDatabaseStatsEndpoint(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/system/databases", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var stats []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	require.Len(t, stats, 1)
	assert.Equal(t, "ok", stats[0]["status"])
}

func TestManualRefreshEndpoint(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/system/refresh", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body["snapshot_id"])

	// The refreshed snapshot is now served as latest
	req = httptest.NewRequest(http.MethodGet, "/api/portfolio/summary", nil)
	rec = httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPortfolioBeforeFirstRefresh(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/portfolio/", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
