package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/crossfolio/internal/domain"
	"github.com/aristath/crossfolio/internal/modules/portfolio"
	"github.com/aristath/crossfolio/internal/modules/risk"
)

type stubLatest struct {
	snapshot *portfolio.PortfolioSnapshot
	report   *risk.Report
}

func (s *stubLatest) Latest() (*portfolio.PortfolioSnapshot, *risk.Report) {
	return s.snapshot, s.report
}

func testReport() *risk.Report {
	return &risk.Report{
		ID:                 "report-1",
		SnapshotID:         "snap-1",
		GeneratedAt:        time.Now().UTC(),
		BaseCurrency:       domain.CurrencyEUR,
		TotalUnrealizedPnL: 1800,
		PnLByInstrument:    map[string]float64{"AAPL": 2000, "EURUSD": -200},
		PnLByClass: map[domain.AssetClass]float64{
			domain.AssetClassEquity: 2000,
			domain.AssetClassForex:  -200,
		},
		Instruments: map[string]risk.InstrumentRisk{
			"AAPL":   {Instrument: "AAPL", AssetClass: domain.AssetClassEquity, Exposure: 15300, UnrealizedPnL: 2000},
			"EURUSD": {Instrument: "EURUSD", AssetClass: domain.AssetClassForex, Exposure: -20000, UnrealizedPnL: -200},
		},
		Confidence: 0.95,
		Lookback:   252,
	}
}

func newRouter(latest *stubLatest) chi.Router {
	router := chi.NewRouter()
	NewHandler(latest, zerolog.Nop()).RegisterRoutes(router)
	return router
}

func TestHandleGetReport(t *testing.T) {
	router := newRouter(&stubLatest{report: testReport()})

	req := httptest.NewRequest(http.MethodGet, "/risk/report", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got risk.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "report-1", got.ID)
	assert.InDelta(t, 1800, got.TotalUnrealizedPnL, 1e-9)
}

func TestHandleGetReportBeforeFirstRefresh(t *testing.T) {
	router := newRouter(&stubLatest{})

	req := httptest.NewRequest(http.MethodGet, "/risk/report", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleGetInstrumentsSortedByAbsoluteExposure(t *testing.T) {
	router := newRouter(&stubLatest{report: testReport()})

	req := httptest.NewRequest(http.MethodGet, "/risk/instruments", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var instruments []risk.InstrumentRisk
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &instruments))
	require.Len(t, instruments, 2)
	// Short EURUSD has the larger absolute exposure
	assert.Equal(t, "EURUSD", instruments[0].Instrument)
	assert.Equal(t, "AAPL", instruments[1].Instrument)
}

func TestHandleGetPnL(t *testing.T) {
	router := newRouter(&stubLatest{report: testReport()})

	req := httptest.NewRequest(http.MethodGet, "/risk/pnl", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body, "total")
	assert.Contains(t, body, "by_instrument")
	assert.Contains(t, body, "by_class")
}
