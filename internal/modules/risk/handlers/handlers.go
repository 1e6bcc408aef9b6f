// Package handlers provides HTTP handlers for risk reports.
package handlers

import (
	"encoding/json"
	"net/http"
	"sort"

	"github.com/rs/zerolog"

	"github.com/aristath/crossfolio/internal/modules/portfolio"
	"github.com/aristath/crossfolio/internal/modules/risk"
)

// LatestSource yields the most recent refresh outputs
type LatestSource interface {
	Latest() (*portfolio.PortfolioSnapshot, *risk.Report)
}

// Handler handles risk HTTP requests
type Handler struct {
	latest LatestSource
	log    zerolog.Logger
}

// NewHandler creates a new risk handler
func NewHandler(latest LatestSource, log zerolog.Logger) *Handler {
	return &Handler{
		latest: latest,
		log:    log.With().Str("handler", "risk").Logger(),
	}
}

// HandleGetReport returns the latest risk report in full
func (h *Handler) HandleGetReport(w http.ResponseWriter, r *http.Request) {
	_, report := h.latest.Latest()
	if report == nil {
		h.writeError(w, http.StatusNotFound, "no risk report available yet")
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}

// HandleGetInstruments returns per-instrument metrics sorted by absolute exposure
func (h *Handler) HandleGetInstruments(w http.ResponseWriter, r *http.Request) {
	_, report := h.latest.Latest()
	if report == nil {
		h.writeError(w, http.StatusNotFound, "no risk report available yet")
		return
	}

	instruments := make([]risk.InstrumentRisk, 0, len(report.Instruments))
	for _, ir := range report.Instruments {
		instruments = append(instruments, ir)
	}
	sort.Slice(instruments, func(i, j int) bool {
		ai, aj := instruments[i].Exposure, instruments[j].Exposure
		if ai < 0 {
			ai = -ai
		}
		if aj < 0 {
			aj = -aj
		}
		return ai > aj
	})

	h.writeJSON(w, http.StatusOK, instruments)
}

// HandleGetPnL returns the unrealized PnL attribution
func (h *Handler) HandleGetPnL(w http.ResponseWriter, r *http.Request) {
	_, report := h.latest.Latest()
	if report == nil {
		h.writeError(w, http.StatusNotFound, "no risk report available yet")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"total":         report.TotalUnrealizedPnL,
		"by_instrument": report.PnLByInstrument,
		"by_class":      report.PnLByClass,
		"base_currency": report.BaseCurrency,
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
