// Package handlers provides HTTP handlers for portfolio snapshots.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/crossfolio/internal/modules/portfolio"
	"github.com/aristath/crossfolio/internal/modules/risk"
)

const defaultHistoryLimit = 50

// LatestSource yields the most recent refresh outputs
type LatestSource interface {
	Latest() (*portfolio.PortfolioSnapshot, *risk.Report)
}

// Handler handles portfolio HTTP requests
type Handler struct {
	latest  LatestSource
	archive *portfolio.SnapshotRepository
	log     zerolog.Logger
}

// NewHandler creates a new portfolio handler
func NewHandler(latest LatestSource, archive *portfolio.SnapshotRepository, log zerolog.Logger) *Handler {
	return &Handler{
		latest:  latest,
		archive: archive,
		log:     log.With().Str("handler", "portfolio").Logger(),
	}
}

// HandleGetLatest returns the most recent portfolio snapshot in full
func (h *Handler) HandleGetLatest(w http.ResponseWriter, r *http.Request) {
	snapshot, _ := h.latest.Latest()
	if snapshot == nil {
		h.writeError(w, http.StatusNotFound, "no snapshot available yet")
		return
	}
	h.writeJSON(w, http.StatusOK, snapshot)
}

// HandleGetSummary returns headline figures from the latest snapshot
func (h *Handler) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	snapshot, _ := h.latest.Latest()
	if snapshot == nil {
		h.writeError(w, http.StatusNotFound, "no snapshot available yet")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"snapshot_id":       snapshot.ID,
		"created_at":        snapshot.CreatedAt,
		"base_currency":     snapshot.BaseCurrency,
		"total_equity":      snapshot.TotalEquity,
		"total_exposure":    snapshot.TotalExposure,
		"gross_exposure":    snapshot.GrossExposure,
		"exposure_by_class": snapshot.ExposureByClass,
		"positions":         len(snapshot.Positions),
		"instruments":       len(snapshot.ByInstrument),
		"partial":           snapshot.Partial,
		"missing_accounts":  snapshot.MissingAccounts,
		"unconverted":       snapshot.Unconverted,
		"unclassified":      snapshot.Unclassified,
	})
}

// HandleListSnapshots returns archived snapshot summaries, newest first
func (h *Handler) HandleListSnapshots(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	summaries, err := h.archive.List(limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list snapshots")
		h.writeError(w, http.StatusInternalServerError, "failed to list snapshots")
		return
	}
	h.writeJSON(w, http.StatusOK, summaries)
}

// HandleGetSnapshot returns one archived snapshot in full
func (h *Handler) HandleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	snapshot, err := h.archive.Get(id)
	if err != nil {
		h.log.Error().Err(err).Str("snapshot_id", id).Msg("Failed to load snapshot")
		h.writeError(w, http.StatusInternalServerError, "failed to load snapshot")
		return
	}
	if snapshot == nil {
		h.writeError(w, http.StatusNotFound, "snapshot not found")
		return
	}
	h.writeJSON(w, http.StatusOK, snapshot)
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
