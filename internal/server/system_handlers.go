package server

import (
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/crossfolio/internal/database"
)

// SystemHandlers serves process and host diagnostics
type SystemHandlers struct {
	log       zerolog.Logger
	databases []*database.DB
	startedAt time.Time
}

// NewSystemHandlers creates system handlers
func NewSystemHandlers(log zerolog.Logger, databases []*database.DB) *SystemHandlers {
	return &SystemHandlers{
		log:       log.With().Str("handler", "system").Logger(),
		databases: databases,
		startedAt: time.Now().UTC(),
	}
}

// HandleSystemStatus returns process uptime and host CPU/memory usage
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	cpuPercent, memPercent := h.getSystemStats()

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"started_at":     h.startedAt,
		"uptime_seconds": time.Since(h.startedAt).Seconds(),
		"cpu_percent":    cpuPercent,
		"memory_percent": memPercent,
		"goroutines":     runtime.NumGoroutine(),
		"heap_alloc_mb":  float64(m.HeapAlloc) / 1024 / 1024,
		"go_version":     runtime.Version(),
	})
}

// HandleDatabaseStats returns per-database file information
func (h *SystemHandlers) HandleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	stats := make([]map[string]interface{}, 0, len(h.databases))
	for _, db := range h.databases {
		entry := map[string]interface{}{
			"name":    db.Name(),
			"profile": string(db.Profile()),
			"path":    db.Path(),
		}
		if err := db.Conn().Ping(); err != nil {
			entry["status"] = "unreachable"
			entry["error"] = err.Error()
		} else {
			entry["status"] = "ok"
		}
		stats = append(stats, entry)
	}
	h.writeJSON(w, http.StatusOK, stats)
}

// getSystemStats returns host CPU and memory utilization percentages.
// Failures degrade to zero values rather than failing the status endpoint.
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	var cpuPercent float64
	percentages, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to read CPU usage")
	} else if len(percentages) > 0 {
		cpuPercent = percentages[0]
	}

	var memPercent float64
	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to read memory usage")
	} else {
		memPercent = memStat.UsedPercent
	}

	return cpuPercent, memPercent
}

func (h *SystemHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
