package currency

import (
	"encoding/json"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/crossfolio/internal/domain"
)

// fileRateEntry is one observation in a rates drop file
type fileRateEntry struct {
	At   time.Time `json:"at"`
	From string    `json:"from"`
	To   string    `json:"to"`
	Rate float64   `json:"rate"`
}

// FileRateSource reads rate observations from a JSON file maintained by an
// external rate feed. The file is re-read on every Rates call so a feed can
// update it between refreshes.
type FileRateSource struct {
	path string
	log  zerolog.Logger
}

// NewFileRateSource creates a rate source over one observations file
func NewFileRateSource(path string, log zerolog.Logger) *FileRateSource {
	return &FileRateSource{
		path: path,
		log:  log.With().Str("component", "file_rate_source").Logger(),
	}
}

// Rates returns all valid observations in the file. A missing or malformed
// file yields no observations; conversion then falls back to cached rates.
func (s *FileRateSource) Rates() []domain.RateObservation {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn().Err(err).Str("path", s.path).Msg("Failed to read rates file")
		}
		return nil
	}

	var entries []fileRateEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		s.log.Warn().Err(err).Str("path", s.path).Msg("Rates file is not valid JSON, ignoring")
		return nil
	}

	observations := make([]domain.RateObservation, 0, len(entries))
	for _, e := range entries {
		if e.From == "" || e.To == "" || e.Rate <= 0 || e.At.IsZero() {
			s.log.Warn().
				Str("from", e.From).
				Str("to", e.To).
				Float64("rate", e.Rate).
				Msg("Skipping malformed rate observation")
			continue
		}
		observations = append(observations, domain.RateObservation{
			At:   e.At,
			From: domain.Currency(e.From),
			To:   domain.Currency(e.To),
			Rate: e.Rate,
		})
	}
	return observations
}

var _ domain.RateSource = (*FileRateSource)(nil)
