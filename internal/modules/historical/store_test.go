package historical

import (
	"testing"
	"time"

	"github.com/aristath/crossfolio/internal/database"
	"github.com/aristath/crossfolio/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.New(database.Config{
		Path:    "file:history_test?mode=memory&cache=shared",
		Profile: database.ProfileStandard,
		Name:    "history",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store, err := NewStore(db.Conn(), zerolog.Nop())
	require.NoError(t, err)
	return store
}

func dayPoints(start time.Time, closes ...float64) []domain.PricePoint {
	points := make([]domain.PricePoint, len(closes))
	for i, c := range closes {
		points[i] = domain.PricePoint{
			Time:  start.AddDate(0, 0, i),
			Open:  c - 1,
			High:  c + 1,
			Low:   c - 2,
			Close: c,
		}
	}
	return points
}

func TestStore_SyncAndSeriesOrderedOldestFirst(t *testing.T) {
	store := newTestStore(t)
	start := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.Sync("AAPL", dayPoints(start, 100, 101, 102, 103)))

	series, err := store.Series("AAPL", 0)
	require.NoError(t, err)
	require.Len(t, series, 4)
	assert.Equal(t, 100.0, series[0].Close)
	assert.Equal(t, 103.0, series[3].Close)
	assert.True(t, series[0].Time.Before(series[1].Time))
}

func TestStore_SeriesLimitKeepsMostRecent(t *testing.T) {
	store := newTestStore(t)
	start := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.Sync("AAPL", dayPoints(start, 100, 101, 102, 103, 104)))

	series, err := store.Series("AAPL", 2)
	require.NoError(t, err)
	require.Len(t, series, 2)
	assert.Equal(t, 103.0, series[0].Close)
	assert.Equal(t, 104.0, series[1].Close)
}

func TestStore_SyncIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	start := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	points := dayPoints(start, 100, 101)

	require.NoError(t, store.Sync("EURUSD", points))
	require.NoError(t, store.Sync("EURUSD", points))

	series, err := store.Series("EURUSD", 0)
	require.NoError(t, err)
	assert.Len(t, series, 2)
}

func TestStore_UnknownInstrumentEmptySeries(t *testing.T) {
	store := newTestStore(t)

	series, err := store.Series("NOPE", 0)
	require.NoError(t, err)
	assert.Empty(t, series)
}
