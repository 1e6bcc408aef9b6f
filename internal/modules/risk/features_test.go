package risk

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/crossfolio/internal/domain"
)

func TestVolatilityFeaturesFlatBars(t *testing.T) {
	analyzer := newTestAnalyzer(20)
	history := &stubHistory{series: map[string][]domain.PricePoint{
		"FLAT": syntheticSeries(100, 0, featureWindow),
	}}

	features := analyzer.volatilityFeatures("FLAT", history)
	require.NotNil(t, features)

	// High/low spread is the only variation in the synthetic bars
	expected := math.Sqrt(math.Pow(math.Log(1.01/0.99), 2) / (4 * math.Ln2))
	assert.InDelta(t, expected, features.Parkinson, 1e-9)
	assert.Greater(t, features.GarmanKlass, 0.0)
	assert.InDelta(t, 0, features.RollingStd20, 1e-9)
}

func TestVolatilityFeaturesTooFewBars(t *testing.T) {
	analyzer := newTestAnalyzer(20)
	history := &stubHistory{series: map[string][]domain.PricePoint{
		"THIN": syntheticSeries(100, 0.001, 5),
	}}

	assert.Nil(t, analyzer.volatilityFeatures("THIN", history))
}

func TestParkinsonZeroRange(t *testing.T) {
	high := []float64{100, 101, 102}
	assert.InDelta(t, 0, parkinson(high, high), 1e-12)
}

func TestGarmanKlassNonNegative(t *testing.T) {
	open := []float64{100, 101}
	high := []float64{100.5, 101.5}
	low := []float64{99.5, 100.5}
	closes := []float64{101, 100.8}
	assert.GreaterOrEqual(t, garmanKlass(open, high, low, closes), 0.0)
}
