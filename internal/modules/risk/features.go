package risk

import (
	"math"

	"github.com/markcheno/go-talib"

	"github.com/aristath/crossfolio/internal/domain"
)

const (
	atrPeriod        = 14
	rollingStdPeriod = 20
	featureWindow    = 60
)

// VolatilityFeatures are range-based volatility estimators computed from
// recent OHLC bars. They complement close-to-close volatility: range
// estimators converge faster on fewer observations.
type VolatilityFeatures struct {
	ATR14        float64 `json:"atr_14"`
	RollingStd20 float64 `json:"rolling_std_20"`
	Parkinson    float64 `json:"parkinson"`
	GarmanKlass  float64 `json:"garman_klass"`
}

// volatilityFeatures computes range-based estimators for an instrument, or
// nil when there are not enough bars. Feature gaps are silent: these are
// supplementary signals, not report metrics.
func (a *Analyzer) volatilityFeatures(instrument string, history domain.PriceHistoryProvider) *VolatilityFeatures {
	if history == nil {
		return nil
	}

	series, err := history.Series(instrument, featureWindow)
	if err != nil || len(series) < rollingStdPeriod+1 {
		return nil
	}

	high := make([]float64, len(series))
	low := make([]float64, len(series))
	closes := make([]float64, len(series))
	opens := make([]float64, len(series))
	for i, bar := range series {
		high[i] = bar.High
		low[i] = bar.Low
		closes[i] = bar.Close
		opens[i] = bar.Open
	}

	features := &VolatilityFeatures{
		Parkinson:   parkinson(high, low),
		GarmanKlass: garmanKlass(opens, high, low, closes),
	}

	if len(series) > atrPeriod {
		atr := talib.Atr(high, low, closes, atrPeriod)
		features.ATR14 = atr[len(atr)-1]
	}

	// Rolling std of close-to-close log returns over the last N periods.
	logReturns := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] <= 0 || closes[i] <= 0 {
			return nil
		}
		logReturns = append(logReturns, math.Log(closes[i]/closes[i-1]))
	}
	std := talib.StdDev(logReturns, rollingStdPeriod, 1.0)
	features.RollingStd20 = std[len(std)-1]

	return features
}

// parkinson estimates volatility from high/low ranges:
// sqrt(1/(4N ln2) * sum(ln(H/L)^2))
func parkinson(high, low []float64) float64 {
	n := len(high)
	if n == 0 {
		return 0
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		if low[i] <= 0 {
			return 0
		}
		hl := math.Log(high[i] / low[i])
		sum += hl * hl
	}
	return math.Sqrt(sum / (4 * float64(n) * math.Ln2))
}

// garmanKlass extends Parkinson with open/close information:
// sqrt(1/N * sum(0.5*ln(H/L)^2 - (2ln2-1)*ln(C/O)^2))
func garmanKlass(open, high, low, closes []float64) float64 {
	n := len(open)
	if n == 0 {
		return 0
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		if low[i] <= 0 || open[i] <= 0 {
			return 0
		}
		hl := math.Log(high[i] / low[i])
		co := math.Log(closes[i] / open[i])
		sum += 0.5*hl*hl - (2*math.Ln2-1)*co*co
	}
	v := sum / float64(n)
	if v < 0 {
		return 0
	}
	return math.Sqrt(v)
}
