package risk

import (
	"errors"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/aristath/crossfolio/internal/domain"
	"github.com/aristath/crossfolio/internal/modules/portfolio"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Analyzer derives risk reports from portfolio snapshots and historical
// price series. Every metric is a pure computation over its inputs.
type Analyzer struct {
	cfg Config
	log zerolog.Logger
}

// NewAnalyzer creates an analyzer with the given configuration
func NewAnalyzer(cfg Config, log zerolog.Logger) *Analyzer {
	return &Analyzer{
		cfg: cfg.withDefaults(),
		log: log.With().Str("component", "risk_analyzer").Logger(),
	}
}

// Analyze computes a risk report for one snapshot. history supplies ordered
// price series per instrument and is read-only for the duration of the call.
//
// Metrics degrade independently: an instrument with too little history loses
// its volatility and beta, the portfolio-level metrics fall back to the
// instruments that do qualify, and every gap is recorded on the report.
func (a *Analyzer) Analyze(snapshot *portfolio.PortfolioSnapshot, history domain.PriceHistoryProvider) *Report {
	report := &Report{
		ID:              uuid.NewString(),
		SnapshotID:      snapshot.ID,
		GeneratedAt:     time.Now().UTC(),
		BaseCurrency:    snapshot.BaseCurrency,
		PnLByInstrument: make(map[string]float64),
		PnLByClass:      make(map[domain.AssetClass]float64),
		Instruments:     make(map[string]InstrumentRisk),
		Confidence:      a.cfg.Confidence,
		Lookback:        a.cfg.LookbackPeriods,
	}

	a.attributePnL(snapshot, report)

	// Per-instrument metrics plus the aligned return series that qualify
	// for portfolio-level aggregation.
	type qualified struct {
		weight  float64
		returns []float64
	}
	var members []qualified

	benchmarkReturns := a.returnsWithGap(a.cfg.Benchmark, history, report, "beta")

	instruments := sortedInstruments(snapshot.ByInstrument)
	for _, instrument := range instruments {
		exposure := snapshot.ByInstrument[instrument]
		ir := InstrumentRisk{
			Instrument:    instrument,
			AssetClass:    exposure.AssetClass,
			Exposure:      exposure.Exposure,
			UnrealizedPnL: exposure.UnrealizedPnL,
		}

		returns := a.returnsWithGap(instrument, history, report, "volatility")
		if returns != nil {
			vol := stat.StdDev(returns, nil) * math.Sqrt(float64(a.cfg.PeriodsPerYear))
			ir.Volatility = ptr(vol)

			if benchmarkReturns != nil {
				ir.Beta = beta(returns, benchmarkReturns)
			}

			if snapshot.GrossExposure > 0 {
				members = append(members, qualified{
					weight:  exposure.Exposure / snapshot.GrossExposure,
					returns: returns,
				})
			}
		}

		if features := a.volatilityFeatures(instrument, history); features != nil {
			ir.Features = features
		}

		report.Instruments[instrument] = ir
	}

	if len(members) == 0 {
		report.Gaps = append(report.Gaps, MetricGap{
			Metric: "portfolio",
			Reason: "no instrument has sufficient history",
		})
		return report
	}

	// Portfolio return series: exposure-weighted sum of aligned instrument
	// returns, weights signed so shorts hedge.
	portfolioReturns := make([]float64, a.cfg.LookbackPeriods)
	for _, m := range members {
		for t := 0; t < a.cfg.LookbackPeriods; t++ {
			portfolioReturns[t] += m.weight * m.returns[t]
		}
	}

	mean := stat.Mean(portfolioReturns, nil)
	sigma := stat.StdDev(portfolioReturns, nil)

	report.PortfolioVolatility = ptr(sigma * math.Sqrt(float64(a.cfg.PeriodsPerYear)))

	// Tail probability, rounded so 1-0.95 does not land a hair above 0.05
	// and push the empirical quantile onto the next order statistic.
	alpha := math.Round((1-a.cfg.Confidence)*1e9) / 1e9

	// Parametric VaR: Gaussian quantile of the period return distribution.
	z := distuv.Normal{Mu: 0, Sigma: 1}.Quantile(alpha)
	report.ParametricVaR = ptr(mean + z*sigma)

	// Historical VaR: empirical quantile of realized portfolio returns.
	sorted := append([]float64(nil), portfolioReturns...)
	sort.Float64s(sorted)
	report.HistoricalVaR = ptr(stat.Quantile(alpha, stat.Empirical, sorted, nil))

	report.MaxDrawdown = ptr(maxDrawdown(portfolioReturns))

	a.log.Info().
		Str("snapshot_id", snapshot.ID).
		Int("instruments", len(report.Instruments)).
		Int("gaps", len(report.Gaps)).
		Msg("Computed risk report")

	return report
}

// attributePnL decomposes unrealized PnL by instrument and asset class
func (a *Analyzer) attributePnL(snapshot *portfolio.PortfolioSnapshot, report *Report) {
	for instrument, exposure := range snapshot.ByInstrument {
		report.PnLByInstrument[instrument] = exposure.UnrealizedPnL
		report.PnLByClass[exposure.AssetClass] += exposure.UnrealizedPnL
		report.TotalUnrealizedPnL += exposure.UnrealizedPnL
	}
}

// returnsWithGap fetches the lookback window of period returns for an
// instrument, recording a gap under the given metric when history is
// insufficient.
func (a *Analyzer) returnsWithGap(instrument string, history domain.PriceHistoryProvider, report *Report, metric string) []float64 {
	if instrument == "" || history == nil {
		return nil
	}

	returns, err := a.lookbackReturns(instrument, history)
	if err != nil {
		var ihe *domain.InsufficientHistoryError
		if errors.As(err, &ihe) {
			a.log.Warn().
				Str("instrument", instrument).
				Int("have", ihe.Have).
				Int("want", ihe.Want).
				Msg("Insufficient history, metric unavailable")
		} else {
			a.log.Error().Err(err).Str("instrument", instrument).Msg("Failed to load price history")
		}
		report.Gaps = append(report.Gaps, MetricGap{
			Metric:     metric,
			Instrument: instrument,
			Reason:     err.Error(),
		})
		return nil
	}
	return returns
}

// lookbackReturns computes log returns over the lookback window, oldest first
func (a *Analyzer) lookbackReturns(instrument string, history domain.PriceHistoryProvider) ([]float64, error) {
	// One extra close is needed to form the first return.
	series, err := history.Series(instrument, a.cfg.LookbackPeriods+1)
	if err != nil {
		return nil, err
	}
	if len(series) < a.cfg.LookbackPeriods+1 {
		return nil, &domain.InsufficientHistoryError{
			Instrument: instrument,
			Have:       len(series),
			Want:       a.cfg.LookbackPeriods + 1,
		}
	}

	returns := make([]float64, 0, a.cfg.LookbackPeriods)
	for i := 1; i < len(series); i++ {
		prev, cur := series[i-1].Close, series[i].Close
		if prev <= 0 || cur <= 0 {
			return nil, &domain.InsufficientHistoryError{
				Instrument: instrument,
				Have:       i - 1,
				Want:       a.cfg.LookbackPeriods,
			}
		}
		returns = append(returns, math.Log(cur/prev))
	}
	return returns, nil
}

// beta computes cov(instrument, benchmark) / var(benchmark) over the
// overlapping tail of the two return series.
func beta(returns, benchmark []float64) *float64 {
	n := len(returns)
	if len(benchmark) < n {
		n = len(benchmark)
	}
	if n < 2 {
		return nil
	}

	r := returns[len(returns)-n:]
	b := benchmark[len(benchmark)-n:]

	variance := stat.Variance(b, nil)
	if variance == 0 {
		return nil
	}
	return ptr(stat.Covariance(r, b, nil) / variance)
}

// maxDrawdown returns the largest peak-to-trough decline of the cumulative
// return path, as a positive fraction.
func maxDrawdown(returns []float64) float64 {
	wealth := 1.0
	peak := 1.0
	maxDD := 0.0
	for _, r := range returns {
		wealth *= math.Exp(r)
		if wealth > peak {
			peak = wealth
		}
		if dd := (peak - wealth) / peak; dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

func sortedInstruments(byInstrument map[string]portfolio.InstrumentExposure) []string {
	instruments := make([]string, 0, len(byInstrument))
	for instrument := range byInstrument {
		instruments = append(instruments, instrument)
	}
	sort.Strings(instruments)
	return instruments
}
