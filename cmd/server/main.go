// Package main is the entry point for the Crossfolio portfolio aggregation
// and risk engine. It collects account payloads dropped by external broker
// bridges, normalizes them into canonical records, converts everything into
// the configured base currency, aggregates one immutable portfolio snapshot
// per refresh, and derives a risk report from the snapshot and stored price
// history.
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/aristath/crossfolio/internal/config"
	"github.com/aristath/crossfolio/internal/database"
	"github.com/aristath/crossfolio/internal/domain"
	"github.com/aristath/crossfolio/internal/events"
	"github.com/aristath/crossfolio/internal/fetch"
	"github.com/aristath/crossfolio/internal/modules/currency"
	"github.com/aristath/crossfolio/internal/modules/historical"
	"github.com/aristath/crossfolio/internal/modules/normalize"
	"github.com/aristath/crossfolio/internal/modules/portfolio"
	portfoliohandlers "github.com/aristath/crossfolio/internal/modules/portfolio/handlers"
	"github.com/aristath/crossfolio/internal/modules/risk"
	riskhandlers "github.com/aristath/crossfolio/internal/modules/risk/handlers"
	"github.com/aristath/crossfolio/internal/modules/universe"
	"github.com/aristath/crossfolio/internal/pipeline"
	"github.com/aristath/crossfolio/internal/scheduler"
	"github.com/aristath/crossfolio/internal/server"
	"github.com/aristath/crossfolio/pkg/logger"
)

// pipelineRefresher adapts the pipeline to the scheduler's job interface
type pipelineRefresher struct {
	p *pipeline.Pipeline
}

func (r pipelineRefresher) Refresh(ctx context.Context) error {
	_, _, err := r.p.Refresh(ctx)
	return err
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().
		Str("base_currency", string(cfg.BaseCurrency)).
		Str("pivot_currency", string(cfg.PivotCurrency)).
		Msg("Starting Crossfolio")

	// Databases: history (price series), cache (exchange rates), archive
	// (snapshot history), universe (instrument classifications).
	historyDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "history.db"),
		Profile: database.ProfileStandard,
		Name:    "history",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open history database")
	}
	defer historyDB.Close()

	cacheDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "cache.db"),
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open cache database")
	}
	defer cacheDB.Close()

	archiveDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "archive.db"),
		Profile: database.ProfileArchive,
		Name:    "archive",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open archive database")
	}
	defer archiveDB.Close()

	universeDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "universe.db"),
		Profile: database.ProfileStandard,
		Name:    "universe",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open universe database")
	}
	defer universeDB.Close()

	// Repositories
	historyStore, err := historical.NewStore(historyDB.Conn(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize price history store")
	}

	rateRepo, err := currency.NewRateRepository(cacheDB.Conn(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize rate repository")
	}

	snapshotRepo, err := portfolio.NewSnapshotRepository(archiveDB.Conn(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize snapshot repository")
	}

	classRepo, err := universe.NewClassificationRepository(universeDB.Conn(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize classification repository")
	}

	classifier, err := classRepo.LoadClassifier()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load instrument classifier")
	}

	// Currency conversion: file drop feed first, cached observations as
	// fallback for pairs the feed no longer carries.
	converter := currency.NewConverter(cfg.BaseCurrency, cfg.PivotCurrency, log)
	converter.SetCache(rateRepo)

	rateSource := currency.NewFileRateSource(filepath.Join(cfg.DataDir, "rates.json"), log)

	// Broker bridges drop account payloads as JSON files
	connectors, err := fetch.DiscoverFileConnectors(filepath.Join(cfg.DataDir, "accounts"), log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to discover account payload files")
	}
	if len(connectors) == 0 {
		log.Warn().Msg("No account payload files found, snapshots will be empty until bridges drop data")
	}

	bus := events.NewBus(log)

	p := pipeline.New(pipeline.Deps{
		Fetcher:     fetch.NewFetcher(connectors, 30*time.Second, log),
		Normalizers: normalize.NewRegistry(log),
		Converter:   converter,
		Aggregator:  portfolio.NewAggregator(cfg.BaseCurrency, classifier, log),
		Analyzer: risk.NewAnalyzer(risk.Config{
			LookbackPeriods: cfg.LookbackDays,
			Confidence:      cfg.VaRConfidence,
			Benchmark:       cfg.Benchmark,
		}, log),
		Snapshots:   snapshotRepo,
		History:     historyStore,
		RateSources: []domain.RateSource{rateSource},
		RateCache:   rateRepo,
		Bus:         bus,
	}, log)

	sched := scheduler.New(pipelineRefresher{p: p}, 5*time.Minute, log)
	if err := sched.Start(cfg.RefreshCron); err != nil {
		log.Fatal().Err(err).Str("cron", cfg.RefreshCron).Msg("Failed to start scheduler")
	}

	srv := server.New(server.Config{
		Log:              log,
		Config:           cfg,
		Pipeline:         p,
		Bus:              bus,
		PortfolioHandler: portfoliohandlers.NewHandler(p, snapshotRepo, log),
		RiskHandler:      riskhandlers.NewHandler(p, log),
		Databases:        []*database.DB{historyDB, cacheDB, archiveDB, universeDB},
	})

	go func() {
		if err := srv.Start(); err != nil {
			log.Error().Err(err).Msg("HTTP server stopped")
		}
	}()

	// Run one refresh at startup so the API serves data immediately
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if _, _, err := p.Refresh(ctx); err != nil {
			log.Error().Err(err).Msg("Initial refresh failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down")
	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}

	log.Info().Msg("Shutdown complete")
}
