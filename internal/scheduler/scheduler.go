// Package scheduler triggers periodic portfolio refreshes.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Refresher runs one refresh cycle
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Scheduler drives the refresh pipeline on a cron expression
type Scheduler struct {
	cron      *cron.Cron
	refresher Refresher
	timeout   time.Duration
	log       zerolog.Logger
}

// New creates a scheduler. spec is a standard 5-field cron expression.
func New(refresher Refresher, timeout time.Duration, log zerolog.Logger) *Scheduler {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Scheduler{
		cron:      cron.New(),
		refresher: refresher,
		timeout:   timeout,
		log:       log.With().Str("component", "scheduler").Logger(),
	}
}

// Start registers the refresh job and starts the cron loop
func (s *Scheduler) Start(spec string) error {
	_, err := s.cron.AddFunc(spec, s.runRefresh)
	if err != nil {
		return err
	}
	s.cron.Start()
	s.log.Info().Str("cron", spec).Msg("Scheduler started")
	return nil
}

// Stop halts the cron loop and waits for a running job to finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("Scheduler stopped")
}

func (s *Scheduler) runRefresh() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	started := time.Now()
	if err := s.refresher.Refresh(ctx); err != nil {
		s.log.Error().Err(err).Msg("Scheduled refresh failed")
		return
	}
	s.log.Debug().Dur("duration", time.Since(started)).Msg("Scheduled refresh finished")
}
