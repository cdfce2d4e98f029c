// Package cron provides scheduled background jobs using robfig/cron.
package cron

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/zyxiao/pocketledger/internal/domain/classification"
)

const sweepTimeout = 30 * time.Minute

// Scheduler runs the nightly classification sweep.
type Scheduler struct {
	cron      *cron.Cron
	classify  *classification.Service
	schedule  string
	batchSize int
	logger    *slog.Logger
}

// NewScheduler creates a scheduler with the standard 5-field cron format.
func NewScheduler(classify *classification.Service, schedule string, batchSize int, logger *slog.Logger) *Scheduler {
	c := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))))

	return &Scheduler{
		cron:      c,
		classify:  classify,
		schedule:  schedule,
		batchSize: batchSize,
		logger:    logger,
	}
}

// Start begins scheduled jobs.
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.schedule, s.runSweep)
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("cron scheduler started",
		slog.String("schedule", s.schedule),
		slog.Int("jobs", len(s.cron.Entries())),
	)
	return nil
}

// Stop gracefully stops all scheduled jobs.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("cron scheduler stopping")
	return s.cron.Stop()
}

// RunNow manually triggers the sweep (for testing/admin).
func (s *Scheduler) RunNow() {
	go s.runSweep()
}

func (s *Scheduler) runSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	s.logger.Info("starting classification sweep")

	// Keep sweeping full batches until the backlog is drained.
	total := 0
	for {
		done, err := s.classify.Sweep(ctx, s.batchSize)
		total += done
		if err != nil {
			s.logger.Error("classification sweep failed",
				slog.Int("classified", total),
				slog.Any("error", err))
			return
		}
		if done < s.batchSize {
			break
		}
	}

	s.logger.Info("classification sweep completed", slog.Int("classified", total))
}
