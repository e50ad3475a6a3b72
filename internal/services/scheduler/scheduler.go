// Package scheduler runs the periodic dashboard metrics snapshot. The
// snapshot is advisory logging only: authoritative metrics are always
// computed on demand from the job store.
package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/services/jobs"
)

// Scheduler owns the cron runner for periodic tasks
type Scheduler struct {
	cron    *cron.Cron
	jobs    *jobs.Service
	config  *common.MetricsConfig
	logger  arbor.ILogger
	entryID cron.EntryID
}

func NewScheduler(jobService *jobs.Service, config *common.MetricsConfig, logger arbor.ILogger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		jobs:   jobService,
		config: config,
		logger: logger,
	}
}

// Start registers the snapshot schedule and launches the cron runner.
func (s *Scheduler) Start() error {
	if !s.config.SnapshotEnabled {
		s.logger.Debug().Msg("Metrics snapshot disabled")
		return nil
	}

	entryID, err := s.cron.AddFunc(s.config.SnapshotSchedule, s.logSnapshot)
	if err != nil {
		return fmt.Errorf("invalid snapshot schedule %q: %w", s.config.SnapshotSchedule, err)
	}
	s.entryID = entryID

	s.cron.Start()
	s.logger.Info().
		Str("schedule", s.config.SnapshotSchedule).
		Msg("Metrics snapshot scheduler started")
	return nil
}

// Stop halts the cron runner, waiting for a running snapshot to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Debug().Msg("Metrics snapshot scheduler stopped")
}

func (s *Scheduler) logSnapshot() {
	metrics, err := s.jobs.Metrics(context.Background())
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to compute metrics snapshot")
		return
	}

	s.logger.Info().
		Int("total_jobs", metrics.TotalJobs).
		Float64("success_rate", metrics.SuccessRate).
		Float64("avg_processing_seconds", metrics.AvgProcessingTimeSeconds).
		Int("failure_count", metrics.FailureCount).
		Msg("Dashboard metrics snapshot")
}
