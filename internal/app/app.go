// Package app wires the application together: storage, queue, pipeline,
// services and handlers, constructed once and handed to the server.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/handlers"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/pipeline"
	"github.com/ternarybob/colligo/internal/queue"
	"github.com/ternarybob/colligo/internal/services/fetcher"
	"github.com/ternarybob/colligo/internal/services/jobs"
	"github.com/ternarybob/colligo/internal/services/scheduler"
	"github.com/ternarybob/colligo/internal/services/summarizer"
	"github.com/ternarybob/colligo/internal/services/translator"
	storage "github.com/ternarybob/colligo/internal/storage/badger"
)

// App holds the application's wired components
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	Storage      *storage.Manager
	Queue        *queue.BadgerQueue
	WorkerPool   *queue.WorkerPool
	Orchestrator *pipeline.Orchestrator
	Fetcher      interfaces.ContentFetcher
	JobService   *jobs.Service
	Scheduler    *scheduler.Scheduler

	JobHandler       *handlers.JobHandler
	DashboardHandler *handlers.DashboardHandler
	APIHandler       *handlers.APIHandler
}

// New constructs the application from configuration. Components are wired
// explicitly; nothing is created lazily.
func New(ctx context.Context, config *common.Config, logger arbor.ILogger) (*App, error) {
	storageManager, err := storage.NewManager(&config.Storage.Badger, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	taskQueue, err := queue.NewBadgerQueue(
		storageManager.DB().Store().Badger(),
		config.Queue.QueueName,
		config.Queue.VisibilityTimeoutDuration(),
		config.Queue.MaxReceive,
		logger,
	)
	if err != nil {
		storageManager.Close()
		return nil, fmt.Errorf("failed to initialize task queue: %w", err)
	}

	contentFetcher, err := fetcher.NewFetcher(&config.Fetcher, logger)
	if err != nil {
		storageManager.Close()
		return nil, fmt.Errorf("failed to initialize fetcher: %w", err)
	}

	textSummarizer, err := summarizer.NewSummarizer(ctx, &config.Summarizer, logger)
	if err != nil {
		storageManager.Close()
		return nil, fmt.Errorf("failed to initialize summarizer: %w", err)
	}

	textTranslator := translator.NewMarkerTranslator(logger)

	policy := &pipeline.RetryPolicy{
		MaxRetries:        config.Pipeline.MaxRetries,
		InitialBackoff:    config.Pipeline.BackoffBaseDuration(),
		MaxBackoff:        config.Pipeline.BackoffCapDuration(),
		BackoffMultiplier: config.Pipeline.BackoffMultiplier,
	}

	orchestrator := pipeline.NewOrchestrator(storageManager, taskQueue, policy, logger,
		pipeline.NewScrapeExecutor(contentFetcher, storageManager, logger),
		pipeline.NewTranslateExecutor(textTranslator, storageManager, config.Pipeline.TargetLanguage, logger),
		pipeline.NewSummarizeExecutor(textSummarizer, storageManager, logger),
		pipeline.NewCompleteExecutor(storageManager, logger),
	)

	workerPool := queue.NewWorkerPool(
		taskQueue,
		orchestrator.Handle,
		config.Queue.Concurrency,
		config.Pipeline.StageTimeoutDuration(),
		logger,
	)

	jobService := jobs.NewService(storageManager, orchestrator, logger)
	metricsScheduler := scheduler.NewScheduler(jobService, &config.Metrics, logger)

	return &App{
		Config:           config,
		Logger:           logger,
		Storage:          storageManager,
		Queue:            taskQueue,
		WorkerPool:       workerPool,
		Orchestrator:     orchestrator,
		Fetcher:          contentFetcher,
		JobService:       jobService,
		Scheduler:        metricsScheduler,
		JobHandler:       handlers.NewJobHandler(jobService, logger),
		DashboardHandler: handlers.NewDashboardHandler(jobService, logger),
		APIHandler:       handlers.NewAPIHandler(),
	}, nil
}

// Start launches the background components: the worker pool and the metrics
// snapshot scheduler.
func (a *App) Start() error {
	a.WorkerPool.Start()
	if err := a.Scheduler.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	return nil
}

// Shutdown stops background work and closes resources in dependency order.
func (a *App) Shutdown(ctx context.Context) error {
	a.Logger.Info().Msg("Shutting down application")

	done := make(chan struct{})
	go func() {
		a.WorkerPool.Stop()
		a.Scheduler.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		a.Logger.Warn().Msg("Shutdown deadline reached before workers drained")
	}

	if closer, ok := a.Fetcher.(*fetcher.ChromeFetcher); ok {
		closer.Close()
	}
	if err := a.Queue.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to close task queue")
	}
	if err := a.Storage.Close(); err != nil {
		return fmt.Errorf("failed to close storage: %w", err)
	}

	a.Logger.Info().Msg("Application stopped")
	return nil
}

// shutdownGrace is the default time allowed for in-flight stages to finish
const shutdownGrace = 30 * time.Second

// ShutdownGrace returns the default shutdown deadline for callers building
// their own context.
func ShutdownGrace() time.Duration {
	return shutdownGrace
}
