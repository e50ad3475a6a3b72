package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
)

// TaskHandler processes one claimed delivery. The handler owns the
// acknowledgment decision: it calls delivery.Ack or delivery.Retry itself.
type TaskHandler func(ctx context.Context, delivery *interfaces.Delivery) error

const (
	idlePollMin = 100 * time.Millisecond
	idlePollMax = 5 * time.Second
)

// WorkerPool runs a fixed set of workers that poll the queue and hand
// deliveries to the registered handler
type WorkerPool struct {
	queue        interfaces.QueueManager
	handler      TaskHandler
	concurrency  int
	stageTimeout time.Duration
	logger       arbor.ILogger
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
}

// NewWorkerPool creates a worker pool. stageTimeout is the hard wall-clock
// limit applied to each delivery's handler invocation.
func NewWorkerPool(queue interfaces.QueueManager, handler TaskHandler, concurrency int, stageTimeout time.Duration, logger arbor.ILogger) *WorkerPool {
	if concurrency <= 0 {
		concurrency = 1
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &WorkerPool{
		queue:        queue,
		handler:      handler,
		concurrency:  concurrency,
		stageTimeout: stageTimeout,
		logger:       logger,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start launches the worker goroutines
func (wp *WorkerPool) Start() {
	wp.logger.Info().
		Int("concurrency", wp.concurrency).
		Dur("stage_timeout", wp.stageTimeout).
		Msg("Starting worker pool")

	for i := 0; i < wp.concurrency; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop signals the workers and waits for in-flight handlers to return
func (wp *WorkerPool) Stop() {
	wp.logger.Info().Msg("Stopping worker pool")
	wp.cancel()
	wp.wg.Wait()
}

func (wp *WorkerPool) worker(workerID int) {
	defer wp.wg.Done()

	// Stagger worker starts to reduce transaction contention on the shared
	// database
	staggerDelay := (idlePollMin / time.Duration(wp.concurrency)) * time.Duration(workerID)
	if staggerDelay > 0 {
		select {
		case <-wp.ctx.Done():
			return
		case <-time.After(staggerDelay):
		}
	}

	wp.logger.Debug().Int("worker_id", workerID).Msg("Worker started")

	pollDelay := idlePollMin
	for {
		select {
		case <-wp.ctx.Done():
			wp.logger.Debug().Int("worker_id", workerID).Msg("Worker stopped")
			return
		default:
		}

		processed, err := wp.processOne(workerID)
		if err != nil {
			wp.logger.Warn().
				Err(err).
				Int("worker_id", workerID).
				Msg("Error processing delivery")
		}

		if processed {
			pollDelay = idlePollMin
			continue
		}

		// Queue empty: back off up to the cap
		select {
		case <-wp.ctx.Done():
			return
		case <-time.After(pollDelay):
		}
		pollDelay *= 2
		if pollDelay > idlePollMax {
			pollDelay = idlePollMax
		}
	}
}

// processOne claims and handles a single delivery. Returns whether a message
// was available.
func (wp *WorkerPool) processOne(workerID int) (bool, error) {
	delivery, err := wp.queue.Receive(wp.ctx)
	if err != nil {
		if errors.Is(err, models.ErrNoMessage) {
			return false, nil
		}
		return false, fmt.Errorf("failed to receive message: %w", err)
	}

	msg := delivery.Message
	wp.logger.Debug().
		Int64("job_id", int64(msg.JobID)).
		Str("stage", string(msg.Stage)).
		Int("attempt", delivery.Attempt).
		Int("worker_id", workerID).
		Msg("Processing delivery")

	ctx, cancel := context.WithTimeout(wp.ctx, wp.stageTimeout)
	defer cancel()

	start := time.Now()
	handlerErr := wp.runHandler(ctx, delivery)
	duration := time.Since(start)

	if handlerErr != nil {
		wp.logger.Error().
			Err(handlerErr).
			Int64("job_id", int64(msg.JobID)).
			Str("stage", string(msg.Stage)).
			Int("attempt", delivery.Attempt).
			Dur("duration", duration).
			Int("worker_id", workerID).
			Msg("Delivery handler failed")
		return true, handlerErr
	}

	wp.logger.Debug().
		Int64("job_id", int64(msg.JobID)).
		Str("stage", string(msg.Stage)).
		Dur("duration", duration).
		Int("worker_id", workerID).
		Msg("Delivery handled")
	return true, nil
}

// runHandler invokes the handler with panic recovery. A panicking stage is
// treated as a failed handler call; the unacked message redelivers after the
// visibility timeout.
func (wp *WorkerPool) runHandler(ctx context.Context, delivery *interfaces.Delivery) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return wp.handler(ctx, delivery)
}
