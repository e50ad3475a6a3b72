package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
)

// Orchestrator drives the stage chain: it enqueues workflow heads, routes
// deliveries to their stage executor, advances the chain on success and
// applies the per-stage retry policy on failure.
//
// Acknowledgment is late: a message is acked only after its executor returns
// successfully or the job is failed terminally. Everything in between stays
// in the queue for redelivery.
type Orchestrator struct {
	storage   interfaces.StorageManager
	queue     interfaces.QueueManager
	executors map[models.StageType]StageExecutor
	policy    *RetryPolicy
	logger    arbor.ILogger
}

// NewOrchestrator wires the executors to the queue and storage.
func NewOrchestrator(storage interfaces.StorageManager, queue interfaces.QueueManager, policy *RetryPolicy, logger arbor.ILogger, executors ...StageExecutor) *Orchestrator {
	if policy == nil {
		policy = NewRetryPolicy()
	}

	byStage := make(map[models.StageType]StageExecutor, len(executors))
	for _, exec := range executors {
		byStage[exec.Stage()] = exec
	}

	return &Orchestrator{
		storage:   storage,
		queue:     queue,
		executors: byStage,
		policy:    policy,
		logger:    logger,
	}
}

// Start enqueues the first stage of the workflow chain for a job.
func (o *Orchestrator) Start(ctx context.Context, jobID uint64, chain []models.StageType) error {
	msg, err := models.NewTaskMessage(jobID, chain)
	if err != nil {
		return fmt.Errorf("failed to build workflow message: %w", err)
	}
	if err := o.queue.Enqueue(ctx, msg); err != nil {
		return fmt.Errorf("failed to enqueue workflow for job %d: %w", jobID, err)
	}
	o.logger.Debug().
		Int64("job_id", int64(jobID)).
		Str("stage", string(msg.Stage)).
		Int("chain_length", len(chain)).
		Msg("Workflow enqueued")
	return nil
}

// Handle processes one delivery. Registered as the worker pool's handler; it
// owns the ack/retry decision for the delivery.
func (o *Orchestrator) Handle(ctx context.Context, delivery *interfaces.Delivery) error {
	msg := delivery.Message

	executor, ok := o.executors[msg.Stage]
	if !ok {
		// No executor can ever handle this; drop rather than loop.
		o.logger.Error().
			Int64("job_id", int64(msg.JobID)).
			Str("stage", string(msg.Stage)).
			Msg("No executor for stage, dropping message")
		if err := delivery.Ack(); err != nil {
			return fmt.Errorf("failed to ack unroutable message: %w", err)
		}
		return fmt.Errorf("no executor for stage %s", msg.Stage)
	}

	job, err := o.storage.JobStorage().GetJob(ctx, msg.JobID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// The job record is gone; retrying cannot bring it back.
			o.logger.Warn().
				Int64("job_id", int64(msg.JobID)).
				Str("stage", string(msg.Stage)).
				Msg("Job record missing, dropping message")
			if ackErr := delivery.Ack(); ackErr != nil {
				return fmt.Errorf("failed to ack message for missing job: %w", ackErr)
			}
			return err
		}
		// Transient storage error: leave unacked for redelivery.
		return fmt.Errorf("failed to load job %d: %w", msg.JobID, err)
	}

	// Stale redelivery of an already-failed job: nothing left to do.
	if job.Status == models.JobStatusFailed {
		o.logger.Debug().
			Int64("job_id", int64(job.ID)).
			Str("stage", string(msg.Stage)).
			Msg("Job already failed, dropping stale delivery")
		return delivery.Ack()
	}

	execErr := executor.Execute(ctx, job)
	if execErr == nil {
		return o.advance(ctx, delivery)
	}
	return o.handleFailure(ctx, delivery, job, execErr)
}

// advance acks the current message and enqueues the chain successor.
// Enqueue-before-ack: a crash between the two duplicates the successor
// (at-least-once), never loses it.
func (o *Orchestrator) advance(ctx context.Context, delivery *interfaces.Delivery) error {
	if next, ok := delivery.Message.Next(); ok {
		if err := o.queue.Enqueue(ctx, next); err != nil {
			// Leave the current message unacked: the stage re-runs after the
			// visibility timeout and retries the handoff.
			return fmt.Errorf("failed to enqueue next stage %s for job %d: %w", next.Stage, next.JobID, err)
		}
	}
	if err := delivery.Ack(); err != nil {
		return fmt.Errorf("failed to ack stage %s for job %d: %w", delivery.Message.Stage, delivery.Message.JobID, err)
	}
	return nil
}

// handleFailure applies the retry policy to a failed stage execution.
func (o *Orchestrator) handleFailure(ctx context.Context, delivery *interfaces.Delivery, job *models.Job, execErr error) error {
	msg := delivery.Message

	if o.policy.ShouldRetry(delivery.Attempt, execErr) {
		delay := o.policy.CalculateBackoff(delivery.Attempt)
		o.logger.Warn().
			Err(execErr).
			Int64("job_id", int64(job.ID)).
			Str("stage", string(msg.Stage)).
			Int("attempt", delivery.Attempt).
			Int("max_attempts", o.policy.MaxAttempts()).
			Dur("backoff", delay).
			Msg("Stage failed, scheduling retry")

		if err := delivery.Retry(delay); err != nil {
			return fmt.Errorf("failed to schedule retry: %w", err)
		}
		return execErr
	}

	// Retries exhausted or the error is terminal: fail the job.
	reason := "retries exhausted"
	if IsTerminal(execErr) {
		reason = "terminal error"
	}
	o.logger.Error().
		Err(execErr).
		Int64("job_id", int64(job.ID)).
		Str("stage", string(msg.Stage)).
		Int("attempt", delivery.Attempt).
		Str("reason", reason).
		Msg("Stage failed permanently, failing job")

	job.MarkFailed(execErr.Error())
	if err := o.storage.JobStorage().UpdateJob(ctx, job); err != nil {
		// Could not persist the terminal state; leave the message for
		// redelivery so the failure transition is retried.
		return fmt.Errorf("failed to mark job %d failed: %w", job.ID, err)
	}

	detail := fmt.Sprintf("stage %s failed after %d attempt(s): %s", msg.Stage, delivery.Attempt, execErr.Error())
	if err := o.storage.AuditStorage().Append(ctx, models.NewAuditEvent(job.ID, models.AuditStageFailed, detail)); err != nil {
		o.logger.Warn().Err(err).Int64("job_id", int64(job.ID)).Msg("Failed to append failure audit event")
	}

	if err := delivery.Ack(); err != nil {
		return fmt.Errorf("failed to ack permanently failed stage: %w", err)
	}
	return execErr
}
