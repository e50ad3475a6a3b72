// Package jobs is the application service behind the HTTP surface: job
// submission, detail assembly, listing, deletion and dashboard metrics.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"math"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
	"github.com/ternarybob/colligo/internal/pipeline"
)

// auditTrailLimit is how many recent audit events a job detail includes
const auditTrailLimit = 20

// recentJobsLimit is how many jobs the dashboard listing returns by default
const recentJobsLimit = 10

// ErrInvalidURL is returned when a submission carries a malformed URL
var ErrInvalidURL = errors.New("invalid url")

// JobDetail is the aggregate view of one job: the record, the latest
// artifact of each stage and the tail of the audit trail.
type JobDetail struct {
	Job         *models.Job               `json:"job"`
	Content     *models.ScrapedContent    `json:"content,omitempty"`
	Translation *models.TranslationResult `json:"translation,omitempty"`
	Summary     *models.SummaryResult     `json:"summary,omitempty"`
	AuditTrail  []*models.AuditEvent      `json:"audit_trail"`

	// RawMarkdown is the stored raw content rendered as markdown, populated
	// only when the detail is requested with rendering enabled.
	RawMarkdown string `json:"raw_markdown,omitempty"`
}

// Service coordinates job lifecycle operations
type Service struct {
	storage      interfaces.StorageManager
	orchestrator *pipeline.Orchestrator
	validate     *validator.Validate
	converter    *htmltomarkdown.Converter
	logger       arbor.ILogger
}

func NewService(storage interfaces.StorageManager, orchestrator *pipeline.Orchestrator, logger arbor.ILogger) *Service {
	return &Service{
		storage:      storage,
		orchestrator: orchestrator,
		validate:     validator.New(),
		converter:    htmltomarkdown.NewConverter("", true, nil),
		logger:       logger,
	}
}

// Submit validates the URL, creates a pending job, audits the submission and
// enqueues the workflow chain. Returns the created job with its assigned id.
func (s *Service) Submit(ctx context.Context, url string) (*models.Job, error) {
	if err := s.validate.Var(url, "required,url,max=2048"); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidURL, url)
	}

	job := models.NewJob(url)
	if err := s.storage.JobStorage().CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	event := models.NewAuditEvent(job.ID, models.AuditStageSubmit, fmt.Sprintf("submitted %s", url))
	if err := s.storage.AuditStorage().Append(ctx, event); err != nil {
		s.logger.Warn().Err(err).Int64("job_id", int64(job.ID)).Msg("Failed to append submission audit event")
	}

	if err := s.orchestrator.Start(ctx, job.ID, models.DefaultChain()); err != nil {
		// The job record exists but nothing will process it; surface the
		// failure so the caller can retry the submission.
		return nil, fmt.Errorf("failed to start workflow for job %d: %w", job.ID, err)
	}

	s.logger.Info().
		Int64("job_id", int64(job.ID)).
		Str("url", url).
		Msg("Job submitted")
	return job, nil
}

// Get returns the bare job record.
func (s *Service) Get(ctx context.Context, jobID uint64) (*models.Job, error) {
	return s.storage.JobStorage().GetJob(ctx, jobID)
}

// Detail assembles the job view: latest artifacts plus the most recent audit
// events. Missing artifacts are omitted, not errors - a pending job simply
// has none yet. renderRaw additionally converts the stored raw content to
// markdown.
func (s *Service) Detail(ctx context.Context, jobID uint64, renderRaw bool) (*JobDetail, error) {
	job, err := s.storage.JobStorage().GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	detail := &JobDetail{Job: job}

	if content, err := s.storage.ContentStorage().GetScrapedContent(ctx, jobID); err == nil {
		detail.Content = content
	} else if !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("failed to load scraped content: %w", err)
	}

	if translation, err := s.storage.ContentStorage().LatestTranslation(ctx, jobID); err == nil {
		detail.Translation = translation
	} else if !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("failed to load translation: %w", err)
	}

	if summary, err := s.storage.ContentStorage().LatestSummary(ctx, jobID); err == nil {
		detail.Summary = summary
	} else if !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("failed to load summary: %w", err)
	}

	events, err := s.storage.AuditStorage().GetEvents(ctx, jobID, auditTrailLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load audit trail: %w", err)
	}
	detail.AuditTrail = events

	if renderRaw && detail.Content != nil && detail.Content.RawContentRef != "" {
		raw, err := s.storage.BlobStorage().Get(ctx, detail.Content.RawContentRef)
		if err == nil {
			if markdown, convErr := s.converter.ConvertString(string(raw)); convErr == nil {
				detail.RawMarkdown = markdown
			} else {
				s.logger.Warn().Err(convErr).Int64("job_id", int64(jobID)).Msg("Failed to render raw content as markdown")
			}
		} else if !errors.Is(err, models.ErrNotFound) {
			s.logger.Warn().Err(err).Int64("job_id", int64(jobID)).Msg("Failed to load raw content blob")
		}
	}

	return detail, nil
}

// Recent returns the newest jobs for the dashboard listing.
func (s *Service) Recent(ctx context.Context, limit int) ([]*models.Job, error) {
	if limit <= 0 {
		limit = recentJobsLimit
	}
	return s.storage.JobStorage().ListRecent(ctx, limit)
}

// Delete removes a job and everything attached to it: audit trail, stage
// artifacts and raw content blobs. Administrative operation only.
func (s *Service) Delete(ctx context.Context, jobID uint64) error {
	if _, err := s.storage.JobStorage().GetJob(ctx, jobID); err != nil {
		return err
	}

	if err := s.storage.AuditStorage().DeleteEvents(ctx, jobID); err != nil {
		return fmt.Errorf("failed to delete audit trail: %w", err)
	}
	if err := s.storage.ContentStorage().DeleteForJob(ctx, jobID); err != nil {
		return fmt.Errorf("failed to delete artifacts: %w", err)
	}
	if err := s.storage.BlobStorage().Delete(ctx, jobID); err != nil {
		return fmt.Errorf("failed to delete blobs: %w", err)
	}
	if err := s.storage.JobStorage().DeleteJob(ctx, jobID); err != nil {
		return err
	}

	s.logger.Info().Int64("job_id", int64(jobID)).Msg("Job deleted")
	return nil
}

// Metrics computes the dashboard aggregate. Success rate is the completed
// share of all jobs as a percentage; the average processing time covers
// completed jobs only. Both round to two decimals; an empty system reports
// zeros rather than dividing by zero.
func (s *Service) Metrics(ctx context.Context) (*models.DashboardMetrics, error) {
	total, err := s.storage.JobStorage().CountAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count jobs: %w", err)
	}

	failed, err := s.storage.JobStorage().CountByStatus(ctx, models.JobStatusFailed)
	if err != nil {
		return nil, fmt.Errorf("failed to count failed jobs: %w", err)
	}

	completed, err := s.storage.JobStorage().CompletedJobs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load completed jobs: %w", err)
	}

	metrics := &models.DashboardMetrics{
		TotalJobs:    total,
		FailureCount: failed,
	}

	if total > 0 {
		metrics.SuccessRate = round2(float64(len(completed)) / float64(total) * 100)
	}

	if len(completed) > 0 {
		var totalSeconds float64
		for _, job := range completed {
			totalSeconds += job.ProcessingTime().Seconds()
		}
		metrics.AvgProcessingTimeSeconds = round2(totalSeconds / float64(len(completed)))
	}

	return metrics, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
