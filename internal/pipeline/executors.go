package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
)

// StageExecutor performs one unit of pipeline work for a job. Executors are
// idempotent under redelivery: re-running a stage replaces or appends its
// artifact without corrupting prior state.
type StageExecutor interface {
	Stage() models.StageType
	Execute(ctx context.Context, job *models.Job) error
}

// ---------------------------------------------------------------------------
// scrape
// ---------------------------------------------------------------------------

// ScrapeExecutor fetches the job's URL, stores the raw content blob and
// writes the scrape artifact. First stage of the chain: it also moves the
// job from pending to running.
type ScrapeExecutor struct {
	fetcher interfaces.ContentFetcher
	blobs   interfaces.BlobStore
	storage interfaces.StorageManager
	logger  arbor.ILogger
}

func NewScrapeExecutor(fetcher interfaces.ContentFetcher, storage interfaces.StorageManager, logger arbor.ILogger) *ScrapeExecutor {
	return &ScrapeExecutor{
		fetcher: fetcher,
		blobs:   storage.BlobStorage(),
		storage: storage,
		logger:  logger,
	}
}

func (e *ScrapeExecutor) Stage() models.StageType {
	return models.StageScrape
}

func (e *ScrapeExecutor) Execute(ctx context.Context, job *models.Job) error {
	start := time.Now()
	if job.Status == models.JobStatusPending {
		job.Status = models.JobStatusRunning
		if err := e.storage.JobStorage().UpdateJob(ctx, job); err != nil {
			return fmt.Errorf("failed to mark job running: %w", err)
		}
		e.auditTransition(ctx, job.ID, models.JobStatusRunning)
	}

	result, err := e.fetcher.Fetch(ctx, job.URL)
	if err != nil {
		return fmt.Errorf("fetch failed for %s: %w", job.URL, err)
	}

	locator, err := e.blobs.Store(ctx, result.RawContent, job.ID)
	if err != nil {
		return fmt.Errorf("failed to store raw content: %w", err)
	}

	content := models.NewScrapedContent(job.ID, locator, result.CleanedText, result.DetectedLanguage)
	if err := e.storage.ContentStorage().UpsertScrapedContent(ctx, content); err != nil {
		return fmt.Errorf("failed to persist scraped content: %w", err)
	}

	detail := fmt.Sprintf("scraped %d bytes, language %s", len(result.RawContent), content.DetectedLanguage)
	if err := e.storage.AuditStorage().Append(ctx, models.NewAuditEvent(job.ID, string(models.StageScrape), detail)); err != nil {
		e.logger.Warn().Err(err).Int64("job_id", int64(job.ID)).Msg("Failed to append scrape audit event")
	}

	timing := models.NewStageTiming(job.ID, models.StageScrape, start)
	e.logger.Info().
		Int64("job_id", int64(job.ID)).
		Str("url", job.URL).
		Str("language", content.DetectedLanguage).
		Int("bytes", len(result.RawContent)).
		Int64("duration_ms", timing.DurationMs).
		Msg("Scrape stage complete")
	return nil
}

func (e *ScrapeExecutor) auditTransition(ctx context.Context, jobID uint64, status models.JobStatus) {
	event := models.NewAuditEvent(jobID, status.String(), "status transition")
	if err := e.storage.AuditStorage().Append(ctx, event); err != nil {
		e.logger.Warn().Err(err).Int64("job_id", int64(jobID)).Msg("Failed to append transition audit event")
	}
}

// ---------------------------------------------------------------------------
// translate
// ---------------------------------------------------------------------------

// TranslateExecutor translates the scraped text into the target language and
// appends the translation artifact. Requires the scrape artifact to exist.
type TranslateExecutor struct {
	translator     interfaces.Translator
	storage        interfaces.StorageManager
	targetLanguage string
	logger         arbor.ILogger
}

func NewTranslateExecutor(translator interfaces.Translator, storage interfaces.StorageManager, targetLanguage string, logger arbor.ILogger) *TranslateExecutor {
	if targetLanguage == "" {
		targetLanguage = "en"
	}
	return &TranslateExecutor{
		translator:     translator,
		storage:        storage,
		targetLanguage: targetLanguage,
		logger:         logger,
	}
}

func (e *TranslateExecutor) Stage() models.StageType {
	return models.StageTranslate
}

func (e *TranslateExecutor) Execute(ctx context.Context, job *models.Job) error {
	start := time.Now()
	content, err := e.storage.ContentStorage().GetScrapedContent(ctx, job.ID)
	if err != nil {
		return fmt.Errorf("translate stage requires scraped content: %w", err)
	}

	response, err := e.translator.Translate(ctx, content.CleanedText, content.DetectedLanguage, e.targetLanguage)
	if err != nil {
		return fmt.Errorf("translation failed: %w", err)
	}

	result := models.NewTranslationResult(job.ID, response.TranslatedText, response.Engine)
	if err := e.storage.ContentStorage().AppendTranslation(ctx, result); err != nil {
		return fmt.Errorf("failed to persist translation: %w", err)
	}

	detail := fmt.Sprintf("translated %s->%s via %s", content.DetectedLanguage, e.targetLanguage, response.Engine)
	if err := e.storage.AuditStorage().Append(ctx, models.NewAuditEvent(job.ID, string(models.StageTranslate), detail)); err != nil {
		e.logger.Warn().Err(err).Int64("job_id", int64(job.ID)).Msg("Failed to append translate audit event")
	}

	timing := models.NewStageTiming(job.ID, models.StageTranslate, start)
	e.logger.Info().
		Int64("job_id", int64(job.ID)).
		Str("source_language", content.DetectedLanguage).
		Str("engine", response.Engine).
		Int64("duration_ms", timing.DurationMs).
		Msg("Translate stage complete")
	return nil
}

// ---------------------------------------------------------------------------
// summarize
// ---------------------------------------------------------------------------

// SummarizeExecutor summarizes the latest translation, falling back to the
// cleaned scrape text when no translation exists, and appends the summary
// artifact.
type SummarizeExecutor struct {
	summarizer interfaces.Summarizer
	storage    interfaces.StorageManager
	logger     arbor.ILogger
}

func NewSummarizeExecutor(summarizer interfaces.Summarizer, storage interfaces.StorageManager, logger arbor.ILogger) *SummarizeExecutor {
	return &SummarizeExecutor{
		summarizer: summarizer,
		storage:    storage,
		logger:     logger,
	}
}

func (e *SummarizeExecutor) Stage() models.StageType {
	return models.StageSummarize
}

func (e *SummarizeExecutor) Execute(ctx context.Context, job *models.Job) error {
	start := time.Now()
	text, source, err := e.sourceText(ctx, job.ID)
	if err != nil {
		return err
	}

	response, err := e.summarizer.Summarize(ctx, text)
	if err != nil {
		return fmt.Errorf("summarization failed: %w", err)
	}

	result := models.NewSummaryResult(job.ID, response.SummaryText, response.ModelID, response.PromptVersion, response.Temperature, response.TokenUsage)
	if err := e.storage.ContentStorage().AppendSummary(ctx, result); err != nil {
		return fmt.Errorf("failed to persist summary: %w", err)
	}

	detail := fmt.Sprintf("summarized %s via %s (%d tokens)", source, response.ModelID, response.TokenUsage)
	if err := e.storage.AuditStorage().Append(ctx, models.NewAuditEvent(job.ID, string(models.StageSummarize), detail)); err != nil {
		e.logger.Warn().Err(err).Int64("job_id", int64(job.ID)).Msg("Failed to append summarize audit event")
	}

	timing := models.NewStageTiming(job.ID, models.StageSummarize, start)
	e.logger.Info().
		Int64("job_id", int64(job.ID)).
		Str("model", response.ModelID).
		Str("source", source).
		Int("token_usage", response.TokenUsage).
		Int64("duration_ms", timing.DurationMs).
		Msg("Summarize stage complete")
	return nil
}

// sourceText picks the summarizer input: latest translation when present,
// otherwise the cleaned scrape text.
func (e *SummarizeExecutor) sourceText(ctx context.Context, jobID uint64) (string, string, error) {
	translation, err := e.storage.ContentStorage().LatestTranslation(ctx, jobID)
	if err == nil {
		return translation.TranslatedText, "translation", nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return "", "", fmt.Errorf("failed to load translation: %w", err)
	}

	content, err := e.storage.ContentStorage().GetScrapedContent(ctx, jobID)
	if err != nil {
		return "", "", fmt.Errorf("summarize stage requires scraped content: %w", err)
	}
	return content.CleanedText, "cleaned_text", nil
}

// ---------------------------------------------------------------------------
// complete
// ---------------------------------------------------------------------------

// CompleteExecutor finalizes the job: completed status, completion timestamp,
// error message cleared.
type CompleteExecutor struct {
	storage interfaces.StorageManager
	logger  arbor.ILogger
}

func NewCompleteExecutor(storage interfaces.StorageManager, logger arbor.ILogger) *CompleteExecutor {
	return &CompleteExecutor{
		storage: storage,
		logger:  logger,
	}
}

func (e *CompleteExecutor) Stage() models.StageType {
	return models.StageComplete
}

func (e *CompleteExecutor) Execute(ctx context.Context, job *models.Job) error {
	job.MarkCompleted()
	if err := e.storage.JobStorage().UpdateJob(ctx, job); err != nil {
		return fmt.Errorf("failed to mark job completed: %w", err)
	}

	if err := e.storage.AuditStorage().Append(ctx, models.NewAuditEvent(job.ID, string(models.StageComplete), "job completed")); err != nil {
		e.logger.Warn().Err(err).Int64("job_id", int64(job.ID)).Msg("Failed to append complete audit event")
	}

	e.logger.Info().
		Int64("job_id", int64(job.ID)).
		Dur("processing_time", job.ProcessingTime()).
		Msg("Job completed")
	return nil
}
