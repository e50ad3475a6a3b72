package badger

import (
	"context"
	"errors"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// ContentStorage implements the stage artifact store on Badger
type ContentStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewContentStorage creates a new ContentStorage instance
func NewContentStorage(db *BadgerDB, logger arbor.ILogger) interfaces.ContentStorage {
	return &ContentStorage{
		db:     db,
		logger: logger,
	}
}

// UpsertScrapedContent writes the scrape artifact, replacing any existing row
// for the job. Re-running the scrape stage overwrites rather than appends.
func (s *ContentStorage) UpsertScrapedContent(ctx context.Context, content *models.ScrapedContent) error {
	if err := s.db.Store().Upsert(content.JobID, content); err != nil {
		return fmt.Errorf("failed to upsert scraped content for job %d: %w", content.JobID, err)
	}
	return nil
}

func (s *ContentStorage) GetScrapedContent(ctx context.Context, jobID uint64) (*models.ScrapedContent, error) {
	var content models.ScrapedContent
	if err := s.db.Store().Get(jobID, &content); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, fmt.Errorf("scraped content for job %d: %w", jobID, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get scraped content for job %d: %w", jobID, err)
	}
	return &content, nil
}

// AppendTranslation inserts a translation row. History is retained; the
// latest row by timestamp wins for downstream reads.
func (s *ContentStorage) AppendTranslation(ctx context.Context, result *models.TranslationResult) error {
	if err := s.db.Store().Insert(badgerhold.NextSequence(), result); err != nil {
		return fmt.Errorf("failed to append translation for job %d: %w", result.JobID, err)
	}
	return nil
}

func (s *ContentStorage) LatestTranslation(ctx context.Context, jobID uint64) (*models.TranslationResult, error) {
	var results []models.TranslationResult
	query := badgerhold.Where("JobID").Eq(jobID).Index("JobID").SortBy("Timestamp", "ID").Reverse().Limit(1)
	if err := s.db.Store().Find(&results, query); err != nil {
		return nil, fmt.Errorf("failed to find translations for job %d: %w", jobID, err)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("translation for job %d: %w", jobID, models.ErrNotFound)
	}
	return &results[0], nil
}

func (s *ContentStorage) CountTranslations(ctx context.Context, jobID uint64) (int, error) {
	count, err := s.db.Store().Count(&models.TranslationResult{}, badgerhold.Where("JobID").Eq(jobID).Index("JobID"))
	if err != nil {
		return 0, fmt.Errorf("failed to count translations for job %d: %w", jobID, err)
	}
	return int(count), nil
}

// AppendSummary inserts a summary row. History is retained like translations.
func (s *ContentStorage) AppendSummary(ctx context.Context, result *models.SummaryResult) error {
	if err := s.db.Store().Insert(badgerhold.NextSequence(), result); err != nil {
		return fmt.Errorf("failed to append summary for job %d: %w", result.JobID, err)
	}
	return nil
}

func (s *ContentStorage) LatestSummary(ctx context.Context, jobID uint64) (*models.SummaryResult, error) {
	var results []models.SummaryResult
	query := badgerhold.Where("JobID").Eq(jobID).Index("JobID").SortBy("Timestamp", "ID").Reverse().Limit(1)
	if err := s.db.Store().Find(&results, query); err != nil {
		return nil, fmt.Errorf("failed to find summaries for job %d: %w", jobID, err)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("summary for job %d: %w", jobID, models.ErrNotFound)
	}
	return &results[0], nil
}

func (s *ContentStorage) CountSummaries(ctx context.Context, jobID uint64) (int, error) {
	count, err := s.db.Store().Count(&models.SummaryResult{}, badgerhold.Where("JobID").Eq(jobID).Index("JobID"))
	if err != nil {
		return 0, fmt.Errorf("failed to count summaries for job %d: %w", jobID, err)
	}
	return int(count), nil
}

// DeleteForJob removes all stage artifacts for a job.
func (s *ContentStorage) DeleteForJob(ctx context.Context, jobID uint64) error {
	if err := s.db.Store().Delete(jobID, &models.ScrapedContent{}); err != nil && !errors.Is(err, badgerhold.ErrNotFound) {
		return fmt.Errorf("failed to delete scraped content for job %d: %w", jobID, err)
	}
	if err := s.db.Store().DeleteMatching(&models.TranslationResult{}, badgerhold.Where("JobID").Eq(jobID).Index("JobID")); err != nil {
		return fmt.Errorf("failed to delete translations for job %d: %w", jobID, err)
	}
	if err := s.db.Store().DeleteMatching(&models.SummaryResult{}, badgerhold.Where("JobID").Eq(jobID).Index("JobID")); err != nil {
		return fmt.Errorf("failed to delete summaries for job %d: %w", jobID, err)
	}
	return nil
}
