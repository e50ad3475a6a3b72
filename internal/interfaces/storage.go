package interfaces

import (
	"context"

	"github.com/ternarybob/colligo/internal/models"
)

// JobStorage is the durable job record store. All mutations are single-row,
// single-job writes; the chain's sequential-per-job contract means no two
// stages of the same job write concurrently.
type JobStorage interface {
	// CreateJob inserts a pending job and assigns its numeric id.
	CreateJob(ctx context.Context, job *models.Job) error

	// GetJob returns the job or a models.ErrNotFound error.
	GetJob(ctx context.Context, jobID uint64) (*models.Job, error)

	// UpdateJob persists a mutated job record.
	UpdateJob(ctx context.Context, job *models.Job) error

	// ListRecent returns the most recently created jobs, newest first.
	ListRecent(ctx context.Context, limit int) ([]*models.Job, error)

	// CountByStatus returns the number of jobs in the given status.
	CountByStatus(ctx context.Context, status models.JobStatus) (int, error)

	// CountAll returns the total number of jobs.
	CountAll(ctx context.Context) (int, error)

	// CompletedJobs returns all jobs in completed status (dashboard average).
	CompletedJobs(ctx context.Context) ([]*models.Job, error)

	// DeleteJob removes a job record (administrative only; callers cascade
	// children and blobs themselves).
	DeleteJob(ctx context.Context, jobID uint64) error
}

// AuditStorage is the append-only audit trail. Events are immutable once
// appended and are read back ordered by creation time.
type AuditStorage interface {
	Append(ctx context.Context, event *models.AuditEvent) error
	GetEvents(ctx context.Context, jobID uint64, limit int) ([]*models.AuditEvent, error)
	CountEvents(ctx context.Context, jobID uint64) (int, error)
	DeleteEvents(ctx context.Context, jobID uint64) error
}

// ContentStorage holds the stage artifacts: the scrape output (upsert, one
// live row per job) and the translation/summary histories (append-many,
// latest wins for downstream consumption).
type ContentStorage interface {
	UpsertScrapedContent(ctx context.Context, content *models.ScrapedContent) error
	GetScrapedContent(ctx context.Context, jobID uint64) (*models.ScrapedContent, error)

	AppendTranslation(ctx context.Context, result *models.TranslationResult) error
	LatestTranslation(ctx context.Context, jobID uint64) (*models.TranslationResult, error)
	CountTranslations(ctx context.Context, jobID uint64) (int, error)

	AppendSummary(ctx context.Context, result *models.SummaryResult) error
	LatestSummary(ctx context.Context, jobID uint64) (*models.SummaryResult, error)
	CountSummaries(ctx context.Context, jobID uint64) (int, error)

	// DeleteForJob removes all artifacts of a job (administrative cascade).
	DeleteForJob(ctx context.Context, jobID uint64) error
}

// StorageManager aggregates the storage interfaces behind one connection
type StorageManager interface {
	JobStorage() JobStorage
	AuditStorage() AuditStorage
	ContentStorage() ContentStorage
	BlobStorage() BlobStore
	Close() error
}
