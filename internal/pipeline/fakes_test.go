package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
)

// memStorage is an in-memory StorageManager for executor and orchestrator
// tests. Single mutex; test concurrency is low.
type memStorage struct {
	mu           sync.Mutex
	nextID       uint64
	jobs         map[uint64]*models.Job
	events       []*models.AuditEvent
	scraped      map[uint64]*models.ScrapedContent
	translations []*models.TranslationResult
	summaries    []*models.SummaryResult
	blobs        map[string][]byte
	blobFailures int
}

func newMemStorage() *memStorage {
	return &memStorage{
		jobs:    make(map[uint64]*models.Job),
		scraped: make(map[uint64]*models.ScrapedContent),
		blobs:   make(map[string][]byte),
	}
}

func (m *memStorage) JobStorage() interfaces.JobStorage         { return (*memJobStorage)(m) }
func (m *memStorage) AuditStorage() interfaces.AuditStorage     { return (*memAuditStorage)(m) }
func (m *memStorage) ContentStorage() interfaces.ContentStorage { return (*memContentStorage)(m) }
func (m *memStorage) BlobStorage() interfaces.BlobStore         { return (*memBlobStore)(m) }
func (m *memStorage) Close() error                              { return nil }

func (m *memStorage) addJob(job *models.Job) *models.Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	job.ID = m.nextID
	copied := *job
	m.jobs[job.ID] = &copied
	return job
}

func (m *memStorage) auditStages(jobID uint64) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var stages []string
	for _, e := range m.events {
		if e.JobID == jobID {
			stages = append(stages, e.Stage)
		}
	}
	return stages
}

type memJobStorage memStorage

func (s *memJobStorage) CreateJob(ctx context.Context, job *models.Job) error {
	(*memStorage)(s).addJob(job)
	return nil
}

func (s *memJobStorage) GetJob(ctx context.Context, jobID uint64) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("job %d: %w", jobID, models.ErrNotFound)
	}
	copied := *job
	return &copied, nil
}

func (s *memJobStorage) UpdateJob(ctx context.Context, job *models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.ID]; !ok {
		return fmt.Errorf("job %d: %w", job.ID, models.ErrNotFound)
	}
	copied := *job
	s.jobs[job.ID] = &copied
	return nil
}

func (s *memJobStorage) ListRecent(ctx context.Context, limit int) ([]*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	jobs := make([]*models.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		copied := *job
		jobs = append(jobs, &copied)
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].CreatedAt.After(jobs[j].CreatedAt) })
	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

func (s *memJobStorage) CountByStatus(ctx context.Context, status models.JobStatus) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, job := range s.jobs {
		if job.Status == status {
			count++
		}
	}
	return count, nil
}

func (s *memJobStorage) CountAll(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs), nil
}

func (s *memJobStorage) CompletedJobs(ctx context.Context) ([]*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var jobs []*models.Job
	for _, job := range s.jobs {
		if job.Status == models.JobStatusCompleted {
			copied := *job
			jobs = append(jobs, &copied)
		}
	}
	return jobs, nil
}

func (s *memJobStorage) DeleteJob(ctx context.Context, jobID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[jobID]; !ok {
		return fmt.Errorf("job %d: %w", jobID, models.ErrNotFound)
	}
	delete(s.jobs, jobID)
	return nil
}

type memAuditStorage memStorage

func (s *memAuditStorage) Append(ctx context.Context, event *models.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	event.ID = s.nextID
	s.events = append(s.events, event)
	return nil
}

func (s *memAuditStorage) GetEvents(ctx context.Context, jobID uint64, limit int) ([]*models.AuditEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var events []*models.AuditEvent
	for i := len(s.events) - 1; i >= 0; i-- {
		if s.events[i].JobID == jobID {
			events = append(events, s.events[i])
			if limit > 0 && len(events) == limit {
				break
			}
		}
	}
	return events, nil
}

func (s *memAuditStorage) CountEvents(ctx context.Context, jobID uint64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, e := range s.events {
		if e.JobID == jobID {
			count++
		}
	}
	return count, nil
}

func (s *memAuditStorage) DeleteEvents(ctx context.Context, jobID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.events[:0]
	for _, e := range s.events {
		if e.JobID != jobID {
			kept = append(kept, e)
		}
	}
	s.events = kept
	return nil
}

type memContentStorage memStorage

func (s *memContentStorage) UpsertScrapedContent(ctx context.Context, content *models.ScrapedContent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *content
	s.scraped[content.JobID] = &copied
	return nil
}

func (s *memContentStorage) GetScrapedContent(ctx context.Context, jobID uint64) (*models.ScrapedContent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	content, ok := s.scraped[jobID]
	if !ok {
		return nil, fmt.Errorf("scraped content for job %d: %w", jobID, models.ErrNotFound)
	}
	copied := *content
	return &copied, nil
}

func (s *memContentStorage) AppendTranslation(ctx context.Context, result *models.TranslationResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	result.ID = s.nextID
	copied := *result
	s.translations = append(s.translations, &copied)
	return nil
}

func (s *memContentStorage) LatestTranslation(ctx context.Context, jobID uint64) (*models.TranslationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *models.TranslationResult
	for _, t := range s.translations {
		if t.JobID != jobID {
			continue
		}
		if latest == nil || t.Timestamp.After(latest.Timestamp) {
			latest = t
		}
	}
	if latest == nil {
		return nil, fmt.Errorf("translation for job %d: %w", jobID, models.ErrNotFound)
	}
	copied := *latest
	return &copied, nil
}

func (s *memContentStorage) CountTranslations(ctx context.Context, jobID uint64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, t := range s.translations {
		if t.JobID == jobID {
			count++
		}
	}
	return count, nil
}

func (s *memContentStorage) AppendSummary(ctx context.Context, result *models.SummaryResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	result.ID = s.nextID
	copied := *result
	s.summaries = append(s.summaries, &copied)
	return nil
}

func (s *memContentStorage) LatestSummary(ctx context.Context, jobID uint64) (*models.SummaryResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *models.SummaryResult
	for _, sum := range s.summaries {
		if sum.JobID != jobID {
			continue
		}
		if latest == nil || sum.Timestamp.After(latest.Timestamp) {
			latest = sum
		}
	}
	if latest == nil {
		return nil, fmt.Errorf("summary for job %d: %w", jobID, models.ErrNotFound)
	}
	copied := *latest
	return &copied, nil
}

func (s *memContentStorage) CountSummaries(ctx context.Context, jobID uint64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, sum := range s.summaries {
		if sum.JobID == jobID {
			count++
		}
	}
	return count, nil
}

func (s *memContentStorage) DeleteForJob(ctx context.Context, jobID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.scraped, jobID)
	return nil
}

type memBlobStore memStorage

func (s *memBlobStore) Store(ctx context.Context, content []byte, jobID uint64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.blobFailures > 0 {
		s.blobFailures--
		return "", interfaces.ErrStorageUnavailable
	}
	s.nextID++
	locator := fmt.Sprintf("blob://jobs/%d/raw/%d.html", jobID, s.nextID)
	s.blobs[locator] = append([]byte(nil), content...)
	return locator, nil
}

func (s *memBlobStore) Get(ctx context.Context, locator string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	content, ok := s.blobs[locator]
	if !ok {
		return nil, fmt.Errorf("blob %s: %w", locator, models.ErrNotFound)
	}
	return content, nil
}

func (s *memBlobStore) Delete(ctx context.Context, jobID uint64) error {
	return nil
}

// fakeQueue records enqueues and builds deliveries with instrumented
// ack/retry closures.
type fakeQueue struct {
	mu       sync.Mutex
	enqueued []models.TaskMessage
}

func (q *fakeQueue) Enqueue(ctx context.Context, msg models.TaskMessage) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.enqueued = append(q.enqueued, msg)
	return nil
}

func (q *fakeQueue) Receive(ctx context.Context) (*interfaces.Delivery, error) {
	return nil, models.ErrNoMessage
}

func (q *fakeQueue) Close() error { return nil }

func (q *fakeQueue) messages() []models.TaskMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]models.TaskMessage(nil), q.enqueued...)
}

// deliveryRecorder builds a Delivery whose ack/retry calls are observable.
type deliveryRecorder struct {
	mu         sync.Mutex
	acked      bool
	retried    bool
	retryDelay time.Duration
}

func (r *deliveryRecorder) delivery(msg models.TaskMessage, attempt int) *interfaces.Delivery {
	return &interfaces.Delivery{
		Message: msg,
		Attempt: attempt,
		Ack: func() error {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.acked = true
			return nil
		},
		Retry: func(delay time.Duration) error {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.retried = true
			r.retryDelay = delay
			return nil
		},
	}
}

// fake capability collaborators

type fakeFetcher struct {
	result *interfaces.FetchResult
	err    error
	calls  int
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (*interfaces.FetchResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeTranslator struct {
	response *interfaces.TranslationResponse
	err      error
}

func (f *fakeTranslator) Translate(ctx context.Context, text, sourceLanguage, targetLanguage string) (*interfaces.TranslationResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.response, nil
}

type fakeSummarizer struct {
	response *interfaces.SummaryResponse
	err      error
	lastText string
}

func (f *fakeSummarizer) Summarize(ctx context.Context, text string) (*interfaces.SummaryResponse, error) {
	f.lastText = text
	if f.err != nil {
		return nil, f.err
	}
	return f.response, nil
}
