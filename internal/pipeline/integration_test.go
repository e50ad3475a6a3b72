package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
	"github.com/ternarybob/colligo/internal/queue"
	storage "github.com/ternarybob/colligo/internal/storage/badger"
)

// countingFetcher is a mutex-guarded fetcher for tests that read the call
// count while workers are running.
type countingFetcher struct {
	mu     sync.Mutex
	result *interfaces.FetchResult
	err    error
	calls  int
}

func (f *countingFetcher) Fetch(ctx context.Context, url string) (*interfaces.FetchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *countingFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// newTestPipeline wires real storage and a real queue to the orchestrator,
// with fake capability collaborators.
func newTestPipeline(t *testing.T, fetcher interfaces.ContentFetcher, policy *RetryPolicy) (*storage.Manager, *Orchestrator, *queue.WorkerPool) {
	t.Helper()
	logger := common.GetLogger()

	manager, err := storage.NewManager(&common.BadgerConfig{Path: t.TempDir()}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })

	taskQueue, err := queue.NewBadgerQueue(manager.DB().Store().Badger(), "itest_tasks", 200*time.Millisecond, 4, logger)
	require.NoError(t, err)

	translator := &fakeTranslator{response: &interfaces.TranslationResponse{
		TranslatedText: "[Translated es->en]\nHola mundo",
		Engine:         "marker-prefix",
	}}
	summarizer := &fakeSummarizer{response: &interfaces.SummaryResponse{
		SummaryText:   "Executive summary:\nHola mundo",
		ModelID:       "extractive-v1",
		PromptVersion: "v1.0.0",
		Temperature:   0.2,
		TokenUsage:    2,
	}}

	orch := NewOrchestrator(manager, taskQueue, policy, logger,
		NewScrapeExecutor(fetcher, manager, logger),
		NewTranslateExecutor(translator, manager, "en", logger),
		NewSummarizeExecutor(summarizer, manager, logger),
		NewCompleteExecutor(manager, logger),
	)

	pool := queue.NewWorkerPool(taskQueue, orch.Handle, 1, 2*time.Second, logger)
	return manager, orch, pool
}

func TestPipeline_EndToEndCompletes(t *testing.T) {
	fetcher := &countingFetcher{result: &interfaces.FetchResult{
		RawContent:       []byte("<html><body><p>Hola mundo</p></body></html>"),
		CleanedText:      "Hola mundo",
		DetectedLanguage: "es",
	}}
	manager, orch, pool := newTestPipeline(t, fetcher, nil)
	ctx := context.Background()

	job := models.NewJob("https://example.com/articulo")
	require.NoError(t, manager.JobStorage().CreateJob(ctx, job))
	require.NoError(t, orch.Start(ctx, job.ID, models.DefaultChain()))

	pool.Start()
	defer pool.Stop()

	require.Eventually(t, func() bool {
		stored, err := manager.JobStorage().GetJob(ctx, job.ID)
		return err == nil && stored.Status == models.JobStatusCompleted
	}, 10*time.Second, 25*time.Millisecond)

	stored, err := manager.JobStorage().GetJob(ctx, job.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.CompletedAt)
	assert.Empty(t, stored.ErrorMessage)

	content, err := manager.ContentStorage().GetScrapedContent(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hola mundo", content.CleanedText)
	assert.Equal(t, "es", content.DetectedLanguage)

	raw, err := manager.BlobStorage().Get(ctx, content.RawContentRef)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Hola mundo")

	translation, err := manager.ContentStorage().LatestTranslation(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "marker-prefix", translation.Engine)

	summary, err := manager.ContentStorage().LatestSummary(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "Executive summary:\nHola mundo", summary.SummaryText)

	events, err := manager.AuditStorage().GetEvents(ctx, job.ID, 0)
	require.NoError(t, err)
	var stages []string
	for _, e := range events {
		stages = append(stages, e.Stage)
	}
	assert.Contains(t, stages, "running")
	assert.Contains(t, stages, "scrape")
	assert.Contains(t, stages, "translate")
	assert.Contains(t, stages, "summarize")
	assert.Contains(t, stages, "complete")
}

func TestPipeline_EndToEndFailsAfterRetries(t *testing.T) {
	fetcher := &countingFetcher{err: interfaces.ErrFetchTimeout}
	policy := &RetryPolicy{
		MaxRetries:        3,
		InitialBackoff:    10 * time.Millisecond,
		MaxBackoff:        50 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
	manager, orch, pool := newTestPipeline(t, fetcher, policy)
	ctx := context.Background()

	job := models.NewJob("https://example.com/unreachable")
	require.NoError(t, manager.JobStorage().CreateJob(ctx, job))
	require.NoError(t, orch.Start(ctx, job.ID, models.DefaultChain()))

	pool.Start()
	defer pool.Stop()

	require.Eventually(t, func() bool {
		stored, err := manager.JobStorage().GetJob(ctx, job.ID)
		return err == nil && stored.Status == models.JobStatusFailed
	}, 10*time.Second, 25*time.Millisecond)

	// Exactly one initial attempt plus three retries.
	assert.Equal(t, 4, fetcher.callCount())

	stored, err := manager.JobStorage().GetJob(ctx, job.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.CompletedAt)
	assert.Contains(t, stored.ErrorMessage, "fetch timed out")

	// No downstream artifacts were produced.
	_, err = manager.ContentStorage().LatestTranslation(ctx, job.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = manager.ContentStorage().LatestSummary(ctx, job.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)

	events, err := manager.AuditStorage().GetEvents(ctx, job.ID, 0)
	require.NoError(t, err)
	var sawFailure bool
	for _, e := range events {
		if e.Stage == models.AuditStageFailed {
			sawFailure = true
			assert.Contains(t, e.Detail, "after 4 attempt(s)")
		}
	}
	assert.True(t, sawFailure, "failure audit event should be recorded")
}
