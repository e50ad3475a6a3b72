package badger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
)

func newTestManager(t *testing.T) interfaces.StorageManager {
	t.Helper()

	config := &common.BadgerConfig{
		Path:           t.TempDir(),
		ResetOnStartup: false,
	}

	manager, err := NewManager(config, common.GetLogger())
	require.NoError(t, err)
	t.Cleanup(func() {
		manager.Close()
	})
	return manager
}

func TestJobStorage_CreateAndGet(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()

	job := models.NewJob("https://example.com/article")
	require.NoError(t, manager.JobStorage().CreateJob(ctx, job))
	assert.NotZero(t, job.ID)

	got, err := manager.JobStorage().GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.URL, got.URL)
	assert.Equal(t, models.JobStatusPending, got.Status)
	assert.Nil(t, got.CompletedAt)
}

func TestJobStorage_GetMissingReturnsNotFound(t *testing.T) {
	manager := newTestManager(t)

	_, err := manager.JobStorage().GetJob(context.Background(), 9999)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func TestJobStorage_UpdateTransitions(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()

	job := models.NewJob("https://example.com")
	require.NoError(t, manager.JobStorage().CreateJob(ctx, job))

	job.Status = models.JobStatusRunning
	require.NoError(t, manager.JobStorage().UpdateJob(ctx, job))

	job.MarkCompleted()
	require.NoError(t, manager.JobStorage().UpdateJob(ctx, job))

	got, err := manager.JobStorage().GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)
	assert.Empty(t, got.ErrorMessage)
}

func TestJobStorage_CountByStatus(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		job := models.NewJob("https://example.com/completed")
		require.NoError(t, manager.JobStorage().CreateJob(ctx, job))
		job.MarkCompleted()
		require.NoError(t, manager.JobStorage().UpdateJob(ctx, job))
	}
	failed := models.NewJob("https://example.com/failed")
	require.NoError(t, manager.JobStorage().CreateJob(ctx, failed))
	failed.MarkFailed("fetch timed out")
	require.NoError(t, manager.JobStorage().UpdateJob(ctx, failed))

	completed, err := manager.JobStorage().CountByStatus(ctx, models.JobStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, 3, completed)

	failedCount, err := manager.JobStorage().CountByStatus(ctx, models.JobStatusFailed)
	require.NoError(t, err)
	assert.Equal(t, 1, failedCount)

	total, err := manager.JobStorage().CountAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, total)
}

func TestJobStorage_ListRecentNewestFirst(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()

	var ids []uint64
	for i := 0; i < 5; i++ {
		job := models.NewJob("https://example.com/page")
		job.CreatedAt = time.Now().UTC().Add(time.Duration(i) * time.Second)
		require.NoError(t, manager.JobStorage().CreateJob(ctx, job))
		ids = append(ids, job.ID)
	}

	recent, err := manager.JobStorage().ListRecent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, ids[4], recent[0].ID)
	assert.Equal(t, ids[3], recent[1].ID)
	assert.Equal(t, ids[2], recent[2].ID)
}

func TestAuditStorage_AppendAndGetOrdering(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()

	job := models.NewJob("https://example.com")
	require.NoError(t, manager.JobStorage().CreateJob(ctx, job))

	stages := []string{models.AuditStageSubmit, "scrape", "translate", "summarize", "complete"}
	base := time.Now().UTC()
	for i, stage := range stages {
		event := models.NewAuditEvent(job.ID, stage, "stage finished")
		event.CreatedAt = base.Add(time.Duration(i) * time.Millisecond)
		require.NoError(t, manager.AuditStorage().Append(ctx, event))
	}

	events, err := manager.AuditStorage().GetEvents(ctx, job.ID, 3)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "complete", events[0].Stage)
	assert.Equal(t, "summarize", events[1].Stage)
	assert.Equal(t, "translate", events[2].Stage)

	count, err := manager.AuditStorage().CountEvents(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, count)
}

func TestAuditStorage_EventsScopedToJob(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, manager.AuditStorage().Append(ctx, models.NewAuditEvent(1, "scrape", "ok")))
	require.NoError(t, manager.AuditStorage().Append(ctx, models.NewAuditEvent(2, "scrape", "ok")))

	events, err := manager.AuditStorage().GetEvents(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, uint64(1), events[0].JobID)
}

func TestContentStorage_ScrapedContentUpsert(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()

	first := models.NewScrapedContent(7, "blob://jobs/7/raw/a.html", "first pass", "de")
	require.NoError(t, manager.ContentStorage().UpsertScrapedContent(ctx, first))

	second := models.NewScrapedContent(7, "blob://jobs/7/raw/b.html", "second pass", "de")
	require.NoError(t, manager.ContentStorage().UpsertScrapedContent(ctx, second))

	got, err := manager.ContentStorage().GetScrapedContent(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "second pass", got.CleanedText)
	assert.Equal(t, "blob://jobs/7/raw/b.html", got.RawContentRef)
}

func TestContentStorage_LatestTranslationWins(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()

	older := models.NewTranslationResult(3, "old text", "marker-prefix")
	older.Timestamp = time.Now().UTC().Add(-time.Minute)
	require.NoError(t, manager.ContentStorage().AppendTranslation(ctx, older))

	newer := models.NewTranslationResult(3, "new text", "marker-prefix")
	require.NoError(t, manager.ContentStorage().AppendTranslation(ctx, newer))

	latest, err := manager.ContentStorage().LatestTranslation(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "new text", latest.TranslatedText)

	count, err := manager.ContentStorage().CountTranslations(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestContentStorage_LatestSummaryWins(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()

	older := models.NewSummaryResult(5, "old summary", "extractive-v1", "v1.0.0", 0.2, 12)
	older.Timestamp = time.Now().UTC().Add(-time.Minute)
	require.NoError(t, manager.ContentStorage().AppendSummary(ctx, older))

	newer := models.NewSummaryResult(5, "new summary", "extractive-v1", "v1.0.0", 0.2, 15)
	require.NoError(t, manager.ContentStorage().AppendSummary(ctx, newer))

	latest, err := manager.ContentStorage().LatestSummary(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, "new summary", latest.SummaryText)
	assert.Equal(t, 15, latest.TokenUsage)
}

func TestContentStorage_MissingArtifactsReturnNotFound(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()

	_, err := manager.ContentStorage().GetScrapedContent(ctx, 404)
	assert.True(t, errors.Is(err, models.ErrNotFound))

	_, err = manager.ContentStorage().LatestTranslation(ctx, 404)
	assert.True(t, errors.Is(err, models.ErrNotFound))

	_, err = manager.ContentStorage().LatestSummary(ctx, 404)
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func TestBlobStorage_RoundTrip(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()

	content := []byte("<html><body>hello</body></html>")
	locator, err := manager.BlobStorage().Store(ctx, content, 42)
	require.NoError(t, err)
	assert.Contains(t, locator, "blob://jobs/42/raw/")
	assert.Contains(t, locator, ".html")

	got, err := manager.BlobStorage().Get(ctx, locator)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestBlobStorage_StoreNeverOverwrites(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()

	first, err := manager.BlobStorage().Store(ctx, []byte("one"), 1)
	require.NoError(t, err)
	second, err := manager.BlobStorage().Store(ctx, []byte("two"), 1)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	gotFirst, err := manager.BlobStorage().Get(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, []byte("one"), gotFirst)
}

func TestBlobStorage_DeleteRemovesAllJobBlobs(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()

	first, err := manager.BlobStorage().Store(ctx, []byte("one"), 9)
	require.NoError(t, err)
	second, err := manager.BlobStorage().Store(ctx, []byte("two"), 9)
	require.NoError(t, err)
	other, err := manager.BlobStorage().Store(ctx, []byte("keep"), 10)
	require.NoError(t, err)

	require.NoError(t, manager.BlobStorage().Delete(ctx, 9))

	_, err = manager.BlobStorage().Get(ctx, first)
	assert.True(t, errors.Is(err, models.ErrNotFound))
	_, err = manager.BlobStorage().Get(ctx, second)
	assert.True(t, errors.Is(err, models.ErrNotFound))

	kept, err := manager.BlobStorage().Get(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, []byte("keep"), kept)
}

func TestBlobStorage_InvalidLocator(t *testing.T) {
	manager := newTestManager(t)

	_, err := manager.BlobStorage().Get(context.Background(), "s3://bucket/not-ours")
	assert.Error(t, err)
}
