package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
)

func newTestQueue(t *testing.T, visibility time.Duration, maxReceive int) *BadgerQueue {
	t.Helper()

	opts := badgerdb.DefaultOptions(t.TempDir())
	opts.Logger = nil
	db, err := badgerdb.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() {
		db.Close()
	})

	queue, err := NewBadgerQueue(db, "test_tasks", visibility, maxReceive, common.GetLogger())
	require.NoError(t, err)
	return queue
}

func newTaskMessage(t *testing.T, jobID uint64) models.TaskMessage {
	t.Helper()
	msg, err := models.NewTaskMessage(jobID, models.DefaultChain())
	require.NoError(t, err)
	return msg
}

func TestQueue_ReceiveEmptyReturnsNoMessage(t *testing.T) {
	queue := newTestQueue(t, time.Minute, 4)

	_, err := queue.Receive(context.Background())
	assert.True(t, errors.Is(err, models.ErrNoMessage))
}

func TestQueue_EnqueueReceiveAck(t *testing.T) {
	queue := newTestQueue(t, time.Minute, 4)
	ctx := context.Background()

	msg := newTaskMessage(t, 42)
	require.NoError(t, queue.Enqueue(ctx, msg))

	delivery, err := queue.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), delivery.Message.JobID)
	assert.Equal(t, models.StageScrape, delivery.Message.Stage)
	assert.Equal(t, 1, delivery.Attempt)

	require.NoError(t, delivery.Ack())

	_, err = queue.Receive(ctx)
	assert.True(t, errors.Is(err, models.ErrNoMessage))
}

func TestQueue_AckIsIdempotent(t *testing.T) {
	queue := newTestQueue(t, time.Minute, 4)
	ctx := context.Background()

	require.NoError(t, queue.Enqueue(ctx, newTaskMessage(t, 1)))
	delivery, err := queue.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, delivery.Ack())
	require.NoError(t, delivery.Ack())
}

func TestQueue_RejectsInvalidMessage(t *testing.T) {
	queue := newTestQueue(t, time.Minute, 4)

	err := queue.Enqueue(context.Background(), models.TaskMessage{JobID: 0, Stage: models.StageScrape})
	assert.Error(t, err)
}

func TestQueue_UnackedMessageRedeliversAfterVisibilityTimeout(t *testing.T) {
	queue := newTestQueue(t, 50*time.Millisecond, 4)
	ctx := context.Background()

	require.NoError(t, queue.Enqueue(ctx, newTaskMessage(t, 7)))

	first, err := queue.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Attempt)

	// Claimed message is invisible until the timeout lapses
	_, err = queue.Receive(ctx)
	assert.True(t, errors.Is(err, models.ErrNoMessage))

	time.Sleep(80 * time.Millisecond)

	second, err := queue.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, second.Attempt)
	assert.Equal(t, uint64(7), second.Message.JobID)
}

func TestQueue_RetryReschedulesWithDelay(t *testing.T) {
	queue := newTestQueue(t, time.Minute, 4)
	ctx := context.Background()

	require.NoError(t, queue.Enqueue(ctx, newTaskMessage(t, 3)))

	delivery, err := queue.Receive(ctx)
	require.NoError(t, err)
	require.NoError(t, delivery.Retry(60*time.Millisecond))

	// Not visible before the delay
	_, err = queue.Receive(ctx)
	assert.True(t, errors.Is(err, models.ErrNoMessage))

	time.Sleep(90 * time.Millisecond)

	redelivered, err := queue.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, redelivered.Attempt)
}

func TestQueue_AttemptCountsAcrossRetries(t *testing.T) {
	queue := newTestQueue(t, time.Minute, 10)
	ctx := context.Background()

	require.NoError(t, queue.Enqueue(ctx, newTaskMessage(t, 5)))

	for want := 1; want <= 4; want++ {
		delivery, err := queue.Receive(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, delivery.Attempt)
		require.NoError(t, delivery.Retry(0))
		time.Sleep(5 * time.Millisecond)
	}
}

func TestQueue_DropsMessagePastMaxReceive(t *testing.T) {
	queue := newTestQueue(t, time.Minute, 2)
	ctx := context.Background()

	require.NoError(t, queue.Enqueue(ctx, newTaskMessage(t, 9)))

	for i := 0; i < 2; i++ {
		delivery, err := queue.Receive(ctx)
		require.NoError(t, err)
		require.NoError(t, delivery.Retry(0))
		time.Sleep(5 * time.Millisecond)
	}

	// Third poll finds the message past its cap and drops it
	_, err := queue.Receive(ctx)
	assert.True(t, errors.Is(err, models.ErrNoMessage))
}

func TestQueue_FIFOForReadyMessages(t *testing.T) {
	queue := newTestQueue(t, time.Minute, 4)
	ctx := context.Background()

	require.NoError(t, queue.Enqueue(ctx, newTaskMessage(t, 1)))
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, queue.Enqueue(ctx, newTaskMessage(t, 2)))

	first, err := queue.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), first.Message.JobID)

	second, err := queue.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), second.Message.JobID)
}

func TestWorkerPool_ProcessesDeliveries(t *testing.T) {
	queue := newTestQueue(t, time.Minute, 4)
	ctx := context.Background()

	var mu sync.Mutex
	seen := make(map[uint64]int)

	handler := func(ctx context.Context, delivery *interfaces.Delivery) error {
		mu.Lock()
		seen[delivery.Message.JobID] = delivery.Attempt
		mu.Unlock()
		return delivery.Ack()
	}

	pool := NewWorkerPool(queue, handler, 2, time.Second, common.GetLogger())
	pool.Start()
	defer pool.Stop()

	for id := uint64(1); id <= 5; id++ {
		require.NoError(t, queue.Enqueue(ctx, newTaskMessage(t, id)))
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 5
	}, 5*time.Second, 20*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	for id := uint64(1); id <= 5; id++ {
		assert.Equal(t, 1, seen[id])
	}
}

func TestWorkerPool_RecoversFromHandlerPanic(t *testing.T) {
	queue := newTestQueue(t, time.Minute, 4)
	ctx := context.Background()

	var mu sync.Mutex
	var calls int

	handler := func(ctx context.Context, delivery *interfaces.Delivery) error {
		mu.Lock()
		calls++
		first := calls == 1
		mu.Unlock()
		if first {
			panic("stage blew up")
		}
		return delivery.Ack()
	}

	pool := NewWorkerPool(queue, handler, 1, time.Second, common.GetLogger())
	pool.Start()
	defer pool.Stop()

	require.NoError(t, queue.Enqueue(ctx, newTaskMessage(t, 1)))
	time.Sleep(200 * time.Millisecond)
	require.NoError(t, queue.Enqueue(ctx, newTaskMessage(t, 2)))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls >= 2
	}, 5*time.Second, 20*time.Millisecond)
}
