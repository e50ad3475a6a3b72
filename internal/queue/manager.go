package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
)

// queuedMessage is the internal envelope stored in Badger
type queuedMessage struct {
	ID           string             `json:"id"`
	Body         models.TaskMessage `json:"body"`
	EnqueuedAt   time.Time          `json:"enqueued_at"`
	VisibleAt    time.Time          `json:"visible_at"`
	ReceiveCount int                `json:"receive_count"`
}

// BadgerQueue implements a persistent at-least-once task queue on BadgerDB.
//
// Each message lives under two keys: the data key, and a visibility-index key
// whose timestamp component makes ready messages scannable in order. A
// received message stays in the queue with its visibility pushed into the
// future; acknowledgment after successful processing deletes it. A worker
// crash between receive and ack means the message reappears when the
// visibility timeout lapses.
type BadgerQueue struct {
	db                *badgerdb.DB
	queueName         string
	visibilityTimeout time.Duration
	maxReceive        int
	logger            arbor.ILogger
}

// NewBadgerQueue creates a Badger-backed queue. The DB handle is shared with
// the storage layer and closed by its owner, not by the queue.
func NewBadgerQueue(db *badgerdb.DB, queueName string, visibilityTimeout time.Duration, maxReceive int, logger arbor.ILogger) (*BadgerQueue, error) {
	if db == nil {
		return nil, errors.New("badger db is required")
	}
	if queueName == "" {
		return nil, errors.New("queue name is required")
	}
	if visibilityTimeout <= 0 {
		visibilityTimeout = 5 * time.Minute
	}
	if maxReceive <= 0 {
		maxReceive = 4
	}

	return &BadgerQueue{
		db:                db,
		queueName:         queueName,
		visibilityTimeout: visibilityTimeout,
		maxReceive:        maxReceive,
		logger:            logger,
	}, nil
}

// Enqueue adds a task message to the queue, immediately visible.
func (q *BadgerQueue) Enqueue(ctx context.Context, msg models.TaskMessage) error {
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("refusing to enqueue invalid message: %w", err)
	}

	qMsg := queuedMessage{
		ID:           uuid.New().String(),
		Body:         msg,
		EnqueuedAt:   time.Now(),
		VisibleAt:    time.Now(),
		ReceiveCount: 0,
	}

	data, err := json.Marshal(qMsg)
	if err != nil {
		return fmt.Errorf("failed to marshal queue message: %w", err)
	}

	err = q.db.Update(func(txn *badgerdb.Txn) error {
		if err := txn.Set(q.msgKey(qMsg.ID), data); err != nil {
			return err
		}
		return txn.Set(q.indexKey(qMsg.VisibleAt, qMsg.ID), []byte{})
	})
	if err != nil {
		return fmt.Errorf("failed to enqueue message: %w", err)
	}

	q.logger.Debug().
		Int64("job_id", int64(msg.JobID)).
		Str("stage", string(msg.Stage)).
		Str("message_id", qMsg.ID).
		Msg("Enqueued task message")
	return nil
}

// Receive claims the next visible message. It returns models.ErrNoMessage
// when nothing is ready. The returned delivery's Attempt is the 1-based
// receive count including this delivery.
func (q *BadgerQueue) Receive(ctx context.Context) (*interfaces.Delivery, error) {
	var qMsg queuedMessage
	var msgID string
	var oldIndexKey []byte

	err := q.db.Update(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.PrefetchValues = false
		prefix := []byte(fmt.Sprintf("queue:%s:index:", q.queueName))
		it := txn.NewIterator(opts)
		defer it.Close()

		now := time.Now()
		found := false

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().KeyCopy(nil)

			ts, id, err := q.parseIndexKey(key)
			if err != nil {
				continue
			}

			// Index keys sort by timestamp: the first future entry means
			// nothing later is ready either.
			if ts.After(now) {
				break
			}

			itemMsg, err := txn.Get(q.msgKey(id))
			if err != nil {
				if err == badgerdb.ErrKeyNotFound {
					// Orphaned index entry, clean it up
					if err := txn.Delete(key); err != nil {
						return err
					}
					continue
				}
				return err
			}

			if err := itemMsg.Value(func(val []byte) error {
				return json.Unmarshal(val, &qMsg)
			}); err != nil {
				return err
			}

			// Poison-pill guard: a message redelivered past the cap is
			// dropped here. The worker normally fails the job and acks
			// before this fires; this catches crash loops.
			if qMsg.ReceiveCount >= q.maxReceive {
				q.logger.Warn().
					Int64("job_id", int64(qMsg.Body.JobID)).
					Str("stage", string(qMsg.Body.Stage)).
					Int("receive_count", qMsg.ReceiveCount).
					Msg("Dropping message past max receive count")
				if err := txn.Delete(key); err != nil {
					return err
				}
				if err := txn.Delete(q.msgKey(id)); err != nil {
					return err
				}
				continue
			}

			found = true
			msgID = id
			oldIndexKey = key
			break
		}

		if !found {
			return models.ErrNoMessage
		}

		qMsg.ReceiveCount++
		qMsg.VisibleAt = time.Now().Add(q.visibilityTimeout)

		newData, err := json.Marshal(qMsg)
		if err != nil {
			return err
		}
		if err := txn.Set(q.msgKey(msgID), newData); err != nil {
			return err
		}
		if err := txn.Delete(oldIndexKey); err != nil {
			return err
		}
		return txn.Set(q.indexKey(qMsg.VisibleAt, msgID), []byte{})
	})
	if err != nil {
		return nil, err
	}

	delivery := &interfaces.Delivery{
		Message: qMsg.Body,
		Attempt: qMsg.ReceiveCount,
		Ack: func() error {
			return q.delete(msgID)
		},
		Retry: func(delay time.Duration) error {
			return q.reschedule(msgID, delay)
		},
	}
	return delivery, nil
}

// delete removes a message and its index entry. Idempotent: deleting an
// already-acked message is a no-op.
func (q *BadgerQueue) delete(msgID string) error {
	return q.db.Update(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(q.msgKey(msgID))
		if err != nil {
			if err == badgerdb.ErrKeyNotFound {
				return nil
			}
			return err
		}

		var current queuedMessage
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &current)
		}); err != nil {
			return err
		}

		if err := txn.Delete(q.indexKey(current.VisibleAt, msgID)); err != nil && err != badgerdb.ErrKeyNotFound {
			return err
		}
		return txn.Delete(q.msgKey(msgID))
	})
}

// reschedule moves a claimed message's visibility to now+delay so it is
// redelivered after the backoff window.
func (q *BadgerQueue) reschedule(msgID string, delay time.Duration) error {
	return q.db.Update(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(q.msgKey(msgID))
		if err != nil {
			return fmt.Errorf("failed to reschedule message %s: %w", msgID, err)
		}

		var current queuedMessage
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &current)
		}); err != nil {
			return err
		}

		oldVisibleAt := current.VisibleAt
		current.VisibleAt = time.Now().Add(delay)

		newData, err := json.Marshal(current)
		if err != nil {
			return err
		}
		if err := txn.Set(q.msgKey(msgID), newData); err != nil {
			return err
		}
		if err := txn.Delete(q.indexKey(oldVisibleAt, msgID)); err != nil && err != badgerdb.ErrKeyNotFound {
			return err
		}
		return txn.Set(q.indexKey(current.VisibleAt, msgID), []byte{})
	})
}

// Close is a no-op: the DB handle is owned by the storage layer.
func (q *BadgerQueue) Close() error {
	return nil
}

func (q *BadgerQueue) msgKey(id string) []byte {
	return []byte(fmt.Sprintf("queue:%s:msg:%s", q.queueName, id))
}

func (q *BadgerQueue) indexKey(visibleAt time.Time, id string) []byte {
	// Zero pad to 20 digits so lexicographic order matches numeric order
	return []byte(fmt.Sprintf("queue:%s:index:%020d:%s", q.queueName, visibleAt.UnixNano(), id))
}

func (q *BadgerQueue) parseIndexKey(key []byte) (time.Time, string, error) {
	prefix := fmt.Sprintf("queue:%s:index:", q.queueName)
	if len(key) <= len(prefix) {
		return time.Time{}, "", fmt.Errorf("invalid index key length")
	}

	suffix := string(key[len(prefix):])
	if len(suffix) < 21 { // 20 digits + colon
		return time.Time{}, "", fmt.Errorf("invalid index key suffix")
	}

	var ts int64
	if _, err := fmt.Sscanf(suffix[:20], "%d", &ts); err != nil {
		return time.Time{}, "", err
	}
	return time.Unix(0, ts), suffix[21:], nil
}
