package badger

import (
	"context"
	"fmt"
	"strings"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
)

const blobScheme = "blob://"

// BlobStorage keeps raw page content in the same Badger instance under a
// dedicated key prefix, outside badgerhold's typed buckets. Locators are
// opaque to callers: "blob://jobs/<id>/raw/<uuid>.html".
type BlobStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewBlobStorage creates a new BlobStorage instance
func NewBlobStorage(db *BadgerDB, logger arbor.ILogger) interfaces.BlobStore {
	return &BlobStorage{
		db:     db,
		logger: logger,
	}
}

func blobKey(jobID uint64, name string) []byte {
	return []byte(fmt.Sprintf("blob:jobs:%d:raw:%s", jobID, name))
}

func blobPrefix(jobID uint64) []byte {
	return []byte(fmt.Sprintf("blob:jobs:%d:", jobID))
}

// Store writes content under a fresh key and returns its locator. Each call
// writes a new blob; re-runs of the scrape stage do not overwrite old blobs.
func (s *BlobStorage) Store(ctx context.Context, content []byte, jobID uint64) (string, error) {
	name := uuid.New().String() + ".html"
	key := blobKey(jobID, name)

	err := s.db.Store().Badger().Update(func(txn *badgerdb.Txn) error {
		return txn.Set(key, content)
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", interfaces.ErrStorageUnavailable, err)
	}

	locator := fmt.Sprintf("%sjobs/%d/raw/%s", blobScheme, jobID, name)
	s.logger.Debug().Int64("job_id", int64(jobID)).Str("locator", locator).Int("bytes", len(content)).Msg("Stored raw content blob")
	return locator, nil
}

// Get resolves a locator back to its content.
func (s *BlobStorage) Get(ctx context.Context, locator string) ([]byte, error) {
	key, err := keyFromLocator(locator)
	if err != nil {
		return nil, err
	}

	var content []byte
	err = s.db.Store().Badger().View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		content, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if err == badgerdb.ErrKeyNotFound {
			return nil, fmt.Errorf("blob %s: %w", locator, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read blob %s: %w", locator, err)
	}
	return content, nil
}

// Delete removes every blob stored for a job.
func (s *BlobStorage) Delete(ctx context.Context, jobID uint64) error {
	prefix := blobPrefix(jobID)

	var keys [][]byte
	err := s.db.Store().Badger().View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to scan blobs for job %d: %w", jobID, err)
	}

	for _, key := range keys {
		err := s.db.Store().Badger().Update(func(txn *badgerdb.Txn) error {
			return txn.Delete(key)
		})
		if err != nil {
			return fmt.Errorf("failed to delete blob for job %d: %w", jobID, err)
		}
	}
	return nil
}

// keyFromLocator maps "blob://jobs/<id>/raw/<name>" to its storage key.
func keyFromLocator(locator string) ([]byte, error) {
	if !strings.HasPrefix(locator, blobScheme) {
		return nil, fmt.Errorf("invalid blob locator %q", locator)
	}
	path := strings.TrimPrefix(locator, blobScheme)
	parts := strings.Split(path, "/")
	if len(parts) != 4 || parts[0] != "jobs" || parts[2] != "raw" {
		return nil, fmt.Errorf("invalid blob locator %q", locator)
	}
	return []byte(fmt.Sprintf("blob:%s:%s:%s:%s", parts[0], parts[1], parts[2], parts[3])), nil
}
