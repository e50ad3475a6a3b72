package badger

import (
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
)

// Manager aggregates the storage implementations behind a single Badger
// connection
type Manager struct {
	db      *BadgerDB
	jobs    interfaces.JobStorage
	audit   interfaces.AuditStorage
	content interfaces.ContentStorage
	blobs   interfaces.BlobStore
	logger  arbor.ILogger
}

// NewManager opens the database and wires the storage implementations
func NewManager(config *common.BadgerConfig, logger arbor.ILogger) (*Manager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize badger storage: %w", err)
	}

	return &Manager{
		db:      db,
		jobs:    NewJobStorage(db, logger),
		audit:   NewAuditStorage(db, logger),
		content: NewContentStorage(db, logger),
		blobs:   NewBlobStorage(db, logger),
		logger:  logger,
	}, nil
}

func (m *Manager) JobStorage() interfaces.JobStorage {
	return m.jobs
}

func (m *Manager) AuditStorage() interfaces.AuditStorage {
	return m.audit
}

func (m *Manager) ContentStorage() interfaces.ContentStorage {
	return m.content
}

func (m *Manager) BlobStorage() interfaces.BlobStore {
	return m.blobs
}

// DB exposes the underlying connection for components that share the
// instance (the task queue keeps its own key prefix).
func (m *Manager) DB() *BadgerDB {
	return m.db
}

func (m *Manager) Close() error {
	m.logger.Debug().Msg("Closing badger storage")
	return m.db.Close()
}
