package badger

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// AuditStorage implements the append-only audit trail on Badger
type AuditStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewAuditStorage creates a new AuditStorage instance
func NewAuditStorage(db *BadgerDB, logger arbor.ILogger) interfaces.AuditStorage {
	return &AuditStorage{
		db:     db,
		logger: logger,
	}
}

// Append inserts an audit event. Events are never updated or rewritten.
func (s *AuditStorage) Append(ctx context.Context, event *models.AuditEvent) error {
	if event.Stage == "" {
		return fmt.Errorf("audit event stage is required")
	}
	if err := s.db.Store().Insert(badgerhold.NextSequence(), event); err != nil {
		return fmt.Errorf("failed to append audit event: %w", err)
	}
	return nil
}

// GetEvents returns the newest events for a job, most recent first.
// A limit <= 0 returns the full trail.
func (s *AuditStorage) GetEvents(ctx context.Context, jobID uint64, limit int) ([]*models.AuditEvent, error) {
	var events []models.AuditEvent
	query := badgerhold.Where("JobID").Eq(jobID).Index("JobID").SortBy("CreatedAt", "ID").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := s.db.Store().Find(&events, query); err != nil {
		return nil, fmt.Errorf("failed to get audit events for job %d: %w", jobID, err)
	}

	result := make([]*models.AuditEvent, len(events))
	for i := range events {
		result[i] = &events[i]
	}
	return result, nil
}

func (s *AuditStorage) CountEvents(ctx context.Context, jobID uint64) (int, error) {
	count, err := s.db.Store().Count(&models.AuditEvent{}, badgerhold.Where("JobID").Eq(jobID).Index("JobID"))
	if err != nil {
		return 0, fmt.Errorf("failed to count audit events for job %d: %w", jobID, err)
	}
	return int(count), nil
}

// DeleteEvents removes a job's audit trail. Administrative cascade only.
func (s *AuditStorage) DeleteEvents(ctx context.Context, jobID uint64) error {
	if err := s.db.Store().DeleteMatching(&models.AuditEvent{}, badgerhold.Where("JobID").Eq(jobID).Index("JobID")); err != nil {
		return fmt.Errorf("failed to delete audit events for job %d: %w", jobID, err)
	}
	return nil
}
