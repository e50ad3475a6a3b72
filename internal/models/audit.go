package models

import "time"

// Audit stage tags written by the submission boundary and the stage executors.
// Status transitions are tagged with the status name itself.
const (
	AuditStageSubmit = "submit_job"
	AuditStageFailed = "failed"
)

// AuditEvent is one immutable entry in a job's audit trail. Events are
// appended on every status transition and every stage executor invocation,
// including failures, and are never mutated after insertion.
type AuditEvent struct {
	ID        uint64    `json:"id" badgerhold:"key"`
	JobID     uint64    `json:"job_id" badgerhold:"index"`
	Stage     string    `json:"stage"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewAuditEvent creates an audit event for a job.
// The ID is assigned by the store on insert.
func NewAuditEvent(jobID uint64, stage, detail string) *AuditEvent {
	return &AuditEvent{
		JobID:     jobID,
		Stage:     stage,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	}
}
