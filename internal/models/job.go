// -----------------------------------------------------------------------
// Job - Durable record of one URL ingestion
// -----------------------------------------------------------------------

package models

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a referenced job or child record does not exist.
// It is never retried by the pipeline - a missing record will not appear by
// trying again.
var ErrNotFound = errors.New("record not found")

// JobStatus represents the lifecycle state of an ingestion job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCompleted JobStatus = "completed"
)

// IsValid checks if the JobStatus is a known, valid status
func (s JobStatus) IsValid() bool {
	switch s {
	case JobStatusPending, JobStatusRunning, JobStatusFailed, JobStatusCompleted:
		return true
	}
	return false
}

// IsTerminal returns true if no transition leaves this status
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// String returns the string representation of the JobStatus
func (s JobStatus) String() string {
	return string(s)
}

// Job is the durable record of one URL ingestion.
// Lifecycle: created pending by submission, advanced by exactly one stage
// executor at a time (the chain is sequential per job), never deleted by
// pipeline logic.
//
// Invariant: CompletedAt is set if and only if Status is completed or failed.
type Job struct {
	ID           uint64     `json:"id" badgerhold:"key"`
	URL          string     `json:"url"`
	Status       JobStatus  `json:"status" badgerhold:"index"`
	CreatedAt    time.Time  `json:"created_at" badgerhold:"index"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

// NewJob creates a pending job for the given URL.
// The ID is assigned by the store on insert.
func NewJob(url string) *Job {
	return &Job{
		URL:       url,
		Status:    JobStatusPending,
		CreatedAt: time.Now().UTC(),
	}
}

// MarkCompleted transitions the job to completed, stamps the completion time
// and clears any previous error. Calling it twice re-stamps the completion
// time - acceptable since completed is terminal and reached once per chain.
func (j *Job) MarkCompleted() {
	j.Status = JobStatusCompleted
	now := time.Now().UTC()
	j.CompletedAt = &now
	j.ErrorMessage = ""
}

// MarkFailed transitions the job to failed, stamps the completion time and
// preserves the final error message verbatim for operator diagnosis.
func (j *Job) MarkFailed(errorMessage string) {
	j.Status = JobStatusFailed
	j.ErrorMessage = errorMessage
	now := time.Now().UTC()
	j.CompletedAt = &now
}

// IsTerminal returns true if the job reached a terminal status
func (j *Job) IsTerminal() bool {
	return j.Status.IsTerminal()
}

// ProcessingTime returns the wall-clock time from creation to completion,
// or zero if the job has not completed.
func (j *Job) ProcessingTime() time.Duration {
	if j.CompletedAt == nil {
		return 0
	}
	return j.CompletedAt.Sub(j.CreatedAt)
}
