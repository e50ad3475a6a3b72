package models

import "time"

// StageTiming is an advisory timing measurement for one stage execution,
// logged on success for observability. Not part of the persisted data model.
type StageTiming struct {
	JobID      uint64        `json:"job_id"`
	Stage      StageType     `json:"stage"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
	DurationMs int64         `json:"duration_ms"`
}

// NewStageTiming captures the duration from stage entry to persistence.
func NewStageTiming(jobID uint64, stage StageType, startedAt time.Time) StageTiming {
	d := time.Since(startedAt)
	return StageTiming{
		JobID:      jobID,
		Stage:      stage,
		StartedAt:  startedAt,
		Duration:   d,
		DurationMs: d.Milliseconds(),
	}
}
