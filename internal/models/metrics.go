package models

// DashboardMetrics is the rollup computed fresh on every dashboard request by
// scanning the job store. No caching.
type DashboardMetrics struct {
	TotalJobs                int     `json:"total_jobs"`
	SuccessRate              float64 `json:"success_rate"`
	AvgProcessingTimeSeconds float64 `json:"avg_processing_time_seconds"`
	FailureCount             int     `json:"failure_count"`
}
