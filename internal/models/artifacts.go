// -----------------------------------------------------------------------
// Stage artifacts - durable outputs of the scrape/translate/summarize stages
// -----------------------------------------------------------------------

package models

import "time"

// ScrapedContent holds the scrape stage's output for a job. Keyed by job ID:
// at most one live row per job, replaced wholesale when the stage re-runs
// (redelivery after a worker crash, or a manual re-scrape).
//
// RawContentRef is an opaque blob-store locator, not the content itself.
type ScrapedContent struct {
	JobID            uint64    `json:"job_id" badgerhold:"key"`
	RawContentRef    string    `json:"raw_content_ref"`
	CleanedText      string    `json:"cleaned_text"`
	DetectedLanguage string    `json:"detected_language"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// NewScrapedContent creates the scrape artifact for a job. An empty detected
// language defaults to "unknown".
func NewScrapedContent(jobID uint64, rawContentRef, cleanedText, detectedLanguage string) *ScrapedContent {
	if detectedLanguage == "" {
		detectedLanguage = "unknown"
	}
	return &ScrapedContent{
		JobID:            jobID,
		RawContentRef:    rawContentRef,
		CleanedText:      cleanedText,
		DetectedLanguage: detectedLanguage,
		UpdatedAt:        time.Now().UTC(),
	}
}

// TranslationResult is one translate stage output for a job. History is
// retained across re-runs; the most recent row by Timestamp is the current
// result for downstream consumption.
type TranslationResult struct {
	ID             uint64    `json:"id" badgerhold:"key"`
	JobID          uint64    `json:"job_id" badgerhold:"index"`
	TranslatedText string    `json:"translated_text"`
	Engine         string    `json:"engine"`
	Timestamp      time.Time `json:"timestamp"`
}

// NewTranslationResult creates a translation artifact for a job.
func NewTranslationResult(jobID uint64, translatedText, engine string) *TranslationResult {
	return &TranslationResult{
		JobID:          jobID,
		TranslatedText: translatedText,
		Engine:         engine,
		Timestamp:      time.Now().UTC(),
	}
}

// SummaryResult is one summarize stage output for a job. History is retained;
// the most recent row by Timestamp is the current summary.
type SummaryResult struct {
	ID            uint64    `json:"id" badgerhold:"key"`
	JobID         uint64    `json:"job_id" badgerhold:"index"`
	SummaryText   string    `json:"summary_text"`
	ModelID       string    `json:"model_id"`
	PromptVersion string    `json:"prompt_version"`
	Temperature   float64   `json:"temperature"`
	TokenUsage    int       `json:"token_usage"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewSummaryResult creates a summary artifact for a job. Negative token usage
// is clamped to zero.
func NewSummaryResult(jobID uint64, summaryText, modelID, promptVersion string, temperature float64, tokenUsage int) *SummaryResult {
	if tokenUsage < 0 {
		tokenUsage = 0
	}
	return &SummaryResult{
		JobID:         jobID,
		SummaryText:   summaryText,
		ModelID:       modelID,
		PromptVersion: promptVersion,
		Temperature:   temperature,
		TokenUsage:    tokenUsage,
		Timestamp:     time.Now().UTC(),
	}
}
