// -----------------------------------------------------------------------
// Capability collaborators - external service abstractions the pipeline
// depends on but does not implement. One operation each, typed result,
// typed failure. Concrete implementations are selected at construction
// time via configuration.
// -----------------------------------------------------------------------

package interfaces

import (
	"context"
	"errors"
)

// Fetch failure signals. Both are subject to the per-stage retry policy.
var (
	ErrFetchTimeout = errors.New("fetch timed out")
	ErrFetchBlocked = errors.New("fetch blocked by policy")
)

// ErrStorageUnavailable is returned when the blob store cannot accept writes
var ErrStorageUnavailable = errors.New("blob storage unavailable")

// FetchResult is the content fetcher's output for one URL
type FetchResult struct {
	RawContent       []byte
	CleanedText      string
	DetectedLanguage string
}

// ContentFetcher retrieves a document and extracts its readable text.
// Implementations: headless browser rendering (chromedp) and a static HTTP
// fetcher for pages that need no JavaScript.
type ContentFetcher interface {
	Fetch(ctx context.Context, url string) (*FetchResult, error)
}

// BlobStore persists raw stage artifacts and returns an opaque locator
// string (e.g. "blob://jobs/42/raw/<uuid>.html") for later retrieval.
type BlobStore interface {
	Store(ctx context.Context, content []byte, jobID uint64) (string, error)
	Get(ctx context.Context, locator string) ([]byte, error)
	Delete(ctx context.Context, jobID uint64) error
}

// TranslationResponse is the translator's output
type TranslationResponse struct {
	TranslatedText string
	Engine         string
}

// Translator translates text from a detected source language into the
// target language (default "en").
type Translator interface {
	Translate(ctx context.Context, text, sourceLanguage, targetLanguage string) (*TranslationResponse, error)
}

// SummaryResponse is the summarizer's output
type SummaryResponse struct {
	SummaryText   string
	ModelID       string
	PromptVersion string
	Temperature   float64
	TokenUsage    int
}

// Summarizer produces a summary of the given text
type Summarizer interface {
	Summarize(ctx context.Context, text string) (*SummaryResponse, error)
}
