// Package summarizer provides the summarize stage's providers. The
// extractive provider is deterministic and offline; the claude and gemini
// providers call their respective APIs and are selected via configuration.
package summarizer

import (
	"context"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/interfaces"
)

const (
	extractiveModelID     = "extractive-v1"
	extractiveMaxChars    = 650
	promptVersion         = "v1.0.0"
	defaultTemperature    = 0.2
)

// ExtractiveSummarizer implements interfaces.Summarizer by taking the leading
// portion of the text. Deterministic: the same input always yields the same
// summary, token count and parameters.
type ExtractiveSummarizer struct {
	logger arbor.ILogger
}

func NewExtractiveSummarizer(logger arbor.ILogger) interfaces.Summarizer {
	return &ExtractiveSummarizer{logger: logger}
}

// Summarize produces "Executive summary:\n" followed by the first 650
// characters of the input. Token usage is the input word count, floored at 1.
func (s *ExtractiveSummarizer) Summarize(ctx context.Context, text string) (*interfaces.SummaryResponse, error) {
	excerpt := text
	if runes := []rune(text); len(runes) > extractiveMaxChars {
		excerpt = string(runes[:extractiveMaxChars])
	}

	tokens := len(strings.Fields(text))
	if tokens < 1 {
		tokens = 1
	}

	s.logger.Debug().
		Int("input_length", len(text)).
		Int("token_usage", tokens).
		Msg("Generated extractive summary")

	return &interfaces.SummaryResponse{
		SummaryText:   "Executive summary:\n" + excerpt,
		ModelID:       extractiveModelID,
		PromptVersion: promptVersion,
		Temperature:   defaultTemperature,
		TokenUsage:    tokens,
	}, nil
}
