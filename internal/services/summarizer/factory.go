package summarizer

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
)

// NewSummarizer selects the summarizer provider from configuration.
// "extractive" is the default and needs no credentials.
func NewSummarizer(ctx context.Context, config *common.SummarizerConfig, logger arbor.ILogger) (interfaces.Summarizer, error) {
	switch config.Provider {
	case "", "extractive":
		return NewExtractiveSummarizer(logger), nil
	case "claude":
		return NewClaudeSummarizer(&config.Claude, logger)
	case "gemini":
		return NewGeminiSummarizer(ctx, &config.Gemini, logger)
	default:
		return nil, fmt.Errorf("unknown summarizer provider: %s", config.Provider)
	}
}
