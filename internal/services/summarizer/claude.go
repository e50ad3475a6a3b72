package summarizer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
)

const summaryPrompt = "Produce a concise executive summary of the following document. " +
	"Lead with the single most important finding, then cover the key points in order of importance."

// ClaudeSummarizer implements interfaces.Summarizer using the Anthropic API
type ClaudeSummarizer struct {
	config    *common.ClaudeConfig
	client    anthropic.Client
	timeout   time.Duration
	maxTokens int
	logger    arbor.ILogger
}

// NewClaudeSummarizer creates a Claude-backed summarizer. The API key comes
// from configuration or the ANTHROPIC_API_KEY environment override.
func NewClaudeSummarizer(config *common.ClaudeConfig, logger arbor.ILogger) (interfaces.Summarizer, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required for the claude summarizer (set ANTHROPIC_API_KEY or summarizer.claude.api_key)")
	}

	if config.Model == "" {
		config.Model = "claude-sonnet-4-20250514"
	}

	maxTokens := config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	client := anthropic.NewClient(
		option.WithAPIKey(config.APIKey),
	)

	timeout := 60 * time.Second
	if config.Timeout != "" {
		parsed, err := time.ParseDuration(config.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid claude timeout duration '%s': %w", config.Timeout, err)
		}
		timeout = parsed
	}

	logger.Debug().
		Str("model", config.Model).
		Int("max_tokens", maxTokens).
		Dur("timeout", timeout).
		Msg("Claude summarizer initialized")

	return &ClaudeSummarizer{
		config:    config,
		client:    client,
		timeout:   timeout,
		maxTokens: maxTokens,
		logger:    logger,
	}, nil
}

func (s *ClaudeSummarizer) Summarize(ctx context.Context, text string) (*interfaces.SummaryResponse, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("cannot summarize empty text")
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(s.config.Model),
		MaxTokens:   int64(s.maxTokens),
		Temperature: anthropic.Float(defaultTemperature),
		System: []anthropic.TextBlockParam{
			{Text: summaryPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(text)),
		},
	}

	resp, err := s.client.Messages.New(timeoutCtx, params)
	if err != nil {
		return nil, fmt.Errorf("Claude API call failed: %w", err)
	}

	var summary strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			summary.WriteString(block.Text)
		}
	}
	if summary.Len() == 0 {
		return nil, fmt.Errorf("no summary generated from Claude API")
	}

	s.logger.Debug().
		Str("model", s.config.Model).
		Int64("output_tokens", resp.Usage.OutputTokens).
		Msg("Claude summary generated")

	return &interfaces.SummaryResponse{
		SummaryText:   summary.String(),
		ModelID:       s.config.Model,
		PromptVersion: promptVersion,
		Temperature:   defaultTemperature,
		TokenUsage:    int(resp.Usage.OutputTokens),
	}, nil
}
