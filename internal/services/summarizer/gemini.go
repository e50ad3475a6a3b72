package summarizer

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
	"google.golang.org/genai"
)

// GeminiSummarizer implements interfaces.Summarizer using the Gemini API
type GeminiSummarizer struct {
	config *common.GeminiConfig
	client *genai.Client
	logger arbor.ILogger
}

// NewGeminiSummarizer creates a Gemini-backed summarizer. The API key comes
// from configuration or the GEMINI_API_KEY environment override.
func NewGeminiSummarizer(ctx context.Context, config *common.GeminiConfig, logger arbor.ILogger) (interfaces.Summarizer, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key is required for the gemini summarizer (set GEMINI_API_KEY or summarizer.gemini.api_key)")
	}

	if config.Model == "" {
		config.Model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize genai client: %w", err)
	}

	logger.Debug().
		Str("model", config.Model).
		Msg("Gemini summarizer initialized")

	return &GeminiSummarizer{
		config: config,
		client: client,
		logger: logger,
	}, nil
}

func (s *GeminiSummarizer) Summarize(ctx context.Context, text string) (*interfaces.SummaryResponse, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("cannot summarize empty text")
	}

	generateConfig := &genai.GenerateContentConfig{
		Temperature:       genai.Ptr(float32(defaultTemperature)),
		SystemInstruction: genai.NewContentFromText(summaryPrompt, genai.RoleUser),
	}

	contents := []*genai.Content{
		{
			Role:  genai.RoleUser,
			Parts: []*genai.Part{genai.NewPartFromText(text)},
		},
	}

	resp, err := s.client.Models.GenerateContent(ctx, s.config.Model, contents, generateConfig)
	if err != nil {
		return nil, fmt.Errorf("Gemini API call failed: %w", err)
	}

	var summary strings.Builder
	if resp != nil {
		for _, candidate := range resp.Candidates {
			if candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				if part.Text != "" {
					summary.WriteString(part.Text)
				}
			}
			if summary.Len() > 0 {
				break
			}
		}
	}
	if summary.Len() == 0 {
		return nil, fmt.Errorf("no summary generated from Gemini API")
	}

	tokens := 0
	if resp.UsageMetadata != nil {
		tokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}

	s.logger.Debug().
		Str("model", s.config.Model).
		Int("token_usage", tokens).
		Msg("Gemini summary generated")

	return &interfaces.SummaryResponse{
		SummaryText:   summary.String(),
		ModelID:       s.config.Model,
		PromptVersion: promptVersion,
		Temperature:   defaultTemperature,
		TokenUsage:    tokens,
	}, nil
}
