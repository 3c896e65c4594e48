package summarizer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
)

const (
	baseMaxOutputTokens  int64 = 512
	limitMaxOutputTokens int64 = 2048

	systemPrompt = `Summarize the blog post as a short teaser for a LinkedIn share.

Rules:
- 2-3 sentences, at most 60 words.
- Keep the core idea and the concrete takeaways (tools, numbers, names).
- Plain text only: no lists, no markdown, no hashtags, no links.
- Do not end with an ellipsis.
- Write in the same language as the input.`
)

// OpenAISummarizer calls OpenAI's Responses API to produce summaries.
type OpenAISummarizer struct {
	client    openai.Client
	charLimit int
	timeout   time.Duration
}

// NewOpenAISummarizer builds a new summarizer instance.
func NewOpenAISummarizer(
	apiKey string,
	charLimit int,
	timeout time.Duration,
	opts ...option.RequestOption,
) (*OpenAISummarizer, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("API key is empty")
	}
	if charLimit <= 0 {
		charLimit = DefaultCharLimit
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)

	return &OpenAISummarizer{
		client:    openai.NewClient(opts...),
		charLimit: charLimit,
		timeout:   timeout,
	}, nil
}

// Summarize produces a single summary. Failures wrap ErrUnavailable.
func (s *OpenAISummarizer) Summarize(
	ctx context.Context,
	input Input,
) (string, error) {
	text := strings.TrimSpace(input.Text)
	if text == "" {
		return "", fmt.Errorf("input is empty: %w", ErrUnavailable)
	}

	if runes := []rune(text); len(runes) > s.charLimit {
		text = string(runes[:s.charLimit])
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	userPromptBuilder := strings.Builder{}
	if sourceURL := strings.TrimSpace(input.SourceURL); sourceURL != "" {
		userPromptBuilder.WriteString("Source:\n")
		userPromptBuilder.WriteString(sourceURL)
		userPromptBuilder.WriteString("\n")
	}
	userPromptBuilder.WriteString("Content:\n")
	userPromptBuilder.WriteString(text)

	maxOutputTokens := baseMaxOutputTokens
	for {
		resp, err := s.client.Responses.New(ctx, responses.ResponseNewParams{
			Model:           openai.ChatModelGPT5Mini2025_08_07,
			MaxOutputTokens: openai.Int(maxOutputTokens),
			Reasoning: responses.ReasoningParam{
				Effort: openai.ReasoningEffortLow,
			},
			Instructions: openai.String(systemPrompt),
			Input: responses.ResponseNewParamsInputUnion{
				OfString: openai.String(userPromptBuilder.String()),
			},
		})
		if err != nil {
			return "", fmt.Errorf("do request: %w", errors.Join(ErrUnavailable, err))
		}

		if resp.Status == "incomplete" {
			if resp.IncompleteDetails.Reason == "max_output_tokens" && maxOutputTokens < limitMaxOutputTokens {
				maxOutputTokens = min(maxOutputTokens*2, limitMaxOutputTokens)
				continue
			}
			return "", fmt.Errorf(
				"response is incomplete (reason = %s, maxOutputTokens = %d): %w",
				resp.IncompleteDetails.Reason,
				maxOutputTokens,
				ErrUnavailable,
			)
		}

		summary := strings.TrimSpace(resp.OutputText())
		if summary == "" {
			return "", fmt.Errorf("output text is missing (status = %s): %w", resp.Status, ErrUnavailable)
		}
		return summary, nil
	}
}
