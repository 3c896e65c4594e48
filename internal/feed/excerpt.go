package feed

import (
	"context"
	"errors"
	"log/slog"
	"mediumpilot/internal/domain"
	"mediumpilot/internal/summarizer"
	"strings"
)

const FallbackExcerptWords = 50

// ExcerptPolicy picks between the summarizer output and a word-truncated
// fallback. The summarizer is called at most once per Excerpt call.
type ExcerptPolicy struct {
	summarizer summarizer.Summarizer
	log        *slog.Logger
}

// NewExcerptPolicy accepts a nil summarizer, in which case the fallback is
// always used.
func NewExcerptPolicy(s summarizer.Summarizer, log *slog.Logger) *ExcerptPolicy {
	return &ExcerptPolicy{summarizer: s, log: log}
}

func (p *ExcerptPolicy) Excerpt(
	ctx context.Context,
	plainText string,
	rawContent string,
	sourceURL string,
) domain.ExcerptResult {
	fallback := domain.ExcerptResult{
		Source: domain.ExcerptSourceFallback,
		Text:   FirstWords(rawContent, FallbackExcerptWords),
	}

	if plainText == "" || p.summarizer == nil {
		return fallback
	}

	summary, err := p.summarizer.Summarize(ctx, summarizer.Input{
		Text:      plainText,
		SourceURL: sourceURL,
	})
	if err != nil {
		level := slog.LevelWarn
		if !errors.Is(err, summarizer.ErrUnavailable) {
			level = slog.LevelError
		}

		p.log.Log(ctx, level, "Failed to summarize post",
			"error", err,
			"url", sourceURL,
			"fallback", true,
			"textLen", len(plainText))

		return fallback
	}

	summary = strings.TrimSpace(summary)
	if summary == "" {
		return fallback
	}

	return domain.ExcerptResult{
		Source: domain.ExcerptSourceSummary,
		Text:   summary,
	}
}

// FirstWords strips tags from text and returns its first n
// whitespace-delimited words joined by single spaces.
func FirstWords(text string, n int) string {
	if text == "" || n <= 0 {
		return ""
	}

	words := strings.Fields(StripTags(text))
	if len(words) > n {
		words = words[:n]
	}

	return strings.Join(words, " ")
}
