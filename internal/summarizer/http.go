package summarizer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const maxErrorBodyBytes = 2048

type httpRequest struct {
	Text      string `json:"text"`
	CharLimit int    `json:"char_limit"`
}

// HTTPSummarizer posts text to an external summarization endpoint.
type HTTPSummarizer struct {
	endpoint  string
	charLimit int
	timeout   time.Duration
	client    *http.Client
}

func NewHTTPSummarizer(endpoint string, charLimit int, timeout time.Duration) *HTTPSummarizer {
	if charLimit <= 0 {
		charLimit = DefaultCharLimit
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &HTTPSummarizer{
		endpoint:  strings.TrimSpace(endpoint),
		charLimit: charLimit,
		timeout:   timeout,
		client:    &http.Client{},
	}
}

// Summarize sends one request bounded by the configured timeout. Every
// failure, including a response without a usable summary, wraps ErrUnavailable.
func (s *HTTPSummarizer) Summarize(ctx context.Context, input Input) (string, error) {
	if input.Text == "" {
		return "", fmt.Errorf("input is empty: %w", ErrUnavailable)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	body, err := json.Marshal(httpRequest{Text: input.Text, CharLimit: s.charLimit})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", errors.Join(ErrUnavailable, err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", errors.Join(ErrUnavailable, err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("timed out after %s: %w", s.timeout, ErrUnavailable)
		}
		return "", fmt.Errorf("do request: %w", errors.Join(ErrUnavailable, err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return "", fmt.Errorf(
			"unexpected status (status = %d, body = %s): %w",
			resp.StatusCode,
			strings.TrimSpace(string(errBody)),
			ErrUnavailable,
		)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", errors.Join(ErrUnavailable, err))
	}

	// The whole body must be one JSON document.
	var payload map[string]any
	if err = json.Unmarshal(respBody, &payload); err != nil {
		return "", fmt.Errorf("decode response: %w", errors.Join(ErrUnavailable, err))
	}

	summary, ok := payload["summary"].(string)
	if !ok {
		return "", fmt.Errorf("summary field is missing: %w", ErrUnavailable)
	}

	summary = strings.TrimSpace(summary)
	if summary == "" {
		return "", fmt.Errorf("summary field is empty: %w", ErrUnavailable)
	}

	return summary, nil
}
