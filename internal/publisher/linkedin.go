package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultEndpoint = "https://api.linkedin.com/v2/ugcPosts"

	restliProtocolVersion = "2.0.0"
	defaultTimeout        = 30 * time.Second
	maxErrorBodyBytes     = 4096
)

// PublishError is returned for a non-2xx response of the social API.
type PublishError struct {
	StatusCode int
	Body       string
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("LinkedIn error %d: %s", e.StatusCode, e.Body)
}

type Request struct {
	ActorID       string
	Token         string
	Text          string
	Link          string
	CoverImageURL string
}

type Result struct {
	// PostID is the id of the created share, empty when the API omits it.
	PostID string
}

type LinkedIn struct {
	endpoint string
	client   *http.Client
	log      *slog.Logger
}

func NewLinkedIn(endpoint string, timeout time.Duration, log *slog.Logger) *LinkedIn {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &LinkedIn{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		log:      log,
	}
}

type ugcPost struct {
	Author          string          `json:"author"`
	LifecycleState  string          `json:"lifecycleState"`
	SpecificContent specificContent `json:"specificContent"`
	Visibility      visibility      `json:"visibility"`
}

type specificContent struct {
	ShareContent shareContent `json:"com.linkedin.ugc.ShareContent"`
}

type shareContent struct {
	ShareCommentary    shareCommentary `json:"shareCommentary"`
	ShareMediaCategory string          `json:"shareMediaCategory"`
	Media              []media         `json:"media"`
}

type shareCommentary struct {
	Text string `json:"text"`
}

type media struct {
	Status      string `json:"status"`
	OriginalURL string `json:"originalUrl"`
}

type visibility struct {
	MemberNetworkVisibility string `json:"com.linkedin.ugc.MemberNetworkVisibility"`
}

func buildPayload(r *Request) ugcPost {
	items := []media{{Status: "READY", OriginalURL: r.Link}}
	if r.CoverImageURL != "" {
		items = append(items, media{Status: "READY", OriginalURL: r.CoverImageURL})
	}

	return ugcPost{
		Author:         r.ActorID,
		LifecycleState: "PUBLISHED",
		SpecificContent: specificContent{
			ShareContent: shareContent{
				ShareCommentary:    shareCommentary{Text: r.Text},
				ShareMediaCategory: "ARTICLE",
				Media:              items,
			},
		},
		Visibility: visibility{MemberNetworkVisibility: "PUBLIC"},
	}
}

// Publish creates one article share. A non-2xx response yields *PublishError.
func (l *LinkedIn) Publish(ctx context.Context, r *Request) (Result, error) {
	if r.ActorID == "" || r.Token == "" {
		return Result{}, errors.New("actor ID and token are required")
	}

	body, err := json.Marshal(buildPayload(r))
	if err != nil {
		return Result{}, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+r.Token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Restli-Protocol-Version", restliProtocolVersion)

	resp, err := l.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("do request: %w", err)
	}
	defer func() {
		if err = resp.Body.Close(); err != nil {
			l.log.WarnContext(ctx, "Failed to close response body",
				"error", err,
				"endpoint", l.endpoint)
		}
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))

		return Result{}, &PublishError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(respBody)),
		}
	}

	_, _ = io.Copy(io.Discard, resp.Body)

	return Result{PostID: resp.Header.Get("X-RestLi-Id")}, nil
}
