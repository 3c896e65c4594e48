package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mediumpilot/internal/domain"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

const (
	defaultFetchTimeout = 30 * time.Second
	userAgent           = "mediumpilot/1.0 (+https://github.com/mediumpilot)"
)

type Fetcher struct {
	libParser *gofeed.Parser
	log       *slog.Logger
}

func NewFetcher(timeout time.Duration, log *slog.Logger) *Fetcher {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}

	libParser := gofeed.NewParser()
	libParser.Client = &http.Client{Timeout: timeout}
	libParser.UserAgent = userAgent

	return &Fetcher{
		libParser: libParser,
		log:       log,
	}
}

// FetchEntries downloads and parses the feed, keeping the feed's item order
// (newest first for Medium feeds).
func (f *Fetcher) FetchEntries(
	ctx context.Context,
	feedURL string,
) ([]domain.FeedEntry, error) {
	feedURL = strings.TrimSpace(feedURL)
	if feedURL == "" {
		return nil, errors.New("feed URL is empty")
	}

	if _, err := url.Parse(feedURL); err != nil {
		return nil, fmt.Errorf("parse URL: %w", err)
	}

	parsed, err := f.libParser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed (URL = %s): %w", feedURL, err)
	}

	entries := make([]domain.FeedEntry, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if item == nil {
			continue
		}

		entries = append(entries, entryFromItem(item))
	}

	f.log.DebugContext(ctx, "Feed is fetched",
		"feedURL", feedURL,
		"feedTitle", strings.TrimSpace(parsed.Title),
		"entryCount", len(entries))

	return entries, nil
}

func entryFromItem(item *gofeed.Item) domain.FeedEntry {
	entry := domain.FeedEntry{
		Title:          strings.TrimSpace(item.Title),
		Link:           strings.TrimSpace(item.Link),
		EncodedContent: item.Content,
		Content:        item.Description,
		ContentSnippet: strings.TrimSpace(StripTags(item.Description)),
		Categories:     append([]string(nil), item.Categories...),
	}

	for _, enclosure := range item.Enclosures {
		if enclosure == nil {
			continue
		}

		if u := strings.TrimSpace(enclosure.URL); u != "" {
			entry.EnclosureImageURL = u
			break
		}
	}

	return entry
}
