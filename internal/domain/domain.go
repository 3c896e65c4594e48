package domain

import "errors"

// ErrUserNotFound reports that no user is registered under the given ID.
var ErrUserNotFound = errors.New("user not found")

// UserConfig is the registered configuration of one user.
type UserConfig struct {
	UserID           string
	FeedURL          string
	SocialToken      string
	SocialActorID    string
	LastPublishedURL string
}

// FeedEntry is one feed item as delivered by the fetcher. The content fields
// keep the names of the feed elements they were read from.
type FeedEntry struct {
	Title             string
	Link              string
	EncodedContent    string
	ContentSnippet    string
	Content           string
	Categories        []string
	EnclosureImageURL string
}

type ExcerptSource string

const (
	ExcerptSourceSummary  ExcerptSource = "summary"
	ExcerptSourceFallback ExcerptSource = "fallback"
)

type ExcerptResult struct {
	Source ExcerptSource
	Text   string
}

type ComposedPost struct {
	Text      string
	MediaURLs []string
}
