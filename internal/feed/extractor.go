package feed

import (
	"context"
	"log/slog"
	"mediumpilot/internal/domain"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	MaxContentChars = 200000
	MaxHashtags     = 6
)

var (
	tagRe        = regexp.MustCompile(`<[^>]+>`)
	whitespaceRe = regexp.MustCompile(`\s+`)
	nonWordRe    = regexp.MustCompile(`\W`)
)

type contentField struct {
	name  string
	value func(entry *domain.FeedEntry) string
}

// rawContentFields is ordered from richest to poorest.
//
//nolint:gochecknoglobals // Fixed lookup order.
var rawContentFields = []contentField{
	{"content:encoded", func(e *domain.FeedEntry) string { return e.EncodedContent }},
	{"contentSnippet", func(e *domain.FeedEntry) string { return e.ContentSnippet }},
	{"content", func(e *domain.FeedEntry) string { return e.Content }},
}

type Extraction struct {
	RawContent    string
	RawField      string
	PlainText     string
	Hashtags      []string
	CoverImageURL string
}

type Extractor struct {
	coverFromContent bool
	log              *slog.Logger
}

// NewExtractor builds an extractor. With coverFromContent set, entries
// without an enclosure take the first image of their HTML as the cover.
func NewExtractor(coverFromContent bool, log *slog.Logger) *Extractor {
	return &Extractor{coverFromContent: coverFromContent, log: log}
}

func (e *Extractor) Extract(ctx context.Context, entry *domain.FeedEntry) Extraction {
	raw, field := ResolveRawContent(entry)

	plain := strings.TrimSpace(StripTags(raw))
	if runes := []rune(plain); len(runes) > MaxContentChars {
		plain = string(runes[:MaxContentChars])
	}

	cover := strings.TrimSpace(entry.EnclosureImageURL)
	if cover == "" && e.coverFromContent {
		cover = e.firstImage(ctx, raw)
	}

	return Extraction{
		RawContent:    raw,
		RawField:      field,
		PlainText:     plain,
		Hashtags:      Hashtags(entry.Categories),
		CoverImageURL: cover,
	}
}

// ResolveRawContent returns the first non-empty content field and its name.
func ResolveRawContent(entry *domain.FeedEntry) (string, string) {
	for _, field := range rawContentFields {
		if v := field.value(entry); v != "" {
			return v, field.name
		}
	}

	return "", ""
}

// StripTags removes everything matched as <...>. Entities are left as is.
func StripTags(s string) string {
	return tagRe.ReplaceAllString(s, "")
}

func Hashtags(categories []string) []string {
	if len(categories) > MaxHashtags {
		categories = categories[:MaxHashtags]
	}

	hashtags := make([]string, 0, len(categories))
	for _, c := range categories {
		c = whitespaceRe.ReplaceAllString(c, "")
		c = nonWordRe.ReplaceAllString(c, "")
		hashtags = append(hashtags, "#"+c)
	}

	return hashtags
}

func (e *Extractor) firstImage(ctx context.Context, raw string) string {
	if raw == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		e.log.WarnContext(ctx, "Failed to parse content HTML",
			"error", err,
			"contentLen", len(raw))

		return ""
	}

	src, _ := doc.Find("img[src]").First().Attr("src")

	return strings.TrimSpace(src)
}
