package composer

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf16"
)

const fallbackWeekdayIntro = "Check out"

type Composer struct {
	phrases Phrases
	loc     *time.Location
	now     func() time.Time
}

// New returns a Composer that evaluates the calendar day in loc.
func New(phrases Phrases, loc *time.Location, now func() time.Time) *Composer {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}

	p := phrases
	p.Categories = append([]Category(nil), phrases.Categories...)
	p.CommentPrompts = append([]string(nil), phrases.CommentPrompts...)

	return &Composer{phrases: p, loc: loc, now: now}
}

// Compose renders the share text. The output depends only on the arguments
// and the current weekday.
func (c *Composer) Compose(title, link, excerpt string, hashtags []string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s %s \"%s\"? 🚀\n\n%s...\n\n%s\n\n%s",
		c.WeekdayIntro(c.now()),
		c.CategoryIntro(title),
		title,
		excerpt,
		link,
		c.CommentPrompt(title))

	if len(hashtags) > 0 {
		b.WriteString("\n\n")
		b.WriteString(strings.Join(hashtags, " "))
	}

	return b.String()
}

func (c *Composer) WeekdayIntro(t time.Time) string {
	idx := (int(t.In(c.loc).Weekday()) + 6) % 7

	if intro := c.phrases.WeekdayIntros[idx]; intro != "" {
		return intro
	}

	return fallbackWeekdayIntro
}

// DetectCategory returns the name of the first category with a keyword
// contained in the lower-cased title.
func (c *Composer) DetectCategory(title string) string {
	t := strings.ToLower(title)

	for _, cat := range c.phrases.Categories {
		for _, kw := range cat.Keywords {
			if strings.Contains(t, strings.ToLower(kw)) {
				return cat.Name
			}
		}
	}

	return GeneralCategory
}

func (c *Composer) CategoryIntro(title string) string {
	name := c.DetectCategory(title)

	for _, cat := range c.phrases.Categories {
		if cat.Name == name && cat.Intro != "" {
			return cat.Intro
		}
	}

	return c.phrases.GeneralIntro
}

func (c *Composer) CommentPrompt(title string) string {
	n := len(c.phrases.CommentPrompts)
	if n == 0 {
		return ""
	}

	h := int64(HashCode(title))
	if h < 0 {
		h = -h
	}

	return c.phrases.CommentPrompts[h%int64(n)]
}

// HashCode is the 32-bit polynomial string hash (h = h*31 + unit) over the
// UTF-16 code units of s, wrapping at every step.
func HashCode(s string) int32 {
	var h int32
	for _, unit := range utf16.Encode([]rune(s)) {
		h = h*31 + int32(unit)
	}

	return h
}
