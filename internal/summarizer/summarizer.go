package summarizer

import (
	"context"
	"errors"
	"time"
)

const (
	DefaultTimeout   = 10 * time.Second
	DefaultCharLimit = 190000
)

// ErrUnavailable is wrapped by every failure a Summarizer returns. Callers
// fall back to their own excerpt on it and never treat it as fatal.
var ErrUnavailable = errors.New("summarizer is unavailable")

// Input describes the payload for a summary request.
type Input struct {
	// Text contains the plain text to summarise. It must not be empty.
	Text string
	// SourceURL is optional metadata that helps the model reference the origin.
	SourceURL string
}

// Summarizer produces a single summary for a given input text.
type Summarizer interface {
	Summarize(ctx context.Context, input Input) (string, error)
}
