package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mediumpilot/internal/domain"
	"regexp"
	"strings"

	"mvdan.cc/xurls/v2"
)

var (
	ErrMissingUserID  = errors.New("missing user UID")
	ErrMissingFields  = errors.New("all fields are required")
	ErrInvalidFeedURL = errors.New("feed URL must be a single http(s) URL")
)

type Store interface {
	RegisterUser(ctx context.Context, cfg domain.UserConfig) error
}

type Registration struct {
	UserID        string
	FeedURL       string
	SocialToken   string
	SocialActorID string
}

type Registry struct {
	store     Store
	feedURLRe *regexp.Regexp
	log       *slog.Logger
}

func New(store Store, log *slog.Logger) (*Registry, error) {
	feedURLRe, err := xurls.StrictMatchingScheme(`https?://`)
	if err != nil {
		return nil, fmt.Errorf("create regexp: %w", err)
	}

	return &Registry{store: store, feedURLRe: feedURLRe, log: log}, nil
}

// Validate normalizes reg in place and reports the first problem found.
func (r *Registry) Validate(reg *Registration) error {
	reg.UserID = strings.TrimSpace(reg.UserID)
	reg.FeedURL = strings.TrimSpace(reg.FeedURL)
	reg.SocialToken = strings.TrimSpace(reg.SocialToken)
	reg.SocialActorID = strings.TrimSpace(reg.SocialActorID)

	if reg.UserID == "" {
		return ErrMissingUserID
	}

	if reg.FeedURL == "" || reg.SocialToken == "" || reg.SocialActorID == "" {
		return ErrMissingFields
	}

	if r.feedURLRe.FindString(reg.FeedURL) != reg.FeedURL {
		return ErrInvalidFeedURL
	}

	return nil
}

// Register stores the user's configuration. A repeated registration replaces
// the credentials and resets the last published marker.
func (r *Registry) Register(ctx context.Context, reg Registration) (string, error) {
	if err := r.Validate(&reg); err != nil {
		return "", err
	}

	if err := r.store.RegisterUser(ctx, domain.UserConfig{
		UserID:        reg.UserID,
		FeedURL:       reg.FeedURL,
		SocialToken:   reg.SocialToken,
		SocialActorID: reg.SocialActorID,
	}); err != nil {
		return "", fmt.Errorf("register user: %w", err)
	}

	r.log.InfoContext(ctx, "User is registered",
		"userID", reg.UserID,
		"feedURL", reg.FeedURL)

	return reg.UserID, nil
}
