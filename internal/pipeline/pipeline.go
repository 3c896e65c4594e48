package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mediumpilot/internal/composer"
	"mediumpilot/internal/domain"
	"mediumpilot/internal/feed"
	"mediumpilot/internal/publisher"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	releaseLeaseTimeout = 5 * time.Second
	reportTimeout       = 30 * time.Second
)

type Directory interface {
	ListUserIDs(ctx context.Context) ([]string, error)
	GetUserConfig(ctx context.Context, userID string) (*domain.UserConfig, error)
	SetLastPublished(ctx context.Context, userID string, link string) error
}

// Leaser guards a user against overlapping cycles.
type Leaser interface {
	AcquireLease(ctx context.Context, userID string, owner string, ttl time.Duration) (bool, error)
	ReleaseLease(ctx context.Context, userID string, owner string) error
}

type FeedFetcher interface {
	FetchEntries(ctx context.Context, feedURL string) ([]domain.FeedEntry, error)
}

type Publisher interface {
	Publish(ctx context.Context, r *publisher.Request) (publisher.Result, error)
}

type Reporter interface {
	ReportCycle(ctx context.Context, report *Report) error
}

type Deps struct {
	Directory Directory
	Fetcher   FeedFetcher
	Extractor *feed.Extractor
	Excerpts  *feed.ExcerptPolicy
	Composer  *composer.Composer
	Publisher Publisher
}

type Options struct {
	// Concurrency bounds how many users are processed at once. Values below
	// one mean sequential processing.
	Concurrency int
	// LeaseTTL enables per-user leases when positive and the directory
	// implements Leaser.
	LeaseTTL time.Duration
	Reporter Reporter
}

type Orchestrator struct {
	deps        Deps
	leaser      Leaser
	leaseTTL    time.Duration
	reporter    Reporter
	concurrency int
	newID       func() string
	now         func() time.Time
	log         *slog.Logger
}

func New(deps Deps, opts Options, log *slog.Logger) *Orchestrator {
	o := &Orchestrator{
		deps:        deps,
		reporter:    opts.Reporter,
		concurrency: max(opts.Concurrency, 1),
		newID:       uuid.NewString,
		now:         time.Now,
		log:         log,
	}

	if leaser, ok := deps.Directory.(Leaser); ok && opts.LeaseTTL > 0 {
		o.leaser = leaser
		o.leaseTTL = opts.LeaseTTL
	}

	return o
}

// RunCycle processes every registered user once. Per-user failures are
// recorded in the report; only a failure to list users is returned.
func (o *Orchestrator) RunCycle(ctx context.Context) (*Report, error) {
	report := &Report{
		CycleID:   o.newID(),
		StartedAt: o.now(),
	}

	userIDs, err := o.deps.Directory.ListUserIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list user IDs: %w", err)
	}

	o.log.InfoContext(ctx, "Cycle is started",
		"cycleID", report.CycleID,
		"userCount", len(userIDs),
		"concurrency", o.concurrency)

	report.Results = make([]UserResult, len(userIDs))

	var g errgroup.Group
	g.SetLimit(o.concurrency)

	for i, userID := range userIDs {
		g.Go(func() error {
			report.Results[i] = o.processUser(ctx, report.CycleID, userID)
			return nil
		})
	}
	_ = g.Wait()

	report.FinishedAt = o.now()

	o.log.InfoContext(ctx, "Cycle is finished",
		"cycleID", report.CycleID,
		"userCount", len(userIDs),
		"published", report.Count(StatusPublished),
		"skipped", report.Count(StatusSkipped),
		"failed", report.Count(StatusFailed),
		"durationSeconds", report.FinishedAt.Sub(report.StartedAt).Seconds())

	if o.reporter != nil && report.Count(StatusPublished)+report.Count(StatusFailed) > 0 {
		// A cycle cut short by its deadline is still reported.
		reportCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reportTimeout)
		defer cancel()

		if err = o.reporter.ReportCycle(reportCtx, report); err != nil {
			o.log.WarnContext(ctx, "Failed to report cycle",
				"error", err,
				"cycleID", report.CycleID)
		}
	}

	return report, nil
}

func (o *Orchestrator) processUser(
	ctx context.Context,
	cycleID string,
	userID string,
) (result UserResult) {
	defer func() {
		if r := recover(); r != nil {
			result = UserResult{
				UserID: userID,
				Status: StatusFailed,
				Reason: ReasonInternal,
				Err:    fmt.Errorf("panic: %v", r),
			}

			o.log.ErrorContext(ctx, "Recovered from panic while processing user",
				"panic", r,
				"cycleID", cycleID,
				"userID", userID,
				"stack", string(debug.Stack()))
		}
	}()

	if err := ctx.Err(); err != nil {
		return failed(userID, ReasonInternal, err)
	}

	if o.leaser != nil {
		acquired, err := o.leaser.AcquireLease(ctx, userID, cycleID, o.leaseTTL)
		if errors.Is(err, domain.ErrUserNotFound) {
			o.log.InfoContext(ctx, "User is gone before its lease is taken",
				"cycleID", cycleID,
				"userID", userID)

			return skipped(userID, ReasonUserNotFound)
		}
		if err != nil {
			o.log.ErrorContext(ctx, "Failed to acquire user lease",
				"error", err,
				"cycleID", cycleID,
				"userID", userID)

			return failed(userID, ReasonInternal, fmt.Errorf("acquire lease: %w", err))
		}
		if !acquired {
			o.log.InfoContext(ctx, "User is locked by another cycle",
				"cycleID", cycleID,
				"userID", userID)

			return skipped(userID, ReasonLocked)
		}

		defer func() {
			releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseLeaseTimeout)
			defer cancel()

			if err = o.leaser.ReleaseLease(releaseCtx, userID, cycleID); err != nil {
				o.log.WarnContext(ctx, "Failed to release user lease",
					"error", err,
					"cycleID", cycleID,
					"userID", userID)
			}
		}()
	}

	return o.publishLatest(ctx, cycleID, userID)
}

func (o *Orchestrator) publishLatest(
	ctx context.Context,
	cycleID string,
	userID string,
) UserResult {
	cfg, err := o.deps.Directory.GetUserConfig(ctx, userID)
	if err != nil {
		o.log.ErrorContext(ctx, "Failed to load user config",
			"error", err,
			"cycleID", cycleID,
			"userID", userID)

		return failed(userID, ReasonInternal, fmt.Errorf("get user config: %w", err))
	}
	if cfg == nil {
		return skipped(userID, ReasonUserNotFound)
	}
	if cfg.FeedURL == "" {
		o.log.DebugContext(ctx, "Skipping user without feed URL",
			"cycleID", cycleID,
			"userID", userID)

		return skipped(userID, ReasonFeedURLMissing)
	}

	entries, err := o.deps.Fetcher.FetchEntries(ctx, cfg.FeedURL)
	if err != nil {
		o.log.WarnContext(ctx, "Failed to fetch feed",
			"error", err,
			"cycleID", cycleID,
			"userID", userID,
			"feedURL", cfg.FeedURL)

		return skipped(userID, ReasonFeedUnavailable)
	}
	if len(entries) == 0 {
		o.log.InfoContext(ctx, "Feed has no entries",
			"cycleID", cycleID,
			"userID", userID,
			"feedURL", cfg.FeedURL)

		return skipped(userID, ReasonFeedEmpty)
	}

	entry := entries[0]
	if entry.Link == cfg.LastPublishedURL {
		o.log.DebugContext(ctx, "Newest entry is already published",
			"cycleID", cycleID,
			"userID", userID,
			"link", entry.Link)

		return skipped(userID, ReasonAlreadyPublished)
	}

	if cfg.SocialToken == "" || cfg.SocialActorID == "" {
		o.log.WarnContext(ctx, "Skipping user without social credentials",
			"cycleID", cycleID,
			"userID", userID)

		return skipped(userID, ReasonCredentialsMissing)
	}

	extraction := o.deps.Extractor.Extract(ctx, &entry)
	excerpt := o.deps.Excerpts.Excerpt(ctx, extraction.PlainText, extraction.RawContent, entry.Link)
	text := o.deps.Composer.Compose(entry.Title, entry.Link, excerpt.Text, extraction.Hashtags)

	result := UserResult{
		UserID:        userID,
		Title:         entry.Title,
		Link:          entry.Link,
		ExcerptSource: excerpt.Source,
	}

	published, err := o.deps.Publisher.Publish(ctx, &publisher.Request{
		ActorID:       cfg.SocialActorID,
		Token:         cfg.SocialToken,
		Text:          text,
		Link:          entry.Link,
		CoverImageURL: extraction.CoverImageURL,
	})
	if err != nil {
		fields := []any{
			"error", err,
			"cycleID", cycleID,
			"userID", userID,
			"link", entry.Link,
		}

		var publishErr *publisher.PublishError
		if errors.As(err, &publishErr) {
			fields = append(fields, "status", publishErr.StatusCode, "body", publishErr.Body)
		}

		o.log.ErrorContext(ctx, "Failed to publish post", fields...)

		result.Status = StatusFailed
		result.Reason = ReasonPublishFailed
		result.Err = fmt.Errorf("publish: %w", err)

		return result
	}

	result.PostID = published.PostID

	if err = o.deps.Directory.SetLastPublished(ctx, userID, entry.Link); err != nil {
		o.log.ErrorContext(ctx, "Post is published but marker is not saved",
			"error", err,
			"cycleID", cycleID,
			"userID", userID,
			"link", entry.Link,
			"postID", published.PostID)

		result.Status = StatusFailed
		result.Reason = ReasonMarkerNotSaved
		result.Err = fmt.Errorf("set last published: %w", err)

		return result
	}

	o.log.InfoContext(ctx, "Post is published",
		"cycleID", cycleID,
		"userID", userID,
		"link", entry.Link,
		"postID", published.PostID,
		"excerptSource", string(excerpt.Source),
		"rawContentField", extraction.RawField,
		"hashtagCount", len(extraction.Hashtags))

	result.Status = StatusPublished

	return result
}

func skipped(userID string, reason string) UserResult {
	return UserResult{UserID: userID, Status: StatusSkipped, Reason: reason}
}

func failed(userID string, reason string, err error) UserResult {
	return UserResult{UserID: userID, Status: StatusFailed, Reason: reason, Err: err}
}
