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
	"mediumpilot/internal/summarizer"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryDirectory struct {
	mu      sync.Mutex
	order   []string
	users   map[string]domain.UserConfig
	listErr error
	writes  int
}

func newMemoryDirectory(users ...domain.UserConfig) *memoryDirectory {
	d := &memoryDirectory{users: make(map[string]domain.UserConfig)}
	for _, u := range users {
		d.order = append(d.order, u.UserID)
		d.users[u.UserID] = u
	}

	return d
}

func (d *memoryDirectory) ListUserIDs(_ context.Context) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.listErr != nil {
		return nil, d.listErr
	}

	return append([]string(nil), d.order...), nil
}

func (d *memoryDirectory) GetUserConfig(_ context.Context, userID string) (*domain.UserConfig, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	cfg, ok := d.users[userID]
	if !ok {
		return nil, nil
	}

	return &cfg, nil
}

func (d *memoryDirectory) SetLastPublished(_ context.Context, userID string, link string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	cfg, ok := d.users[userID]
	if !ok {
		return errors.New("user not found")
	}

	cfg.LastPublishedURL = link
	d.users[userID] = cfg
	d.writes++

	return nil
}

func (d *memoryDirectory) marker(userID string) string {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.users[userID].LastPublishedURL
}

type lockingDirectory struct {
	*memoryDirectory
	locked map[string]bool
}

func (d *lockingDirectory) AcquireLease(_ context.Context, userID string, _ string, _ time.Duration) (bool, error) {
	d.mu.Lock()
	_, ok := d.users[userID]
	d.mu.Unlock()

	if !ok {
		return false, fmt.Errorf("acquire lease: %w", domain.ErrUserNotFound)
	}

	return !d.locked[userID], nil
}

func (d *lockingDirectory) ReleaseLease(_ context.Context, _ string, _ string) error {
	return nil
}

type stubFetcher struct {
	mu      sync.Mutex
	entries map[string][]domain.FeedEntry
	errs    map[string]error
	panics  map[string]bool
}

func (f *stubFetcher) FetchEntries(_ context.Context, feedURL string) ([]domain.FeedEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.panics[feedURL] {
		panic("feed parser exploded")
	}
	if err := f.errs[feedURL]; err != nil {
		return nil, err
	}

	return f.entries[feedURL], nil
}

func (f *stubFetcher) set(feedURL string, entries ...domain.FeedEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.entries[feedURL] = entries
}

type recordingPublisher struct {
	mu       sync.Mutex
	requests []publisher.Request
	failFor  map[string]error
}

func (p *recordingPublisher) Publish(_ context.Context, r *publisher.Request) (publisher.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.requests = append(p.requests, *r)

	if err := p.failFor[r.ActorID]; err != nil {
		return publisher.Result{}, err
	}

	return publisher.Result{PostID: fmt.Sprintf("urn:li:share:%d", len(p.requests))}, nil
}

func (p *recordingPublisher) calls() []publisher.Request {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]publisher.Request(nil), p.requests...)
}

type failingSummarizer struct{}

func (failingSummarizer) Summarize(_ context.Context, _ summarizer.Input) (string, error) {
	return "", fmt.Errorf("connection refused: %w", summarizer.ErrUnavailable)
}

type recordingReporter struct {
	reports []*Report
	ctxErrs []error
}

func (r *recordingReporter) ReportCycle(ctx context.Context, report *Report) error {
	r.reports = append(r.reports, report)
	r.ctxErrs = append(r.ctxErrs, ctx.Err())
	return nil
}

func user(id string) domain.UserConfig {
	return domain.UserConfig{
		UserID:        id,
		FeedURL:       "https://medium.com/feed/@" + id,
		SocialToken:   "token-" + id,
		SocialActorID: "urn:li:person:" + id,
	}
}

func aiEntry() domain.FeedEntry {
	return domain.FeedEntry{
		Title:          "New AI tool",
		Link:           "https://x/1",
		EncodedContent: "<p>This new tool summarises your notes in seconds.</p>",
		Categories:     []string{"AI", "Tools"},
	}
}

type harness struct {
	dir       *memoryDirectory
	fetcher   *stubFetcher
	publisher *recordingPublisher
}

func newHarness(users ...domain.UserConfig) *harness {
	return &harness{
		dir: newMemoryDirectory(users...),
		fetcher: &stubFetcher{
			entries: make(map[string][]domain.FeedEntry),
			errs:    make(map[string]error),
			panics:  make(map[string]bool),
		},
		publisher: &recordingPublisher{failFor: make(map[string]error)},
	}
}

func (h *harness) deps(dir Directory) Deps {
	log := slog.Default()

	return Deps{
		Directory: dir,
		Fetcher:   h.fetcher,
		Extractor: feed.NewExtractor(false, log),
		Excerpts:  feed.NewExcerptPolicy(failingSummarizer{}, log),
		Composer:  composer.New(composer.DefaultPhrases(), time.UTC, nil),
		Publisher: h.publisher,
	}
}

func (h *harness) orchestrator(opts Options) *Orchestrator {
	return New(h.deps(h.dir), opts, slog.Default())
}

func TestRunCycleEndToEndWithFallbackExcerpt(t *testing.T) {
	h := newHarness(user("u1"))
	h.fetcher.set("https://medium.com/feed/@u1", aiEntry())

	report, err := h.orchestrator(Options{}).RunCycle(context.Background())
	require.NoError(t, err)

	calls := h.publisher.calls()
	require.Len(t, calls, 1)

	text := calls[0].Text
	assert.Contains(t, text, `"New AI tool"`)
	assert.Contains(t, text, "https://x/1")
	assert.Contains(t, text, "This new tool summarises your notes in seconds....")
	assert.Contains(t, text, "\n\n#AI #Tools")
	assert.Equal(t, "urn:li:person:u1", calls[0].ActorID)
	assert.Equal(t, "token-u1", calls[0].Token)

	assert.Equal(t, "https://x/1", h.dir.marker("u1"))

	require.Len(t, report.Results, 1)
	assert.Equal(t, StatusPublished, report.Results[0].Status)
	assert.Equal(t, domain.ExcerptSourceFallback, report.Results[0].ExcerptSource)
	assert.Equal(t, "urn:li:share:1", report.Results[0].PostID)
}

func TestRunCycleIsIdempotentAcrossRepeatedCycles(t *testing.T) {
	h := newHarness(user("u1"))
	h.fetcher.set("https://medium.com/feed/@u1", aiEntry())
	o := h.orchestrator(Options{})

	for range 5 {
		_, err := o.RunCycle(context.Background())
		require.NoError(t, err)
	}

	assert.Len(t, h.publisher.calls(), 1)
	assert.Equal(t, 1, h.dir.writes)
}

func TestRunCycleSkipsAlreadyPublishedEntry(t *testing.T) {
	u := user("u1")
	u.LastPublishedURL = "https://x/1"

	h := newHarness(u)
	h.fetcher.set(u.FeedURL, aiEntry())

	report, err := h.orchestrator(Options{}).RunCycle(context.Background())
	require.NoError(t, err)

	assert.Empty(t, h.publisher.calls())
	assert.Equal(t, "https://x/1", h.dir.marker("u1"))
	assert.Equal(t, 0, h.dir.writes)
	assert.Equal(t, ReasonAlreadyPublished, report.Results[0].Reason)
}

func TestRunCycleDetectsNewEntry(t *testing.T) {
	h := newHarness(user("u1"))
	h.fetcher.set("https://medium.com/feed/@u1", aiEntry())
	o := h.orchestrator(Options{})

	_, err := o.RunCycle(context.Background())
	require.NoError(t, err)

	newer := domain.FeedEntry{
		Title:          "Career lessons",
		Link:           "https://x/2",
		EncodedContent: "<p>Lessons learned.</p>",
	}
	h.fetcher.set("https://medium.com/feed/@u1", newer, aiEntry())

	_, err = o.RunCycle(context.Background())
	require.NoError(t, err)

	calls := h.publisher.calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "https://x/2", calls[1].Link)
	assert.Contains(t, calls[1].Text, `"Career lessons"`)
	assert.Equal(t, "https://x/2", h.dir.marker("u1"))
}

func TestRunCyclePublishFailureKeepsMarkerAndIsolatesUsers(t *testing.T) {
	h := newHarness(user("u1"), user("u2"))
	h.fetcher.set("https://medium.com/feed/@u1", aiEntry())
	h.fetcher.set("https://medium.com/feed/@u2", aiEntry())
	h.publisher.failFor["urn:li:person:u1"] = &publisher.PublishError{StatusCode: 401, Body: "expired"}

	o := h.orchestrator(Options{})

	report, err := o.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Empty(t, h.dir.marker("u1"))
	assert.Equal(t, "https://x/1", h.dir.marker("u2"))

	require.Len(t, report.Results, 2)
	assert.Equal(t, StatusFailed, report.Results[0].Status)
	assert.Equal(t, ReasonPublishFailed, report.Results[0].Reason)

	var publishErr *publisher.PublishError
	require.True(t, errors.As(report.Results[0].Err, &publishErr))
	assert.Equal(t, 401, publishErr.StatusCode)
	assert.Equal(t, StatusPublished, report.Results[1].Status)

	delete(h.publisher.failFor, "urn:li:person:u1")

	_, err = o.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Len(t, h.publisher.calls(), 3, "failed entry must be retried on the next cycle only")
	assert.Equal(t, "https://x/1", h.dir.marker("u1"))
}

func TestRunCycleSkipsIncompleteAndUnavailableFeeds(t *testing.T) {
	noFeed := user("nofeed")
	noFeed.FeedURL = ""

	noCreds := user("nocreds")
	noCreds.SocialToken = ""

	h := newHarness(noFeed, user("broken"), user("empty"), noCreds, user("ok"))
	h.fetcher.errs["https://medium.com/feed/@broken"] = errors.New("dns failure")
	h.fetcher.set("https://medium.com/feed/@nocreds", aiEntry())
	h.fetcher.set("https://medium.com/feed/@ok", aiEntry())

	report, err := h.orchestrator(Options{}).RunCycle(context.Background())
	require.NoError(t, err)

	reasons := make(map[string]string)
	for _, r := range report.Results {
		reasons[r.UserID] = r.Reason
	}

	assert.Equal(t, ReasonFeedURLMissing, reasons["nofeed"])
	assert.Equal(t, ReasonFeedUnavailable, reasons["broken"])
	assert.Equal(t, ReasonFeedEmpty, reasons["empty"])
	assert.Equal(t, ReasonCredentialsMissing, reasons["nocreds"])
	assert.Equal(t, StatusPublished, report.Results[4].Status)
	assert.Len(t, h.publisher.calls(), 1)
}

func TestRunCycleRecoversFromPanics(t *testing.T) {
	h := newHarness(user("bad"), user("good"))
	h.fetcher.panics["https://medium.com/feed/@bad"] = true
	h.fetcher.set("https://medium.com/feed/@good", aiEntry())

	report, err := h.orchestrator(Options{}).RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, report.Results[0].Status)
	assert.Equal(t, ReasonInternal, report.Results[0].Reason)
	assert.Equal(t, StatusPublished, report.Results[1].Status)
}

func TestRunCycleFailsWhenUsersCannotBeListed(t *testing.T) {
	h := newHarness()
	h.dir.listErr = errors.New("store down")

	_, err := h.orchestrator(Options{}).RunCycle(context.Background())
	require.Error(t, err)
}

func TestRunCycleSkipsLockedUsers(t *testing.T) {
	h := newHarness(user("u1"), user("u2"))
	h.fetcher.set("https://medium.com/feed/@u1", aiEntry())
	h.fetcher.set("https://medium.com/feed/@u2", aiEntry())

	dir := &lockingDirectory{memoryDirectory: h.dir, locked: map[string]bool{"u1": true}}
	o := New(h.deps(dir), Options{LeaseTTL: time.Minute}, slog.Default())

	report, err := o.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, ReasonLocked, report.Results[0].Reason)
	assert.Equal(t, StatusPublished, report.Results[1].Status)
	require.Len(t, h.publisher.calls(), 1)
	assert.Equal(t, "token-u2", h.publisher.calls()[0].Token)
}

func TestRunCycleSkipsUsersRemovedBeforeLease(t *testing.T) {
	h := newHarness(user("u1"))
	h.fetcher.set("https://medium.com/feed/@u1", aiEntry())
	h.dir.order = append(h.dir.order, "ghost")

	dir := &lockingDirectory{memoryDirectory: h.dir, locked: map[string]bool{}}
	o := New(h.deps(dir), Options{LeaseTTL: time.Minute}, slog.Default())

	report, err := o.RunCycle(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Results, 2)
	assert.Equal(t, StatusPublished, report.Results[0].Status)
	assert.Equal(t, StatusSkipped, report.Results[1].Status)
	assert.Equal(t, ReasonUserNotFound, report.Results[1].Reason)
}

func TestRunCycleReportsAfterDeadline(t *testing.T) {
	h := newHarness(user("u1"))
	h.fetcher.set("https://medium.com/feed/@u1", aiEntry())

	reporter := &recordingReporter{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := h.orchestrator(Options{Reporter: reporter}).RunCycle(ctx)
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, report.Results[0].Status)
	require.Len(t, reporter.reports, 1)
	assert.NoError(t, reporter.ctxErrs[0])
}

func TestRunCycleConcurrentUsersKeepOrder(t *testing.T) {
	var users []domain.UserConfig
	for i := range 20 {
		users = append(users, user(fmt.Sprintf("u%02d", i)))
	}

	h := newHarness(users...)
	for _, u := range users {
		h.fetcher.set(u.FeedURL, aiEntry())
	}

	report, err := h.orchestrator(Options{Concurrency: 4}).RunCycle(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Results, len(users))
	for i, r := range report.Results {
		assert.Equal(t, users[i].UserID, r.UserID)
		assert.Equal(t, StatusPublished, r.Status)
	}
	assert.Len(t, h.publisher.calls(), len(users))
}

func TestRunCycleReportsOnlyEventfulCycles(t *testing.T) {
	h := newHarness(user("u1"))
	h.fetcher.set("https://medium.com/feed/@u1", aiEntry())

	reporter := &recordingReporter{}
	o := h.orchestrator(Options{Reporter: reporter})

	for range 2 {
		_, err := o.RunCycle(context.Background())
		require.NoError(t, err)
	}

	require.Len(t, reporter.reports, 1)
	assert.Equal(t, 1, reporter.reports[0].Count(StatusPublished))
	assert.NotEmpty(t, reporter.reports[0].CycleID)
}
