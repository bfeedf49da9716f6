package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/SP963/pageminer/internal/model"
)

// Default crawl settings.
const (
	// DefaultMaxPages is the default cap on visited URLs.
	DefaultMaxPages = 10

	// DefaultDelay is the default wait between two fetches.
	DefaultDelay = 2 * time.Second

	// DefaultSameDomainOnly restricts crawls to the seed's host by default.
	DefaultSameDomainOnly = true
)

// Fetcher retrieves the HTML of a page.
// An error or an empty result means the page produced no content.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Extractor pulls outbound links and visible text out of HTML.
// ExtractLinks should return absolute URLs; relative ones are resolved
// against baseURL by the Controller.
type Extractor interface {
	ExtractLinks(html, baseURL string) ([]string, error)
	TextExtractor
}

// TitleExtractor is implemented by extractors that can also read the page
// title. When the Controller's extractor implements it, stored pages carry
// their title.
type TitleExtractor interface {
	Title(html string) string
}

// State is the lifecycle position of a Controller.
type State int32

const (
	// StateIdle means no crawl has started since creation or Reset.
	StateIdle State = iota

	// StateRunning means Crawl is in progress.
	StateRunning

	// StateCompleted means the frontier was exhausted or the cap reached.
	StateCompleted

	// StateAborted means the context ended the crawl early.
	StateAborted
)

// String returns the lowercase name of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// runState is everything one crawl owns. It is created by Crawl and kept
// after the crawl ends so results can be queried until Reset.
type runState struct {
	frontier   *Frontier
	aggregator *Aggregator
}

// Controller runs a bounded breadth-first crawl from a seed URL.
//
// The crawl is strictly sequential: one fetch is in flight at a time, and
// observers are notified inline. A Controller runs one crawl at a time;
// call Reset to reuse it.
type Controller struct {
	fetcher   Fetcher
	extractor Extractor

	// maxPages caps the number of visited URLs.
	maxPages int

	// delay is the wait between two fetches.
	delay time.Duration

	// filter decides which discovered links enter the frontier.
	filter Filter

	// retry decides how often a failed fetch is attempted.
	retry RetryPolicy

	observers []Observer
	logger    *slog.Logger

	state atomic.Int32

	// mu guards run. The crawl loop holds it only while mutating run, never
	// while fetching, sleeping or notifying observers.
	mu  sync.Mutex
	run *runState
}

// Option configures a Controller.
type Option func(*Controller)

// WithMaxPages sets the cap on visited URLs. Negative values mean 0.
func WithMaxPages(n int) Option {
	return func(c *Controller) {
		if n < 0 {
			n = 0
		}
		c.maxPages = n
	}
}

// WithDelay sets the wait between two fetches. Zero disables it.
func WithDelay(d time.Duration) Option {
	return func(c *Controller) {
		if d < 0 {
			d = 0
		}
		c.delay = d
	}
}

// WithSameDomainOnly restricts or frees traversal across hosts.
func WithSameDomainOnly(sameDomainOnly bool) Option {
	return func(c *Controller) {
		c.filter.SameDomainOnly = sameDomainOnly
	}
}

// WithFilter replaces the link filter, including its domain restriction.
func WithFilter(f Filter) Option {
	return func(c *Controller) {
		c.filter = f
	}
}

// WithRetryPolicy sets the retry policy for failed fetches.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Controller) {
		c.retry = p
	}
}

// WithObserver adds an observer. Observers are notified in the order they
// were added.
func WithObserver(o Observer) Option {
	return func(c *Controller) {
		if o != nil {
			c.observers = append(c.observers, o)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewController creates an idle Controller using the given collaborators.
func NewController(fetcher Fetcher, extractor Extractor, opts ...Option) *Controller {
	c := &Controller{
		fetcher:   fetcher,
		extractor: extractor,
		maxPages:  DefaultMaxPages,
		delay:     DefaultDelay,
		filter:    NewFilter(DefaultSameDomainOnly),
		retry:     DefaultRetryPolicy(),
		observers: make([]Observer, 0),
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// State returns the current state. It is safe to call from any goroutine.
func (c *Controller) State() State {
	return State(c.state.Load())
}

// MaxPages returns the configured page cap.
func (c *Controller) MaxPages() int {
	return c.maxPages
}

// Reset discards the results of a finished crawl and returns the Controller
// to StateIdle. It returns ErrRunning while a crawl is in progress.
func (c *Controller) Reset() error {
	if c.State() == StateRunning {
		return ErrRunning
	}

	c.mu.Lock()
	c.run = nil
	c.mu.Unlock()

	c.state.Store(int32(StateIdle))
	return nil
}

// Crawl visits pages breadth-first starting at seed until the frontier is
// empty or the page cap is reached, and returns the fetched pages in
// visitation order.
//
// Pages that fail to fetch are skipped. When ctx is done the crawl stops
// before the next fetch and returns the pages collected so far together
// with an error wrapping both ErrAborted and ctx.Err().
func (c *Controller) Crawl(ctx context.Context, seed string) (model.Corpus, error) {
	if err := validateSeed(seed); err != nil {
		return model.Corpus{}, err
	}
	if !c.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return model.Corpus{}, ErrNotIdle
	}

	run := &runState{
		frontier:   NewFrontier(),
		aggregator: NewAggregator(c.extractor),
	}

	c.mu.Lock()
	c.run = run
	run.frontier.Admit(seed)
	c.mu.Unlock()

	c.logger.Debug("crawl started",
		"seed", seed,
		"max_pages", c.maxPages,
		"delay", c.delay,
		"same_domain_only", c.filter.SameDomainOnly)
	c.emit(EventStarted, seed, fmt.Sprintf("Starting crawl from %s", seed), 0)

	for c.hasNext(run) {
		if err := ctx.Err(); err != nil {
			return c.abort(run, err)
		}

		c.step(ctx, run)

		if c.delay > 0 && c.hasNext(run) {
			if err := sleep(ctx, c.delay); err != nil {
				return c.abort(run, err)
			}
		}
	}

	return c.complete(run), nil
}

// step processes the URL at the head of the frontier.
func (c *Controller) step(ctx context.Context, run *runState) {
	c.mu.Lock()
	pageURL, ok := run.frontier.Dequeue()
	visited := ok && run.frontier.IsVisited(pageURL)
	position := run.frontier.VisitedCount() + 1
	c.mu.Unlock()

	if !ok || visited {
		return
	}

	c.emit(EventFetching, pageURL,
		fmt.Sprintf("Scraping page %d/%d: %s", position, c.maxPages, pageURL), 0)

	html, err := c.fetch(ctx, pageURL)
	if err != nil {
		c.mu.Lock()
		run.frontier.MarkVisited(pageURL)
		c.mu.Unlock()

		c.logger.Debug("fetch failed", "url", pageURL, "error", err)
		c.emit(EventFetchFailed, pageURL,
			fmt.Sprintf("Failed to scrape %s: %v", pageURL, err), 0)
		return
	}

	page := model.NewPage(pageURL, html)
	if te, ok := c.extractor.(TitleExtractor); ok {
		page.Title = te.Title(html)
	}

	links, err := c.extractor.ExtractLinks(html, pageURL)
	if err != nil {
		c.logger.Debug("link extraction failed", "url", pageURL, "error", err)
		links = nil
	}

	c.mu.Lock()
	run.aggregator.Add(page)
	run.frontier.MarkVisited(pageURL)
	admissible, added := c.admitLinks(run.frontier, pageURL, links)
	c.mu.Unlock()

	c.emit(EventFetched, pageURL,
		fmt.Sprintf("Found %d new links on %s", added, pageURL), admissible)
}

// admitLinks filters links found on base and admits the eligible ones.
// It returns the number of distinct admissible links and how many of them
// were newly found.
func (c *Controller) admitLinks(f *Frontier, base string, links []string) (admissible, added int) {
	seen := make(map[string]struct{}, len(links))
	for _, link := range links {
		link = resolveLink(base, link)
		if _, ok := seen[link]; ok {
			continue
		}
		seen[link] = struct{}{}

		if !c.filter.Admit(link, base) {
			continue
		}
		admissible++
		if f.Admit(link) {
			added++
		}
	}
	return admissible, added
}

// fetch retrieves pageURL, retrying according to the retry policy.
func (c *Controller) fetch(ctx context.Context, pageURL string) (string, error) {
	attempts := c.retry.attempts()
	for attempt := 1; ; attempt++ {
		html, err := c.fetcher.Fetch(ctx, pageURL)
		if err == nil && strings.TrimSpace(html) == "" {
			err = errEmptyPage
		}
		if err == nil {
			return html, nil
		}

		if attempt >= attempts || ctx.Err() != nil {
			return "", err
		}

		c.emit(EventRetrying, pageURL,
			fmt.Sprintf("Retrying %s (attempt %d/%d): %v", pageURL, attempt+1, attempts, err), 0)
		if sleepErr := sleep(ctx, c.retry.backoff(attempt)); sleepErr != nil {
			return "", err
		}
	}
}

// hasNext reports whether another iteration will run.
func (c *Controller) hasNext(run *runState) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return run.frontier.Len() > 0 && run.frontier.VisitedCount() < c.maxPages
}

func (c *Controller) complete(run *runState) model.Corpus {
	c.state.Store(int32(StateCompleted))

	c.mu.Lock()
	stats := run.aggregator.Stats(run.frontier, c.maxPages)
	corpus := run.aggregator.Corpus()
	c.mu.Unlock()

	c.emit(EventCompleted, "",
		fmt.Sprintf("Crawl completed: %d pages scraped (%d failed), %d links discovered",
			stats.PagesScraped, stats.PagesFailed, stats.TotalLinksDiscovered), 0)
	return corpus
}

func (c *Controller) abort(run *runState, cause error) (model.Corpus, error) {
	c.state.Store(int32(StateAborted))

	c.mu.Lock()
	visited := run.frontier.VisitedCount()
	corpus := run.aggregator.Corpus()
	c.mu.Unlock()

	c.emit(EventAborted, "",
		fmt.Sprintf("Crawl aborted after %d pages: %v", visited, cause), 0)
	return corpus, fmt.Errorf("%w: %w", ErrAborted, cause)
}

// emit builds an Event from the current run state and notifies observers.
func (c *Controller) emit(kind EventKind, pageURL, message string, linksOnPage int) {
	c.mu.Lock()
	e := Event{
		Kind:        kind,
		Message:     message,
		URL:         pageURL,
		LinksOnPage: linksOnPage,
		MaxPages:    c.maxPages,
		Time:        time.Now(),
	}
	if c.run != nil {
		e.Visited = c.run.frontier.VisitedCount()
		e.Queued = c.run.frontier.Len()
		e.Found = c.run.frontier.FoundCount()
	}
	c.mu.Unlock()

	e.Percent = model.CompletionPercentage(e.Visited, e.MaxPages)
	notify(c.logger, c.observers, e)
}

// Stats returns a snapshot of the current or last crawl.
func (c *Controller) Stats() model.CrawlStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.run == nil {
		return model.CrawlStats{
			MaxPages:       c.maxPages,
			VisitedURLs:    make([]string, 0),
			RemainingQueue: make([]string, 0),
		}
	}
	return c.run.aggregator.Stats(c.run.frontier, c.maxPages)
}

// Corpus returns the pages fetched so far in the current or last crawl.
func (c *Controller) Corpus() model.Corpus {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.run == nil {
		return model.Corpus{}
	}
	return c.run.aggregator.Corpus()
}

// Pages returns a copy of the pages fetched so far, in visitation order.
func (c *Controller) Pages() []model.Page {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.run == nil {
		return make([]model.Page, 0)
	}
	return c.run.aggregator.Pages()
}

// CombinedText returns the cleaned text of the pages fetched so far.
func (c *Controller) CombinedText() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.run == nil {
		return ""
	}
	return c.run.aggregator.CombinedText()
}

// validateSeed checks that seed is an absolute http(s) URL with a host.
func validateSeed(seed string) error {
	u, err := url.Parse(seed)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSeed, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidSeed, seed)
	}
	return nil
}

// resolveLink resolves a relative link against base. Absolute links,
// fragment-only references and unparseable input are returned unchanged
// so the filter can judge them.
func resolveLink(base, link string) string {
	link = strings.TrimSpace(link)
	if link == "" || strings.HasPrefix(link, "#") {
		return link
	}

	ref, err := url.Parse(link)
	if err != nil || ref.IsAbs() {
		return link
	}

	b, err := url.Parse(base)
	if err != nil {
		return link
	}
	return b.ResolveReference(ref).String()
}

// sleep waits for d or until ctx is done, whichever comes first.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
