package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/SP963/pageminer/internal/config"
	"github.com/SP963/pageminer/internal/crawler"
	"github.com/SP963/pageminer/internal/model"
)

// Step names as recorded in CrawlRun.PerformedSteps.
const (
	StepCrawl   = "crawl"
	StepText    = "text"
	StepPersist = "persist"
)

// CrawlStep crawls the run's seed with a fresh Controller and stores the
// pages and stats in the run.
type CrawlStep struct {
	fetcher   crawler.Fetcher
	extractor crawler.Extractor

	maxPages       int
	delay          time.Duration
	sameDomainOnly bool
	ignorePatterns []string
	followPatterns []string
	retry          crawler.RetryPolicy
	observers      []crawler.Observer

	logger *slog.Logger
}

// CrawlStepOption configures a CrawlStep.
type CrawlStepOption func(*CrawlStep)

// WithCrawlMaxPages sets the page cap.
func WithCrawlMaxPages(maxPages int) CrawlStepOption {
	return func(s *CrawlStep) {
		s.maxPages = maxPages
	}
}

// WithCrawlDelay sets the wait between requests.
func WithCrawlDelay(delay time.Duration) CrawlStepOption {
	return func(s *CrawlStep) {
		s.delay = delay
	}
}

// WithCrawlSameDomainOnly restricts the crawl to the seed's host.
func WithCrawlSameDomainOnly(sameDomainOnly bool) CrawlStepOption {
	return func(s *CrawlStep) {
		s.sameDomainOnly = sameDomainOnly
	}
}

// WithCrawlIgnorePatterns sets URL path patterns never to crawl.
func WithCrawlIgnorePatterns(patterns []string) CrawlStepOption {
	return func(s *CrawlStep) {
		s.ignorePatterns = patterns
	}
}

// WithCrawlFollowPatterns restricts the crawl to matching URL paths.
func WithCrawlFollowPatterns(patterns []string) CrawlStepOption {
	return func(s *CrawlStep) {
		s.followPatterns = patterns
	}
}

// WithCrawlRetryPolicy sets how often a failed fetch is retried.
func WithCrawlRetryPolicy(p crawler.RetryPolicy) CrawlStepOption {
	return func(s *CrawlStep) {
		s.retry = p
	}
}

// WithCrawlObserver adds a progress observer.
func WithCrawlObserver(o crawler.Observer) CrawlStepOption {
	return func(s *CrawlStep) {
		s.observers = append(s.observers, o)
	}
}

// WithCrawlLogger sets the logger handed to the Controller.
func WithCrawlLogger(logger *slog.Logger) CrawlStepOption {
	return func(s *CrawlStep) {
		s.logger = logger
	}
}

// NewCrawlStep creates a CrawlStep with the default crawl settings.
func NewCrawlStep(fetcher crawler.Fetcher, extractor crawler.Extractor, opts ...CrawlStepOption) *CrawlStep {
	s := &CrawlStep{
		fetcher:        fetcher,
		extractor:      extractor,
		maxPages:       config.DefaultMaxPages,
		delay:          config.DefaultDelay,
		sameDomainOnly: config.DefaultSameDomainOnly,
		retry:          crawler.DefaultRetryPolicy(),
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns StepCrawl.
func (s *CrawlStep) Name() string {
	return StepCrawl
}

// Do crawls run.Seed. A cancelled crawl keeps its partial results, marks
// the run aborted and is not a step error. An invalid seed is.
func (s *CrawlStep) Do(ctx context.Context, run *model.CrawlRun) error {
	filter := crawler.NewFilter(s.sameDomainOnly)
	filter.IgnorePatterns = s.ignorePatterns
	filter.FollowPatterns = s.followPatterns

	opts := []crawler.Option{
		crawler.WithMaxPages(s.maxPages),
		crawler.WithDelay(s.delay),
		crawler.WithFilter(filter),
		crawler.WithRetryPolicy(s.retry),
		crawler.WithLogger(s.logger),
	}
	for _, o := range s.observers {
		opts = append(opts, crawler.WithObserver(o))
	}

	c := crawler.NewController(s.fetcher, s.extractor, opts...)
	_, err := c.Crawl(ctx, run.Seed)

	run.Pages = c.Pages()
	run.Stats = c.Stats()
	run.FinishedAt = time.Now()

	switch {
	case err == nil:
		run.State = model.RunStateCompleted
		return nil
	case errors.Is(err, crawler.ErrAborted):
		run.State = model.RunStateAborted
		run.SetError(err)
		s.logger.Warn("crawl aborted", "seed", run.Seed, "pages", len(run.Pages))
		return nil
	default:
		run.State = model.RunStateFailed
		return fmt.Errorf("crawl %s: %w", run.Seed, err)
	}
}

// TextStep builds run.CombinedText from the run's pages.
type TextStep struct {
	text crawler.TextExtractor
}

// NewTextStep creates a TextStep that cleans pages with text.
func NewTextStep(text crawler.TextExtractor) *TextStep {
	return &TextStep{text: text}
}

// Name returns StepText.
func (s *TextStep) Name() string {
	return StepText
}

// Final reports true: partial results of an aborted crawl still get text.
func (s *TextStep) Final() bool {
	return true
}

// Do sets run.CombinedText.
func (s *TextStep) Do(_ context.Context, run *model.CrawlRun) error {
	agg := crawler.NewAggregator(s.text)
	for _, p := range run.Pages {
		agg.Add(p)
	}
	run.CombinedText = agg.CombinedText()
	return nil
}

// Store saves finished runs. *database.CrawlDB implements it.
type Store interface {
	SaveRun(ctx context.Context, run *model.CrawlRun) error
}

// PersistStep saves the run to a Store.
type PersistStep struct {
	store  Store
	logger *slog.Logger
}

// NewPersistStep creates a PersistStep writing to store.
func NewPersistStep(store Store, logger *slog.Logger) *PersistStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &PersistStep{store: store, logger: logger}
}

// Name returns StepPersist.
func (s *PersistStep) Name() string {
	return StepPersist
}

// Final reports true: aborted runs are saved too.
func (s *PersistStep) Final() bool {
	return true
}

// Do saves a copy of run that already lists this step. run itself is
// left to the pipeline, which records the step once Do succeeds.
func (s *PersistStep) Do(ctx context.Context, run *model.CrawlRun) error {
	saved := *run
	saved.PerformedSteps = append(slices.Clone(run.PerformedSteps), s.Name())
	if err := s.store.SaveRun(ctx, &saved); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	s.logger.Debug("run saved", "id", run.ID, "seed", run.Seed)
	return nil
}

// DefaultPipelineConfig holds the settings of DefaultPipeline.
type DefaultPipelineConfig struct {
	MaxPages       int
	Delay          time.Duration
	SameDomainOnly bool
	IgnorePatterns []string
	FollowPatterns []string
	Retry          crawler.RetryPolicy
	Observers      []crawler.Observer

	// Store, when set, adds a PersistStep.
	Store Store
}

// DefaultPipelineOption configures a DefaultPipelineConfig.
type DefaultPipelineOption func(*DefaultPipelineConfig)

// WithPipelineSettings applies the per-seed settings resolved from the
// configuration.
func WithPipelineSettings(s config.CrawlSettings) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.MaxPages = s.MaxPages
		c.Delay = s.Delay
		c.SameDomainOnly = s.SameDomainOnly
		c.IgnorePatterns = s.IgnorePatterns
		c.FollowPatterns = s.FollowPatterns
	}
}

// WithPipelineRetry sets the retry policy.
func WithPipelineRetry(p crawler.RetryPolicy) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Retry = p
	}
}

// WithPipelineObserver adds a progress observer.
func WithPipelineObserver(o crawler.Observer) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Observers = append(c.Observers, o)
	}
}

// WithPipelineStore saves runs to store.
func WithPipelineStore(store Store) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Store = store
	}
}

// DefaultPipeline returns the standard crawl, text, persist pipeline.
// The persist step is only added when a store is configured.
func DefaultPipeline(fetcher crawler.Fetcher, extractor crawler.Extractor, pipelineOpts []Option, configOpts ...DefaultPipelineOption) *Pipeline {
	p := New(pipelineOpts...)

	cfg := &DefaultPipelineConfig{
		MaxPages:       config.DefaultMaxPages,
		Delay:          config.DefaultDelay,
		SameDomainOnly: config.DefaultSameDomainOnly,
		Retry:          crawler.DefaultRetryPolicy(),
	}
	for _, opt := range configOpts {
		opt(cfg)
	}

	crawlOpts := []CrawlStepOption{
		WithCrawlMaxPages(cfg.MaxPages),
		WithCrawlDelay(cfg.Delay),
		WithCrawlSameDomainOnly(cfg.SameDomainOnly),
		WithCrawlIgnorePatterns(cfg.IgnorePatterns),
		WithCrawlFollowPatterns(cfg.FollowPatterns),
		WithCrawlRetryPolicy(cfg.Retry),
		WithCrawlLogger(p.logger),
	}
	for _, o := range cfg.Observers {
		crawlOpts = append(crawlOpts, WithCrawlObserver(o))
	}

	p.AddSteps(
		NewCrawlStep(fetcher, extractor, crawlOpts...),
		NewTextStep(extractor),
	)
	if cfg.Store != nil {
		p.AddStep(NewPersistStep(cfg.Store, p.logger))
	}

	return p
}
