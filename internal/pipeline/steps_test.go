package pipeline

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/SP963/pageminer/internal/config"
	"github.com/SP963/pageminer/internal/crawler"
	"github.com/SP963/pageminer/internal/extract"
	"github.com/SP963/pageminer/internal/model"
)

// siteFetcher serves pages from a map; unknown URLs fail.
type siteFetcher struct {
	pages   map[string]string
	onFetch func(url string)
}

func (f *siteFetcher) Fetch(ctx context.Context, url string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if f.onFetch != nil {
		f.onFetch(url)
	}
	html, ok := f.pages[url]
	if !ok {
		return "", fmt.Errorf("404: %s", url)
	}
	return html, nil
}

func testSite() *siteFetcher {
	return &siteFetcher{pages: map[string]string{
		"http://example.com/": `<html><head><title>Home</title></head><body>
			<p>Welcome home</p>
			<a href="/about">About</a>
			<a href="/admin/panel">Admin</a>
			<a href="/missing">Missing</a>
			<a href="http://other.com/">Other</a>
		</body></html>`,
		"http://example.com/about":       `<html><body><p>About us</p><script>x()</script></body></html>`,
		"http://example.com/admin/panel": `<html><body><p>secret</p></body></html>`,
		"http://other.com/":              `<html><body><p>elsewhere</p></body></html>`,
	}}
}

// memoryStore records saved runs.
type memoryStore struct {
	mu   sync.Mutex
	runs []*model.CrawlRun
	err  error
}

func (s *memoryStore) SaveRun(ctx context.Context, run *model.CrawlRun) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	cp := *run
	cp.PerformedSteps = slices.Clone(run.PerformedSteps)
	s.runs = append(s.runs, &cp)
	return nil
}

func TestNewCrawlStep(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()

		s := NewCrawlStep(testSite(), extract.New())
		if s.maxPages != config.DefaultMaxPages || s.delay != config.DefaultDelay || !s.sameDomainOnly {
			t.Errorf("unexpected defaults: %+v", s)
		}
		if s.retry.MaxAttempts != 1 {
			t.Errorf("expected single attempt, got %d", s.retry.MaxAttempts)
		}
		if s.Name() != StepCrawl {
			t.Errorf("unexpected name %q", s.Name())
		}
	})

	t.Run("options", func(t *testing.T) {
		t.Parallel()

		rec := &crawler.Recorder{}
		s := NewCrawlStep(testSite(), extract.New(),
			WithCrawlMaxPages(3),
			WithCrawlDelay(time.Millisecond),
			WithCrawlSameDomainOnly(false),
			WithCrawlIgnorePatterns([]string{"/admin/*"}),
			WithCrawlFollowPatterns([]string{"/docs/*"}),
			WithCrawlRetryPolicy(crawler.RetryPolicy{MaxAttempts: 3}),
			WithCrawlObserver(rec),
			WithCrawlLogger(quietLogger()),
		)
		if s.maxPages != 3 || s.delay != time.Millisecond || s.sameDomainOnly {
			t.Errorf("options not applied: %+v", s)
		}
		if len(s.ignorePatterns) != 1 || len(s.followPatterns) != 1 || len(s.observers) != 1 {
			t.Errorf("pattern or observer options not applied: %+v", s)
		}
		if s.retry.MaxAttempts != 3 {
			t.Errorf("expected 3 attempts, got %d", s.retry.MaxAttempts)
		}
	})
}

func TestCrawlStepDo(t *testing.T) {
	t.Parallel()

	t.Run("crawls and records results", func(t *testing.T) {
		t.Parallel()

		rec := &crawler.Recorder{}
		s := NewCrawlStep(testSite(), extract.New(),
			WithCrawlDelay(0),
			WithCrawlIgnorePatterns([]string{"/admin/*"}),
			WithCrawlObserver(rec),
			WithCrawlLogger(quietLogger()),
		)

		run := model.NewCrawlRun("http://example.com/")
		if err := s.Do(t.Context(), run); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if run.State != model.RunStateCompleted {
			t.Errorf("expected completed, got %q", run.State)
		}
		urls := run.Corpus().URLs()
		if !slices.Equal(urls, []string{"http://example.com/", "http://example.com/about"}) {
			t.Errorf("unexpected corpus %v", urls)
		}
		if run.Stats.PagesScraped != 3 || run.Stats.PagesFailed != 1 {
			t.Errorf("unexpected stats %+v", run.Stats)
		}
		if run.Stats.TotalLinksDiscovered != 2 {
			t.Errorf("expected 2 links discovered, got %d", run.Stats.TotalLinksDiscovered)
		}
		if run.Pages[0].Title != "Home" {
			t.Errorf("expected title Home, got %q", run.Pages[0].Title)
		}
		kinds := rec.Kinds()
		if kinds[0] != crawler.EventStarted || kinds[len(kinds)-1] != crawler.EventCompleted {
			t.Errorf("unexpected events %v", kinds)
		}
	})

	t.Run("cross domain", func(t *testing.T) {
		t.Parallel()

		s := NewCrawlStep(testSite(), extract.New(),
			WithCrawlDelay(0),
			WithCrawlSameDomainOnly(false),
			WithCrawlMaxPages(10),
			WithCrawlLogger(quietLogger()),
		)
		run := model.NewCrawlRun("http://example.com/")
		if err := s.Do(t.Context(), run); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, ok := run.Corpus().HTML("http://other.com/"); !ok {
			t.Error("expected other.com to be crawled")
		}
	})

	t.Run("invalid seed fails the step", func(t *testing.T) {
		t.Parallel()

		s := NewCrawlStep(testSite(), extract.New(), WithCrawlLogger(quietLogger()))
		run := model.NewCrawlRun("not a url")
		err := s.Do(t.Context(), run)
		if !errors.Is(err, crawler.ErrInvalidSeed) {
			t.Fatalf("expected ErrInvalidSeed, got %v", err)
		}
		if run.State != model.RunStateFailed {
			t.Errorf("expected failed, got %q", run.State)
		}
	})

	t.Run("cancellation keeps partial results", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(t.Context())
		site := testSite()
		site.onFetch = func(url string) {
			if url == "http://example.com/" {
				cancel()
			}
		}

		s := NewCrawlStep(site, extract.New(), WithCrawlDelay(0), WithCrawlLogger(quietLogger()))
		run := model.NewCrawlRun("http://example.com/")
		if err := s.Do(ctx, run); err != nil {
			t.Fatalf("abort should not be a step error, got %v", err)
		}
		if run.State != model.RunStateAborted {
			t.Errorf("expected aborted, got %q", run.State)
		}
		if !errors.Is(run.Error, crawler.ErrAborted) {
			t.Errorf("expected ErrAborted in run, got %v", run.Error)
		}
		if len(run.Pages) != 1 {
			t.Errorf("expected the seed page, got %d pages", len(run.Pages))
		}
	})
}

func TestTextStep(t *testing.T) {
	t.Parallel()

	run := model.NewCrawlRun("http://example.com/")
	run.Pages = []model.Page{
		model.NewPage("http://example.com/", "<body><p>one</p><script>bad()</script></body>"),
		model.NewPage("http://example.com/b", "<body><p>two</p></body>"),
	}

	s := NewTextStep(extract.New())
	if !s.Final() || s.Name() != StepText {
		t.Error("unexpected text step identity")
	}
	if err := s.Do(t.Context(), run); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "=== PAGE 1: http://example.com/ ===\none\n" + strings.Repeat("=", 80) + "\n" +
		"=== PAGE 2: http://example.com/b ===\ntwo\n" + strings.Repeat("=", 80) + "\n"
	if run.CombinedText != want {
		t.Errorf("unexpected combined text:\n%q\nwant\n%q", run.CombinedText, want)
	}
}

func TestPersistStep(t *testing.T) {
	t.Parallel()

	t.Run("saves run with its own step recorded", func(t *testing.T) {
		t.Parallel()

		store := &memoryStore{}
		s := NewPersistStep(store, nil)
		run := model.NewCrawlRun("http://example.com/")
		run.PerformedSteps = []string{StepCrawl}

		if err := s.Do(t.Context(), run); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(store.runs) != 1 {
			t.Fatalf("expected 1 saved run, got %d", len(store.runs))
		}
		if !slices.Equal(store.runs[0].PerformedSteps, []string{StepCrawl, StepPersist}) {
			t.Errorf("unexpected stored steps %v", store.runs[0].PerformedSteps)
		}
		if !slices.Equal(run.PerformedSteps, []string{StepCrawl}) {
			t.Errorf("expected in-memory steps to be left to the pipeline, got %v", run.PerformedSteps)
		}
	})

	t.Run("store error", func(t *testing.T) {
		t.Parallel()

		store := &memoryStore{err: errors.New("locked")}
		run := model.NewCrawlRun("http://example.com/")
		err := NewPersistStep(store, quietLogger()).Do(t.Context(), run)
		if err == nil || !strings.Contains(err.Error(), "locked") {
			t.Fatalf("expected store error, got %v", err)
		}
		if len(run.PerformedSteps) != 0 {
			t.Errorf("expected step not to be recorded, got %v", run.PerformedSteps)
		}
	})
}

func TestDefaultPipeline(t *testing.T) {
	t.Parallel()

	t.Run("without store", func(t *testing.T) {
		t.Parallel()

		p := DefaultPipeline(testSite(), extract.New(), []Option{WithLogger(quietLogger())})
		if !slices.Equal(p.StepNames(), []string{StepCrawl, StepText}) {
			t.Errorf("unexpected steps %v", p.StepNames())
		}
	})

	t.Run("end to end with site settings", func(t *testing.T) {
		t.Parallel()

		store := &memoryStore{}
		p := DefaultPipeline(testSite(), extract.New(),
			[]Option{WithLogger(quietLogger())},
			WithPipelineSettings(config.CrawlSettings{
				MaxPages:       5,
				Delay:          0,
				SameDomainOnly: true,
				IgnorePatterns: []string{"/admin/*"},
			}),
			WithPipelineRetry(crawler.RetryPolicy{MaxAttempts: 1}),
			WithPipelineObserver(&crawler.Recorder{}),
			WithPipelineStore(store),
		)
		if !slices.Equal(p.StepNames(), []string{StepCrawl, StepText, StepPersist}) {
			t.Fatalf("unexpected steps %v", p.StepNames())
		}

		run := model.NewCrawlRun("http://example.com/")
		if err := p.Execute(t.Context(), run); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if !strings.Contains(run.CombinedText, "Welcome home") || !strings.Contains(run.CombinedText, "About us") {
			t.Errorf("expected page text, got %q", run.CombinedText)
		}
		if strings.Contains(run.CombinedText, "secret") {
			t.Error("ignored page should not be crawled")
		}
		if len(store.runs) != 1 || store.runs[0].State != model.RunStateCompleted {
			t.Fatalf("expected completed run to be saved, got %+v", store.runs)
		}
		if !slices.Equal(run.PerformedSteps, []string{StepCrawl, StepText, StepPersist}) {
			t.Errorf("unexpected performed steps %v", run.PerformedSteps)
		}
		if !slices.Equal(store.runs[0].PerformedSteps, run.PerformedSteps) {
			t.Errorf("stored steps %v differ from reported steps %v", store.runs[0].PerformedSteps, run.PerformedSteps)
		}
	})

	t.Run("aborted run is still saved", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(t.Context())
		site := testSite()
		site.onFetch = func(string) { cancel() }

		store := &memoryStore{}
		p := DefaultPipeline(site, extract.New(),
			[]Option{WithLogger(quietLogger())},
			WithPipelineSettings(config.CrawlSettings{MaxPages: 5, SameDomainOnly: true}),
			WithPipelineStore(store),
		)

		run := model.NewCrawlRun("http://example.com/")
		_ = p.Execute(ctx, run)

		if run.State != model.RunStateAborted {
			t.Errorf("expected aborted, got %q", run.State)
		}
		if !strings.Contains(run.CombinedText, "Welcome home") {
			t.Error("expected text of the partial crawl")
		}
		if len(store.runs) != 1 {
			t.Fatalf("expected aborted run to be saved, got %d", len(store.runs))
		}
	})
}
