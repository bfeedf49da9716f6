package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/SP963/pageminer/internal/config"
	"github.com/SP963/pageminer/internal/model"
)

func TestNewBatchProcessor(t *testing.T) {
	t.Parallel()

	bp := NewBatchProcessor(func(string) *Pipeline { return New() })
	if bp.concurrency != config.DefaultBatchSize {
		t.Errorf("expected default concurrency %d, got %d", config.DefaultBatchSize, bp.concurrency)
	}
	if bp.logger == nil {
		t.Error("expected default logger")
	}

	if got := NewBatchProcessor(nil, WithConcurrency(7)).concurrency; got != 7 {
		t.Errorf("expected concurrency 7, got %d", got)
	}
	if got := NewBatchProcessor(nil, WithConcurrency(0)).concurrency; got != config.DefaultBatchSize {
		t.Errorf("expected zero concurrency to be ignored, got %d", got)
	}
}

func TestBatchProcessorProcessBatch(t *testing.T) {
	t.Parallel()

	t.Run("one run per seed in input order", func(t *testing.T) {
		t.Parallel()

		factory := func(seed string) *Pipeline {
			p := New(WithLogger(quietLogger()))
			p.AddStep(&mockStep{name: "mark", doFunc: func(_ context.Context, run *model.CrawlRun) error {
				if seed == "https://b.example/" {
					time.Sleep(10 * time.Millisecond)
				}
				run.State = model.RunStateCompleted
				return nil
			}})
			return p
		}

		seeds := []string{"https://a.example/", "https://b.example/", "https://c.example/"}
		bp := NewBatchProcessor(factory, WithConcurrency(3), WithBatchLogger(quietLogger()))

		runs, err := bp.ProcessBatch(t.Context(), seeds)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(runs) != len(seeds) {
			t.Fatalf("expected %d runs, got %d", len(seeds), len(runs))
		}
		for i, run := range runs {
			if run.Seed != seeds[i] {
				t.Errorf("run %d: expected seed %s, got %s", i, seeds[i], run.Seed)
			}
			if run.State != model.RunStateCompleted {
				t.Errorf("run %d: expected completed, got %q", i, run.State)
			}
		}
	})

	t.Run("failure of one seed does not stop others", func(t *testing.T) {
		t.Parallel()

		factory := func(seed string) *Pipeline {
			p := New(WithLogger(quietLogger()))
			p.AddStep(&mockStep{name: "crawl", doFunc: func(_ context.Context, run *model.CrawlRun) error {
				if seed == "https://bad.example/" {
					return errors.New("unreachable")
				}
				run.State = model.RunStateCompleted
				return nil
			}})
			return p
		}

		bp := NewBatchProcessor(factory, WithBatchLogger(quietLogger()))
		runs, err := bp.ProcessBatch(t.Context(), []string{"https://bad.example/", "https://good.example/"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if runs[0].State != model.RunStateFailed || runs[0].ErrorMessage != "unreachable" {
			t.Errorf("expected failed run, got %+v", runs[0])
		}
		if runs[1].State != model.RunStateCompleted {
			t.Errorf("expected completed run, got %q", runs[1].State)
		}
	})

	t.Run("respects concurrency limit", func(t *testing.T) {
		t.Parallel()

		var current, peak atomic.Int32
		factory := func(string) *Pipeline {
			p := New(WithLogger(quietLogger()))
			p.AddStep(&mockStep{name: "slow", doFunc: func(context.Context, *model.CrawlRun) error {
				n := current.Add(1)
				for {
					old := peak.Load()
					if n <= old || peak.CompareAndSwap(old, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				current.Add(-1)
				return nil
			}})
			return p
		}

		seeds := make([]string, 8)
		for i := range seeds {
			seeds[i] = "https://example.com/"
		}
		bp := NewBatchProcessor(factory, WithConcurrency(2), WithBatchLogger(quietLogger()))
		if _, err := bp.ProcessBatch(t.Context(), seeds); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if peak.Load() > 2 {
			t.Errorf("expected at most 2 concurrent crawls, got %d", peak.Load())
		}
	})

	t.Run("cancelled batch", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		called := false
		bp := NewBatchProcessor(func(string) *Pipeline {
			called = true
			return New()
		}, WithBatchLogger(quietLogger()))

		runs, err := bp.ProcessBatch(ctx, []string{"https://a.example/", "https://b.example/"})
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
		if called {
			t.Error("expected no pipeline to be built")
		}
		for _, run := range runs {
			if run == nil || run.State != model.RunStateAborted {
				t.Errorf("expected aborted placeholder run, got %+v", run)
			}
		}
	})
}

func TestBatchProcessorProcessBatchWithCallback(t *testing.T) {
	t.Parallel()

	factory := func(string) *Pipeline {
		p := New(WithLogger(quietLogger()))
		p.AddStep(&mockStep{name: "noop"})
		return p
	}

	var (
		mu   sync.Mutex
		seen = make(map[int]string)
	)
	bp := NewBatchProcessor(factory, WithBatchLogger(quietLogger()))
	seeds := []string{"https://a.example/", "https://b.example/"}

	err := bp.ProcessBatchWithCallback(t.Context(), seeds, func(run *model.CrawlRun, index int) {
		mu.Lock()
		defer mu.Unlock()
		seen[index] = run.Seed
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(seen) != 2 || seen[0] != seeds[0] || seen[1] != seeds[1] {
		t.Errorf("unexpected callbacks %v", seen)
	}
}
