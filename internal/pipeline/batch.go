package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/SP963/pageminer/internal/config"
	"github.com/SP963/pageminer/internal/model"
)

// BatchProcessor crawls several seeds concurrently, one Pipeline per seed.
type BatchProcessor struct {
	// pipelineFactory builds the pipeline of one seed, so per-site
	// settings can differ between seeds.
	pipelineFactory func(seed string) *Pipeline

	concurrency int
	logger      *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets the batch logger.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets how many seeds are crawled at once.
// Values below 1 are ignored.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a BatchProcessor.
func NewBatchProcessor(pipelineFactory func(seed string) *Pipeline, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		pipelineFactory: pipelineFactory,
		concurrency:     config.DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(bp)
	}
	if bp.logger == nil {
		bp.logger = slog.Default()
	}
	return bp
}

// ProcessBatch crawls seeds and returns one run per seed in input order.
//
// A failing seed does not stop the others; its error is recorded in its
// run. Seeds not yet started when ctx is cancelled get an aborted run with
// no pages. The returned error is ctx's error if the batch was cancelled.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, seeds []string) ([]*model.CrawlRun, error) {
	results := make([]*model.CrawlRun, len(seeds))
	err := bp.process(ctx, seeds, func(run *model.CrawlRun, i int) {
		results[i] = run
	})
	return results, err
}

// ProcessBatchWithCallback is ProcessBatch with streaming results: callback
// receives each run and its seed index as soon as it finishes. It is
// called from the crawling goroutine and must be safe for concurrent use.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	seeds []string,
	callback func(run *model.CrawlRun, index int),
) error {
	return bp.process(ctx, seeds, callback)
}

func (bp *BatchProcessor) process(ctx context.Context, seeds []string, done func(*model.CrawlRun, int)) error {
	bp.logger.Info("starting batch",
		"seeds", len(seeds),
		"concurrency", bp.concurrency,
	)
	start := time.Now()

	var g errgroup.Group
	g.SetLimit(bp.concurrency)

	for i, seed := range seeds {
		g.Go(func() error {
			run := model.NewCrawlRun(seed)

			if err := ctx.Err(); err != nil {
				run.State = model.RunStateAborted
				run.SetError(err)
				run.FinishedAt = run.StartedAt
				done(run, i)
				return nil
			}

			bp.logger.Info("crawling seed",
				"seed", seed,
				"index", i+1,
				"total", len(seeds),
			)

			if err := bp.pipelineFactory(seed).Execute(ctx, run); err != nil {
				bp.logger.Warn("crawl failed", "seed", seed, "error", err)
			} else {
				bp.logger.Info("crawl finished",
					"seed", seed,
					"state", run.State,
					"pages", len(run.Pages),
				)
			}

			done(run, i)
			return nil
		})
	}

	_ = g.Wait() //nolint:errcheck // goroutines record errors in their runs

	bp.logger.Info("batch complete",
		"seeds", len(seeds),
		"elapsed", time.Since(start),
	)

	return ctx.Err()
}
