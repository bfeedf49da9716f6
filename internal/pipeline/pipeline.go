package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/SP963/pageminer/internal/model"
)

// Step is one stage of a Pipeline.
type Step interface {
	// Do executes the step on run. Problems that should not stop the
	// pipeline are recorded in run and nil is returned.
	Do(ctx context.Context, run *model.CrawlRun) error

	// Name identifies the step in logs and in run.PerformedSteps.
	Name() string
}

// FinalStep is a Step that also runs after the context has been cancelled,
// on whatever the earlier steps produced. Its context is detached from the
// cancellation.
type FinalStep interface {
	Step
	Final() bool
}

// Pipeline executes its steps in order on a single run.
type Pipeline struct {
	steps           []Step
	logger          *slog.Logger
	continueOnError bool
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the pipeline logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError keeps executing steps after one fails.
// The error is still recorded in the run.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates an empty Pipeline.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{steps: make([]Step, 0)}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// AddStep appends step.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends steps in order.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs the steps on run.
//
// Cancellation is checked before each step. Once ctx is done, non-final
// steps are skipped, the run is marked aborted if any was, and the
// cancellation cause is returned after the final steps have run.
// Otherwise the first step error is returned, unless WithContinueOnError
// is set.
func (p *Pipeline) Execute(ctx context.Context, run *model.CrawlRun) error {
	var cancelErr error

	for _, step := range p.steps {
		stepCtx := ctx
		if ctx.Err() != nil {
			if !isFinal(step) {
				if cancelErr == nil {
					cancelErr = context.Cause(ctx)
					p.logger.Warn("pipeline cancelled",
						"step", step.Name(),
						"seed", run.Seed,
						"reason", cancelErr,
					)
					markAborted(run, cancelErr)
				}
				continue
			}
			stepCtx = context.WithoutCancel(ctx)
		}

		p.logger.Debug("executing step", "step", step.Name(), "seed", run.Seed)

		if err := step.Do(stepCtx, run); err != nil {
			p.logger.Error("step failed",
				"step", step.Name(),
				"seed", run.Seed,
				"error", err,
			)
			run.SetError(err)
			if run.State == "" {
				run.State = model.RunStateFailed
			}
			if !p.continueOnError {
				finish(run)
				return err
			}
			continue
		}

		run.PerformedSteps = append(run.PerformedSteps, step.Name())
	}

	finish(run)
	return cancelErr
}

// StepCount returns the number of steps.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the step names in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}

func isFinal(step Step) bool {
	f, ok := step.(FinalStep)
	return ok && f.Final()
}

func markAborted(run *model.CrawlRun, cause error) {
	if run.State != model.RunStateFailed {
		run.State = model.RunStateAborted
	}
	if run.Error == nil {
		run.SetError(cause)
	}
}

func finish(run *model.CrawlRun) {
	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now()
	}
}
