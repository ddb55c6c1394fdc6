package pipeline

import (
	"context"
	"log/slog"

	"github.com/nao1215/sitecrawl/internal/crawler"
	"github.com/nao1215/sitecrawl/internal/model"
)

// Job describes one root to crawl.
type Job struct {
	// Root is the root URL as given by the user.
	Root string

	// Depth is the maximum number of hops from the root.
	Depth int

	// Spider performs the crawl. Each job gets its own spider because
	// per-site settings (scope, patterns, cookies) differ between roots.
	Spider *crawler.Spider
}

// Run carries one job through the pipeline and collects what the steps
// produced.
type Run struct {
	// Job is the job being processed.
	Job Job

	// Result is the crawl result. It is nil when the crawl could not start,
	// for example because the root URL is invalid.
	Result *model.CrawlResult

	// RunID is the archive id of the result. Empty when it was not archived.
	RunID string

	// Err holds the errors of failed steps.
	Err error

	// PerformedSteps lists the steps that were executed, in order.
	PerformedSteps []string
}

// NewRun creates a Run for job.
func NewRun(job Job) *Run {
	return &Run{
		Job:            job,
		PerformedSteps: make([]string, 0),
	}
}

// Step defines the interface that all pipeline steps must implement.
// Steps are executed in sequence, with each step receiving the run
// accumulated by previous steps.
//
// Design decision: We use an interface rather than function types because:
// 1. It allows steps to carry configuration state
// 2. It provides a Name() method for logging and debugging
// 3. It's more extensible for future features (e.g., priority, dependencies)
type Step interface {
	// Do executes the pipeline step.
	// It receives the context for cancellation, and the run to modify.
	// Returns an error if the step fails critically; non-critical problems
	// should be recorded in the run and return nil.
	Do(ctx context.Context, run *Run) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline orchestrates the execution of multiple steps.
// It maintains a list of steps and executes them in order.
type Pipeline struct {
	// steps contains the ordered list of steps to execute.
	steps []Step

	// logger is used for structured logging during execution.
	logger *slog.Logger
}

// Option is a function that configures a Pipeline.
// This follows the functional options pattern for clean API design.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
// If not set, a default logger is created.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New creates a new Pipeline with the given options.
// Steps should be added using AddStep after creation.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p
}

// AddStep appends steps to the pipeline.
// Steps are executed in the order they are added.
func (p *Pipeline) AddStep(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all pipeline steps in sequence.
//
// Cancellation of ctx does not skip steps: the crawl step turns it into a
// partial result, and later steps still see that result. Each step decides
// how it reacts to a done context.
//
// A failing step stops the pipeline: later steps would only see a run
// without a result. The error is returned and recorded in run.Err.
func (p *Pipeline) Execute(ctx context.Context, run *Run) error {
	for _, step := range p.steps {
		p.logger.Debug("executing step",
			"step", step.Name(),
			"root", run.Job.Root,
		)

		if err := step.Do(ctx, run); err != nil {
			p.logger.Error("step failed",
				"step", step.Name(),
				"root", run.Job.Root,
				"error", err,
			)

			run.Err = err
			return err
		}

		p.logger.Debug("step completed",
			"step", step.Name(),
			"root", run.Job.Root,
		)
		run.PerformedSteps = append(run.PerformedSteps, step.Name())
	}

	return nil
}
