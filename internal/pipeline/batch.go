package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the number of jobs processed at once unless
// WithConcurrency says otherwise.
const DefaultConcurrency = 1

// BatchProcessor handles concurrent processing of multiple roots.
// It uses errgroup to manage goroutines and respect concurrency limits.
//
// Design decision: We use a separate BatchProcessor rather than adding batch
// functionality to Pipeline because:
// 1. It keeps the Pipeline focused on single-root execution
// 2. It allows different batch strategies (e.g., rate limiting, retries)
// 3. It provides cleaner separation of concerns
//
// Concurrency is between roots only. Every root is still crawled by a single
// sequential traversal, so the visit order of each result does not depend on
// the batch size.
type BatchProcessor struct {
	// pipelineFactory creates a new pipeline for each job.
	// We use a factory to ensure each job gets a fresh pipeline instance.
	pipelineFactory func() *Pipeline

	// concurrency is the maximum number of concurrent jobs.
	concurrency int

	// logger is used for batch-level logging.
	logger *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent jobs.
// Default is 1 if not specified.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor.
//
// The pipelineFactory function is called for each job to create a fresh
// pipeline instance. This ensures that pipeline state doesn't leak between
// jobs and allows for per-job customization if needed.
func NewBatchProcessor(pipelineFactory func() *Pipeline, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		pipelineFactory: pipelineFactory,
		concurrency:     DefaultConcurrency,
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// ProcessBatch runs every job through a fresh pipeline, at most
// 'concurrency' at a time, and returns the runs in the order of jobs.
//
// Failed jobs do not stop the batch; their errors are recorded in Run.Err.
// When ctx is cancelled, jobs still waiting are started anyway so that
// each one reports a (possibly empty) cancelled result.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, jobs []Job) ([]*Run, error) {
	runs := make([]*Run, len(jobs))

	err := bp.ProcessBatchWithCallback(ctx, jobs, func(run *Run, index int) {
		// Each index is written by exactly one goroutine.
		runs[index] = run
	})

	return runs, err
}

// ProcessBatchWithCallback processes jobs like ProcessBatch and calls
// callback for each completed run. This is useful for streaming results.
//
// The callback receives the run and the index of the job in the original
// slice. The callback is called from the goroutine that completed the job,
// so it should be thread-safe if it accesses shared state.
//
// Design decision: We use errgroup.SetLimit rather than a worker pool
// because it's simpler and errgroup handles the concurrency correctly.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	jobs []Job,
	callback func(run *Run, index int),
) error {
	bp.logger.Info("starting batch processing",
		"total_roots", len(jobs),
		"concurrency", bp.concurrency,
	)

	startTime := time.Now()

	var g errgroup.Group
	g.SetLimit(bp.concurrency)

	for i, job := range jobs {
		g.Go(func() error {
			bp.logger.Info("processing root",
				"root", job.Root,
				"index", i+1,
				"total", len(jobs),
			)

			run := NewRun(job)
			if err := bp.pipelineFactory().Execute(ctx, run); err != nil {
				bp.logger.Warn("root failed",
					"root", job.Root,
					"error", err,
				)
			}

			callback(run, i)

			// Failures are recorded in the run so the other roots continue.
			return nil
		})
	}

	err := g.Wait()

	bp.logger.Info("batch processing complete",
		"total_roots", len(jobs),
		"elapsed", time.Since(startTime),
	)

	return err
}
