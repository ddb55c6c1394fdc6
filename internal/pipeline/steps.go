package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/nao1215/sitecrawl/internal/model"
)

// ErrNoSpider is returned by CrawlStep when the job has no spider.
var ErrNoSpider = errors.New("job has no spider")

// CrawlStep crawls the job's root with the job's spider.
type CrawlStep struct {
	logger *slog.Logger
}

// CrawlStepOption configures a CrawlStep.
type CrawlStepOption func(*CrawlStep)

// WithCrawlLogger sets the logger for the crawl step.
func WithCrawlLogger(logger *slog.Logger) CrawlStepOption {
	return func(s *CrawlStep) {
		s.logger = logger
	}
}

// NewCrawlStep creates a CrawlStep.
func NewCrawlStep(opts ...CrawlStepOption) *CrawlStep {
	s := &CrawlStep{}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Name returns the step name.
func (s *CrawlStep) Name() string {
	return "crawl"
}

// Do runs the crawl and stores the result in run.Result.
// A cancelled crawl is not an error: its partial result is stored.
func (s *CrawlStep) Do(ctx context.Context, run *Run) error {
	if run.Job.Spider == nil {
		return ErrNoSpider
	}

	result, err := run.Job.Spider.Crawl(ctx, run.Job.Root, run.Job.Depth)
	if err != nil {
		return err
	}
	run.Result = result

	s.logger.Info("crawl finished",
		"root", result.Root,
		"visited", len(result.Visited),
		"failed", len(result.Errors),
		"status", result.Status(),
		"elapsed", result.Duration(),
	)

	return nil
}

// ResultStore persists finished crawl results.
// database.ResultDB implements it.
type ResultStore interface {
	SaveResult(ctx context.Context, result *model.CrawlResult) (string, error)
}

// ArchiveStep saves the crawl result to a ResultStore.
type ArchiveStep struct {
	store  ResultStore
	logger *slog.Logger
}

// ArchiveStepOption configures an ArchiveStep.
type ArchiveStepOption func(*ArchiveStep)

// WithArchiveLogger sets the logger for the archive step.
func WithArchiveLogger(logger *slog.Logger) ArchiveStepOption {
	return func(s *ArchiveStep) {
		s.logger = logger
	}
}

// NewArchiveStep creates an ArchiveStep that writes to store.
func NewArchiveStep(store ResultStore, opts ...ArchiveStepOption) *ArchiveStep {
	s := &ArchiveStep{store: store}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Name returns the step name.
func (s *ArchiveStep) Name() string {
	return "archive"
}

// Do saves run.Result and records the archive id in run.RunID.
// Runs without a result are skipped. The write ignores cancellation of ctx
// so that the partial result of an interrupted crawl is still archived.
func (s *ArchiveStep) Do(ctx context.Context, run *Run) error {
	if run.Result == nil {
		return nil
	}

	id, err := s.store.SaveResult(context.WithoutCancel(ctx), run.Result)
	if err != nil {
		return err
	}
	run.RunID = id

	s.logger.Info("result archived", "root", run.Result.Root, "id", id)
	return nil
}
