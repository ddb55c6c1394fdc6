package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/nao1215/sitecrawl/internal/crawler"
	"github.com/nao1215/sitecrawl/internal/model"
)

// testSite serves a tiny HTML site from memory.
func testSite() crawler.Fetcher {
	pages := map[string]string{
		"https://example.com/":  `<a href="/a">a</a><a href="/b">b</a>`,
		"https://example.com/a": `<a href="/c">c</a>`,
		"https://example.com/b": `<a href="https://other.example/">off</a>`,
		"https://example.com/c": ``,
	}
	return crawler.FetcherFunc(func(_ context.Context, pageURL string) (*crawler.Response, error) {
		body, ok := pages[pageURL]
		if !ok {
			return nil, crawler.NewHTTPStatusError(404, "404 Not Found")
		}
		return &crawler.Response{StatusCode: 200, ContentType: "text/html", Body: []byte(body)}, nil
	})
}

func newTestSpider() *crawler.Spider {
	return crawler.NewSpider(testSite(), crawler.NewHTMLExtractor())
}

// memoryStore is an in-memory ResultStore.
type memoryStore struct {
	mu      sync.Mutex
	saved   []*model.CrawlResult
	err     error
	ctxErrs []error
}

func (m *memoryStore) SaveResult(ctx context.Context, result *model.CrawlResult) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ctxErrs = append(m.ctxErrs, ctx.Err())
	if m.err != nil {
		return "", m.err
	}
	m.saved = append(m.saved, result)
	return "run-" + strings.Repeat("x", len(m.saved)), nil
}

// TestCrawlStep tests crawling through the pipeline step.
func TestCrawlStep(t *testing.T) {
	t.Parallel()

	t.Run("stores the result", func(t *testing.T) {
		t.Parallel()

		step := NewCrawlStep(WithCrawlLogger(discardLogger()))
		if step.Name() != "crawl" {
			t.Errorf("expected name crawl, got %s", step.Name())
		}

		run := NewRun(Job{Root: "https://example.com", Depth: 2, Spider: newTestSpider()})
		if err := step.Do(context.Background(), run); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := []string{
			"https://example.com/",
			"https://example.com/a",
			"https://example.com/b",
			"https://example.com/c",
		}
		if run.Result == nil {
			t.Fatal("expected a result")
		}
		if strings.Join(run.Result.Visited, ",") != strings.Join(want, ",") {
			t.Errorf("expected %v, got %v", want, run.Result.Visited)
		}
	})

	t.Run("respects depth", func(t *testing.T) {
		t.Parallel()

		run := NewRun(Job{Root: "https://example.com/", Depth: 0, Spider: newTestSpider()})
		if err := NewCrawlStep(WithCrawlLogger(discardLogger())).Do(context.Background(), run); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(run.Result.Visited) != 1 {
			t.Errorf("expected only the root, got %v", run.Result.Visited)
		}
	})

	t.Run("cancelled crawl is not an error", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		run := NewRun(Job{Root: "https://example.com/", Depth: 2, Spider: newTestSpider()})
		if err := NewCrawlStep(WithCrawlLogger(discardLogger())).Do(ctx, run); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !run.Result.Cancelled {
			t.Error("expected cancelled result")
		}
	})

	t.Run("invalid root", func(t *testing.T) {
		t.Parallel()

		run := NewRun(Job{Root: "ftp://example.com/", Spider: newTestSpider()})
		err := NewCrawlStep(WithCrawlLogger(discardLogger())).Do(context.Background(), run)
		if !errors.Is(err, crawler.ErrInvalidRootURL) {
			t.Errorf("expected ErrInvalidRootURL, got %v", err)
		}
		if run.Result != nil {
			t.Error("expected no result")
		}
	})

	t.Run("missing spider", func(t *testing.T) {
		t.Parallel()

		err := NewCrawlStep().Do(context.Background(), NewRun(Job{Root: "https://example.com/"}))
		if !errors.Is(err, ErrNoSpider) {
			t.Errorf("expected ErrNoSpider, got %v", err)
		}
	})
}

// TestArchiveStep tests saving results through the pipeline step.
func TestArchiveStep(t *testing.T) {
	t.Parallel()

	t.Run("saves result and records id", func(t *testing.T) {
		t.Parallel()

		store := &memoryStore{}
		step := NewArchiveStep(store, WithArchiveLogger(discardLogger()))
		if step.Name() != "archive" {
			t.Errorf("expected name archive, got %s", step.Name())
		}

		run := NewRun(Job{Root: "https://example.com/"})
		run.Result = model.NewCrawlResult("https://example.com/", 1)
		if err := step.Do(context.Background(), run); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if run.RunID != "run-x" {
			t.Errorf("expected run-x, got %q", run.RunID)
		}
		if len(store.saved) != 1 {
			t.Errorf("expected 1 saved result, got %d", len(store.saved))
		}
	})

	t.Run("skips runs without result", func(t *testing.T) {
		t.Parallel()

		store := &memoryStore{}
		if err := NewArchiveStep(store).Do(context.Background(), NewRun(Job{})); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(store.saved) != 0 {
			t.Error("expected nothing saved")
		}
	})

	t.Run("saves after cancellation", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		store := &memoryStore{}
		run := NewRun(Job{})
		run.Result = model.NewCrawlResult("https://example.com/", 0)
		run.Result.Cancelled = true
		if err := NewArchiveStep(store, WithArchiveLogger(discardLogger())).Do(ctx, run); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(store.saved) != 1 {
			t.Fatal("expected cancelled result to be saved")
		}
		if store.ctxErrs[0] != nil {
			t.Errorf("expected store to see a live context, got %v", store.ctxErrs[0])
		}
	})

	t.Run("returns store errors", func(t *testing.T) {
		t.Parallel()

		errDisk := errors.New("disk full")
		run := NewRun(Job{})
		run.Result = model.NewCrawlResult("https://example.com/", 0)
		err := NewArchiveStep(&memoryStore{err: errDisk}, WithArchiveLogger(discardLogger())).Do(context.Background(), run)
		if !errors.Is(err, errDisk) {
			t.Errorf("expected errDisk, got %v", err)
		}
		if run.RunID != "" {
			t.Error("expected no run id")
		}
	})
}
