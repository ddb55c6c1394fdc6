package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/nao1215/sitecrawl/internal/model"
)

// setupTestDB creates a temporary database for testing.
func setupTestDB(t *testing.T) *ResultDB {
	t.Helper()

	db, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return db
}

// newTestResult creates a finished result for root started at started.
func newTestResult(root string, started time.Time) *model.CrawlResult {
	result := model.NewCrawlResult(root, 2)
	result.StartedAt = started
	result.FinishedAt = started.Add(2 * time.Second)
	result.Visited = []string{root, root + "a", root + "b"}
	result.Errors = []model.CrawlError{
		{URL: root + "gone", Kind: model.ErrorKindHTTPStatus, StatusCode: 410, Message: "410 Gone", Depth: 1},
		{URL: root + "slow", Kind: model.ErrorKindTimeout, Message: "request timed out", Depth: 2},
	}
	return result
}

// TestOpen tests database opening and creation.
func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("creates database in new directory", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "newdir", "subdir")
		db, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		if _, err := os.Stat(filepath.Join(dbDir, DBFileName)); err != nil {
			t.Errorf("database file was not created: %v", err)
		}
		if db.Path() != filepath.Join(dbDir, DBFileName) {
			t.Errorf("unexpected path %s", db.Path())
		}
	})

	t.Run("CreateIfNotExists=false fails for missing database", func(t *testing.T) {
		t.Parallel()

		_, err := Open(filepath.Join(t.TempDir(), "missing"), Options{CreateIfNotExists: false})
		if err == nil {
			t.Error("expected error for missing database")
		}
	})

	t.Run("CreateIfNotExists=false opens existing database", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		db, err := Open(dir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		_ = db.Close()

		db, err = Open(dir, Options{CreateIfNotExists: false, EnableWAL: true})
		if err != nil {
			t.Fatalf("failed to reopen database: %v", err)
		}
		_ = db.Close()
	})
}

// TestSaveAndGetResult tests that a saved result is rebuilt unchanged.
func TestSaveAndGetResult(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	started := time.Date(2025, 4, 1, 10, 30, 0, 123456789, time.UTC)
	original := newTestResult("https://example.com/", started)
	original.Truncated = true

	id, err := db.SaveResult(ctx, original)
	if err != nil {
		t.Fatalf("failed to save result: %v", err)
	}
	if id == "" {
		t.Fatal("expected non-empty id")
	}

	got, err := db.GetResult(ctx, id)
	if err != nil {
		t.Fatalf("failed to get result: %v", err)
	}

	if got.Root != original.Root || got.MaxDepth != original.MaxDepth {
		t.Errorf("expected root %s depth %d, got %s depth %d", original.Root, original.MaxDepth, got.Root, got.MaxDepth)
	}
	if !got.StartedAt.Equal(original.StartedAt) || !got.FinishedAt.Equal(original.FinishedAt) {
		t.Errorf("expected times %v-%v, got %v-%v", original.StartedAt, original.FinishedAt, got.StartedAt, got.FinishedAt)
	}
	if !got.Truncated || got.Cancelled {
		t.Errorf("expected truncated only, got cancelled=%v truncated=%v", got.Cancelled, got.Truncated)
	}
	if !slices.Equal(got.Visited, original.Visited) {
		t.Errorf("expected visited %v, got %v", original.Visited, got.Visited)
	}
	if !slices.Equal(got.Errors, original.Errors) {
		t.Errorf("expected errors %v, got %v", original.Errors, got.Errors)
	}
}

// TestSaveEmptyResult tests saving a run that visited nothing.
func TestSaveEmptyResult(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	empty := model.NewCrawlResult("https://example.com/", 0)
	empty.Cancelled = true

	id, err := db.SaveResult(ctx, empty)
	if err != nil {
		t.Fatalf("failed to save result: %v", err)
	}

	got, err := db.GetResult(ctx, id)
	if err != nil {
		t.Fatalf("failed to get result: %v", err)
	}
	if len(got.Visited) != 0 || len(got.Errors) != 0 {
		t.Errorf("expected empty result, got %+v", got)
	}
	if got.Visited == nil || got.Errors == nil {
		t.Error("expected initialized slices")
	}
	if !got.StartedAt.IsZero() {
		t.Errorf("expected zero start time, got %v", got.StartedAt)
	}
	if !got.Cancelled {
		t.Error("expected cancelled flag to be kept")
	}

	if _, err := db.SaveResult(ctx, nil); err == nil {
		t.Error("expected error for nil result")
	}
}

// TestListRuns tests listing, filtering and limiting runs.
func TestListRuns(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	base := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	var ids []string
	for i, root := range []string{"https://a.example/", "https://b.example/", "https://a.example/"} {
		id, err := db.SaveResult(ctx, newTestResult(root, base.Add(time.Duration(i)*time.Hour)))
		if err != nil {
			t.Fatalf("failed to save result: %v", err)
		}
		ids = append(ids, id)
	}

	t.Run("all runs newest first", func(t *testing.T) {
		t.Parallel()

		runs, err := db.ListRuns(ctx, "", 0)
		if err != nil {
			t.Fatalf("failed to list runs: %v", err)
		}
		if len(runs) != 3 {
			t.Fatalf("expected 3 runs, got %d", len(runs))
		}
		want := []string{ids[2], ids[1], ids[0]}
		for i := range want {
			if runs[i].ID != want[i] {
				t.Errorf("position %d: expected %s, got %s", i, want[i], runs[i].ID)
			}
		}
		if runs[0].Visited != 3 || runs[0].Failed != 2 {
			t.Errorf("expected counts 3/2, got %d/%d", runs[0].Visited, runs[0].Failed)
		}
	})

	t.Run("filter by root", func(t *testing.T) {
		t.Parallel()

		runs, err := db.ListRuns(ctx, "https://a.example/", 0)
		if err != nil {
			t.Fatalf("failed to list runs: %v", err)
		}
		if len(runs) != 2 {
			t.Fatalf("expected 2 runs, got %d", len(runs))
		}
		for _, r := range runs {
			if r.Root != "https://a.example/" {
				t.Errorf("unexpected root %s", r.Root)
			}
		}
	})

	t.Run("limit", func(t *testing.T) {
		t.Parallel()

		runs, err := db.ListRuns(ctx, "", 1)
		if err != nil {
			t.Fatalf("failed to list runs: %v", err)
		}
		if len(runs) != 1 || runs[0].ID != ids[2] {
			t.Errorf("expected newest run only, got %+v", runs)
		}
	})

	t.Run("unknown root", func(t *testing.T) {
		t.Parallel()

		runs, err := db.ListRuns(ctx, "https://none.example/", 0)
		if err != nil {
			t.Fatalf("failed to list runs: %v", err)
		}
		if runs == nil || len(runs) != 0 {
			t.Errorf("expected empty non-nil slice, got %#v", runs)
		}
	})

	t.Run("latest result", func(t *testing.T) {
		t.Parallel()

		id, result, err := db.LatestResult(ctx, "https://a.example/")
		if err != nil {
			t.Fatalf("failed to get latest result: %v", err)
		}
		if id != ids[2] {
			t.Errorf("expected %s, got %s", ids[2], id)
		}
		if len(result.Visited) != 3 {
			t.Errorf("expected 3 visited URLs, got %d", len(result.Visited))
		}

		if _, _, err := db.LatestResult(ctx, "https://none.example/"); !errors.Is(err, ErrRunNotFound) {
			t.Errorf("expected ErrRunNotFound, got %v", err)
		}
	})
}

// TestGetResultNotFound tests lookups of unknown ids.
func TestGetResultNotFound(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)

	if _, err := db.GetResult(context.Background(), "missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
	if _, err := db.GetRun(context.Background(), "missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
}

// TestDeleteRun tests that deleting a run removes its rows.
func TestDeleteRun(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	id, err := db.SaveResult(ctx, newTestResult("https://example.com/", time.Now()))
	if err != nil {
		t.Fatalf("failed to save result: %v", err)
	}

	if err := db.DeleteRun(ctx, id); err != nil {
		t.Fatalf("failed to delete run: %v", err)
	}
	if _, err := db.GetResult(ctx, id); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound after delete, got %v", err)
	}

	var visits int
	if err := db.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM visits WHERE run_id = ?`, id).Scan(&visits); err != nil {
		t.Fatalf("failed to count visits: %v", err)
	}
	if visits != 0 {
		t.Errorf("expected visits to be deleted with the run, got %d", visits)
	}

	if err := db.DeleteRun(ctx, id); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound for second delete, got %v", err)
	}
}

// TestParseTimestamp tests parsing of stored timestamps.
func TestParseTimestamp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  time.Time
	}{
		{name: "stored layout", input: "2025-01-02 03:04:05.500000000", want: time.Date(2025, 1, 2, 3, 4, 5, 500000000, time.UTC)},
		{name: "sqlite default", input: "2025-01-02 03:04:05", want: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)},
		{name: "iso with Z", input: "2025-01-02T03:04:05Z", want: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)},
		{name: "empty", input: "", want: time.Time{}},
		{name: "garbage", input: "yesterday", want: time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := parseTimestamp(tt.input); !got.Equal(tt.want) {
				t.Errorf("parseTimestamp(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}

	ts := time.Date(2025, 6, 7, 8, 9, 10, 11, time.FixedZone("JST", 9*60*60))
	if got := parseTimestamp(formatTimestamp(ts)); !got.Equal(ts) {
		t.Errorf("expected %v after round trip, got %v", ts, got)
	}
	if formatTimestamp(time.Time{}) != "" {
		t.Error("expected zero time to be stored as empty string")
	}
}
