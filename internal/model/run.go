package model

import "time"

// RunSummary describes one archived crawl run without its URL lists.
type RunSummary struct {
	// ID is the archive's identifier for the run.
	ID string `json:"id"`

	// Root is the normalized root URL of the run.
	Root string `json:"root"`

	// MaxDepth is the depth limit the run used.
	MaxDepth int `json:"max_depth"`

	// Visited is the number of successfully fetched URLs.
	Visited int `json:"visited"`

	// Failed is the number of failed fetch attempts.
	Failed int `json:"failed"`

	// StartedAt is when the run started.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is when the run finished.
	FinishedAt time.Time `json:"finished_at"`

	// Cancelled mirrors CrawlResult.Cancelled.
	Cancelled bool `json:"cancelled"`

	// Truncated mirrors CrawlResult.Truncated.
	Truncated bool `json:"truncated"`
}

// NewRunSummary summarizes result under the given archive id.
func NewRunSummary(id string, result *CrawlResult) RunSummary {
	return RunSummary{
		ID:         id,
		Root:       result.Root,
		MaxDepth:   result.MaxDepth,
		Visited:    len(result.Visited),
		Failed:     len(result.Errors),
		StartedAt:  result.StartedAt,
		FinishedAt: result.FinishedAt,
		Cancelled:  result.Cancelled,
		Truncated:  result.Truncated,
	}
}

// Status returns a short description of how the run ended.
func (s RunSummary) Status() string {
	switch {
	case s.Cancelled:
		return "cancelled"
	case s.Truncated:
		return "truncated"
	default:
		return "complete"
	}
}
