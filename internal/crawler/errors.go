package crawler

import (
	"errors"
	"fmt"

	"github.com/nao1215/sitecrawl/internal/model"
)

// Engine errors.
// These abort a crawl before any fetch happens and are surfaced to the caller
// as fatal configuration errors.
var (
	// ErrInvalidRootURL is returned when the root URL is not an absolute
	// http(s) URL.
	ErrInvalidRootURL = errors.New("invalid root URL")

	// ErrNegativeDepth is returned when the depth limit is below zero.
	ErrNegativeDepth = errors.New("invalid depth: must be zero or greater")

	// ErrNoFetcher is returned when the spider has no Fetcher or LinkExtractor.
	ErrNoFetcher = errors.New("spider requires a fetcher and a link extractor")

	// ErrSpiderRunning is returned when Crawl is called on a spider whose
	// previous crawl has not finished yet.
	ErrSpiderRunning = errors.New("spider is already running")
)

// ErrInvalidURL is returned by Normalize for links that cannot be crawled:
// malformed references, missing hosts and non-HTTP(S) schemes.
// The spider drops such links silently; they never become crawl errors
// because no fetch was attempted.
var ErrInvalidURL = errors.New("invalid URL")

// FetchError is returned by a Fetcher when a fetch attempt fails.
// It carries the classification recorded in the crawl result.
//
// Design decision: We use a single error type with a Kind field instead of
// one type per failure mode so that the spider needs exactly one errors.As
// call to classify any failure, and fetchers other than HTTPFetcher can
// report the same categories.
type FetchError struct {
	// Kind classifies the failure.
	Kind model.ErrorKind

	// StatusCode is the HTTP status for model.ErrorKindHTTPStatus.
	StatusCode int

	// Message describes the failure.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// NewHTTPStatusError creates a FetchError for a non-2xx response.
func NewHTTPStatusError(code int, status string) *FetchError {
	if status == "" {
		status = fmt.Sprintf("%d", code)
	}
	return &FetchError{
		Kind:       model.ErrorKindHTTPStatus,
		StatusCode: code,
		Message:    status,
	}
}

// toCrawlError converts any fetch failure into the record stored in the result.
// Errors that are not FetchErrors are classified as model.ErrorKindOther.
func toCrawlError(pageURL string, depth int, err error) model.CrawlError {
	ce := model.CrawlError{
		URL:     pageURL,
		Kind:    model.ErrorKindOther,
		Message: err.Error(),
		Depth:   depth,
	}

	var fe *FetchError
	if errors.As(err, &fe) {
		ce.Kind = fe.Kind
		ce.StatusCode = fe.StatusCode
		ce.Message = fe.Message
		if fe.Err != nil {
			ce.Message = fmt.Sprintf("%s: %v", fe.Message, fe.Err)
		}
	}

	return ce
}
